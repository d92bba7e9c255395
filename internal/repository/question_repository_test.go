package repository

import (
	"context"
	"testing"

	"github.com/stemsi/prepgen-backend/internal/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectOrdering(t *testing.T) {
	tests := []struct {
		name     string
		filter   generator.Filter
		order    string
		wantArgs int
		seedArg  string
	}{
		{"by id", generator.Filter{SubjectID: 1, Limit: 5}, "ORDER BY id", 7, ""},
		{"seeded", generator.Filter{SubjectID: 1, Limit: 5, Random: true, Seed: 1234}, "ORDER BY md5(id::text || $8::text), id", 8, "1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &recordingDB{}
			_, err := NewQuestionRepository(db).Select(context.Background(), tt.filter)
			assert.ErrorIs(t, err, errNoRows)

			assert.Contains(t, db.sql, tt.order)
			assert.NotContains(t, db.sql, "random()")
			require.Len(t, db.args, tt.wantArgs)
			if tt.seedArg != "" {
				assert.Equal(t, tt.seedArg, db.args[7])
			}
		})
	}
}

func TestSelectZeroLimit(t *testing.T) {
	db := &recordingDB{}
	qs, err := NewQuestionRepository(db).Select(context.Background(), generator.Filter{SubjectID: 1, Random: true})
	require.NoError(t, err)
	assert.Empty(t, qs)
	assert.Empty(t, db.sql)
}
