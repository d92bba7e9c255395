package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapConstraint(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"unique", &pgconn.PgError{Code: "23505"}, ErrDuplicate},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), ErrDuplicate},
		{"foreign key", &pgconn.PgError{Code: "23503"}, ErrInUse},
		{"check violation passes through", &pgconn.PgError{Code: "23514"}, nil},
		{"plain error passes through", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapConstraint(tt.in)
			if tt.want == nil && tt.in != nil {
				assert.Equal(t, tt.in, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsUniqueOn(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: activeSlotIndex}
	assert.True(t, isUniqueOn(err, activeSlotIndex))
	assert.True(t, isUniqueOn(fmt.Errorf("wrap: %w", err), activeSlotIndex))
	assert.False(t, isUniqueOn(err, "students_email_key"))
	assert.False(t, isUniqueOn(&pgconn.PgError{Code: "23503", ConstraintName: activeSlotIndex}, activeSlotIndex))
	assert.False(t, isUniqueOn(nil, activeSlotIndex))
}
