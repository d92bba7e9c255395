package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNoRows = errors.New("no rows")

// recordingDB captures Exec and Query calls. Query fails with errNoRows.
type recordingDB struct {
	sql  string
	args []any
}

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.sql, d.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 2"), nil
}

func (d *recordingDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.sql, d.args = sql, args
	return nil, errNoRows
}

func (d *recordingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected QueryRow")
}

func (d *recordingDB) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("unexpected CopyFrom")
}

func TestUpsertDraftsLastWriteWins(t *testing.T) {
	db := &recordingDB{}
	repo := NewAttemptRepository(db)
	attempt, q1, q2 := uuid.New(), uuid.New(), uuid.New()

	n, err := repo.UpsertDrafts(context.Background(), []AnswerDraft{
		{AttemptID: attempt, QuestionID: q1, Option: "A"},
		{AttemptID: attempt, QuestionID: q2, Option: "B"},
		{AttemptID: attempt, QuestionID: q1, Option: "D"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.Len(t, db.args, 3)
	assert.Equal(t, []string{attempt.String(), attempt.String()}, db.args[0])
	assert.Equal(t, []string{q2.String(), q1.String()}, db.args[1])
	assert.Equal(t, []string{"B", "D"}, db.args[2])
}

func TestUpsertDraftsWaitsForCompletion(t *testing.T) {
	db := &recordingDB{}
	_, err := NewAttemptRepository(db).UpsertDrafts(context.Background(), []AnswerDraft{
		{AttemptID: uuid.New(), QuestionID: uuid.New(), Option: "C"},
	})
	require.NoError(t, err)

	// The attempt row must be share-locked so a concurrent submit holding
	// FOR UPDATE blocks the batch until its status is final.
	assert.Contains(t, db.sql, "FOR SHARE OF a")
	assert.Contains(t, db.sql, "a.status = 'in_progress'")
}

func TestUpsertDraftsEmpty(t *testing.T) {
	db := &recordingDB{}
	n, err := NewAttemptRepository(db).UpsertDrafts(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, db.sql)
}
