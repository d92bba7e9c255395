package generator

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// Filter narrows a question selection. Nil Difficulty or Source means any.
type Filter struct {
	SubjectID         int
	ChapterIDs        []int
	Difficulty        *model.Difficulty
	Source            *model.Source
	ExcludeIDs        []uuid.UUID
	Limit             int
	Random            bool
	Seed              int64
	IncludeUnverified bool
}

// QuestionSource returns up to f.Limit questions matching every set filter.
// Only verified questions are returned unless f.IncludeUnverified is set.
// Results are ordered by id unless f.Random, in which case the order is a function of f.Seed. No match yields an empty slice, not an error.
type QuestionSource interface {
	Select(ctx context.Context, f Filter) ([]model.Question, error)
}
