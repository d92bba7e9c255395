package service

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/response"
)

// Service-level errors mapped to response codes by handlers.
var (
	ErrEmailTaken        = errors.New("email already registered")
	ErrSubjectCodeTaken  = errors.New("subject code already exists")
	ErrChapterNameTaken  = errors.New("chapter name already exists in subject")
	ErrHasDependents     = errors.New("record still has dependent data")
	ErrQuestionVerified  = errors.New("verified questions are immutable")
	ErrAttemptInProgress = errors.New("an attempt is already in progress for this subject and paper type")
	ErrAttemptExpired    = errors.New("attempt deadline has passed")
	ErrNotOwner          = errors.New("attempt belongs to another student")
)

// notFound maps pgx.ErrNoRows to a typed NotFoundError and passes other errors through.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound(entity, id)
	}
	return err
}

// paginate clamps page/perPage and returns limit and offset.
func paginate(page, perPage int) (int, int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage, perPage, (page - 1) * perPage
}

func newPagination(page, perPage, total int) *response.Pagination {
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}
