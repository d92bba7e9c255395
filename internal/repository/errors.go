package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint violations surfaced to services.
var (
	ErrDuplicate = errors.New("record already exists")
	ErrInUse     = errors.New("record is referenced by other data")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapConstraint translates unique and foreign-key violations into repository errors.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return ErrDuplicate
	case pgForeignKeyViolation:
		return ErrInUse
	}
	return err
}

// isUniqueOn reports a unique violation of the named constraint or index.
func isUniqueOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint
}
