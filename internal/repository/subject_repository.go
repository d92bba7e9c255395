package repository

import (
	"context"

	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// SubjectRepository handles subject data access.
type SubjectRepository struct {
	db database.DBTX
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(db database.DBTX) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create inserts a subject. A duplicate code returns ErrDuplicate.
func (r *SubjectRepository) Create(ctx context.Context, s *model.Subject) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO subjects (name, code) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		s.Name, s.Code,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return mapConstraint(err)
}

// GetByID retrieves a subject by ID.
func (r *SubjectRepository) GetByID(ctx context.Context, id int) (*model.Subject, error) {
	s := &model.Subject{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, code, created_at, updated_at FROM subjects WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Code, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetAll lists subjects ordered by name.
func (r *SubjectRepository) GetAll(ctx context.Context) ([]model.Subject, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, code, created_at, updated_at FROM subjects ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// Update renames a subject. It reports whether the row existed.
func (r *SubjectRepository) Update(ctx context.Context, s *model.Subject) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE subjects SET name = $1, code = $2, updated_at = NOW() WHERE id = $3`,
		s.Name, s.Code, s.ID,
	)
	if err != nil {
		return false, mapConstraint(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a subject. Subjects with chapters or questions return ErrInUse.
func (r *SubjectRepository) Delete(ctx context.Context, id int) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return false, mapConstraint(err)
	}
	return tag.RowsAffected() > 0, nil
}
