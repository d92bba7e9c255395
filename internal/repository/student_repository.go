package repository

import (
	"context"
	"strconv"

	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
)

const studentColumns = `id, email, name, password_hash, target_exam, created_at, updated_at`

// StudentRepository handles student data access.
type StudentRepository struct {
	db database.DBTX
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(db database.DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

func scanStudent(row interface{ Scan(dest ...any) error }, s *model.Student) error {
	return row.Scan(&s.ID, &s.Email, &s.Name, &s.PasswordHash, &s.TargetExam, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int) (*model.Student, error) {
	s := &model.Student{}
	if err := scanStudent(r.db.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id), s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetByEmail retrieves a student by their unique email, case-insensitively.
func (r *StudentRepository) GetByEmail(ctx context.Context, email string) (*model.Student, error) {
	s := &model.Student{}
	if err := scanStudent(r.db.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE LOWER(email) = LOWER($1)`, email), s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListPaginated retrieves students ordered by name, optionally filtered by a
// name or email substring.
func (r *StudentRepository) ListPaginated(ctx context.Context, search string, limit, offset int) ([]model.Student, int, error) {
	where := ""
	var args []any
	if search != "" {
		where = ` WHERE name ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	argIdx := len(args) + 1
	query := `SELECT ` + studentColumns + ` FROM students` + where +
		` ORDER BY name LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		if err := scanStudent(rows, &s); err != nil {
			return nil, 0, err
		}
		students = append(students, s)
	}
	return students, total, rows.Err()
}

// Create inserts a new student. A taken email returns ErrDuplicate.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO students (email, name, password_hash, target_exam)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		s.Email, s.Name, s.PasswordHash, s.TargetExam,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return mapConstraint(err)
}

// Update modifies a student's profile (excluding password).
func (r *StudentRepository) Update(ctx context.Context, s *model.Student) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE students SET email = $1, name = $2, target_exam = $3, updated_at = NOW()
		 WHERE id = $4`,
		s.Email, s.Name, s.TargetExam, s.ID,
	)
	if err != nil {
		return false, mapConstraint(err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdatePassword updates a student's password hash.
func (r *StudentRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE students SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, id,
	)
	return err
}

// Delete removes a student and, by cascade, their papers and attempts.
func (r *StudentRepository) Delete(ctx context.Context, id int) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
