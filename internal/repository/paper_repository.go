package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// PaperRepository persists promoted papers and their ordered question lists.
type PaperRepository struct {
	db database.DBTX
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(db database.DBTX) *PaperRepository {
	return &PaperRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *PaperRepository) WithTx(tx database.DBTX) *PaperRepository {
	return &PaperRepository{db: tx}
}

// Create inserts a paper, storing its generation config as JSONB.
func (r *PaperRepository) Create(ctx context.Context, p *model.Paper) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO papers (id, subject_id, student_id, paper_type, practice_type, config, question_count, duration_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		p.ID, p.SubjectID, p.StudentID, string(p.PaperType), string(p.PracticeType), p.Config, p.QuestionCount, p.DurationMinutes,
	).Scan(&p.CreatedAt)
}

// AddQuestions stores the paper's questions; position follows slice order starting at 1.
func (r *PaperRepository) AddQuestions(ctx context.Context, paperID uuid.UUID, questionIDs []uuid.UUID) error {
	_, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier{"paper_questions"},
		[]string{"paper_id", "question_id", "position"},
		pgx.CopyFromSlice(len(questionIDs), func(i int) ([]any, error) {
			return []any{paperID, questionIDs[i], i + 1}, nil
		}),
	)
	return err
}

// GetByID retrieves a paper by ID.
func (r *PaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	p := &model.Paper{}
	err := r.db.QueryRow(ctx,
		`SELECT id, subject_id, student_id, paper_type, practice_type, config, question_count, duration_minutes, created_at
		 FROM papers WHERE id = $1`, id,
	).Scan(&p.ID, &p.SubjectID, &p.StudentID, &p.PaperType, &p.PracticeType, &p.Config, &p.QuestionCount, &p.DurationMinutes, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}
