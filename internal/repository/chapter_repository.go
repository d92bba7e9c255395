package repository

import (
	"context"

	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
)

const chapterColumns = `id, subject_id, name, weight, estimated_questions, position, created_at, updated_at`

// ChapterRepository handles chapter data access.
type ChapterRepository struct {
	db database.DBTX
}

// NewChapterRepository creates a new ChapterRepository.
func NewChapterRepository(db database.DBTX) *ChapterRepository {
	return &ChapterRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ChapterRepository) WithTx(tx database.DBTX) *ChapterRepository {
	return &ChapterRepository{db: tx}
}

func scanChapter(row interface{ Scan(dest ...any) error }, c *model.Chapter) error {
	return row.Scan(&c.ID, &c.SubjectID, &c.Name, &c.Weight, &c.EstimatedQuestions, &c.Position, &c.CreatedAt, &c.UpdatedAt)
}

// Create inserts a chapter.
func (r *ChapterRepository) Create(ctx context.Context, c *model.Chapter) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO chapters (subject_id, name, weight, estimated_questions, position)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		c.SubjectID, c.Name, c.Weight, c.EstimatedQuestions, c.Position,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapConstraint(err)
}

// GetByID retrieves a chapter by ID.
func (r *ChapterRepository) GetByID(ctx context.Context, id int) (*model.Chapter, error) {
	c := &model.Chapter{}
	if err := scanChapter(r.db.QueryRow(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = $1`, id), c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListBySubject lists a subject's chapters in display order.
func (r *ChapterRepository) ListBySubject(ctx context.Context, subjectID int) ([]model.Chapter, error) {
	return r.list(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE subject_id = $1 ORDER BY position, id`, subjectID)
}

// ListAll lists every chapter, grouped by subject.
func (r *ChapterRepository) ListAll(ctx context.Context) ([]model.Chapter, error) {
	return r.list(ctx, `SELECT `+chapterColumns+` FROM chapters ORDER BY subject_id, position, id`)
}

// ListByIDs returns the subject's chapters among ids, in display order.
// Ids belonging to other subjects are silently dropped.
func (r *ChapterRepository) ListByIDs(ctx context.Context, subjectID int, ids []int) ([]model.Chapter, error) {
	return r.list(ctx,
		`SELECT `+chapterColumns+` FROM chapters
		 WHERE subject_id = $1 AND id = ANY($2)
		 ORDER BY position, id`, subjectID, ids)
}

func (r *ChapterRepository) list(ctx context.Context, query string, args ...any) ([]model.Chapter, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []model.Chapter
	for rows.Next() {
		var c model.Chapter
		if err := scanChapter(rows, &c); err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// Update modifies a chapter. It reports whether the row existed.
func (r *ChapterRepository) Update(ctx context.Context, c *model.Chapter) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE chapters
		 SET name = $1, weight = $2, estimated_questions = $3, position = $4, updated_at = NOW()
		 WHERE id = $5 AND subject_id = $6`,
		c.Name, c.Weight, c.EstimatedQuestions, c.Position, c.ID, c.SubjectID,
	)
	if err != nil {
		return false, mapConstraint(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a chapter. Chapters with questions return ErrInUse.
func (r *ChapterRepository) Delete(ctx context.Context, subjectID, id int) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM chapters WHERE id = $1 AND subject_id = $2`, id, subjectID)
	if err != nil {
		return false, mapConstraint(err)
	}
	return tag.RowsAffected() > 0, nil
}
