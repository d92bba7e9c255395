package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/generator"
	"github.com/stemsi/prepgen-backend/internal/model"
)

const questionColumns = `id, subject_id, chapter_id, question_text, options, correct_option, difficulty, source,
	marks, explanation, is_verified, verified_at, created_at, updated_at`

// QuestionRepository handles question bank data access and implements generator.QuestionSource.
type QuestionRepository struct {
	db database.DBTX
}

var _ generator.QuestionSource = (*QuestionRepository)(nil)

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db database.DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *QuestionRepository) WithTx(tx database.DBTX) *QuestionRepository {
	return &QuestionRepository{db: tx}
}

func scanQuestion(row interface{ Scan(dest ...any) error }, q *model.Question) error {
	return row.Scan(&q.ID, &q.SubjectID, &q.ChapterID, &q.QuestionText, &q.Options, &q.CorrectOption,
		&q.Difficulty, &q.Source, &q.Marks, &q.Explanation, &q.IsVerified, &q.VerifiedAt, &q.CreatedAt, &q.UpdatedAt)
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a question. The id is assigned by the caller when set.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO questions (id, subject_id, chapter_id, question_text, options, correct_option,
		                        difficulty, source, marks, explanation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		q.ID, q.SubjectID, q.ChapterID, q.QuestionText, q.Options, q.CorrectOption,
		string(q.Difficulty), string(q.Source), q.Marks, q.Explanation,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	return mapConstraint(err)
}

// CreateBatch bulk-inserts unverified questions with COPY.
func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []model.Question) (int64, error) {
	for i := range questions {
		if questions[i].ID == uuid.Nil {
			questions[i].ID = uuid.New()
		}
	}
	n, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "subject_id", "chapter_id", "question_text", "options", "correct_option",
			"difficulty", "source", "marks", "explanation"},
		pgx.CopyFromSlice(len(questions), func(i int) ([]any, error) {
			q := questions[i]
			return []any{q.ID, q.SubjectID, q.ChapterID, q.QuestionText, q.Options, q.CorrectOption,
				string(q.Difficulty), string(q.Source), q.Marks, q.Explanation}, nil
		}),
	)
	return n, mapConstraint(err)
}

// GetByID retrieves a question by ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	if err := scanQuestion(r.db.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id), q); err != nil {
		return nil, err
	}
	return q, nil
}

// ListPaginated lists questions matching f, newest first, with the total match count.
func (r *QuestionRepository) ListPaginated(ctx context.Context, f model.QuestionFilter, limit, offset int) ([]model.Question, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if f.SubjectID != nil {
		add("subject_id = ?", *f.SubjectID)
	}
	if f.ChapterID != nil {
		add("chapter_id = ?", *f.ChapterID)
	}
	if f.Difficulty != nil {
		add("difficulty = ?", string(*f.Difficulty))
	}
	if f.Source != nil {
		add("source = ?", string(*f.Source))
	}
	if f.Verified != nil {
		add("is_verified = ?", *f.Verified)
	}
	if f.Search != "" {
		add("question_text ILIKE ?", "%"+f.Search+"%")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + questionColumns + ` FROM questions` + where +
		` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	questions, err := collectQuestions(rows)
	return questions, total, err
}

// Update rewrites an unverified question. It reports false when the
// question is missing or already verified.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) (bool, error) {
	err := r.db.QueryRow(ctx,
		`UPDATE questions
		 SET chapter_id = $1, question_text = $2, options = $3, correct_option = $4,
		     difficulty = $5, source = $6, marks = $7, explanation = $8, updated_at = NOW()
		 WHERE id = $9 AND NOT is_verified
		 RETURNING subject_id, created_at, updated_at`,
		q.ChapterID, q.QuestionText, q.Options, q.CorrectOption,
		string(q.Difficulty), string(q.Source), q.Marks, q.Explanation, q.ID,
	).Scan(&q.SubjectID, &q.CreatedAt, &q.UpdatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapConstraint(err)
	}
	return true, nil
}

// Delete removes an unverified question. It reports false when the
// question is missing or already verified.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM questions WHERE id = $1 AND NOT is_verified`, id)
	if err != nil {
		return false, mapConstraint(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Verify marks a question as approved for generated papers. It reports false
// when the question is missing or was already verified.
func (r *QuestionRepository) Verify(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE questions SET is_verified = TRUE, verified_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND NOT is_verified`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// VerifyBatch verifies every listed question that is not verified yet.
func (r *QuestionRepository) VerifyBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE questions SET is_verified = TRUE, verified_at = NOW(), updated_at = NOW()
		 WHERE id = ANY($1::uuid[]) AND NOT is_verified`, raw)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Select implements generator.QuestionSource.
func (r *QuestionRepository) Select(ctx context.Context, f generator.Filter) ([]model.Question, error) {
	if f.Limit <= 0 {
		return []model.Question{}, nil
	}

	var chapterIDs []int
	if len(f.ChapterIDs) > 0 {
		chapterIDs = f.ChapterIDs
	}
	var difficulty, source *string
	if f.Difficulty != nil {
		d := string(*f.Difficulty)
		difficulty = &d
	}
	if f.Source != nil {
		s := string(*f.Source)
		source = &s
	}
	exclude := make([]string, len(f.ExcludeIDs))
	for i, id := range f.ExcludeIDs {
		exclude[i] = id.String()
	}

	args := []any{f.SubjectID, chapterIDs, difficulty, source, f.IncludeUnverified, exclude, f.Limit}
	order := "id"
	if f.Random {
		// A hash of id and seed is a stable pseudo-random key: the same seed
		// over the same bank selects the same questions.
		order = "md5(id::text || $8::text), id"
		args = append(args, strconv.FormatInt(f.Seed, 10))
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE subject_id = $1
		   AND ($2::int[] IS NULL OR chapter_id = ANY($2::int[]))
		   AND ($3::text IS NULL OR difficulty = $3::text)
		   AND ($4::text IS NULL OR source = $4::text)
		   AND (is_verified OR $5::bool)
		   AND NOT (id = ANY($6::uuid[]))
		 ORDER BY `+order+`
		 LIMIT $7`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	questions, err := collectQuestions(rows)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// ListByPaper returns a paper's questions in paper order.
func (r *QuestionRepository) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT q.id, q.subject_id, q.chapter_id, q.question_text, q.options, q.correct_option, q.difficulty,
		        q.source, q.marks, q.explanation, q.is_verified, q.verified_at, q.created_at, q.updated_at
		 FROM paper_questions pq
		 JOIN questions q ON q.id = pq.question_id
		 WHERE pq.paper_id = $1
		 ORDER BY pq.position`, paperID)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}
