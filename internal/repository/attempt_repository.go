package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// ErrSlotTaken means the student already has an in-progress attempt for the subject and paper type.
var ErrSlotTaken = errors.New("an attempt is already in progress for this slot")

const activeSlotIndex = "uq_attempts_active_slot"

const attemptColumns = `id, paper_id, student_id, subject_id, paper_type, status, score, total_marks, percentage,
	qualification_status, correct_count, incorrect_count, skipped_count, started_at, deadline_at,
	completed_at, force_completed, version`

// AnswerDraft is an autosaved, ungraded answer.
type AnswerDraft struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Option     string    `json:"option"`
}

// AttemptRepository handles attempts and their answers.
type AttemptRepository struct {
	db database.DBTX
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db database.DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *AttemptRepository) WithTx(tx database.DBTX) *AttemptRepository {
	return &AttemptRepository{db: tx}
}

func scanAttempt(row interface{ Scan(dest ...any) error }, a *model.Attempt) error {
	return row.Scan(&a.ID, &a.PaperID, &a.StudentID, &a.SubjectID, &a.PaperType, &a.Status, &a.Score, &a.TotalMarks,
		&a.Percentage, &a.QualificationStatus, &a.CorrectCount, &a.IncorrectCount, &a.SkippedCount, &a.StartedAt,
		&a.DeadlineAt, &a.CompletedAt, &a.ForceCompleted, &a.Version)
}

// LockSlot takes a transaction-scoped advisory lock on the (student, subject, paper type) slot.
// It must run inside a transaction and is released at commit or rollback.
func (r *AttemptRepository) LockSlot(ctx context.Context, studentID, subjectID int, paperType model.PaperType) error {
	key := fmt.Sprintf("attempt-slot:%d:%d:%s", studentID, subjectID, paperType)
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

// FindActive returns the in-progress attempt occupying the slot, or pgx.ErrNoRows.
func (r *AttemptRepository) FindActive(ctx context.Context, studentID, subjectID int, paperType model.PaperType) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE student_id = $1 AND subject_id = $2 AND paper_type = $3 AND status = 'in_progress'`,
		studentID, subjectID, string(paperType)), a)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts an in-progress attempt. A concurrent attempt in the same slot returns ErrSlotTaken.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO attempts (id, paper_id, student_id, subject_id, paper_type, status, started_at, deadline_at)
		 VALUES ($1, $2, $3, $4, $5, 'in_progress', $6, $7)
		 RETURNING status, version`,
		a.ID, a.PaperID, a.StudentID, a.SubjectID, string(a.PaperType), a.StartedAt, a.DeadlineAt,
	).Scan(&a.Status, &a.Version)
	if isUniqueOn(err, activeSlotIndex) {
		return ErrSlotTaken
	}
	return err
}

// GetByID retrieves an attempt by ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := scanAttempt(r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id), a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByIDForUpdate reads an attempt and row-locks it until the transaction ends.
func (r *AttemptRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := scanAttempt(r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1 FOR UPDATE`, id), a); err != nil {
		return nil, err
	}
	return a, nil
}

// Complete writes a scored attempt if it is still in progress at expectedVersion.
// It reports false when another writer got there first.
func (r *AttemptRepository) Complete(ctx context.Context, a *model.Attempt, expectedVersion int) (bool, error) {
	err := r.db.QueryRow(ctx,
		`UPDATE attempts
		 SET status = 'completed', score = $1, total_marks = $2, percentage = $3, qualification_status = $4,
		     correct_count = $5, incorrect_count = $6, skipped_count = $7, completed_at = $8,
		     force_completed = $9, version = version + 1
		 WHERE id = $10 AND version = $11 AND status = 'in_progress'
		 RETURNING version`,
		a.Score, a.TotalMarks, a.Percentage, a.QualificationStatus,
		a.CorrectCount, a.IncorrectCount, a.SkippedCount, a.CompletedAt,
		a.ForceCompleted, a.ID, expectedVersion,
	).Scan(&a.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// upsertDraftsSQL share-locks each attempt row, so a batch that overlaps a
// submit waits for the completing transaction and then re-reads the status,
// dropping drafts for attempts that are no longer in progress.
const upsertDraftsSQL = `INSERT INTO attempt_answers (attempt_id, question_id, selected_option, updated_at)
	SELECT d.attempt_id, d.question_id, d.opt, NOW()
	FROM unnest($1::uuid[], $2::uuid[], $3::text[]) AS d(attempt_id, question_id, opt)
	JOIN attempts a ON a.id = d.attempt_id
	JOIN paper_questions pq ON pq.paper_id = a.paper_id AND pq.question_id = d.question_id
	WHERE a.status = 'in_progress'
	FOR SHARE OF a
	ON CONFLICT (attempt_id, question_id)
	DO UPDATE SET selected_option = EXCLUDED.selected_option, updated_at = NOW()`

// UpsertDrafts saves autosaved answers for in-progress attempts. Answers for
// completed attempts or for questions not on the attempt's paper are dropped.
// It returns the number of rows written.
func (r *AttemptRepository) UpsertDrafts(ctx context.Context, drafts []AnswerDraft) (int64, error) {
	// Last write wins for repeated (attempt, question) pairs in one batch.
	latest := make(map[[2]uuid.UUID]int, len(drafts))
	for i, d := range drafts {
		latest[[2]uuid.UUID{d.AttemptID, d.QuestionID}] = i
	}

	attemptIDs := make([]string, 0, len(latest))
	questionIDs := make([]string, 0, len(latest))
	options := make([]string, 0, len(latest))
	for i, d := range drafts {
		if latest[[2]uuid.UUID{d.AttemptID, d.QuestionID}] != i {
			continue
		}
		attemptIDs = append(attemptIDs, d.AttemptID.String())
		questionIDs = append(questionIDs, d.QuestionID.String())
		options = append(options, d.Option)
	}
	if len(attemptIDs) == 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx, upsertDraftsSQL, attemptIDs, questionIDs, options)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReplaceAnswers swaps an attempt's answers for graded ones.
func (r *AttemptRepository) ReplaceAnswers(ctx context.Context, attemptID uuid.UUID, answers []model.AttemptAnswer) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM attempt_answers WHERE attempt_id = $1`, attemptID); err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	_, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier{"attempt_answers"},
		[]string{"attempt_id", "question_id", "selected_option", "is_correct", "marks_awarded"},
		pgx.CopyFromSlice(len(answers), func(i int) ([]any, error) {
			a := answers[i]
			return []any{attemptID, a.QuestionID, a.SelectedOption, a.IsCorrect, a.MarksAwarded}, nil
		}),
	)
	return err
}

// ListAnswers returns an attempt's saved answers.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT attempt_id, question_id, selected_option, is_correct, marks_awarded
		 FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.SelectedOption, &a.IsCorrect, &a.MarksAwarded); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListForStudent lists a student's attempts, newest first, with the total count.
func (r *AttemptRepository) ListForStudent(ctx context.Context, studentID, limit, offset int) ([]model.Attempt, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM attempts WHERE student_id = $1`, studentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE student_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`, studentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}

// ListResults lists attempts with student details, optionally for one subject.
// A limit of zero or less returns every row.
func (r *AttemptRepository) ListResults(ctx context.Context, subjectID *int, limit, offset int) ([]model.AttemptResult, int, error) {
	where := ""
	var args []any
	if subjectID != nil {
		where = ` WHERE a.subject_id = $1`
		args = append(args, *subjectID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM attempts a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT a.id, a.student_id, s.name, s.email, a.paper_type, a.status, a.score, a.total_marks,
	                 a.percentage, a.qualification_status, a.started_at, a.completed_at
	          FROM attempts a JOIN students s ON s.id = a.student_id` + where + `
	          ORDER BY a.started_at DESC`
	if limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.AttemptResult
	for rows.Next() {
		var res model.AttemptResult
		if err := rows.Scan(&res.AttemptID, &res.StudentID, &res.StudentName, &res.StudentEmail, &res.PaperType,
			&res.Status, &res.Score, &res.TotalMarks, &res.Percentage, &res.QualificationStatus,
			&res.StartedAt, &res.CompletedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}

// ListExpired returns ids of in-progress attempts whose deadline is before now.
func (r *AttemptRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM attempts
		 WHERE status = 'in_progress' AND deadline_at < $1
		 ORDER BY deadline_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Analytics aggregates attempts for a subject.
func (r *AttemptRepository) Analytics(ctx context.Context, subjectID int) (*model.AttemptAnalytics, error) {
	out := &model.AttemptAnalytics{
		SubjectID:       subjectID,
		ByQualification: map[model.QualificationStatus]int{},
	}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COALESCE(AVG(percentage) FILTER (WHERE status = 'completed'), 0)
		 FROM attempts WHERE subject_id = $1`, subjectID,
	).Scan(&out.TotalAttempts, &out.CompletedAttempts, &out.AveragePercentage)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT qualification_status, COUNT(*) FROM attempts
		 WHERE subject_id = $1 AND status = 'completed' AND qualification_status IS NOT NULL
		 GROUP BY qualification_status`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status model.QualificationStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out.ByQualification[status] = n
	}
	return out, rows.Err()
}
