package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// MonitorRepository provides data access for the live attempt monitor.
// It combines PostgreSQL (attempt state) and Redis (autosaved answer counts).
type MonitorRepository struct {
	db  database.DBTX
	rdb *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(db database.DBTX, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{db: db, rdb: rdb}
}

// ListInProgress returns every in-progress attempt of a subject, oldest first.
// AnsweredCount is left at zero.
func (r *MonitorRepository) ListInProgress(ctx context.Context, subjectID int) ([]model.LiveAttempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT a.id, a.student_id, s.name, a.paper_type, p.question_count, a.started_at, a.deadline_at
		 FROM attempts a
		 JOIN students s ON s.id = a.student_id
		 JOIN papers p ON p.id = a.paper_id
		 WHERE a.subject_id = $1 AND a.status = 'in_progress'
		 ORDER BY a.started_at`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	live := []model.LiveAttempt{}
	for rows.Next() {
		var a model.LiveAttempt
		if err := rows.Scan(&a.AttemptID, &a.StudentID, &a.StudentName, &a.PaperType, &a.QuestionCount,
			&a.StartedAt, &a.DeadlineAt); err != nil {
			return nil, err
		}
		live = append(live, a)
	}
	return live, rows.Err()
}

// CompletedSince counts a subject's attempts completed after since, with their
// average percentage.
func (r *MonitorRepository) CompletedSince(ctx context.Context, subjectID int, since time.Time) (count int, avg float64, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(percentage), 0)
		 FROM attempts
		 WHERE subject_id = $1 AND status = 'completed' AND completed_at >= $2`,
		subjectID, since,
	).Scan(&count, &avg)
	return
}

// AnsweredCounts reads the size of each attempt's autosave hash in one
// pipeline. Attempts with nothing saved map to zero.
func (r *MonitorRepository) AnsweredCounts(ctx context.Context, attemptIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(attemptIDs))
	if len(attemptIDs) == 0 {
		return counts, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(attemptIDs))
	for i, id := range attemptIDs {
		cmds[i] = pipe.HLen(ctx, config.CacheKey.AttemptAnswersKey(id.String()))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	for i, id := range attemptIDs {
		counts[id] = cmds[i].Val()
	}
	return counts, nil
}
