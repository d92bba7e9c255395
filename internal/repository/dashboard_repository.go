package repository

import (
	"context"

	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	db database.DBTX
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(db database.DBTX) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// SummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) SummaryCounts(ctx context.Context) (model.DashboardCounts, error) {
	var c model.DashboardCounts
	err := r.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM students),
			(SELECT COUNT(*) FROM subjects),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM questions WHERE is_verified),
			(SELECT COUNT(*) FROM attempts WHERE status = 'in_progress'),
			(SELECT COUNT(*) FROM attempts WHERE status = 'completed')`,
	).Scan(&c.Students, &c.Subjects, &c.Questions, &c.VerifiedQuestions, &c.AttemptsInProgress, &c.AttemptsCompleted)
	return c, err
}

// QuestionCoverage counts questions per subject, splitting verified ones by difficulty.
// Subjects without questions are included with zero counts.
func (r *DashboardRepository) QuestionCoverage(ctx context.Context) ([]model.SubjectCoverage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.name, s.code,
		        COUNT(q.id) FILTER (WHERE q.is_verified),
		        COUNT(q.id) FILTER (WHERE NOT q.is_verified),
		        COUNT(q.id) FILTER (WHERE q.is_verified AND q.difficulty = 'easy'),
		        COUNT(q.id) FILTER (WHERE q.is_verified AND q.difficulty = 'medium'),
		        COUNT(q.id) FILTER (WHERE q.is_verified AND q.difficulty = 'hard')
		 FROM subjects s
		 LEFT JOIN questions q ON q.subject_id = s.id
		 GROUP BY s.id, s.name, s.code
		 ORDER BY s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coverage := []model.SubjectCoverage{}
	for rows.Next() {
		var (
			c                  model.SubjectCoverage
			easy, medium, hard int
		)
		if err := rows.Scan(&c.SubjectID, &c.Name, &c.Code, &c.Verified, &c.Unverified, &easy, &medium, &hard); err != nil {
			return nil, err
		}
		c.ByDifficulty = map[model.Difficulty]int{
			model.DifficultyEasy:   easy,
			model.DifficultyMedium: medium,
			model.DifficultyHard:   hard,
		}
		coverage = append(coverage, c)
	}
	return coverage, rows.Err()
}

// RecentAttempts retrieves the last N completed attempts across all subjects.
func (r *DashboardRepository) RecentAttempts(ctx context.Context, limit int) ([]model.RecentAttempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT a.id, st.name, sub.name, a.paper_type, a.percentage, a.qualification_status,
		        a.force_completed, a.completed_at
		 FROM attempts a
		 JOIN students st ON st.id = a.student_id
		 JOIN subjects sub ON sub.id = a.subject_id
		 WHERE a.status = 'completed'
		 ORDER BY a.completed_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recent := []model.RecentAttempt{}
	for rows.Next() {
		var a model.RecentAttempt
		if err := rows.Scan(&a.AttemptID, &a.StudentName, &a.SubjectName, &a.PaperType, &a.Percentage,
			&a.QualificationStatus, &a.ForceCompleted, &a.CompletedAt); err != nil {
			return nil, err
		}
		recent = append(recent, a)
	}
	return recent, rows.Err()
}
