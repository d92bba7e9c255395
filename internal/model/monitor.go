package model

import (
	"time"

	"github.com/google/uuid"
)

// LiveAttempt is an in-progress attempt as shown on the admin monitor.
type LiveAttempt struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	StudentID     int       `json:"student_id"`
	StudentName   string    `json:"student_name"`
	PaperType     PaperType `json:"paper_type"`
	QuestionCount int       `json:"question_count"`
	AnsweredCount int64     `json:"answered_count"`
	StartedAt     time.Time `json:"started_at"`
	DeadlineAt    time.Time `json:"deadline_at"`
}

// MonitorSnapshot is the live state of one subject's attempts.
type MonitorSnapshot struct {
	SubjectID         int           `json:"subject_id"`
	InProgress        int           `json:"in_progress"`
	CompletedToday    int           `json:"completed_today"`
	AveragePercentage float64       `json:"average_percentage_today"`
	Attempts          []LiveAttempt `json:"attempts"`
}

// DashboardCounts are the headline numbers on the admin dashboard.
type DashboardCounts struct {
	Students           int `json:"students"`
	Subjects           int `json:"subjects"`
	Questions          int `json:"questions"`
	VerifiedQuestions  int `json:"verified_questions"`
	AttemptsInProgress int `json:"attempts_in_progress"`
	AttemptsCompleted  int `json:"attempts_completed"`
}

// SubjectCoverage counts a subject's verified questions per difficulty, the
// pool the generator draws from.
type SubjectCoverage struct {
	SubjectID    int                `json:"subject_id"`
	Name         string             `json:"name"`
	Code         string             `json:"code"`
	Verified     int                `json:"verified"`
	Unverified   int                `json:"unverified"`
	ByDifficulty map[Difficulty]int `json:"by_difficulty"`
}

// RecentAttempt is a recently completed attempt on the dashboard.
type RecentAttempt struct {
	AttemptID           uuid.UUID            `json:"attempt_id"`
	StudentName         string               `json:"student_name"`
	SubjectName         string               `json:"subject_name"`
	PaperType           PaperType            `json:"paper_type"`
	Percentage          float64              `json:"percentage"`
	QualificationStatus *QualificationStatus `json:"qualification_status,omitempty"`
	ForceCompleted      bool                 `json:"force_completed"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
}

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	Counts         DashboardCounts   `json:"counts"`
	Coverage       []SubjectCoverage `json:"coverage"`
	RecentAttempts []RecentAttempt   `json:"recent_attempts"`
}
