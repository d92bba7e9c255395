package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states. in_progress → completed is the only transition.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
)

// QualificationStatus is the tier derived from an attempt's percentage.
type QualificationStatus string

const (
	QualificationQualified    QualificationStatus = "qualified"
	QualificationBorderline   QualificationStatus = "borderline"
	QualificationNotQualified QualificationStatus = "not_qualified"
)

// Attempt is a student's run at a paper.
type Attempt struct {
	ID                  uuid.UUID            `json:"id"`
	PaperID             uuid.UUID            `json:"paper_id"`
	StudentID           int                  `json:"student_id"`
	SubjectID           int                  `json:"subject_id"`
	PaperType           PaperType            `json:"paper_type"`
	Status              AttemptStatus        `json:"status"`
	Score               float64              `json:"score"`
	TotalMarks          float64              `json:"total_marks"`
	Percentage          float64              `json:"percentage"`
	QualificationStatus *QualificationStatus `json:"qualification_status,omitempty"`
	CorrectCount        int                  `json:"correct_count"`
	IncorrectCount      int                  `json:"incorrect_count"`
	SkippedCount        int                  `json:"skipped_count"`
	StartedAt           time.Time            `json:"started_at"`
	DeadlineAt          time.Time            `json:"deadline_at"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
	ForceCompleted      bool                 `json:"force_completed"`
	Version             int                  `json:"-"`
}

// AttemptAnswer is one graded answer on a completed attempt.
type AttemptAnswer struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption string    `json:"selected_option"`
	IsCorrect      bool      `json:"is_correct"`
	MarksAwarded   float64   `json:"marks_awarded"`
}

// AttemptDetail is an attempt with its graded answers, returned after submission.
type AttemptDetail struct {
	Attempt
	Answers []AttemptAnswer `json:"answers"`
}

// AnswerRequest saves a single answer.
type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Option     string `json:"option" binding:"required,oneof=A B C D a b c d"`
}

// SubmitAttemptRequest finalizes an attempt. Answers map question id → option
// and are merged over anything already autosaved.
type SubmitAttemptRequest struct {
	Answers map[string]string `json:"answers" binding:"omitempty,dive,keys,uuid,endkeys,oneof=A B C D a b c d"`
}

// AttemptAnalytics is the aggregate view of completed attempts for a subject.
type AttemptAnalytics struct {
	SubjectID         int                         `json:"subject_id"`
	TotalAttempts     int                         `json:"total_attempts"`
	CompletedAttempts int                         `json:"completed_attempts"`
	AveragePercentage float64                     `json:"average_percentage"`
	ByQualification   map[QualificationStatus]int `json:"by_qualification"`
}

// AttemptResult is one row in an admin result listing or export.
type AttemptResult struct {
	AttemptID           uuid.UUID            `json:"attempt_id"`
	StudentID           int                  `json:"student_id"`
	StudentName         string               `json:"student_name"`
	StudentEmail        string               `json:"student_email"`
	PaperType           PaperType            `json:"paper_type"`
	Status              AttemptStatus        `json:"status"`
	Score               float64              `json:"score"`
	TotalMarks          float64              `json:"total_marks"`
	Percentage          float64              `json:"percentage"`
	QualificationStatus *QualificationStatus `json:"qualification_status,omitempty"`
	StartedAt           time.Time            `json:"started_at"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
}

// AttemptEvent is published on an attempt's events channel and on its
// subject's monitor channel.
type AttemptEvent struct {
	Type           string               `json:"type"`
	AttemptID      uuid.UUID            `json:"attempt_id"`
	StudentID      int                  `json:"student_id"`
	SubjectID      int                  `json:"subject_id"`
	ForceCompleted bool                 `json:"force_completed"`
	Score          float64              `json:"score"`
	Percentage     float64              `json:"percentage"`
	Qualification  *QualificationStatus `json:"qualification_status,omitempty"`
}

const (
	// AttemptEventStarted announces a new attempt (monitor channel only).
	AttemptEventStarted = "started"
	// AttemptEventCompleted announces that an attempt was scored.
	AttemptEventCompleted = "completed"
)
