// Package scoring grades a finished attempt and assigns its qualification tier.
package scoring

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// Default qualification cut-offs, in percent.
const (
	DefaultQualifiedThreshold  = 60.0
	DefaultBorderlineThreshold = 40.0
)

// Thresholds are inclusive lower bounds of the qualified and borderline tiers.
type Thresholds struct {
	Qualified  float64
	Borderline float64
}

// DefaultThresholds returns 60 / 40.
func DefaultThresholds() Thresholds {
	return Thresholds{Qualified: DefaultQualifiedThreshold, Borderline: DefaultBorderlineThreshold}
}

// Scorer grades attempts. The zero value uses DefaultThresholds and time.Now.
type Scorer struct {
	Thresholds Thresholds
	Now        func() time.Time
}

// New returns a Scorer with the given thresholds.
func New(t Thresholds) *Scorer {
	return &Scorer{Thresholds: t}
}

// ScoredAttempt is the completed attempt plus one graded row per answered question.
type ScoredAttempt struct {
	Attempt model.Attempt
	Answers []model.AttemptAnswer
}

// Score grades attempt against the paper's questions. answers maps question id
// to the selected option; answers for questions not on the paper are ignored.
// Scoring an attempt that is not in progress returns a *apperror.StateError.
// attempt is not modified.
func (s *Scorer) Score(attempt model.Attempt, questions []model.Question, answers map[uuid.UUID]string) (*ScoredAttempt, error) {
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, &apperror.StateError{Entity: "attempt", From: string(attempt.Status), Action: "be scored"}
	}

	out := attempt
	out.Score, out.TotalMarks = 0, 0
	out.CorrectCount, out.IncorrectCount, out.SkippedCount = 0, 0, 0

	graded := make([]model.AttemptAnswer, 0, len(answers))
	for _, q := range questions {
		marks := float64(q.Marks)
		out.TotalMarks += marks

		selected, ok := answers[q.ID]
		selected = normalizeOption(selected)
		if !ok || selected == "" {
			out.SkippedCount++
			continue
		}

		ans := model.AttemptAnswer{
			AttemptID:      attempt.ID,
			QuestionID:     q.ID,
			SelectedOption: selected,
		}
		if selected == normalizeOption(q.CorrectOption) {
			ans.IsCorrect = true
			ans.MarksAwarded = marks
			out.Score += marks
			out.CorrectCount++
		} else {
			out.IncorrectCount++
		}
		graded = append(graded, ans)
	}

	out.Percentage = Percentage(out.Score, out.TotalMarks)
	tier := s.Qualify(out.Percentage)
	out.QualificationStatus = &tier

	completedAt := s.now()
	out.Status = model.AttemptStatusCompleted
	out.CompletedAt = &completedAt

	return &ScoredAttempt{Attempt: out, Answers: graded}, nil
}

// Qualify maps a percentage to its tier.
func (s *Scorer) Qualify(percentage float64) model.QualificationStatus {
	t := s.thresholds()
	switch {
	case percentage >= t.Qualified:
		return model.QualificationQualified
	case percentage >= t.Borderline:
		return model.QualificationBorderline
	default:
		return model.QualificationNotQualified
	}
}

// Percentage is 100*score/total, or 0 when total is 0.
func Percentage(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * score / total
}

func (s *Scorer) thresholds() Thresholds {
	if s.Thresholds == (Thresholds{}) {
		return DefaultThresholds()
	}
	return s.Thresholds
}

func (s *Scorer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func normalizeOption(opt string) string {
	return strings.ToUpper(strings.TrimSpace(opt))
}
