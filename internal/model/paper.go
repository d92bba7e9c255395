package model

import (
	"time"

	"github.com/google/uuid"
)

// PaperType distinguishes short practice papers from timed mock tests.
type PaperType string

const (
	PaperTypePractice PaperType = "practice"
	PaperTypeMock     PaperType = "mock"
)

// PracticeType describes how chapters were chosen for a paper.
type PracticeType string

const (
	PracticeTypeChapterWise  PracticeType = "chapter_wise"
	PracticeTypeFullSyllabus PracticeType = "full_syllabus"
	PracticeTypeCustom       PracticeType = "custom"
)

// GenerationConfig drives one paper generation. It is built per request and never persisted as-is.
type GenerationConfig struct {
	SubjectID              int                    `json:"subject_id"`
	PaperType              PaperType              `json:"paper_type"`
	PracticeType           PracticeType           `json:"practice_type"`
	TotalQuestions         int                    `json:"total_questions"`
	ChapterIDs             []int                  `json:"chapter_ids"`
	DifficultyDistribution map[Difficulty]float64 `json:"difficulty_distribution"`
	SourceDistribution     map[Source]float64     `json:"source_distribution"`
	Randomize              bool                   `json:"randomize"`
	Seed                   int64                  `json:"seed,omitempty"`
	DurationMinutes        int                    `json:"duration_minutes"`
}

// DefaultDifficultyDistribution is applied when a request omits one.
func DefaultDifficultyDistribution() map[Difficulty]float64 {
	return map[Difficulty]float64{DifficultyEasy: 30, DifficultyMedium: 50, DifficultyHard: 20}
}

// DefaultSourceDistribution is applied when a request omits one.
func DefaultSourceDistribution() map[Source]float64 {
	return map[Source]float64{SourcePreviousYear: 50, SourceAIGenerated: 50}
}

// GeneratePaperRequest is the payload for previewing or starting a paper.
type GeneratePaperRequest struct {
	SubjectID              int                `json:"subject_id" binding:"required,min=1"`
	PaperType              string             `json:"paper_type" binding:"required,oneof=practice mock"`
	PracticeType           string             `json:"practice_type" binding:"required,oneof=chapter_wise full_syllabus custom"`
	TotalQuestions         int                `json:"total_questions" binding:"required,min=1,max=200"`
	ChapterIDs             []int              `json:"chapter_ids" binding:"omitempty,dive,min=1"`
	DifficultyDistribution map[string]float64 `json:"difficulty_distribution" binding:"omitempty,pctsum,dive,keys,oneof=easy medium hard,endkeys,min=0,max=100"`
	SourceDistribution     map[string]float64 `json:"source_distribution" binding:"omitempty,pctsum,dive,keys,oneof=previous_year ai_generated,endkeys,min=0,max=100"`
	Randomize              bool               `json:"randomize"`
	Seed                   int64              `json:"seed" binding:"omitempty,min=1,max=9007199254740991"`
	DurationMinutes        int                `json:"duration_minutes" binding:"omitempty,min=1,max=600"`
}

// ToConfig converts a validated request into a GenerationConfig.
func (r *GeneratePaperRequest) ToConfig() GenerationConfig {
	cfg := GenerationConfig{
		SubjectID:       r.SubjectID,
		PaperType:       PaperType(r.PaperType),
		PracticeType:    PracticeType(r.PracticeType),
		TotalQuestions:  r.TotalQuestions,
		ChapterIDs:      r.ChapterIDs,
		Randomize:       r.Randomize,
		Seed:            r.Seed,
		DurationMinutes: r.DurationMinutes,
	}

	if len(r.DifficultyDistribution) > 0 {
		cfg.DifficultyDistribution = make(map[Difficulty]float64, len(r.DifficultyDistribution))
		for k, v := range r.DifficultyDistribution {
			cfg.DifficultyDistribution[Difficulty(k)] = v
		}
	} else {
		cfg.DifficultyDistribution = DefaultDifficultyDistribution()
	}

	if len(r.SourceDistribution) > 0 {
		cfg.SourceDistribution = make(map[Source]float64, len(r.SourceDistribution))
		for k, v := range r.SourceDistribution {
			cfg.SourceDistribution[Source(k)] = v
		}
	} else {
		cfg.SourceDistribution = DefaultSourceDistribution()
	}

	return cfg
}

// Paper is a generated question set promoted to persistence when an attempt starts.
type Paper struct {
	ID              uuid.UUID        `json:"id"`
	SubjectID       int              `json:"subject_id"`
	StudentID       int              `json:"student_id"`
	PaperType       PaperType        `json:"paper_type"`
	PracticeType    PracticeType     `json:"practice_type"`
	Config          GenerationConfig `json:"config"`
	QuestionCount   int              `json:"question_count"`
	DurationMinutes int              `json:"duration_minutes"`
	CreatedAt       time.Time        `json:"created_at"`
}

// PaperPayload is the Redis-cached paper sent to students (no correct answers).
type PaperPayload struct {
	AttemptID  uuid.UUID            `json:"attempt_id"`
	PaperID    uuid.UUID            `json:"paper_id"`
	StudentID  int                  `json:"student_id"`
	SubjectID  int                  `json:"subject_id"`
	PaperType  PaperType            `json:"paper_type"`
	Duration   int                  `json:"duration_minutes"`
	DeadlineAt time.Time            `json:"deadline_at"`
	Questions  []QuestionForStudent `json:"questions"`
}
