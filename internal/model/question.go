package model

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty is the difficulty tier of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the tiers in declaration order (used for quota tie-breaks).
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Source tags where a question came from.
type Source string

const (
	SourcePreviousYear Source = "previous_year"
	SourceAIGenerated  Source = "ai_generated"
)

// Sources lists the source tags in declaration order.
var Sources = []Source{SourcePreviousYear, SourceAIGenerated}

// OptionLabels are the four option markers, in display order.
var OptionLabels = []string{"A", "B", "C", "D"}

// Question is a single multiple-choice question in the bank.
// Once verified it is immutable.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	SubjectID     int        `json:"subject_id"`
	ChapterID     int        `json:"chapter_id"`
	QuestionText  string     `json:"question_text"`
	Options       []string   `json:"options"`
	CorrectOption string     `json:"correct_option"`
	Difficulty    Difficulty `json:"difficulty"`
	Source        Source     `json:"source"`
	Marks         int        `json:"marks"`
	Explanation   string     `json:"explanation,omitempty"`
	IsVerified    bool       `json:"is_verified"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID  `json:"id"`
	ChapterID    int        `json:"chapter_id"`
	QuestionText string     `json:"question_text"`
	Options      []string   `json:"options"`
	Difficulty   Difficulty `json:"difficulty"`
	Marks        int        `json:"marks"`
	Position     int        `json:"position"`
}

// QuestionFilter narrows admin question listings.
type QuestionFilter struct {
	SubjectID  *int
	ChapterID  *int
	Difficulty *Difficulty
	Source     *Source
	Verified   *bool
	Search     string
}

// CreateQuestionRequest is the payload for adding a question to the bank.
type CreateQuestionRequest struct {
	ChapterID     int      `json:"chapter_id" binding:"required,min=1"`
	QuestionText  string   `json:"question_text" binding:"required,min=1,max=4000"`
	Options       []string `json:"options" binding:"required,len=4,dive,required,max=1000"`
	CorrectOption string   `json:"correct_option" binding:"required,oneof=A B C D"`
	Difficulty    string   `json:"difficulty" binding:"required,oneof=easy medium hard"`
	Source        string   `json:"source" binding:"required,oneof=previous_year ai_generated"`
	Marks         int      `json:"marks" binding:"omitempty,min=1,max=10"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=4000"`
}

// ImportQuestionsRequest is the payload for bulk question import.
type ImportQuestionsRequest struct {
	Questions []CreateQuestionRequest `json:"questions" binding:"required,min=1,max=500,dive"`
}

// QuestionListQuery is the admin question listing query string.
type QuestionListQuery struct {
	SubjectID  int    `form:"subject_id" binding:"omitempty,min=1"`
	ChapterID  int    `form:"chapter_id" binding:"omitempty,min=1"`
	Difficulty string `form:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Source     string `form:"source" binding:"omitempty,oneof=previous_year ai_generated"`
	Verified   *bool  `form:"verified"`
	Search     string `form:"search" binding:"omitempty,max=200"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PerPage    int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// ToFilter converts the query into a repository filter.
func (q *QuestionListQuery) ToFilter() QuestionFilter {
	f := QuestionFilter{Verified: q.Verified, Search: q.Search}
	if q.SubjectID > 0 {
		f.SubjectID = &q.SubjectID
	}
	if q.ChapterID > 0 {
		f.ChapterID = &q.ChapterID
	}
	if q.Difficulty != "" {
		d := Difficulty(q.Difficulty)
		f.Difficulty = &d
	}
	if q.Source != "" {
		s := Source(q.Source)
		f.Source = &s
	}
	return f
}
