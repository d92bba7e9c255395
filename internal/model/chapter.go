package model

import "time"

// Chapter belongs to a Subject. Weight is its percentage contribution to a
// full-syllabus paper; EstimatedQuestions is used when no weights are set.
type Chapter struct {
	ID                 int       `json:"id"`
	SubjectID          int       `json:"subject_id"`
	Name               string    `json:"name"`
	Weight             float64   `json:"weight"`
	EstimatedQuestions int       `json:"estimated_questions"`
	Position           int       `json:"position"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ChapterRequest is the payload for creating or updating a chapter.
type ChapterRequest struct {
	Name               string  `json:"name" binding:"required,min=2,max=200"`
	Weight             float64 `json:"weight" binding:"min=0,max=100"`
	EstimatedQuestions int     `json:"estimated_questions" binding:"min=0"`
	Position           int     `json:"position" binding:"min=0"`
}
