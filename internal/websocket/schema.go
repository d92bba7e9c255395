package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is every client message. Fields beyond Action depend on it:
// autosave carries question_id and option, submit may carry answers.
type RequestPayload struct {
	Action     Action            `json:"action"`
	QuestionID string            `json:"question_id,omitempty"`
	Option     string            `json:"option,omitempty"`
	Answers    map[string]string `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventCompleted Event = "completed"
	EventPong      Event = "pong"
)

type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

// CompletedResponse is sent once per connection, after a submit or when the
// attempt is completed elsewhere (another tab, the expiry worker).
type CompletedResponse struct {
	Event          Event                      `json:"event"`
	AttemptID      uuid.UUID                  `json:"attempt_id"`
	Score          float64                    `json:"score"`
	Percentage     float64                    `json:"percentage"`
	Qualification  *model.QualificationStatus `json:"qualification_status,omitempty"`
	ForceCompleted bool                       `json:"force_completed"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// CompletedFromEvent converts a published attempt event.
func CompletedFromEvent(e model.AttemptEvent) CompletedResponse {
	return CompletedResponse{
		Event:          EventCompleted,
		AttemptID:      e.AttemptID,
		Score:          e.Score,
		Percentage:     e.Percentage,
		Qualification:  e.Qualification,
		ForceCompleted: e.ForceCompleted,
	}
}

// CompletedFromAttempt converts a freshly scored attempt.
func CompletedFromAttempt(a *model.Attempt) CompletedResponse {
	return CompletedResponse{
		Event:          EventCompleted,
		AttemptID:      a.ID,
		Score:          a.Score,
		Percentage:     a.Percentage,
		Qualification:  a.QualificationStatus,
		ForceCompleted: a.ForceCompleted,
	}
}
