package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"config", NewConfig("total_questions", "must be positive, got %d", 0), ErrConfig},
		{"insufficient", &InsufficientDataError{Requested: 10, Achieved: 7, Reason: "pool exhausted"}, ErrInsufficientData},
		{"state", &StateError{Entity: "attempt", From: "completed", Action: "be scored"}, ErrState},
		{"not found", NewNotFound("chapter", 42), ErrNotFound},
	}

	kinds := []error{ErrConfig, ErrInsufficientData, ErrState, ErrNotFound}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			for _, k := range kinds {
				assert.Equal(t, k == tt.kind, errors.Is(wrapped, k), "kind %v", k)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "config: total_questions: must be positive, got 0",
		NewConfig("total_questions", "must be positive, got %d", 0).Error())
	assert.Equal(t, "config: empty distribution", (&ConfigError{Reason: "empty distribution"}).Error())
	assert.Equal(t, "chapter 42 not found", NewNotFound("chapter", 42).Error())
	assert.Equal(t, "subject not found", (&NotFoundError{Entity: "subject"}).Error())
	assert.Equal(t, `attempt in state "completed" cannot be scored`,
		(&StateError{Entity: "attempt", From: "completed", Action: "be scored"}).Error())
	assert.Contains(t, (&InsufficientDataError{Requested: 10, Achieved: 7, Reason: "x"}).Error(), "achieved 7 of 10")
}

func TestErrorsAsRecoversDetail(t *testing.T) {
	err := fmt.Errorf("generate: %w", &InsufficientDataError{Requested: 20, Achieved: 12})

	var ide *InsufficientDataError
	if assert.True(t, errors.As(err, &ide)) {
		assert.Equal(t, 12, ide.Achieved)
		assert.Equal(t, 20, ide.Requested)
	}
}
