// Package apperror defines the domain error taxonomy shared by the planner,
// generator, scorer and services. Handlers map each kind to a transport status.
package apperror

import (
	"errors"
	"fmt"
)

// Kind sentinels. Every typed error below matches exactly one of these with errors.Is.
var (
	ErrConfig           = errors.New("invalid configuration")
	ErrInsufficientData = errors.New("insufficient data")
	ErrState            = errors.New("invalid state transition")
	ErrNotFound         = errors.New("not found")
)

// ConfigError reports an invalid count, percentage split or config shape.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// NewConfig builds a ConfigError with a formatted reason.
func NewConfig(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientDataError reports that the question bank could not satisfy
// the requested quotas even after relaxation.
type InsufficientDataError struct {
	Requested int
	Achieved  int
	Reason    string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient questions: achieved %d of %d: %s", e.Achieved, e.Requested, e.Reason)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// StateError reports an illegal state transition, e.g. scoring a completed attempt.
type StateError struct {
	Entity string
	From   string
	Action string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s in state %q cannot %s", e.Entity, e.From, e.Action)
}

func (e *StateError) Is(target error) bool { return target == ErrState }

// NotFoundError reports a missing referenced record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFound builds a NotFoundError for any printable id.
func NewNotFound(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}
