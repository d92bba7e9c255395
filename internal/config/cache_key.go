package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey holds the JTI of a student's only valid token.
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// SubjectCatalogueKey holds the public subject + chapter listing.
func (r *CacheKeyStruct) SubjectCatalogueKey() string {
	return "catalogue:subjects"
}

// AttemptPaperKey holds the student-facing paper payload of an attempt.
func (r *CacheKeyStruct) AttemptPaperKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:paper", attemptID)
}

// AttemptAnswersKey is a hash of question id → selected option for an attempt.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptEventsChannel is the PubSub channel announcing attempt completion.
func (r *CacheKeyStruct) AttemptEventsChannel(attemptID string) string {
	return fmt.Sprintf("attempt:%s:events", attemptID)
}

// SubjectMonitorChannel is the PubSub channel carrying start and completion
// events for every attempt of a subject.
func (r *CacheKeyStruct) SubjectMonitorChannel(subjectID int) string {
	return fmt.Sprintf("monitor:subject:%d", subjectID)
}

// RateLimitKey counts auth requests from one client IP in the current window.
func (r *CacheKeyStruct) RateLimitKey(scope, ip string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, ip, window)
}

var CacheKey = NewCacheKeyStruct()
