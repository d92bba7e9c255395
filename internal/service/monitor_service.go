package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
)

// MonitorService builds live views of a subject's attempts.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
	loc         *time.Location
	log         zerolog.Logger
	now         func() time.Time
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository, cfg *config.Config, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		monitorRepo: monitorRepo,
		loc:         cfg.Location(),
		log:         logger.Component(log, "monitor_service"),
		now:         time.Now,
	}
}

// Snapshot returns the in-progress attempts of a subject and today's completions.
// The attempt list and the completion stats are fetched in parallel; answered
// counts come from the autosave cache and are best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, subjectID int) (*model.MonitorSnapshot, error) {
	var (
		live         []model.LiveAttempt
		completed    int
		avg          float64
		liveErr      error
		completedErr error
		wg           sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		live, liveErr = s.monitorRepo.ListInProgress(ctx, subjectID)
	}()
	go func() {
		defer wg.Done()
		completed, avg, completedErr = s.monitorRepo.CompletedSince(ctx, subjectID, startOfDay(s.now(), s.loc))
	}()
	wg.Wait()

	if liveErr != nil {
		return nil, fmt.Errorf("list in-progress attempts: %w", liveErr)
	}
	if completedErr != nil {
		return nil, fmt.Errorf("count completed attempts: %w", completedErr)
	}

	ids := make([]uuid.UUID, len(live))
	for i, a := range live {
		ids[i] = a.AttemptID
	}
	if counts, err := s.monitorRepo.AnsweredCounts(ctx, ids); err != nil {
		s.log.Warn().Err(err).Int("subject_id", subjectID).Msg("Failed to read answered counts")
	} else {
		for i := range live {
			live[i].AnsweredCount = counts[live[i].AttemptID]
		}
	}

	return &model.MonitorSnapshot{
		SubjectID:         subjectID,
		InProgress:        len(live),
		CompletedToday:    completed,
		AveragePercentage: avg,
		Attempts:          live,
	}, nil
}

// startOfDay is midnight of t's day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
