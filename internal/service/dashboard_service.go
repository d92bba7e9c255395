package service

import (
	"context"
	"fmt"

	"github.com/stemsi/prepgen-backend/internal/model"
)

const (
	dashboardRecentDefault = 5
	dashboardRecentMax     = 50
)

// DashboardStore reads the dashboard figures. *repository.DashboardRepository implements it.
type DashboardStore interface {
	SummaryCounts(ctx context.Context) (model.DashboardCounts, error)
	QuestionCoverage(ctx context.Context) ([]model.SubjectCoverage, error)
	RecentAttempts(ctx context.Context, limit int) ([]model.RecentAttempt, error)
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo DashboardStore
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo DashboardStore) *DashboardService {
	return &DashboardService{repo: repo}
}

// GetDashboardData gathers headline counts, question bank coverage and the
// latest recent completions. recent outside 1..50 falls back to 5.
func (s *DashboardService) GetDashboardData(ctx context.Context, recent int) (*model.DashboardData, error) {
	if recent < 1 || recent > dashboardRecentMax {
		recent = dashboardRecentDefault
	}

	counts, err := s.repo.SummaryCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}

	coverage, err := s.repo.QuestionCoverage(ctx)
	if err != nil {
		return nil, fmt.Errorf("question coverage: %w", err)
	}

	recentAttempts, err := s.repo.RecentAttempts(ctx, recent)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}

	return &model.DashboardData{
		Counts:         counts,
		Coverage:       coverage,
		RecentAttempts: recentAttempts,
	}, nil
}
