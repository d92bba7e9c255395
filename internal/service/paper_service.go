package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/generator"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
)

// paperCacheGrace keeps a cached paper readable a little past its deadline
// so a late submit can still render the paper.
const paperCacheGrace = 10 * time.Minute

// PaperService generates papers and promotes them into attempts.
type PaperService struct {
	db           database.TxBeginner
	chapterRepo  *repository.ChapterRepository
	questionRepo *repository.QuestionRepository
	paperRepo    *repository.PaperRepository
	attemptRepo  *repository.AttemptRepository
	generator    *generator.Generator
	rdb          *redis.Client
	cfg          *config.Config
	log          zerolog.Logger
	now          func() time.Time
}

// NewPaperService creates a new PaperService.
func NewPaperService(
	db database.TxBeginner,
	chapterRepo *repository.ChapterRepository,
	questionRepo *repository.QuestionRepository,
	paperRepo *repository.PaperRepository,
	attemptRepo *repository.AttemptRepository,
	gen *generator.Generator,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *PaperService {
	return &PaperService{
		db:           db,
		chapterRepo:  chapterRepo,
		questionRepo: questionRepo,
		paperRepo:    paperRepo,
		attemptRepo:  attemptRepo,
		generator:    gen,
		rdb:          rdb,
		cfg:          cfg,
		log:          logger.Component(log, "paper_service"),
		now:          time.Now,
	}
}

// StartResult is returned when an attempt starts.
type StartResult struct {
	Paper      *model.PaperPayload  `json:"paper"`
	Statistics generator.Statistics `json:"statistics"`
}

// Preview runs the generator without persisting anything.
func (s *PaperService) Preview(ctx context.Context, cfg model.GenerationConfig) (*generator.Result, error) {
	if err := s.checkLimits(cfg); err != nil {
		return nil, err
	}
	chapters, err := ResolveChapters(ctx, s.chapterRepo, cfg)
	if err != nil {
		return nil, err
	}
	return s.generator.Generate(ctx, cfg, chapters)
}

// Start generates a paper and opens an attempt on it for studentID.
//
// Generation, the paper rows and the attempt row share one transaction holding
// an advisory lock on the (student, subject, paper type) slot, so two
// concurrent starts for the same slot cannot both succeed.
func (s *PaperService) Start(ctx context.Context, studentID int, cfg model.GenerationConfig) (*StartResult, error) {
	if err := s.checkLimits(cfg); err != nil {
		return nil, err
	}
	cfg.DurationMinutes = s.duration(cfg)

	var (
		attempt   *model.Attempt
		questions []model.Question
		stats     generator.Statistics
	)

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		attempts := s.attemptRepo.WithTx(tx)
		if err := attempts.LockSlot(ctx, studentID, cfg.SubjectID, cfg.PaperType); err != nil {
			return fmt.Errorf("lock attempt slot: %w", err)
		}

		existing, err := attempts.FindActive(ctx, studentID, cfg.SubjectID, cfg.PaperType)
		switch {
		case err == nil:
			return slotTaken(existing.ID)
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("find active attempt: %w", err)
		}

		chapters, err := ResolveChapters(ctx, s.chapterRepo.WithTx(tx), cfg)
		if err != nil {
			return err
		}

		res, err := s.generator.WithSource(s.questionRepo.WithTx(tx)).Generate(ctx, cfg, chapters)
		if err != nil {
			return err
		}
		if !res.Success {
			return res.Err()
		}
		questions, stats = res.Questions, res.Statistics
		cfg.Seed = stats.Seed

		paper := &model.Paper{
			SubjectID:       cfg.SubjectID,
			StudentID:       studentID,
			PaperType:       cfg.PaperType,
			PracticeType:    cfg.PracticeType,
			Config:          cfg,
			QuestionCount:   len(questions),
			DurationMinutes: cfg.DurationMinutes,
		}
		papers := s.paperRepo.WithTx(tx)
		if err := papers.Create(ctx, paper); err != nil {
			return fmt.Errorf("create paper: %w", err)
		}

		ids := make([]uuid.UUID, len(questions))
		for i, q := range questions {
			ids[i] = q.ID
		}
		if err := papers.AddQuestions(ctx, paper.ID, ids); err != nil {
			return fmt.Errorf("add paper questions: %w", err)
		}

		startedAt := s.now()
		attempt = &model.Attempt{
			PaperID:    paper.ID,
			StudentID:  studentID,
			SubjectID:  cfg.SubjectID,
			PaperType:  cfg.PaperType,
			StartedAt:  startedAt,
			DeadlineAt: startedAt.Add(time.Duration(cfg.DurationMinutes) * time.Minute),
		}
		if err := attempts.Create(ctx, attempt); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return slotTaken(uuid.Nil)
			}
			return fmt.Errorf("create attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload, err := s.buildPayload(attempt, questions)
	if err != nil {
		return nil, err
	}
	s.cachePayload(ctx, payload)
	publishEvent(ctx, s.rdb, s.log, model.AttemptEvent{
		Type:      model.AttemptEventStarted,
		AttemptID: attempt.ID,
		StudentID: studentID,
		SubjectID: cfg.SubjectID,
	}, config.CacheKey.SubjectMonitorChannel(cfg.SubjectID))

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Int("student_id", studentID).
		Int("subject_id", cfg.SubjectID).
		Str("paper_type", string(cfg.PaperType)).
		Int("questions", len(questions)).
		Int("relaxed_picks", stats.RelaxedPicks).
		Msg("Attempt started")

	return &StartResult{Paper: payload, Statistics: stats}, nil
}

// GetPaper returns the student-facing paper of an attempt. The Redis copy is
// rebuilt from PostgreSQL when missing.
func (s *PaperService) GetPaper(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.PaperPayload, error) {
	return s.loadPaper(ctx, attemptID, studentID, false)
}

// OpenPaper is GetPaper for an attempt that must still be in progress.
// The cached copy is dropped on completion, so a cache hit means the attempt is open.
func (s *PaperService) OpenPaper(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.PaperPayload, error) {
	return s.loadPaper(ctx, attemptID, studentID, true)
}

// EvictPaper drops the cached paper of a finished attempt.
func (s *PaperService) EvictPaper(ctx context.Context, attemptID uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.AttemptPaperKey(attemptID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to evict paper payload")
	}
}

func (s *PaperService) loadPaper(ctx context.Context, attemptID uuid.UUID, studentID int, requireOpen bool) (*model.PaperPayload, error) {
	key := config.CacheKey.AttemptPaperKey(attemptID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var payload model.PaperPayload
		if err := json.Unmarshal(data, &payload); err == nil {
			if payload.StudentID != studentID {
				return nil, ErrNotOwner
			}
			return &payload, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Paper cache read failed")
	}

	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, notFound(err, "attempt", attemptID)
	}
	if attempt.StudentID != studentID {
		return nil, ErrNotOwner
	}
	if requireOpen && attempt.Status != model.AttemptStatusInProgress {
		return nil, &apperror.StateError{Entity: "attempt", From: string(attempt.Status), Action: "accept answers"}
	}

	questions, err := s.questionRepo.ListByPaper(ctx, attempt.PaperID)
	if err != nil {
		return nil, fmt.Errorf("list paper questions: %w", err)
	}
	payload, err := s.buildPayload(attempt, questions)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptStatusInProgress {
		s.cachePayload(ctx, payload)
	}
	return payload, nil
}

func (s *PaperService) buildPayload(attempt *model.Attempt, questions []model.Question) (*model.PaperPayload, error) {
	studentQuestions, err := ToStudentQuestions(questions)
	if err != nil {
		return nil, err
	}
	return &model.PaperPayload{
		AttemptID:  attempt.ID,
		PaperID:    attempt.PaperID,
		StudentID:  attempt.StudentID,
		SubjectID:  attempt.SubjectID,
		PaperType:  attempt.PaperType,
		Duration:   int(attempt.DeadlineAt.Sub(attempt.StartedAt).Minutes()),
		DeadlineAt: attempt.DeadlineAt,
		Questions:  studentQuestions,
	}, nil
}

func (s *PaperService) cachePayload(ctx context.Context, payload *model.PaperPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to marshal paper payload")
		return
	}
	ttl := time.Until(payload.DeadlineAt) + paperCacheGrace
	if ttl <= 0 {
		return
	}
	key := config.CacheKey.AttemptPaperKey(payload.AttemptID.String())
	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", payload.AttemptID.String()).Msg("Failed to cache paper payload")
	}
}

func (s *PaperService) checkLimits(cfg model.GenerationConfig) error {
	if s.cfg.MaxQuestionsPerPaper > 0 && cfg.TotalQuestions > s.cfg.MaxQuestionsPerPaper {
		return apperror.NewConfig("total_questions", "at most %d questions per paper", s.cfg.MaxQuestionsPerPaper)
	}
	return nil
}

func (s *PaperService) duration(cfg model.GenerationConfig) int {
	if cfg.DurationMinutes > 0 {
		return cfg.DurationMinutes
	}
	if cfg.PaperType == model.PaperTypeMock {
		return s.cfg.MockAttemptMinutes
	}
	return s.cfg.DefaultAttemptMinutes
}

func slotTaken(existing uuid.UUID) error {
	state := &apperror.StateError{Entity: "attempt slot", From: string(model.AttemptStatusInProgress), Action: "start another attempt"}
	if existing == uuid.Nil {
		return fmt.Errorf("%w: %w", ErrAttemptInProgress, state)
	}
	return fmt.Errorf("%w (attempt %s): %w", ErrAttemptInProgress, existing, state)
}

// ChapterLister is the chapter lookup ResolveChapters needs.
type ChapterLister interface {
	ListBySubject(ctx context.Context, subjectID int) ([]model.Chapter, error)
	ListByIDs(ctx context.Context, subjectID int, ids []int) ([]model.Chapter, error)
}

// ResolveChapters picks the chapters a paper draws from.
// full_syllabus uses every chapter of the subject; chapter_wise needs exactly
// one chapter id and custom at least one. Requested ids must all belong to the subject.
func ResolveChapters(ctx context.Context, chapters ChapterLister, cfg model.GenerationConfig) ([]model.Chapter, error) {
	switch cfg.PracticeType {
	case model.PracticeTypeFullSyllabus:
		all, err := chapters.ListBySubject(ctx, cfg.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("list chapters: %w", err)
		}
		if len(all) == 0 {
			return nil, apperror.NewConfig("subject_id", "subject %d has no chapters", cfg.SubjectID)
		}
		return all, nil
	case model.PracticeTypeChapterWise:
		if len(cfg.ChapterIDs) != 1 {
			return nil, apperror.NewConfig("chapter_ids", "chapter_wise papers need exactly one chapter")
		}
	case model.PracticeTypeCustom:
		if len(cfg.ChapterIDs) == 0 {
			return nil, apperror.NewConfig("chapter_ids", "custom papers need at least one chapter")
		}
	default:
		return nil, apperror.NewConfig("practice_type", "unknown practice type %q", cfg.PracticeType)
	}

	ids := uniqueInts(cfg.ChapterIDs)
	found, err := chapters.ListByIDs(ctx, cfg.SubjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	if len(found) != len(ids) {
		return nil, apperror.NewConfig("chapter_ids", "every chapter must belong to subject %d", cfg.SubjectID)
	}
	return found, nil
}

func uniqueInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
