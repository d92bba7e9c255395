package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/scoring"
)

// submitGrace tolerates clock skew and network latency on a submit that
// arrives just after the deadline.
const submitGrace = 30 * time.Second

// AttemptService handles autosave, submission and scoring of attempts.
type AttemptService struct {
	db           database.TxBeginner
	attemptRepo  *repository.AttemptRepository
	questionRepo *repository.QuestionRepository
	papers       *PaperService
	scorer       *scoring.Scorer
	rdb          *redis.Client
	log          zerolog.Logger
	now          func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	db database.TxBeginner,
	attemptRepo *repository.AttemptRepository,
	questionRepo *repository.QuestionRepository,
	papers *PaperService,
	scorer *scoring.Scorer,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		db:           db,
		attemptRepo:  attemptRepo,
		questionRepo: questionRepo,
		papers:       papers,
		scorer:       scorer,
		rdb:          rdb,
		log:          logger.Component(log, "attempt_service"),
		now:          time.Now,
	}
}

// ─── Autosave ───────────────────────────────────────────────────────

// Autosave records one answer in Redis and queues it for persistence.
func (s *AttemptService) Autosave(ctx context.Context, attemptID uuid.UUID, studentID int, questionID uuid.UUID, option string) error {
	paper, err := s.papers.OpenPaper(ctx, attemptID, studentID)
	if err != nil {
		return err
	}
	if s.now().After(paper.DeadlineAt) {
		return ErrAttemptExpired
	}
	if !slices.ContainsFunc(paper.Questions, func(q model.QuestionForStudent) bool { return q.ID == questionID }) {
		return apperror.NewConfig("question_id", "question %s is not on this paper", questionID)
	}

	option = strings.ToUpper(strings.TrimSpace(option))
	draft, err := json.Marshal(repository.AnswerDraft{AttemptID: attemptID, QuestionID: questionID, Option: option})
	if err != nil {
		return err
	}

	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, questionID.String(), option)
	pipe.ExpireAt(ctx, key, paper.DeadlineAt.Add(paperCacheGrace))
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, draft)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// ─── Completion ─────────────────────────────────────────────────────

// Submit scores an attempt with the student's answers merged over anything
// autosaved. Answers sent after the deadline are ignored and the attempt is
// marked force-completed.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, studentID int, answers map[string]string) (*model.AttemptDetail, error) {
	return s.complete(ctx, attemptID, &studentID, answers)
}

// ForceComplete scores an attempt with whatever was saved. It is used when
// the deadline passes without a submission.
func (s *AttemptService) ForceComplete(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetail, error) {
	return s.complete(ctx, attemptID, nil, nil)
}

func (s *AttemptService) complete(ctx context.Context, attemptID uuid.UUID, studentID *int, submitted map[string]string) (*model.AttemptDetail, error) {
	var detail *model.AttemptDetail

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		attempts := s.attemptRepo.WithTx(tx)

		attempt, err := attempts.GetByIDForUpdate(ctx, attemptID)
		if err != nil {
			return notFound(err, "attempt", attemptID)
		}
		if studentID != nil && attempt.StudentID != *studentID {
			return ErrNotOwner
		}
		if attempt.Status != model.AttemptStatusInProgress {
			return &apperror.StateError{Entity: "attempt", From: string(attempt.Status), Action: "be submitted"}
		}

		force := studentID == nil || s.now().After(attempt.DeadlineAt.Add(submitGrace))
		if force {
			submitted = nil
		}

		questions, err := s.questionRepo.WithTx(tx).ListByPaper(ctx, attempt.PaperID)
		if err != nil {
			return fmt.Errorf("list paper questions: %w", err)
		}

		answers, err := s.collectAnswers(ctx, attempts, attemptID, submitted)
		if err != nil {
			return err
		}

		scored, err := s.scorer.Score(*attempt, questions, answers)
		if err != nil {
			return err
		}
		scored.Attempt.ForceCompleted = force

		if err := attempts.ReplaceAnswers(ctx, attemptID, scored.Answers); err != nil {
			return fmt.Errorf("save graded answers: %w", err)
		}
		ok, err := attempts.Complete(ctx, &scored.Attempt, attempt.Version)
		if err != nil {
			return fmt.Errorf("complete attempt: %w", err)
		}
		if !ok {
			return &apperror.StateError{Entity: "attempt", From: string(model.AttemptStatusCompleted), Action: "be submitted"}
		}

		detail = &model.AttemptDetail{Attempt: scored.Attempt, Answers: scored.Answers}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterComplete(ctx, detail)
	return detail, nil
}

// collectAnswers merges persisted drafts, the Redis hash and submitted
// answers, later sources winning.
func (s *AttemptService) collectAnswers(ctx context.Context, attempts *repository.AttemptRepository, attemptID uuid.UUID, submitted map[string]string) (map[uuid.UUID]string, error) {
	answers := make(map[uuid.UUID]string)

	persisted, err := attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list saved answers: %w", err)
	}
	for _, a := range persisted {
		answers[a.QuestionID] = a.SelectedOption
	}

	cached, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Autosave cache read failed, using persisted answers")
	}
	mergeAnswers(answers, cached)
	mergeAnswers(answers, submitted)
	return answers, nil
}

func mergeAnswers(dst map[uuid.UUID]string, src map[string]string) {
	for qid, opt := range src {
		id, err := uuid.Parse(qid)
		if err != nil {
			continue
		}
		dst[id] = opt
	}
}

func (s *AttemptService) afterComplete(ctx context.Context, detail *model.AttemptDetail) {
	id := detail.ID.String()
	s.papers.EvictPaper(ctx, detail.ID)
	if err := s.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(id)).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id).Msg("Failed to clear autosave cache")
	}

	publishEvent(ctx, s.rdb, s.log, model.AttemptEvent{
		Type:           model.AttemptEventCompleted,
		AttemptID:      detail.ID,
		StudentID:      detail.StudentID,
		SubjectID:      detail.SubjectID,
		ForceCompleted: detail.ForceCompleted,
		Score:          detail.Score,
		Percentage:     detail.Percentage,
		Qualification:  detail.QualificationStatus,
	}, config.CacheKey.AttemptEventsChannel(id), config.CacheKey.SubjectMonitorChannel(detail.SubjectID))

	s.log.Info().
		Str("attempt_id", id).
		Int("student_id", detail.StudentID).
		Float64("percentage", detail.Percentage).
		Bool("force_completed", detail.ForceCompleted).
		Msg("Attempt completed")
}

// publishEvent sends event to every channel in one pipeline. Failures are
// logged; subscribers fall back to polling.
func publishEvent(ctx context.Context, rdb *redis.Client, log zerolog.Logger, event model.AttemptEvent, channels ...string) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	pipe := rdb.Pipeline()
	for _, ch := range channels {
		pipe.Publish(ctx, ch, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("attempt_id", event.AttemptID.String()).Str("event", event.Type).Msg("Failed to publish attempt event")
	}
}

// ─── Queries ────────────────────────────────────────────────────────

// Get returns an attempt with its answers. studentID 0 skips the ownership check.
func (s *AttemptService) Get(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.AttemptDetail, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, notFound(err, "attempt", attemptID)
	}
	if studentID != 0 && attempt.StudentID != studentID {
		return nil, ErrNotOwner
	}

	answers, err := s.attemptRepo.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = []model.AttemptAnswer{}
	}
	return &model.AttemptDetail{Attempt: *attempt, Answers: answers}, nil
}

// ListForStudent pages through a student's attempts, newest first.
func (s *AttemptService) ListForStudent(ctx context.Context, studentID, page, perPage int) ([]model.Attempt, *response.Pagination, error) {
	page, perPage, limit, offset := paginate(page, perPage)
	attempts, total, err := s.attemptRepo.ListForStudent(ctx, studentID, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return attempts, newPagination(page, perPage, total), nil
}

// ListResults pages through attempts with student details, optionally for one subject.
func (s *AttemptService) ListResults(ctx context.Context, subjectID *int, page, perPage int) ([]model.AttemptResult, *response.Pagination, error) {
	page, perPage, limit, offset := paginate(page, perPage)
	results, total, err := s.attemptRepo.ListResults(ctx, subjectID, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []model.AttemptResult{}
	}
	return results, newPagination(page, perPage, total), nil
}

// Analytics aggregates a subject's attempts.
func (s *AttemptService) Analytics(ctx context.Context, subjectID int) (*model.AttemptAnalytics, error) {
	return s.attemptRepo.Analytics(ctx, subjectID)
}

// ExpireOverdue force-completes up to limit attempts past their deadline and
// returns how many were completed. Attempts finished concurrently are skipped.
func (s *AttemptService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	ids, err := s.attemptRepo.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired attempts: %w", err)
	}

	completed := 0
	for _, id := range ids {
		if _, err := s.ForceComplete(ctx, id); err != nil {
			if errors.Is(err, apperror.ErrState) {
				continue
			}
			s.log.Error().Err(err).Str("attempt_id", id.String()).Msg("Force complete failed")
			continue
		}
		completed++
	}
	return completed, nil
}
