package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
)

// SubjectService manages subjects and chapters and serves the public catalogue.
type SubjectService struct {
	subjectRepo *repository.SubjectRepository
	chapterRepo *repository.ChapterRepository
	rdb         *redis.Client
	cfg         *config.Config
	log         zerolog.Logger
}

func NewSubjectService(
	subjectRepo *repository.SubjectRepository,
	chapterRepo *repository.ChapterRepository,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *SubjectService {
	return &SubjectService{
		subjectRepo: subjectRepo,
		chapterRepo: chapterRepo,
		rdb:         rdb,
		cfg:         cfg,
		log:         logger.Component(log, "subject_service"),
	}
}

// ─── Subjects ───────────────────────────────────────────────────────

func (s *SubjectService) GetAll(ctx context.Context) ([]model.Subject, error) {
	subjects, err := s.subjectRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	return subjects, nil
}

func (s *SubjectService) GetByID(ctx context.Context, id int) (*model.Subject, error) {
	sub, err := s.subjectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "subject", id)
	}
	return sub, nil
}

func (s *SubjectService) Create(ctx context.Context, req model.CreateSubjectRequest) (*model.Subject, error) {
	sub := &model.Subject{Name: strings.TrimSpace(req.Name), Code: strings.ToUpper(req.Code)}
	if err := s.subjectRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSubjectCodeTaken
		}
		return nil, err
	}
	s.invalidateCatalogue(ctx)
	return sub, nil
}

func (s *SubjectService) Update(ctx context.Context, id int, req model.UpdateSubjectRequest) (*model.Subject, error) {
	sub := &model.Subject{ID: id, Name: strings.TrimSpace(req.Name), Code: strings.ToUpper(req.Code)}
	ok, err := s.subjectRepo.Update(ctx, sub)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSubjectCodeTaken
		}
		return nil, err
	}
	if !ok {
		return nil, apperror.NewNotFound("subject", id)
	}
	s.invalidateCatalogue(ctx)
	return s.GetByID(ctx, id)
}

// Delete removes a subject. Subjects that still have chapters return ErrHasDependents.
func (s *SubjectService) Delete(ctx context.Context, id int) error {
	ok, err := s.subjectRepo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return ErrHasDependents
		}
		return err
	}
	if !ok {
		return apperror.NewNotFound("subject", id)
	}
	s.invalidateCatalogue(ctx)
	return nil
}

// ─── Chapters ───────────────────────────────────────────────────────

// ListChapters lists a subject's chapters in display order.
func (s *SubjectService) ListChapters(ctx context.Context, subjectID int) ([]model.Chapter, error) {
	if _, err := s.GetByID(ctx, subjectID); err != nil {
		return nil, err
	}
	chapters, err := s.chapterRepo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if chapters == nil {
		chapters = []model.Chapter{}
	}
	return chapters, nil
}

func (s *SubjectService) CreateChapter(ctx context.Context, subjectID int, req model.ChapterRequest) (*model.Chapter, error) {
	if _, err := s.GetByID(ctx, subjectID); err != nil {
		return nil, err
	}
	ch := chapterFromRequest(req)
	ch.SubjectID = subjectID
	if err := s.chapterRepo.Create(ctx, ch); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrChapterNameTaken
		}
		return nil, err
	}
	s.invalidateCatalogue(ctx)
	return ch, nil
}

func (s *SubjectService) UpdateChapter(ctx context.Context, subjectID, chapterID int, req model.ChapterRequest) (*model.Chapter, error) {
	ch := chapterFromRequest(req)
	ch.ID, ch.SubjectID = chapterID, subjectID
	ok, err := s.chapterRepo.Update(ctx, ch)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrChapterNameTaken
		}
		return nil, err
	}
	if !ok {
		return nil, apperror.NewNotFound("chapter", chapterID)
	}
	s.invalidateCatalogue(ctx)

	updated, err := s.chapterRepo.GetByID(ctx, chapterID)
	if err != nil {
		return nil, notFound(err, "chapter", chapterID)
	}
	return updated, nil
}

// DeleteChapter removes a chapter. Chapters with questions return ErrHasDependents.
func (s *SubjectService) DeleteChapter(ctx context.Context, subjectID, chapterID int) error {
	ok, err := s.chapterRepo.Delete(ctx, subjectID, chapterID)
	if err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return ErrHasDependents
		}
		return err
	}
	if !ok {
		return apperror.NewNotFound("chapter", chapterID)
	}
	s.invalidateCatalogue(ctx)
	return nil
}

func chapterFromRequest(req model.ChapterRequest) *model.Chapter {
	return &model.Chapter{
		Name:               strings.TrimSpace(req.Name),
		Weight:             req.Weight,
		EstimatedQuestions: req.EstimatedQuestions,
		Position:           req.Position,
	}
}

// ─── Public catalogue ───────────────────────────────────────────────

// Catalogue returns every subject with its chapters, served from Redis when warm.
func (s *SubjectService) Catalogue(ctx context.Context) ([]model.SubjectWithChapters, error) {
	key := config.CacheKey.SubjectCatalogueKey()
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var cached []model.SubjectWithChapters
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.log.Warn().Msg("Discarding undecodable catalogue cache")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Catalogue cache read failed, falling back to database")
	}

	return s.WarmCatalogue(ctx)
}

// WarmCatalogue rebuilds the catalogue from PostgreSQL and caches it.
func (s *SubjectService) WarmCatalogue(ctx context.Context) ([]model.SubjectWithChapters, error) {
	subjects, err := s.subjectRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	chapters, err := s.chapterRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	catalogue := BuildCatalogue(subjects, chapters)

	payload, err := json.Marshal(catalogue)
	if err != nil {
		return nil, fmt.Errorf("marshal catalogue: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.SubjectCatalogueKey(), payload, s.cfg.CatalogueCacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache catalogue")
	}

	s.log.Debug().Int("subjects", len(catalogue)).Msg("Catalogue warmed")
	return catalogue, nil
}

// BuildCatalogue groups chapters under their subjects, keeping subject order.
func BuildCatalogue(subjects []model.Subject, chapters []model.Chapter) []model.SubjectWithChapters {
	bySubject := make(map[int][]model.Chapter, len(subjects))
	for _, c := range chapters {
		bySubject[c.SubjectID] = append(bySubject[c.SubjectID], c)
	}

	catalogue := make([]model.SubjectWithChapters, 0, len(subjects))
	for _, sub := range subjects {
		chs := bySubject[sub.ID]
		if chs == nil {
			chs = []model.Chapter{}
		}
		catalogue = append(catalogue, model.SubjectWithChapters{Subject: sub, Chapters: chs})
	}
	return catalogue
}

func (s *SubjectService) invalidateCatalogue(ctx context.Context) {
	if err := s.rdb.Del(ctx, config.CacheKey.SubjectCatalogueKey()).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate catalogue cache")
	}
}
