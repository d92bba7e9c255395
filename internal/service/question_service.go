package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
	"github.com/stemsi/prepgen-backend/internal/response"
)

const defaultMarks = 1

// QuestionService manages the question bank.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	chapterRepo  *repository.ChapterRepository
	log          zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository, chapterRepo *repository.ChapterRepository, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		chapterRepo:  chapterRepo,
		log:          logger.Component(log, "question_service"),
	}
}

// List returns a filtered page of questions.
func (s *QuestionService) List(ctx context.Context, q model.QuestionListQuery) ([]model.Question, *response.Pagination, error) {
	page, perPage, limit, offset := paginate(q.Page, q.PerPage)
	questions, total, err := s.questionRepo.ListPaginated(ctx, q.ToFilter(), limit, offset)
	if err != nil {
		return nil, nil, err
	}
	return questions, newPagination(page, perPage, total), nil
}

// GetByID retrieves a question by ID.
func (s *QuestionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "question", id)
	}
	return q, nil
}

// Create adds an unverified question. The subject is taken from the chapter.
func (s *QuestionService) Create(ctx context.Context, req model.CreateQuestionRequest) (*model.Question, error) {
	chapter, err := s.chapterRepo.GetByID(ctx, req.ChapterID)
	if err != nil {
		return nil, notFound(err, "chapter", req.ChapterID)
	}

	q := questionFromRequest(req)
	q.SubjectID = chapter.SubjectID
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Update rewrites an unverified question. The chapter may only move within the same subject.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req model.CreateQuestionRequest) (*model.Question, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsVerified {
		return nil, ErrQuestionVerified
	}

	chapter, err := s.chapterRepo.GetByID(ctx, req.ChapterID)
	if err != nil {
		return nil, notFound(err, "chapter", req.ChapterID)
	}
	if chapter.SubjectID != existing.SubjectID {
		return nil, apperror.NewConfig("chapter_id", "chapter %d belongs to another subject", req.ChapterID)
	}

	q := questionFromRequest(req)
	q.ID = id
	ok, err := s.questionRepo.Update(ctx, q)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Verified between the read and the write.
		return nil, ErrQuestionVerified
	}
	return q, nil
}

// Delete removes an unverified question.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsVerified {
		return ErrQuestionVerified
	}
	ok, err := s.questionRepo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return ErrHasDependents
		}
		return err
	}
	if !ok {
		return ErrQuestionVerified
	}
	return nil
}

// Verify approves a question for generated papers. Verifying twice is a state error.
func (s *QuestionService) Verify(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	ok, err := s.questionRepo.Verify(ctx, id)
	if err != nil {
		return nil, err
	}
	q, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &apperror.StateError{Entity: "question", From: "verified", Action: "be verified again"}
	}
	s.log.Info().Str("question_id", id.String()).Msg("Question verified")
	return q, nil
}

// Import bulk-inserts unverified questions. Every referenced chapter must exist.
func (s *QuestionService) Import(ctx context.Context, req model.ImportQuestionsRequest) (int64, error) {
	subjects := make(map[int]int)
	questions := make([]model.Question, 0, len(req.Questions))
	for i, r := range req.Questions {
		subjectID, ok := subjects[r.ChapterID]
		if !ok {
			chapter, err := s.chapterRepo.GetByID(ctx, r.ChapterID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return 0, apperror.NewConfig(fmt.Sprintf("questions[%d].chapter_id", i), "chapter %d does not exist", r.ChapterID)
				}
				return 0, err
			}
			subjectID = chapter.SubjectID
			subjects[r.ChapterID] = subjectID
		}

		q := questionFromRequest(r)
		q.SubjectID = subjectID
		questions = append(questions, *q)
	}

	n, err := s.questionRepo.CreateBatch(ctx, questions)
	if err != nil {
		return 0, fmt.Errorf("import questions: %w", err)
	}
	s.log.Info().Int64("count", n).Msg("Questions imported")
	return n, nil
}

func questionFromRequest(req model.CreateQuestionRequest) *model.Question {
	marks := req.Marks
	if marks == 0 {
		marks = defaultMarks
	}
	options := make([]string, len(req.Options))
	for i, o := range req.Options {
		options[i] = strings.TrimSpace(o)
	}
	return &model.Question{
		ChapterID:     req.ChapterID,
		QuestionText:  strings.TrimSpace(req.QuestionText),
		Options:       options,
		CorrectOption: strings.ToUpper(req.CorrectOption),
		Difficulty:    model.Difficulty(req.Difficulty),
		Source:        model.Source(req.Source),
		Marks:         marks,
		Explanation:   strings.TrimSpace(req.Explanation),
	}
}

// ToStudentQuestions strips answers and explanations and numbers questions from 1.
func ToStudentQuestions(questions []model.Question) ([]model.QuestionForStudent, error) {
	out := []model.QuestionForStudent{}
	if len(questions) == 0 {
		return out, nil
	}
	if err := copier.Copy(&out, &questions); err != nil {
		return nil, fmt.Errorf("map questions: %w", err)
	}
	for i := range out {
		out[i].Position = i + 1
	}
	return out, nil
}
