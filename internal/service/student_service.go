package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
	"github.com/stemsi/prepgen-backend/internal/response"
)

// StudentService handles student accounts.
type StudentService struct {
	studentRepo *repository.StudentRepository
	authService *AuthService
}

// NewStudentService creates a new StudentService.
func NewStudentService(studentRepo *repository.StudentRepository, authService *AuthService) *StudentService {
	return &StudentService{studentRepo: studentRepo, authService: authService}
}

// Register creates a student with a hashed password.
func (s *StudentService) Register(ctx context.Context, req model.RegisterStudentRequest) (*model.Student, error) {
	hashed, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	student := &model.Student{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hashed,
		TargetExam:   strings.TrimSpace(req.TargetExam),
	}
	if err := s.studentRepo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return student, nil
}

// Authenticate checks credentials and returns the student.
// Unknown emails and wrong passwords both return ErrInvalidCredentials.
func (s *StudentService) Authenticate(ctx context.Context, email, password string) (*model.Student, error) {
	student, err := s.studentRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.authService.CheckPassword(student.PasswordHash, password); err != nil {
		return nil, err
	}
	return student, nil
}

// GetByID retrieves a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id int) (*model.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "student", id)
	}
	return student, nil
}

// List retrieves students with pagination and an optional name/email search.
func (s *StudentService) List(ctx context.Context, q model.StudentListQuery) ([]model.Student, *response.Pagination, error) {
	page, perPage, limit, offset := paginate(q.Page, q.PerPage)

	students, total, err := s.studentRepo.ListPaginated(ctx, strings.TrimSpace(q.Search), limit, offset)
	if err != nil {
		return nil, nil, err
	}
	if students == nil {
		students = []model.Student{}
	}
	return students, newPagination(page, perPage, total), nil
}

// Update modifies a student's profile and, when given, their password.
func (s *StudentService) Update(ctx context.Context, id int, req model.UpdateStudentRequest) (*model.Student, error) {
	student := &model.Student{
		ID:         id,
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Name:       strings.TrimSpace(req.Name),
		TargetExam: strings.TrimSpace(req.TargetExam),
	}

	ok, err := s.studentRepo.Update(ctx, student)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if !ok {
		return nil, apperror.NewNotFound("student", id)
	}

	if req.Password != "" {
		hashed, err := s.authService.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		if err := s.studentRepo.UpdatePassword(ctx, id, hashed); err != nil {
			return nil, err
		}
	}
	return s.GetByID(ctx, id)
}

// Delete removes a student and ends their session.
func (s *StudentService) Delete(ctx context.Context, id int) error {
	ok, err := s.studentRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewNotFound("student", id)
	}
	return s.authService.ResetStudentSession(ctx, id)
}

// ResetSession signs a student out everywhere.
func (s *StudentService) ResetSession(ctx context.Context, id int) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.authService.ResetStudentSession(ctx, id); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}
