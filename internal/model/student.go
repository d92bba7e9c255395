package model

import "time"

// Student represents a learner account.
type Student struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	TargetExam   string    `json:"target_exam,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// RegisterStudentRequest is the payload for self-registration and admin-created accounts.
type RegisterStudentRequest struct {
	Email      string `json:"email" binding:"required,email,max=255"`
	Name       string `json:"name" binding:"required,min=2,max=100"`
	Password   string `json:"password" binding:"required,min=6,max=128"`
	TargetExam string `json:"target_exam" binding:"omitempty,max=100"`
}

// UpdateStudentRequest edits a student's profile. An empty password leaves it unchanged.
type UpdateStudentRequest struct {
	Email      string `json:"email" binding:"required,email,max=255"`
	Name       string `json:"name" binding:"required,min=2,max=100"`
	Password   string `json:"password" binding:"omitempty,min=6,max=128"`
	TargetExam string `json:"target_exam" binding:"omitempty,max=100"`
}

// StudentListQuery filters the admin student listing.
type StudentListQuery struct {
	Search  string `form:"search" binding:"omitempty,max=100"`
	Page    int    `form:"page" binding:"omitempty,min=1"`
	PerPage int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}
