package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole discriminates the two account variants. It is fixed at
// registration and never changes afterwards.
type UserRole string

const (
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// TeacherProfile carries the teacher-variant fields.
type TeacherProfile struct {
	Subject         string `json:"subject"`
	Qualification   string `json:"qualification"`
	ExperienceYears int    `json:"experience_years"`
}

// StudentProfile carries the student-variant fields.
type StudentProfile struct {
	Grade     string         `json:"grade"`
	Interests pq.StringArray `json:"interests" swaggertype:"array,string"`
}

// User is an application account. Exactly one of Teacher or Student is set,
// matching the Role discriminant.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Role         UserRole   `json:"role"`
	Active       bool       `json:"active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`

	Teacher *TeacherProfile `json:"teacher_profile,omitempty"`
	Student *StudentProfile `json:"student_profile,omitempty"`

	ResetToken          *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTeacher reports whether the account is the teacher variant.
func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
