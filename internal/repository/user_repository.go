package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/smartstudy/platform-api/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, subject, qualification, experience_years, grade, interests, active, last_login, reset_token, reset_token_expires_at, created_at, updated_at`

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// userRow is the flat table shape; toUser folds the nullable variant
// columns into the tagged profile structs.
type userRow struct {
	ID                  string         `db:"id"`
	Email               string         `db:"email"`
	PasswordHash        string         `db:"password_hash"`
	FullName            string         `db:"full_name"`
	Role                string         `db:"role"`
	Subject             sql.NullString `db:"subject"`
	Qualification       sql.NullString `db:"qualification"`
	ExperienceYears     sql.NullInt64  `db:"experience_years"`
	Grade               sql.NullString `db:"grade"`
	Interests           pq.StringArray `db:"interests"`
	Active              bool           `db:"active"`
	LastLogin           *time.Time     `db:"last_login"`
	ResetToken          sql.NullString `db:"reset_token"`
	ResetTokenExpiresAt *time.Time     `db:"reset_token_expires_at"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r userRow) toUser() *models.User {
	user := &models.User{
		ID:                  r.ID,
		Email:               r.Email,
		PasswordHash:        r.PasswordHash,
		FullName:            r.FullName,
		Role:                models.UserRole(r.Role),
		Active:              r.Active,
		LastLogin:           r.LastLogin,
		ResetTokenExpiresAt: r.ResetTokenExpiresAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.ResetToken.Valid {
		token := r.ResetToken.String
		user.ResetToken = &token
	}
	switch user.Role {
	case models.RoleTeacher:
		user.Teacher = &models.TeacherProfile{
			Subject:         r.Subject.String,
			Qualification:   r.Qualification.String,
			ExperienceYears: int(r.ExperienceYears.Int64),
		}
	case models.RoleStudent:
		user.Student = &models.StudentProfile{
			Grade:     r.Grade.String,
			Interests: r.Interests,
		}
	}
	return user
}

// FindByEmail returns a user by email address, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`, userColumns)
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return row.toUser(), nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 LIMIT 1`, userColumns)
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return row.toUser(), nil
}

// FindByResetToken returns the user currently holding the reset token.
func (r *UserRepository) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE reset_token = $1 LIMIT 1`, userColumns)
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by reset token: %w", err)
	}
	return row.toUser(), nil
}

// Create inserts a new user and returns the stored record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	var subject, qualification, grade sql.NullString
	var experience sql.NullInt64
	var interests pq.StringArray
	if user.Teacher != nil {
		subject = sql.NullString{String: user.Teacher.Subject, Valid: true}
		qualification = sql.NullString{String: user.Teacher.Qualification, Valid: true}
		experience = sql.NullInt64{Int64: int64(user.Teacher.ExperienceYears), Valid: true}
	}
	if user.Student != nil {
		grade = sql.NullString{String: user.Student.Grade, Valid: true}
		interests = user.Student.Interests
	}

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, subject, qualification, experience_years, grade, interests, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FullName, user.Role,
		subject, qualification, experience, grade, interests,
		user.Active, user.CreatedAt, user.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile rewrites the name and variant columns.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()

	var subject, qualification, grade sql.NullString
	var experience sql.NullInt64
	var interests pq.StringArray
	if user.Teacher != nil {
		subject = sql.NullString{String: user.Teacher.Subject, Valid: true}
		qualification = sql.NullString{String: user.Teacher.Qualification, Valid: true}
		experience = sql.NullInt64{Int64: int64(user.Teacher.ExperienceYears), Valid: true}
	}
	if user.Student != nil {
		grade = sql.NullString{String: user.Student.Grade, Valid: true}
		interests = user.Student.Interests
	}

	const query = `UPDATE users SET full_name = $2, subject = $3, qualification = $4, experience_years = $5, grade = $6, interests = $7, updated_at = $8 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		user.ID, user.FullName, subject, qualification, experience, grade, interests, user.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SetResetToken stores a single-use password reset token with its expiry.
func (r *UserRepository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	const query = `UPDATE users SET reset_token = $2, reset_token_expires_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token, expiresAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

// ClearResetToken consumes the reset token.
func (r *UserRepository) ClearResetToken(ctx context.Context, id string) error {
	const query = `UPDATE users SET reset_token = NULL, reset_token_expires_at = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

// Deactivate performs a soft delete by marking the user inactive.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}
