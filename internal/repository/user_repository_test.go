package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstudy/platform-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "full_name", "role",
		"subject", "qualification", "experience_years", "grade", "interests",
		"active", "last_login", "reset_token", "reset_token_expires_at", "created_at", "updated_at",
	})
}

func TestUserFindByEmailTeacherVariant(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().
		AddRow("u1", "teacher@example.com", "hash", "Jane Teacher", string(models.RoleTeacher),
			"Mathematics", "MSc", 5, nil, "{}",
			true, now, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, subject, qualification, experience_years, grade, interests, active, last_login, reset_token, reset_token_expires_at, created_at, updated_at FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("teacher@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "teacher@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, user.Role)
	require.NotNil(t, user.Teacher)
	assert.Equal(t, "Mathematics", user.Teacher.Subject)
	assert.Equal(t, 5, user.Teacher.ExperienceYears)
	assert.Nil(t, user.Student)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByIDStudentVariant(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().
		AddRow("u2", "student@example.com", "hash", "Sam Student", string(models.RoleStudent),
			nil, nil, nil, "10", "{math,physics}",
			true, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, subject, qualification, experience_years, grade, interests, active, last_login, reset_token, reset_token_expires_at, created_at, updated_at FROM users WHERE id = $1 LIMIT 1")).
		WithArgs("u2").
		WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), "u2")
	require.NoError(t, err)
	require.NotNil(t, user.Student)
	assert.Equal(t, "10", user.Student.Grade)
	assert.Len(t, user.Student.Interests, 2)
	assert.Nil(t, user.Teacher)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Email:        "student@example.com",
		PasswordHash: "hash",
		FullName:     "Sam Student",
		Role:         models.RoleStudent,
		Student:      &models.StudentProfile{Grade: "10"},
		Active:       true,
	}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserDeactivate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserSetResetToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET reset_token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetResetToken(context.Background(), "u1", "token", time.Now().Add(time.Hour)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
