package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartstudy/platform-api/internal/models"
	"github.com/smartstudy/platform-api/pkg/config"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	byResetToken *models.User

	created          *models.User
	updatedProfile   *models.User
	passwordHash     string
	lastLoginUpdated bool
	resetTokenSet    string
	resetExpiresAt   time.Time
	resetCleared     bool
	deactivated      bool
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[string]*models.User),
	}
	for _, user := range users {
		repo.usersByEmail[user.Email] = user
		repo.usersByID[user.ID] = user
	}
	return repo
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	if m.byResetToken != nil && m.byResetToken.ResetToken != nil && *m.byResetToken.ResetToken == token {
		return m.byResetToken, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "new-user"
	m.created = user
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	m.updatedProfile = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordHash = passwordHash
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockUserRepo) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	m.resetTokenSet = token
	m.resetExpiresAt = expiresAt
	return nil
}

func (m *mockUserRepo) ClearResetToken(ctx context.Context, id string) error {
	m.resetCleared = true
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = true
	return nil
}

func newTestAuthService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, nil, validator.New(), zap.NewNop(),
		config.JWTConfig{Secret: "secret", Expiration: time.Hour, Issuer: "test"},
		config.MailConfig{ResetURL: "http://localhost/reset", ResetTTL: 10 * time.Minute},
		true,
	)
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceRegisterTeacher(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:         "teacher@example.com",
		Password:      "password",
		FullName:      "Jane Teacher",
		Role:          models.RoleTeacher,
		Subject:       "Mathematics",
		Qualification: "MSc",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, models.RoleTeacher, repo.created.Role)
	require.NotNil(t, repo.created.Teacher)
	assert.Equal(t, "Mathematics", repo.created.Teacher.Subject)
	assert.Nil(t, repo.created.Student)
	assert.True(t, repo.created.Active)
}

func TestAuthServiceRegisterStudentMissingGrade(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "student@example.com",
		Password: "password",
		FullName: "Sam Student",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "grade")
}

func TestAuthServiceRegisterTeacherNegativeExperience(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)

	experience := -5
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:           "teacher@example.com",
		Password:        "password",
		FullName:        "Jane Teacher",
		Role:            models.RoleTeacher,
		Subject:         "Mathematics",
		Qualification:   "MSc",
		ExperienceYears: &experience,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Nil(t, repo.created)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	existing := &models.User{ID: "u1", Email: "taken@example.com", Role: models.RoleStudent}
	repo := newMockUserRepo(existing)
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "taken@example.com",
		Password: "password",
		FullName: "Dup User",
		Role:     models.RoleStudent,
		Grade:    "10",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateEmail.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	user := &models.User{
		ID:           "u1",
		Email:        "user@example.com",
		PasswordHash: hashOf(t, "password"),
		Role:         models.RoleStudent,
		Active:       true,
	}
	repo := newMockUserRepo(user)
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Active: true}
	svc := newTestAuthService(newMockUserRepo(user))

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Active: false}
	svc := newTestAuthService(newMockUserRepo(user))

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordWrongCurrent(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Active: true}
	svc := newTestAuthService(newMockUserRepo(user))

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		CurrentPassword: "nope",
		NewPassword:     "newpassword",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceForgotPasswordUnknownEmailStillSucceeds(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)

	res, err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Message)
	assert.Empty(t, res.ResetLink)
	assert.Empty(t, repo.resetTokenSet)
}

func TestAuthServiceForgotPasswordDevFallbackLink(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", FullName: "User", Active: true}
	repo := newMockUserRepo(user)
	svc := newTestAuthService(repo)

	res, err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "user@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.resetTokenSet)
	assert.Contains(t, res.ResetLink, repo.resetTokenSet)
}

func TestAuthServiceResetPasswordExpiredToken(t *testing.T) {
	token := "abc123"
	expired := time.Now().UTC().Add(-time.Minute)
	user := &models.User{ID: "u1", Email: "user@example.com", ResetToken: &token, ResetTokenExpiresAt: &expired}
	repo := newMockUserRepo(user)
	repo.byResetToken = user
	svc := newTestAuthService(repo)

	err := svc.ResetPassword(context.Background(), token, models.ResetPasswordRequest{NewPassword: "newpassword"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.passwordHash)
}

func TestAuthServiceResetPasswordSuccess(t *testing.T) {
	token := "abc123"
	expires := time.Now().UTC().Add(5 * time.Minute)
	user := &models.User{ID: "u1", Email: "user@example.com", ResetToken: &token, ResetTokenExpiresAt: &expires}
	repo := newMockUserRepo(user)
	repo.byResetToken = user
	svc := newTestAuthService(repo)

	err := svc.ResetPassword(context.Background(), token, models.ResetPasswordRequest{NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.passwordHash)
	assert.True(t, repo.resetCleared)
}

func TestAuthServiceValidateTokenInactiveAccount(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Active: true}
	repo := newMockUserRepo(user)
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	user.Active = false
	_, err = svc.ValidateToken(context.Background(), res.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert user: %w", &pq.Error{Code: "23505"})
	assert.True(t, isUniqueViolation(wrapped))

	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("duplicate key value violates unique constraint")))
	assert.False(t, isUniqueViolation(nil))
}
