package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartstudy/platform-api/internal/models"
	"github.com/smartstudy/platform-api/pkg/config"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
	"github.com/smartstudy/platform-api/pkg/mailer"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByResetToken(ctx context.Context, token string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}

// AuthService provides account and authentication use cases.
type AuthService struct {
	repo      authUserRepository
	mailer    mailer.Mailer
	validator *validator.Validate
	logger    *zap.Logger
	jwtCfg    config.JWTConfig
	mailCfg   config.MailConfig
	devMode   bool
}

// NewAuthService constructs an AuthService instance. A nil mailer enables
// the development fallback where the reset link is returned in the response.
func NewAuthService(repo authUserRepository, m mailer.Mailer, validate *validator.Validate, logger *zap.Logger, jwtCfg config.JWTConfig, mailCfg config.MailConfig, devMode bool) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, mailer: m, validator: validate, logger: logger, jwtCfg: jwtCfg, mailCfg: mailCfg, devMode: devMode}
}

// Register creates a new account of the requested role and issues a token.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}
	if err := validateVariantFields(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.ErrDuplicateEmail
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       true,
	}
	switch req.Role {
	case models.RoleTeacher:
		experience := 0
		if req.ExperienceYears != nil {
			experience = *req.ExperienceYears
		}
		user.Teacher = &models.TeacherProfile{
			Subject:         req.Subject,
			Qualification:   req.Qualification,
			ExperienceYears: experience,
		}
	case models.RoleStudent:
		user.Student = &models.StudentProfile{
			Grade:     req.Grade,
			Interests: req.Interests,
		}
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateEmail
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create token")
	}

	return &models.AuthResponse{
		Token:     token,
		ExpiresIn: int64(s.jwtCfg.Expiration.Seconds()),
		User:      user,
	}, nil
}

// Login authenticates a user and returns the issued token with the profile.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create token")
	}

	return &models.AuthResponse{
		Token:     token,
		ExpiresIn: int64(s.jwtCfg.Expiration.Seconds()),
		User:      user,
	}, nil
}

// Profile returns the authenticated user's account.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile mutates the name and the role-conditional fields. Fields
// belonging to the other role variant are ignored.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if user.Teacher != nil {
		if req.Subject != "" {
			user.Teacher.Subject = req.Subject
		}
		if req.Qualification != "" {
			user.Teacher.Qualification = req.Qualification
		}
		if req.ExperienceYears != nil {
			user.Teacher.ExperienceYears = *req.ExperienceYears
		}
	}
	if user.Student != nil {
		if req.Grade != "" {
			user.Student.Grade = req.Grade
		}
		if req.Interests != nil {
			user.Student.Interests = req.Interests
		}
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return user, nil
}

// ChangePassword verifies the current password before rewriting the hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "current password does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(newHash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	return nil
}

// ForgotPassword issues a single-use reset token. The response never reveals
// whether the address exists. Delivery goes through email when a mailer is
// configured; in development the link is returned directly instead.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (*models.ForgotPasswordResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	resp := &models.ForgotPasswordResponse{
		Message: "if the email is registered, a reset link has been sent",
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return resp, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if !user.Active {
		return resp, nil
	}

	token, err := generateResetToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reset token")
	}

	expiresAt := time.Now().UTC().Add(s.mailCfg.ResetTTL)
	if err := s.repo.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist reset token")
	}

	resetLink := fmt.Sprintf("%s?token=%s", s.mailCfg.ResetURL, token)

	if s.mailer != nil {
		body := fmt.Sprintf(`<p>Hello %s,</p><p>Use the link below to reset your password. It expires in %s.</p><p><a href="%s">Reset password</a></p>`,
			user.FullName, s.mailCfg.ResetTTL, resetLink)
		if err := s.mailer.Send(user.FullName, user.Email, "Reset your password", body); err == nil {
			return resp, nil
		}
		s.logger.Warn("failed to send reset email", zap.String("user_id", user.ID), zap.Error(err))
	}

	if s.devMode {
		resp.ResetLink = resetLink
	}
	return resp, nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, token string, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, formatValidationError(err))
	}

	user, err := s.repo.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "reset token is invalid or expired")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if user.ResetTokenExpiresAt == nil || time.Now().UTC().After(*user.ResetTokenExpiresAt) {
		return appErrors.Clone(appErrors.ErrValidation, "reset token is invalid or expired")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, string(newHash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	if err := s.repo.ClearResetToken(ctx, user.ID); err != nil {
		s.logger.Warn("failed to clear reset token", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// Deactivate soft-deletes the account.
func (s *AuthService) Deactivate(ctx context.Context, userID string) error {
	if _, err := s.Profile(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	return nil
}

// ValidateToken parses and validates an access token, then confirms the
// account still exists and is active.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	return claims, nil
}

func (s *AuthService) generateToken(user *models.User) (string, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.jwtCfg.Expiration)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.jwtCfg.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.Secret))
}

// validateVariantFields enforces the role-conditional required fields that
// struct tags alone cannot express.
func validateVariantFields(req models.RegisterRequest) error {
	var missing []string
	switch req.Role {
	case models.RoleTeacher:
		if strings.TrimSpace(req.Subject) == "" {
			missing = append(missing, "subject")
		}
		if strings.TrimSpace(req.Qualification) == "" {
			missing = append(missing, "qualification")
		}
	case models.RoleStudent:
		if strings.TrimSpace(req.Grade) == "" {
			missing = append(missing, "grade")
		}
	}
	if len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing required fields for role %s: %s", req.Role, strings.Join(missing, ", ")))
	}
	return nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// formatValidationError flattens validator field errors into one message.
func formatValidationError(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return "validation failed"
	}
	parts := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		parts = append(parts, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// isUniqueViolation reports whether the error is a Postgres unique index
// violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
