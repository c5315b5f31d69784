package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

const msgInvalidCredentials = "Invalid email/username or password"

// AuthUserRepository persists username/password accounts
type AuthUserRepository interface {
	Create(ctx context.Context, u *models.AuthUser) error
	GetByID(ctx context.Context, id int64) (*models.AuthUser, error)
	GetByEmail(ctx context.Context, email string) (*models.AuthUser, error)
	GetByLogin(ctx context.Context, login string) (*models.AuthUser, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UserNameExists(ctx context.Context, userName string) (bool, error)
	Update(ctx context.Context, u *models.AuthUser) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	Deactivate(ctx context.Context, id int64) error
}

// AuthTableService manages the username/password account table
type AuthTableService struct {
	repo AuthUserRepository
	cost int
	now  func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthTableService creates a new auth table service
func NewAuthTableService(repo AuthUserRepository) *AuthTableService {
	return &AuthTableService{repo: repo, cost: bcrypt.DefaultCost, now: time.Now}
}

// SignUpInput is a new account
type SignUpInput struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Module   string `json:"module,omitempty"`
}

// SignUp creates an account with a bcrypt-hashed password
func (s *AuthTableService) SignUp(ctx context.Context, in SignUpInput) (*models.AuthUser, error) {
	userName := strings.TrimSpace(in.UserName)
	email := strings.TrimSpace(in.Email)
	if userName == "" {
		return nil, apperrors.NewValidationError("user_name", "Username is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("email", "Please enter a valid email address")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperrors.NewValidationError("password", "Password must be at least 8 characters")
	}
	module := in.Module
	if module == "" {
		module = string(types.RoleArtist)
	}
	if !types.UserRole(module).Valid() {
		return nil, apperrors.NewValidationError("module", "Module must be artist or promoter")
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewConflictError("An account with this email already exists")
	}
	exists, err = s.repo.UserNameExists(ctx, userName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewConflictError("This username is already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to process password", err)
	}

	u := &models.AuthUser{
		UserName:     userName,
		Email:        email,
		PasswordHash: string(hash),
		Module:       module,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithField("authUserId", u.ID).Info("Auth table account created")
	return u, nil
}

// SignIn authenticates by email or user name and records the login time
func (s *AuthTableService) SignIn(ctx context.Context, login, password string) (*models.AuthUser, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperrors.NewUnauthorizedError(msgInvalidCredentials)
	}

	u, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
		// Spend the same time as a real comparison so unknown logins are not distinguishable.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, apperrors.NewUnauthorizedError(msgInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			logging.FromContext(ctx).WithField("authUserId", u.ID).WithError(err).Warn("Stored password hash is unusable")
		}
		return nil, apperrors.NewUnauthorizedError(msgInvalidCredentials)
	}
	if !u.IsActive {
		return nil, apperrors.NewUnauthorizedError(msgInvalidCredentials)
	}

	at := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, u.ID, at); err != nil {
		return nil, err
	}
	u.LastLogin = &at
	return u, nil
}

func (s *AuthTableService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("live-vibe-placeholder"), s.cost)
	})
	return s.dummyHash
}

// GetUserByID returns an active account
func (s *AuthTableService) GetUserByID(ctx context.Context, id int64) (*models.AuthUser, error) {
	return s.repo.GetByID(ctx, id)
}

// GetUserByEmail returns an active account
func (s *AuthTableService) GetUserByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	return s.repo.GetByEmail(ctx, strings.TrimSpace(email))
}

// UpdateUserInput changes account fields. Nil fields are left as they are.
type UpdateUserInput struct {
	UserName *string `json:"user_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Module   *string `json:"module,omitempty"`
}

// UpdateUser changes the user name, email or module of an active account
func (s *AuthTableService) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (*models.AuthUser, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.UserName != nil {
		name := strings.TrimSpace(*in.UserName)
		if name == "" {
			return nil, apperrors.NewValidationError("user_name", "Username is required")
		}
		u.UserName = name
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, apperrors.NewValidationError("email", "Please enter a valid email address")
		}
		u.Email = email
	}
	if in.Module != nil {
		if !types.UserRole(*in.Module).Valid() {
			return nil, apperrors.NewValidationError("module", "Module must be artist or promoter")
		}
		u.Module = *in.Module
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeactivateUser soft-deletes an account
func (s *AuthTableService) DeactivateUser(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}
