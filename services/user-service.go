package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/kerimlews/taskmanager/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenGenerator interface {
	GenerateToken(userID, role string) (string, error)
}

const (
	minPasswordLength = 6
	// bcrypt only looks at the first 72 bytes.
	maxPasswordLength = 72
)

// UserService owns accounts: sign-up, login and administrative changes.
type UserService struct {
	users       UserStore
	hasher      PasswordHasher
	tokens      TokenGenerator
	adminEmails map[string]bool
	blacklist   map[string]bool
	logger      logrus.FieldLogger
	now         Clock
}

func NewUserService(users UserStore, hasher PasswordHasher, tokens TokenGenerator, adminEmails []string, logger logrus.FieldLogger) *UserService {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		if email = normalizeEmail(email); email != "" {
			admins[email] = true
		}
	}
	return &UserService{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		adminEmails: admins,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *UserService) WithClock(now Clock) *UserService {
	s.now = now
	return s
}

// WithPasswordBlacklist rejects the listed passwords at sign-up.
func (s *UserService) WithPasswordBlacklist(blacklist map[string]bool) *UserService {
	s.blacklist = blacklist
	return s
}

// SignUp registers a new account. Emails listed as admin emails get the admin role.
func (s *UserService) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return nil, models.Validationf("password must be between %d and %d characters long", minPasswordLength, maxPasswordLength)
	}
	if s.blacklist[password] {
		return nil, models.Validationf("password is too common, please choose a stronger one")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, models.Validationf("user already exists")
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := models.RoleUser
	if s.adminEmails[email] {
		role = models.RoleAdmin
	}

	now := s.now().UnixMilli()
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  hashed,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithField("userId", user.ID).Infof("Event ID: USER_REGISTERED, Description: User registered with role %s", role)
	return user, nil
}

// Login checks the credentials and returns a signed access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("Event ID: LOGIN_FAILED, Description: Login attempt for unknown email")
			return "", nil, models.Unauthorizedf("invalid credentials")
		}
		return "", nil, err
	}

	if !s.hasher.Verify(password, user.Password) {
		s.logger.WithField("userId", user.ID).Warn("Event ID: LOGIN_FAILED, Description: Invalid password")
		return "", nil, models.Unauthorizedf("invalid credentials")
	}

	token, err := s.tokens.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return "", nil, err
	}

	s.logger.WithField("userId", user.ID).Info("Event ID: LOGIN_SUCCESS, Description: User logged in")
	return token, user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

func (s *UserService) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	var email *string
	if patch.Email != nil {
		normalized, err := validateEmail(*patch.Email)
		if err != nil {
			return nil, err
		}
		email = &normalized
	}

	var role *models.Role
	if patch.Role != nil {
		parsed, err := models.ParseRole(*patch.Role)
		if err != nil {
			return nil, err
		}
		role = &parsed
	}

	user, err := s.users.Update(ctx, id, email, role, s.now().UnixMilli())
	if err != nil {
		return nil, err
	}

	s.logger.WithField("userId", id).Info("Event ID: USER_UPDATED, Description: User updated")
	return user, nil
}

// DeleteUser removes the account only. Tasks it owns are left in place and their
// owner reference dangles.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("userId", id).Info("Event ID: USER_DELETED, Description: User deleted")
	return nil
}

func validateEmail(email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", models.Validationf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", models.Validationf("invalid email %q", email)
	}
	return email, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
