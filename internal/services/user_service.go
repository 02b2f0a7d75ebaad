package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/cache"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/notify"
	pgrepo "github.com/yoockh/erasreview/internal/repositories/postgres"
	"github.com/yoockh/erasreview/internal/utils"
)

const roleCacheTTL = 30 * time.Second

type TokenIssuer interface {
	Generate(userID, email string) (string, time.Time, error)
}

type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type UserService interface {
	Register(ctx context.Context, email, name, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	SetRole(ctx context.Context, userID string, role models.UserRole) (*models.User, error)
	// Principal resolves the caller's role from the users table. Any
	// infrastructure failure is an error; there is no fallback role.
	Principal(ctx context.Context, userID string) (*models.Principal, error)
}

type userService struct {
	users    pgrepo.UserRepository
	cache    cache.Cache
	tokens   TokenIssuer
	notifier notify.Notifier
	log      *logrus.Logger
}

func NewUserService(users pgrepo.UserRepository, c cache.Cache, tokens TokenIssuer, n notify.Notifier, log *logrus.Logger) UserService {
	return &userService{users: users, cache: c, tokens: tokens, notifier: n, log: log}
}

func (s *userService) Register(ctx context.Context, email, name, password string) (*AuthResult, error) {
	const op = "UserService.Register"

	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid email", err)
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "email already registered", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}

	s.notifier.Notify(ctx, models.Notification{
		Kind:    models.NotifyUserRegistered,
		UserID:  u.ID,
		Subject: "New user registered",
		Body:    u.Email,
		Fields:  map[string]string{"user_id": u.ID, "name": u.Name},
	})

	return s.issue(op, u)
}

func (s *userService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	const op = "UserService.Login"

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if err := utils.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}
	return s.issue(op, u)
}

func (s *userService) issue(op string, u *models.User) (*AuthResult, error) {
	tok, exp, err := s.tokens.Generate(u.ID, u.Email)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to issue token", err)
	}
	return &AuthResult{Token: tok, ExpiresAt: exp, User: u}, nil
}

func (s *userService) Me(ctx context.Context, userID string) (*models.User, error) {
	const op = "UserService.Me"

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, repoErr(op, "failed to load user", err)
	}
	return u, nil
}

func (s *userService) SetRole(ctx context.Context, userID string, role models.UserRole) (*models.User, error) {
	const op = "UserService.SetRole"

	if !role.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "role must be user or admin", nil)
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return nil, repoErr(op, "failed to update role", err)
	}
	if err := s.cache.Del(ctx, cache.UserRoleKey(userID)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("role cache invalidation failed")
	}
	return s.Me(ctx, userID)
}

func (s *userService) Principal(ctx context.Context, userID string) (*models.Principal, error) {
	const op = "UserService.Principal"

	var p models.Principal
	hit, err := s.cache.GetJSON(ctx, cache.UserRoleKey(userID), &p)
	if err != nil {
		s.log.WithError(err).Warn("role cache read failed")
	}
	if hit && p.UserID == userID && p.Role.Valid() {
		return &p, nil
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeUnauthorized, op, "user no longer exists", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to resolve role", err)
	}

	p = models.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
	if err := s.cache.SetJSON(ctx, cache.UserRoleKey(userID), p, roleCacheTTL); err != nil {
		s.log.WithError(err).Warn("role cache write failed")
	}
	return &p, nil
}
