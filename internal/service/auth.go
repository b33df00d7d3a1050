package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lookbook-ai/lookbook/internal/auth"
	"github.com/lookbook-ai/lookbook/internal/domain"
	"github.com/lookbook-ai/lookbook/internal/repository"
	apperrors "github.com/lookbook-ai/lookbook/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 10

// EventPublisher publishes lookbook domain events.
type EventPublisher interface {
	PublishUserSignedUp(ctx context.Context, user *domain.User) error
	PublishGenerationCompleted(ctx context.Context, gen *domain.Generation) error
}

// AuthService implements signup and login.
type AuthService struct {
	users    repository.UserRepository
	tokens   *auth.TokenManager
	producer EventPublisher
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenManager,
	producer EventPublisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		producer: producer,
		logger:   logger,
	}
}

// Credentials holds the parameters for signup and login.
type Credentials struct {
	Email    string
	Password string
}

// AuthResult is the outcome of a successful signup or login.
type AuthResult struct {
	User  *domain.User
	Token string
}

// Signup creates a new account and returns it with a signed token.
// A taken email yields an ALREADY_EXISTS conflict; the unique index on
// users.email guarantees no second account is created under a race.
func (s *AuthService) Signup(ctx context.Context, creds Credentials) (*AuthResult, error) {
	if creds.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if creds.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        creds.Email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	// Publish signup event (non-blocking on failure).
	if err := s.producer.PublishUserSignedUp(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.signed_up event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates a user and returns a signed token. Unknown email and
// wrong password produce the same message so account existence never leaks.
func (s *AuthService) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	if creds.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if creds.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.users.GetByEmail(ctx, creds.Email)
	if err != nil {
		// Only a missing account collapses into the uniform credential
		// failure; an unreachable repository is an internal error.
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("look up user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// ResolveToken verifies a bearer token and confirms its subject is still a
// live account. It is re-evaluated on every gated call; there is no session
// state between calls beyond the token itself.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid or expired token")
		}
		return nil, fmt.Errorf("look up token subject: %w", err)
	}

	return user, nil
}
