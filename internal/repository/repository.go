package repository

import (
	"context"

	"github.com/lookbook-ai/lookbook/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// GenerationRepository defines the interface for generation persistence.
// Records are append-only: they are inserted once and never updated.
type GenerationRepository interface {
	// Create inserts a new generation record into the store.
	Create(ctx context.Context, gen *domain.Generation) error

	// ListByUser returns up to limit generations owned by userID,
	// newest-created-first.
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Generation, error)
}
