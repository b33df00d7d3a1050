package postgres

import (
	"context"
	"fmt"

	"github.com/lookbook-ai/lookbook/internal/domain"
)

// GenerationRepository implements repository.GenerationRepository using
// PostgreSQL. Inserts are single-row and owner-scoped, so no cross-request
// coordination is needed.
type GenerationRepository struct {
	pool Querier
}

// NewGenerationRepository creates a new PostgreSQL-backed generation repository.
func NewGenerationRepository(pool Querier) *GenerationRepository {
	return &GenerationRepository{pool: pool}
}

// Create inserts a new generation record into the database.
func (r *GenerationRepository) Create(ctx context.Context, g *domain.Generation) error {
	query := `
		INSERT INTO generations (id, user_id, prompt, style, image_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		g.ID,
		g.UserID,
		g.Prompt,
		g.Style,
		g.ImageURL,
		g.Status,
		g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}

	return nil
}

// ListByUser returns up to limit generations owned by userID, newest first.
func (r *GenerationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	query := `
		SELECT id, user_id, prompt, style, image_url, status, created_at
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	generations := make([]domain.Generation, 0, limit)
	for rows.Next() {
		var g domain.Generation
		if err := rows.Scan(
			&g.ID,
			&g.UserID,
			&g.Prompt,
			&g.Style,
			&g.ImageURL,
			&g.Status,
			&g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		generations = append(generations, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}

	return generations, nil
}
