package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lookbook-ai/lookbook/internal/cache"
	"github.com/lookbook-ai/lookbook/internal/domain"
	"github.com/lookbook-ai/lookbook/internal/repository"
	"github.com/lookbook-ai/lookbook/internal/storage"
	apperrors "github.com/lookbook-ai/lookbook/pkg/errors"
)

// History listing bounds.
const (
	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 20
)

// EngineConfig holds the simulation parameters for the generation engine.
// Values are fixed at construction; nothing is read from ambient state at
// call time.
type EngineConfig struct {
	// DelayMin and DelayMax bound the simulated model latency. A duration
	// is drawn uniformly from [DelayMin, DelayMax] on every attempt.
	DelayMin time.Duration
	DelayMax time.Duration

	// OverloadChance is the probability in [0, 1] that an attempt fails
	// with an overload after the latency has been paid. Each attempt is an
	// independent Bernoulli trial.
	OverloadChance float64
}

// GenerationService executes generation attempts and serves history queries.
type GenerationService struct {
	generations repository.GenerationRepository
	storage     storage.Storage
	history     cache.HistoryCache
	producer    EventPublisher
	logger      *slog.Logger
	engine      EngineConfig
	randFloat   func() float64
}

// NewGenerationService creates a new generation service. history may be nil
// to disable listing cache.
func NewGenerationService(
	generations repository.GenerationRepository,
	store storage.Storage,
	history cache.HistoryCache,
	producer EventPublisher,
	logger *slog.Logger,
	engine EngineConfig,
) *GenerationService {
	return &GenerationService{
		generations: generations,
		storage:     store,
		history:     history,
		producer:    producer,
		logger:      logger,
		engine:      engine,
		randFloat:   rand.Float64,
	}
}

// GenerateInput holds the parameters for one generation attempt.
type GenerateInput struct {
	Prompt string
	Style  string
	Image  *ImageUpload
}

// ImageUpload is the reference image accompanying a generation request.
type ImageUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// Create executes one generation attempt for the given user:
// validate, store the reference image, pay the simulated latency, draw the
// overload trial, and on success persist and return the completed record.
// Overload is decided only after the delay; the failed attempt is never
// persisted.
func (s *GenerationService) Create(ctx context.Context, userID string, input GenerateInput) (*domain.Generation, error) {
	if err := validateGenerateInput(input); err != nil {
		return nil, err
	}

	saved, err := s.storage.Save(ctx, &storage.SaveInput{
		Extension:   domain.ImageExtension(input.Image.ContentType),
		ContentType: input.Image.ContentType,
		Size:        input.Image.Size,
		Data:        input.Image.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("store reference image: %w", err)
	}

	if err := s.simulateLatency(ctx); err != nil {
		return nil, err
	}

	if s.randFloat() < s.engine.OverloadChance {
		s.logger.InfoContext(ctx, "generation overloaded",
			slog.String("user_id", userID),
		)
		return nil, apperrors.Overloaded()
	}

	gen := &domain.Generation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Prompt:    input.Prompt,
		Style:     input.Style,
		ImageURL:  saved.URL,
		Status:    domain.StatusCompleted,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.generations.Create(ctx, gen); err != nil {
		return nil, fmt.Errorf("create generation record: %w", err)
	}

	if s.history != nil {
		if err := s.history.Invalidate(ctx, userID); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate history cache",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	// Publish completion event (non-blocking on failure).
	if err := s.producer.PublishGenerationCompleted(ctx, gen); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish generation.completed event",
			slog.String("generation_id", gen.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "generation completed",
		slog.String("generation_id", gen.ID),
		slog.String("user_id", userID),
		slog.String("style", gen.Style),
	)

	return gen, nil
}

// List returns up to limit generations owned by userID, newest first. The
// limit is clamped to [1, 20]; zero or negative falls back to the default
// of 5.
func (s *GenerationService) List(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	if s.history != nil {
		cached, ok, err := s.history.Get(ctx, userID, limit)
		if err != nil {
			s.logger.WarnContext(ctx, "history cache read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else if ok {
			return cached, nil
		}
	}

	generations, err := s.generations.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}

	if s.history != nil {
		if err := s.history.Set(ctx, userID, limit, generations); err != nil {
			s.logger.WarnContext(ctx, "history cache write failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return generations, nil
}

// simulateLatency waits for a uniformly random duration in
// [DelayMin, DelayMax]. The wait is cooperative: cancelling ctx aborts it
// immediately, and no worker is pinned beyond the timer itself.
func (s *GenerationService) simulateLatency(ctx context.Context) error {
	delay := s.engine.DelayMin
	if span := s.engine.DelayMax - s.engine.DelayMin; span > 0 {
		delay += time.Duration(s.randFloat() * float64(span+1))
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("generation aborted: %w", ctx.Err())
	}
}

// validateGenerateInput enforces the request rules synchronously, before any
// simulated delay.
func validateGenerateInput(input GenerateInput) error {
	if input.Prompt == "" {
		return apperrors.InvalidInput("Prompt is required")
	}
	if utf8.RuneCountInString(input.Prompt) > domain.MaxPromptLength {
		return apperrors.InvalidInput(fmt.Sprintf("Prompt must be at most %d characters long", domain.MaxPromptLength))
	}
	if !domain.ValidPrompt(input.Prompt) {
		return apperrors.InvalidInput(fmt.Sprintf("Prompt must be at least %d characters long", domain.MinPromptLength))
	}

	if !domain.IsValidStyle(input.Style) {
		return apperrors.InvalidInput("Please select a valid design style")
	}

	if input.Image == nil || input.Image.Data == nil {
		return apperrors.InvalidInput("Please upload a reference image")
	}
	if !domain.IsAllowedImageType(input.Image.ContentType) {
		return apperrors.InvalidInput(fmt.Sprintf("content type %q is not allowed", input.Image.ContentType))
	}
	if input.Image.Size <= 0 {
		return apperrors.InvalidInput("reference image must not be empty")
	}
	if input.Image.Size > domain.MaxImageSize {
		return apperrors.InvalidInput(fmt.Sprintf("reference image exceeds maximum allowed size of %d bytes", domain.MaxImageSize))
	}

	return nil
}
