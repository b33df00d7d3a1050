package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lookbook-ai/lookbook/internal/domain"
	pkgkafka "github.com/lookbook-ai/lookbook/pkg/kafka"
)

// Kafka topic constants for lookbook domain events.
const (
	TopicUserSignedUp        = "lookbook.user.signed_up"
	TopicGenerationCompleted = "lookbook.generation.completed"
)

// Aggregate type constants.
const (
	AggregateTypeUser       = "user"
	AggregateTypeGeneration = "generation"
)

// Source identifier for events originating from this service.
const SourceLookbook = "lookbook"

// UserSignedUpData is the payload for a user.signed_up event.
type UserSignedUpData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// GenerationCompletedData is the payload for a generation.completed event.
type GenerationCompletedData struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Style    string `json:"style"`
	ImageURL string `json:"image_url"`
}

// Producer publishes lookbook domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserSignedUp publishes a user.signed_up event.
func (p *Producer) PublishUserSignedUp(ctx context.Context, user *domain.User) error {
	data := UserSignedUpData{
		ID:    user.ID,
		Email: user.Email,
	}

	event, err := pkgkafka.NewEvent(TopicUserSignedUp, user.ID, AggregateTypeUser, SourceLookbook, data)
	if err != nil {
		return fmt.Errorf("build user.signed_up event: %w", err)
	}

	return p.kafka.Publish(ctx, TopicUserSignedUp, event)
}

// PublishGenerationCompleted publishes a generation.completed event.
func (p *Producer) PublishGenerationCompleted(ctx context.Context, gen *domain.Generation) error {
	data := GenerationCompletedData{
		ID:       gen.ID,
		UserID:   gen.UserID,
		Style:    gen.Style,
		ImageURL: gen.ImageURL,
	}

	event, err := pkgkafka.NewEvent(TopicGenerationCompleted, gen.ID, AggregateTypeGeneration, SourceLookbook, data)
	if err != nil {
		return fmt.Errorf("build generation.completed event: %w", err)
	}

	return p.kafka.Publish(ctx, TopicGenerationCompleted, event)
}
