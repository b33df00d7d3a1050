package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	apperrors "github.com/lookbook-ai/lookbook/pkg/errors"
)

// Generator submits one generation attempt. *Client satisfies it.
type Generator interface {
	CreateGeneration(ctx context.Context, req GenerationRequest) (*Generation, error)
}

// State is the lifecycle state of a Session.
type State string

const (
	StateIdle       State = "idle"
	StateAttempting State = "attempting"
	StateSuccess    State = "success"
	StateExhausted  State = "exhausted"
	StateCancelled  State = "cancelled"
)

// Sentinel errors for session outcomes.
var (
	// ErrAborted is returned when the context is cancelled before a result
	// is committed. No further attempts follow.
	ErrAborted = errors.New("generation aborted")

	// ErrAttemptsExhausted is returned when every allowed attempt failed
	// with a retryable error. It wraps the last attempt's error.
	ErrAttemptsExhausted = errors.New("all generation attempts failed")
)

// SessionConfig holds retry policy for a Session.
type SessionConfig struct {
	// MaxAttempts is the total number of attempts for one Generate call,
	// including the first.
	MaxAttempts int

	// BaseBackoff is the wait before the second attempt; it doubles on each
	// further attempt. There is no wait before the first attempt or after
	// the last.
	BaseBackoff time.Duration
}

// DefaultSessionConfig returns the standard retry policy: three attempts with
// 500ms/1s backoff in between.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
	}
}

// Session orchestrates one logical generation against a Generator: it retries
// overload failures with exponential backoff, stops on fatal errors, honors
// cancellation at every point including mid-backoff, and records successes in
// a bounded local history.
type Session struct {
	gen     Generator
	logger  *slog.Logger
	cfg     SessionConfig
	breaker *gobreaker.CircuitBreaker[*Generation]
	history *History

	mu    sync.Mutex
	state State
}

// NewSession creates a session over the given generator.
func NewSession(gen Generator, cfg SessionConfig, logger *slog.Logger) *Session {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultSessionConfig().MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultSessionConfig().BaseBackoff
	}

	settings := gobreaker.Settings{
		Name:     "lookbook-generate",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Only overloads count against the breaker; client-side errors
			// say nothing about server health.
			return err == nil || !apperrors.IsRetryable(err)
		},
	}

	return &Session{
		gen:     gen,
		logger:  logger,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[*Generation](settings),
		history: NewHistory(DefaultHistorySize),
		state:   StateIdle,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns the session's bounded record of successful generations.
func (s *Session) History() *History {
	return s.history
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Generate runs one logical generation. Overload failures are retried up to
// MaxAttempts with exponential backoff between attempts; any other failure is
// final on the spot. Cancelling ctx stops the session immediately, whether it
// is waiting on an attempt or sleeping between attempts, and a result that
// races with cancellation never overrides the cancelled outcome.
func (s *Session) Generate(ctx context.Context, req GenerationRequest) (*Generation, error) {
	s.setState(StateAttempting)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := s.cfg.BaseBackoff << (attempt - 2)
			s.logger.InfoContext(ctx, "generation overloaded, backing off",
				slog.Int("attempt", attempt-1),
				slog.Duration("wait", wait),
			)

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				s.setState(StateCancelled)
				return nil, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
			}
		}

		gen, err := s.breaker.Execute(func() (*Generation, error) {
			return s.gen.CreateGeneration(ctx, req)
		})

		// A breaker rejection is an overload signal. Keep it in the overload
		// class so the attempt stays retryable and exhaustion reports the
		// same outcome as a served 503.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %w", apperrors.ErrOverloaded, err)
		}

		// Cancellation wins any race with a late result.
		if ctx.Err() != nil {
			s.setState(StateCancelled)
			return nil, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		}

		if err == nil {
			s.setState(StateSuccess)
			s.history.Put(*gen)
			s.logger.InfoContext(ctx, "generation succeeded",
				slog.String("generation_id", gen.ID),
				slog.Int("attempt", attempt),
			)
			return gen, nil
		}

		if !apperrors.IsRetryable(err) {
			s.setState(StateExhausted)
			return nil, err
		}

		lastErr = err
	}

	s.setState(StateExhausted)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, s.cfg.MaxAttempts, lastErr)
}
