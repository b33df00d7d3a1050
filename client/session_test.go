package client

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lookbook-ai/lookbook/pkg/errors"
)

// stubGenerator plays back a scripted sequence of attempt outcomes.
type stubGenerator struct {
	calls    int
	outcomes []error
	result   *Generation

	// onAttempt, when set, runs before each attempt returns.
	onAttempt func(attempt int)
}

func (s *stubGenerator) CreateGeneration(ctx context.Context, req GenerationRequest) (*Generation, error) {
	s.calls++
	if s.onAttempt != nil {
		s.onAttempt(s.calls)
	}

	var outcome error
	if len(s.outcomes) > 0 {
		outcome = s.outcomes[0]
		s.outcomes = s.outcomes[1:]
	}
	if outcome != nil {
		return nil, outcome
	}
	if s.result != nil {
		return s.result, nil
	}
	return &Generation{ID: "g-1", Status: "completed"}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fastConfig keeps backoff short so retry tests stay quick.
func fastConfig() SessionConfig {
	return SessionConfig{MaxAttempts: 3, BaseBackoff: 10 * time.Millisecond}
}

func overloadErr() error {
	return apperrors.Overloaded()
}

func TestGenerate_FirstAttemptSucceeds(t *testing.T) {
	gen := &stubGenerator{}
	s := NewSession(gen, fastConfig(), testLogger())

	got, err := s.Generate(context.Background(), GenerationRequest{})

	require.NoError(t, err)
	assert.Equal(t, "g-1", got.ID)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, StateSuccess, s.State())
	assert.Equal(t, 1, s.History().Len())
}

func TestGenerate_RetriesOverloadThenSucceeds(t *testing.T) {
	gen := &stubGenerator{outcomes: []error{overloadErr(), overloadErr(), nil}}
	s := NewSession(gen, fastConfig(), testLogger())

	got, err := s.Generate(context.Background(), GenerationRequest{})

	require.NoError(t, err)
	assert.Equal(t, "g-1", got.ID)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, StateSuccess, s.State())
}

func TestGenerate_ExhaustsAfterMaxAttempts(t *testing.T) {
	gen := &stubGenerator{outcomes: []error{overloadErr(), overloadErr(), overloadErr()}}
	s := NewSession(gen, fastConfig(), testLogger())

	got, err := s.Generate(context.Background(), GenerationRequest{})

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, StateExhausted, s.State())
	assert.True(t, errors.Is(err, ErrAttemptsExhausted))
	// The last attempt's error stays reachable through the wrap.
	assert.True(t, errors.Is(err, apperrors.ErrOverloaded))
	assert.Equal(t, 0, s.History().Len())
}

// A reused session carries its breaker counts between Generate calls. Once
// enough consecutive overloads trip the breaker open, later attempts are
// rejected locally; those rejections must stay in the overload class so the
// call still ends in an overload-flavored exhaustion, never a fatal error.
func TestGenerate_ReusedSessionBreakerRejectionStaysOverload(t *testing.T) {
	gen := &stubGenerator{outcomes: []error{
		overloadErr(), overloadErr(), overloadErr(),
		overloadErr(), overloadErr(), overloadErr(),
	}}
	cfg := SessionConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}
	s := NewSession(gen, cfg, testLogger())

	_, err := s.Generate(context.Background(), GenerationRequest{})
	require.Error(t, err)
	assert.Equal(t, 3, gen.calls)

	_, err = s.Generate(context.Background(), GenerationRequest{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAttemptsExhausted))
	assert.True(t, errors.Is(err, apperrors.ErrOverloaded))
	assert.Equal(t, StateExhausted, s.State())
	// The breaker opens after the fifth consecutive overload and absorbs the
	// sixth attempt without reaching the generator.
	assert.Equal(t, 5, gen.calls)
}

func TestGenerate_FatalErrorStopsImmediately(t *testing.T) {
	fatal := apperrors.InvalidInput("Please select a valid design style")
	gen := &stubGenerator{outcomes: []error{fatal}}
	s := NewSession(gen, fastConfig(), testLogger())

	got, err := s.Generate(context.Background(), GenerationRequest{})

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, gen.calls)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrAttemptsExhausted))
}

func TestGenerate_BackoffBetweenAttemptsOnly(t *testing.T) {
	gen := &stubGenerator{outcomes: []error{overloadErr(), overloadErr(), nil}}
	cfg := SessionConfig{MaxAttempts: 3, BaseBackoff: 50 * time.Millisecond}
	s := NewSession(gen, cfg, testLogger())

	start := time.Now()
	_, err := s.Generate(context.Background(), GenerationRequest{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	// Waits of 50ms then 100ms separate the three attempts; nothing before
	// the first or after the last.
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestGenerate_CancelledMidBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	gen := &stubGenerator{
		outcomes: []error{overloadErr(), overloadErr(), overloadErr()},
		onAttempt: func(attempt int) {
			if attempt == 1 {
				// Cancel while the session sleeps before attempt two.
				go func() {
					time.Sleep(20 * time.Millisecond)
					cancel()
				}()
			}
		},
	}
	cfg := SessionConfig{MaxAttempts: 3, BaseBackoff: 500 * time.Millisecond}
	s := NewSession(gen, cfg, testLogger())

	start := time.Now()
	got, err := s.Generate(ctx, GenerationRequest{})

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, gen.calls)
	assert.True(t, errors.Is(err, ErrAborted))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateCancelled, s.State())
	// The session must not have slept out the full backoff.
	assert.Less(t, time.Since(start), 300*time.Millisecond)
}

func TestGenerate_LateResultNeverOverridesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// The attempt "completes" but the context was cancelled while it ran.
	gen := &stubGenerator{
		onAttempt: func(int) { cancel() },
	}
	s := NewSession(gen, fastConfig(), testLogger())

	got, err := s.Generate(ctx, GenerationRequest{})

	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrAborted))
	assert.Equal(t, StateCancelled, s.State())
	assert.Equal(t, 0, s.History().Len())
}

func TestGenerate_SuccessRecordedInHistory(t *testing.T) {
	gen := &stubGenerator{result: &Generation{ID: "g-42", Prompt: "coat", Status: "completed"}}
	s := NewSession(gen, fastConfig(), testLogger())

	_, err := s.Generate(context.Background(), GenerationRequest{})
	require.NoError(t, err)

	records := s.History().Records()
	require.Len(t, records, 1)
	assert.Equal(t, "g-42", records[0].ID)
}

func TestNewSession_DefaultsApplied(t *testing.T) {
	s := NewSession(&stubGenerator{}, SessionConfig{}, testLogger())

	assert.Equal(t, DefaultSessionConfig().MaxAttempts, s.cfg.MaxAttempts)
	assert.Equal(t, DefaultSessionConfig().BaseBackoff, s.cfg.BaseBackoff)
	assert.Equal(t, StateIdle, s.State())
}
