package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Unwrap(t *testing.T) {
	err := NotFound("user", "u-1")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = AlreadyExists("user", "email", "ada@example.com")
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	err = InvalidInput("bad prompt")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	err = Unauthorized("nope")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestOverloaded(t *testing.T) {
	err := Overloaded()

	assert.Equal(t, "OVERLOADED", err.Code)
	assert.Equal(t, "Model overloaded", err.Message)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.True(t, errors.Is(err, ErrOverloaded))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Overloaded()))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", Overloaded())))

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(InvalidInput("bad")))
	assert.False(t, IsRetryable(errors.New("random")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("user", "u-1"), http.StatusNotFound},
		{AlreadyExists("user", "email", "x"), http.StatusConflict},
		{InvalidInput("bad"), http.StatusBadRequest},
		{Unauthorized("nope"), http.StatusUnauthorized},
		{Overloaded(), http.StatusServiceUnavailable},
		{errors.New("anything"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", ErrNotFound), http.StatusNotFound},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("disk full")
	wrapped := Wrap(base, "save image")

	assert.Contains(t, wrapped.Error(), "save image")
	assert.True(t, errors.Is(wrapped, base))
}
