package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lookbook-ai/lookbook/pkg/errors"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := New(DefaultConfig(srv.URL))
	return c, srv
}

func TestSignup_StoresToken(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/signup", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"email":"ada@example.com"`)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"user":{"id":"u-1","email":"ada@example.com"},"token":"tok-123"}}`))
	}))
	defer srv.Close()

	result, err := c.Signup(context.Background(), "ada@example.com", "SecurePass123")

	require.NoError(t, err)
	assert.Equal(t, "u-1", result.User.ID)
	assert.Equal(t, "tok-123", result.Token)
	assert.Equal(t, "tok-123", c.Token())
}

func TestLogin_UnauthorizedMapsToAppError(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"invalid email or password"}}`))
	}))
	defer srv.Close()

	result, err := c.Login(context.Background(), "ada@example.com", "wrong")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.Contains(t, err.Error(), "invalid email or password")
}

func TestCreateGeneration_SendsMultipartAndBearer(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/generations", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "A tailored wool coat", r.FormValue("prompt"))
		assert.Equal(t, "Editorial", r.FormValue("style"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "reference.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		assert.Equal(t, "image-bytes", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"g-1","prompt":"A tailored wool coat","style":"Editorial","imageUrl":"/uploads/abc.jpg","status":"completed","createdAt":"2026-08-30T12:00:00Z"}}`))
	}))
	defer srv.Close()

	c.SetToken("tok-123")

	gen, err := c.CreateGeneration(context.Background(), GenerationRequest{
		Prompt:           "A tailored wool coat",
		Style:            "Editorial",
		ImageFileName:    "reference.jpg",
		ImageContentType: "image/jpeg",
		Image: func() (io.Reader, error) {
			return strings.NewReader("image-bytes"), nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "g-1", gen.ID)
	assert.Equal(t, "/uploads/abc.jpg", gen.ImageURL)
	assert.Equal(t, "completed", gen.Status)
}

func TestCreateGeneration_503MapsToRetryable(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":"OVERLOADED","message":"Model overloaded"}}`))
	}))
	defer srv.Close()

	gen, err := c.CreateGeneration(context.Background(), GenerationRequest{
		Prompt:           "A tailored wool coat",
		Style:            "Editorial",
		ImageFileName:    "reference.jpg",
		ImageContentType: "image/jpeg",
		Image: func() (io.Reader, error) {
			return strings.NewReader("image-bytes"), nil
		},
	})

	require.Error(t, err)
	assert.Nil(t, gen)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Contains(t, err.Error(), "Model overloaded")
}

func TestListGenerations(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/generations", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"g-2"},{"id":"g-1"}]}`))
	}))
	defer srv.Close()

	c.SetToken("tok-123")

	generations, err := c.ListGenerations(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, generations, 2)
	assert.Equal(t, "g-2", generations[0].ID)
}

func TestFetchAsset(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uploads/abc.jpg", r.URL.Path)
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	body, err := c.FetchAsset(context.Background(), "/uploads/abc.jpg")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestFetchAsset_NotFound(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	body, err := c.FetchAsset(context.Background(), "/uploads/missing.jpg")

	require.Error(t, err)
	assert.Nil(t, body)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestDecodeResponse_UnstructuredErrorBody(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	_, err := c.ListGenerations(context.Background(), 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

// A 503 is overload-class even when the body is not the JSON envelope.
func TestDecodeResponse_UnstructuredOverloadBody(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html><body>503 Service Unavailable</body></html>"))
	}))
	defer srv.Close()

	_, err := c.ListGenerations(context.Background(), 0)

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.True(t, errors.Is(err, apperrors.ErrOverloaded))
}
