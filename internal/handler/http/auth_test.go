package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lookbook-ai/lookbook/internal/auth"
	"github.com/lookbook-ai/lookbook/internal/domain"
	"github.com/lookbook-ai/lookbook/internal/service"
	"github.com/lookbook-ai/lookbook/internal/storage"
	apperrors "github.com/lookbook-ai/lookbook/pkg/errors"
	"github.com/lookbook-ai/lookbook/pkg/health"
)

// --- Mocks ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockGenerationRepository struct {
	mock.Mock
}

func (m *mockGenerationRepository) Create(ctx context.Context, gen *domain.Generation) error {
	args := m.Called(ctx, gen)
	return args.Error(0)
}

func (m *mockGenerationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Generation), args.Error(1)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Save(ctx context.Context, input *storage.SaveInput) (*storage.SaveResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.SaveResult), args.Error(1)
}

func (m *mockStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishUserSignedUp(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishGenerationCompleted(ctx context.Context, gen *domain.Generation) error {
	args := m.Called(ctx, gen)
	return args.Error(0)
}

// --- Fixture ---

type routerFixture struct {
	users     *mockUserRepository
	gens      *mockGenerationRepository
	store     *mockStorage
	producer  *mockEventPublisher
	tokens    *auth.TokenManager
	handler   http.Handler
	uploadDir string
}

func newRouterFixture(t *testing.T, overloadChance float64) *routerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	f := &routerFixture{
		users:     new(mockUserRepository),
		gens:      new(mockGenerationRepository),
		store:     new(mockStorage),
		producer:  new(mockEventPublisher),
		tokens:    auth.NewTokenManager("test-secret-key", time.Hour),
		uploadDir: t.TempDir(),
	}

	authService := service.NewAuthService(f.users, f.tokens, f.producer, logger)
	generationService := service.NewGenerationService(
		f.gens, f.store, nil, f.producer, logger,
		service.EngineConfig{DelayMin: 0, DelayMax: 0, OverloadChance: overloadChance},
	)

	f.handler = NewRouter(
		authService,
		generationService,
		health.NewHandler(),
		f.uploadDir,
		logger,
		CORSConfig{Environment: "development"},
	)
	return f
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- Signup ---

func TestSignupEndpoint_Success(t *testing.T) {
	f := newRouterFixture(t, 0)

	f.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	f.producer.On("PublishUserSignedUp", mock.Anything, mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup",
		strings.NewReader(`{"email":"ada@example.com","password":"SecurePass123"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])

	user := data["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])
	// The password hash must never appear in responses.
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestSignupEndpoint_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"email":`},
		{name: "invalid email", body: `{"email":"not-an-email","password":"SecurePass123"}`},
		{name: "short password", body: `{"email":"ada@example.com","password":"short"}`},
		{name: "missing fields", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, 0)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			rec := f.do(req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestSignupEndpoint_DuplicateEmail(t *testing.T) {
	f := newRouterFixture(t, 0)

	f.users.On("Create", mock.Anything, mock.Anything).
		Return(apperrors.AlreadyExists("user", "email", "ada@example.com"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup",
		strings.NewReader(`{"email":"ada@example.com","password":"SecurePass123"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "ALREADY_EXISTS", errBody["code"])
}

// --- Login ---

func TestLoginEndpoint_Success(t *testing.T) {
	f := newRouterFixture(t, 0)

	hash, err := bcrypt.GenerateFromPassword([]byte("SecurePass123"), 4)
	require.NoError(t, err)
	f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(&domain.User{
		ID:           "u-1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"SecurePass123"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	f := newRouterFixture(t, 0)

	f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"ghost@example.com","password":"whatever123"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "UNAUTHORIZED", errBody["code"])
}
