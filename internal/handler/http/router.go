package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lookbook-ai/lookbook/internal/service"
	"github.com/lookbook-ai/lookbook/pkg/health"
	"github.com/lookbook-ai/lookbook/pkg/middleware"
)

// NewRouter creates a chi router with all lookbook routes registered.
func NewRouter(
	authService *service.AuthService,
	generationService *service.GenerationService,
	healthHandler *health.Handler,
	uploadDir string,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("lookbook"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Auth endpoints (public)
	authHandler := NewAuthHandler(authService, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
	})

	// Token validator that bridges to the auth service. Every gated request
	// re-resolves the token to a live account.
	tokenValidator := func(ctx context.Context, token string) (*middleware.Claims, error) {
		user, err := authService.ResolveToken(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: user.ID,
			Email:  user.Email,
		}, nil
	}

	// Generation endpoints (auth required)
	generationHandler := NewGenerationHandler(generationService, logger)
	r.Route("/api/v1/generations", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Post("/", generationHandler.Create)
		r.Get("/", generationHandler.List)
	})

	// Generated assets (public, read-only)
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir)))
	r.Get("/uploads/*", func(w http.ResponseWriter, r *http.Request) {
		fileServer.ServeHTTP(w, r)
	})

	return r
}
