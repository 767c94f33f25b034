package middleware

import (
	"net/http"
	"slices"

	"textile-store/internal/config"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORSMiddleware allows the configured storefront origins, or any origin in development
func CORSMiddleware(cfg config.ServerConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if cfg.IsDevelopment() || len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Currency", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Total-Count", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	})
}

// OriginChecker returns a WebSocket origin check matching the CORS policy.
func OriginChecker(cfg config.ServerConfig) func(r *http.Request) bool {
	if cfg.IsDevelopment() || len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(cfg.AllowedOrigins, origin)
	}
}

// DefaultMiddlewareStack returns the middleware every route shares
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		RequestIDHeader,
		middleware.RealIP,
		middleware.CleanPath,
	}
}
