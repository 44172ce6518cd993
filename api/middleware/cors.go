package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS applies the configured origin policy for browser clients of the
// payment pages. Replay and throttling headers are exposed so the frontend
// can tell a cached response from a fresh one.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Idempotent-Replayed", "Retry-After"},
		// Cookies never carry credentials here; auth is the bearer header.
		AllowCredentials: false,
		MaxAge:           600,
	}).Handler
}
