package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var devOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// CORS allows the storefront origin plus local development hosts.
func CORS(storefrontURL string) func(http.Handler) http.Handler {
	origins := append([]string{}, devOrigins...)
	if u := strings.TrimRight(strings.TrimSpace(storefrontURL), "/"); u != "" {
		origins = append(origins, u)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
