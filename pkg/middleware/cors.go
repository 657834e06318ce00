package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS lets the browser dashboards on allowedOrigins call the API. The API
// authenticates with a bearer token, so cookies are never needed.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         600,
	})

	return c.Handler
}
