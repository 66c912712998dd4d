package middleware

import (
	"context"
	"net/http"
	"time"
)

// Deadline bounds the request context. Replica queries and Lua chunks
// observe the context, so a slow request is cut off where it blocks.
func Deadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
