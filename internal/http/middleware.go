package http

import (
	"net/http"

	"github.com/GrishaDaradjanovv/Dani/internal/client"
	"github.com/google/uuid"
)

// RequestIDMiddleware echoes X-Request-ID, generating one when missing, and
// makes backend calls made while serving the request reuse it.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := client.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
