package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/http/handlers"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/service"
)

// Authenticator validates a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Claims, error)
}

// AuthMiddleware rejects requests without a valid session token taken from
// cookieName or a Bearer header.
func AuthMiddleware(auth Authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := auth.Authenticate(r.Context(), handlers.TokenFromRequest(r, cookieName)); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not authenticated"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

