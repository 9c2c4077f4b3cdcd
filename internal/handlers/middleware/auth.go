package middleware

import (
	"net/http"

	"github.com/teampulse/teampulse/internal/handlers/identityctx"
	"github.com/teampulse/teampulse/internal/handlers/render"
	"github.com/teampulse/teampulse/internal/models"
)

type authService interface {
	// Verify the access bearer on the request without touching storage
	Authenticate(r *http.Request) (models.Identity, error)
}

// AuthMiddleware verifies the access token and puts the caller's
// identity into the request context. 401 on any verification failure,
// the response never says what exactly was wrong with the token.
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := as.Authenticate(r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := identityctx.New(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManager gates a subtree to manager identities. Must run after
// AuthMiddleware, an unauthenticated request gets 401 here too.
func RequireManager() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityctx.FromContext(r.Context())
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !identity.IsManager {
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
