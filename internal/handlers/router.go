package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/handlers/middleware"
	"github.com/teampulse/teampulse/internal/logger"
	"github.com/teampulse/teampulse/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	auth authService,
	users userService,
	l logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(auth)
	managerOnly := middleware.RequireManager()

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", handleRegister(auth, l))
	apiauth.Handle("POST /login", handleLogin(auth, l))
	apiauth.Handle("POST /refresh", handleTokenRefresh(auth, l))
	apiauth.Handle("POST /logout", handleLogout(auth, l))
	apiauth.Handle("POST /logout_all", withAuth(handleLogoutAll(auth, l)))

	apiuser := http.NewServeMux()
	apiuser.Handle("GET /me", withAuth(handleUserMe(users)))

	apimanager := http.NewServeMux()
	apimanager.Handle("GET /whoami", withAuth(managerOnly(handleManagerWhoami())))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))
	root.Handle("/api/manager/", http.StripPrefix("/api/manager", apimanager))

	return chain(root,
		middleware.LoggerMiddleware(l),
	)
}

type authService interface {
	// Register user and issue the first session
	// Has to return apperrors.ErrUserAlreadyExists if username is taken
	Register(ctx context.Context, username string, fullName string, password string) (models.User, models.TokenPair, error)

	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound if credentials don't match
	Login(ctx context.Context, username string, password string) (models.User, models.TokenPair, error)

	// Rotate the refresh token into a new pair
	// Any rejection is apperrors.ErrInvalidToken, outages are apperrors.ErrUnavailable
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Revoke the presented refresh token. Idempotent
	Logout(ctx context.Context, refresh string) error

	// Revoke every refresh token of the user
	LogoutAll(ctx context.Context, userID uuid.UUID) error

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Tell the browser to drop the refresh cookie
	ClearRefreshCookie(w http.ResponseWriter)

	// Get refresh token from request
	GetRefreshString(r *http.Request) (string, error)

	// Verify the access bearer on the request, storage is never consulted
	Authenticate(r *http.Request) (models.Identity, error)
}

type userService interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}
