package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/apperrors"
	"github.com/teampulse/teampulse/internal/handlers/identityctx"
	"github.com/teampulse/teampulse/internal/handlers/render"
	"github.com/teampulse/teampulse/internal/logger"
)

// userResponse is the identity payload returned on register and login
type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	IsManager bool      `json:"is_manager"`
}

func handleRegister(s authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		FullName string `json:"full_name" validate:"max=100"`
		Password string `json:"password" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := s.Register(r.Context(), data.Username, data.FullName, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserAlreadyExists):
				render.ServiceError(w, "User already exists", http.StatusConflict)
			case errors.Is(err, apperrors.ErrUnavailable):
				render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
			default:
				l.Error("register failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		s.SetTokenPairToResponse(w, pair)
		render.JSON(w, userResponse{
			ID:        user.ID,
			Username:  user.Username,
			FullName:  user.FullName,
			IsManager: user.IsManager,
		})
	})
}

func handleLogin(s authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := s.Login(r.Context(), data.Username, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.ServiceError(w, "User not found", http.StatusUnauthorized)
			case errors.Is(err, apperrors.ErrUnavailable):
				render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
			default:
				l.Error("login failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		s.SetTokenPairToResponse(w, pair)
		render.JSON(w, userResponse{
			ID:        user.ID,
			Username:  user.Username,
			FullName:  user.FullName,
			IsManager: user.IsManager,
		})
	})
}

func handleTokenRefresh(s authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := s.GetRefreshString(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := s.Refresh(r.Context(), refresh)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUnavailable):
				l.Error("refresh failed, token store unavailable", "error", err)
				render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
			default:
				// One message for every rejection cause, the response
				// must not reveal why the token was rejected
				render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			}
			return
		}

		s.SetTokenPairToResponse(w, pair)
		render.JSON(w, response{Message: "Tokens refreshed successfully"})
	})
}

func handleLogout(s authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No cookie means nothing to revoke, still a successful logout
		if refresh, err := s.GetRefreshString(r); err == nil {
			if err := s.Logout(r.Context(), refresh); err != nil {
				l.Error("logout failed", "error", err)
				render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		s.ClearRefreshCookie(w)
		render.JSON(w, response{Message: "Logged out"})
	})
}

func handleLogoutAll(s authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if err := s.LogoutAll(r.Context(), identity.UserID); err != nil {
			l.Error("logout all failed", "error", err)
			render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}

		s.ClearRefreshCookie(w)
		render.JSON(w, response{Message: "Logged out everywhere"})
	})
}
