package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/handlers/identityctx"
	"github.com/teampulse/teampulse/internal/handlers/render"
)

func handleUserMe(s userService) http.Handler {
	type response struct {
		ID        uuid.UUID `json:"id"`
		Username  string    `json:"username"`
		FullName  string    `json:"full_name"`
		IsManager bool      `json:"is_manager"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityctx.FromContext(r.Context())

		user, err := s.GetUserByID(r.Context(), identity.UserID)
		if err != nil {
			render.ServiceError(w, "User not found", http.StatusUnauthorized)
			return
		}

		render.JSON(w, response{
			ID:        user.ID,
			Username:  user.Username,
			FullName:  user.FullName,
			IsManager: user.IsManager,
		})
	})
}
