package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/handlers/identityctx"
	"github.com/teampulse/teampulse/internal/handlers/render"
)

func handleManagerWhoami() http.Handler {
	type response struct {
		ID        uuid.UUID `json:"id"`
		IsManager bool      `json:"is_manager"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityctx.FromContext(r.Context())
		render.JSON(w, response{ID: identity.UserID, IsManager: identity.IsManager})
	})
}
