package relationships

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns relationships router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/users/{id}/block", h.BlockUser)
	r.Delete("/users/{id}/block", h.UnblockUser)
	r.Get("/users/me/blocked", h.ListBlocked)

	return r
}
