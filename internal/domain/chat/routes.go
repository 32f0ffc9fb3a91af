package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns chat router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	// All routes require authentication
	r.Use(authMiddleware)

	// Room operations
	r.Post("/rooms", h.CreateRoom)
	r.Get("/rooms", h.ListRooms)

	// Room messages
	r.Get("/rooms/{id}/messages", h.GetMessages)
	r.Post("/rooms/{id}/messages", h.SendMessage)
	r.Post("/rooms/{id}/read", h.MarkAsRead)
	r.Post("/messages/{id}/read", h.MarkMessageAsRead)

	// Membership
	r.Post("/rooms/{id}/leave", h.LeaveRoom)
	r.Get("/rooms/{id}/partner", h.GetPartnerStatus)

	// Unread count
	r.Get("/unread", h.GetUnreadCount)

	return r
}

// WSRoute returns WebSocket route handler. Browsers cannot set headers on
// the upgrade request, so auth accepts ?token=xxx there.
func (h *Handler) WSRoute(authMiddleware func(http.Handler) http.Handler) http.Handler {
	return authMiddleware(http.HandlerFunc(h.WebSocket))
}
