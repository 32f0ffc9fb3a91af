package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/boardhub/boardhub-api/internal/middleware"
	"github.com/boardhub/boardhub-api/internal/pkg/errorhandler"
	"github.com/boardhub/boardhub-api/internal/pkg/response"
	"github.com/boardhub/boardhub-api/internal/pkg/validator"
)

// WebSocket constants
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Handler handles chat HTTP requests
type Handler struct {
	service     *Service
	hub         *Hub
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
}

// NewHandler creates chat handler
func NewHandler(service *Service, hub *Hub, rateLimiter *RateLimiter, allowedOrigins []string) *Handler {
	return &Handler{
		service:     service,
		hub:         hub,
		rateLimiter: rateLimiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				// Allow all in development
				if len(allowedOrigins) == 0 {
					return true
				}

				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}

				log.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
				return false
			},
		},
	}
}

// writeServiceError maps chat errors to HTTP responses
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrEmptyContent):
		response.BadRequest(w, "Message content is empty")
	case errors.Is(err, ErrCannotChatSelf):
		response.BadRequest(w, "Cannot start chat with yourself")
	case errors.Is(err, ErrRoomNotFound):
		response.NotFound(w, "Room not found")
	case errors.Is(err, ErrMessageNotFound):
		response.NotFound(w, "Message not found")
	case errors.Is(err, ErrNotRoomMember):
		response.Forbidden(w, "You are not a member of this chat")
	case errors.Is(err, ErrBlocked):
		response.Forbidden(w, "Cannot send message - user has blocked you")
	case errors.Is(err, ErrNoActiveCounterpart):
		response.Conflict(w, "Chat partner has left the conversation")
	case errors.Is(err, ErrStoreUnavailable):
		errorhandler.HandleError(r.Context(), w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Chat is temporarily unavailable", err)
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", err)
	}
}

func (h *Handler) allow(r *http.Request, userID uuid.UUID) bool {
	if h.rateLimiter == nil {
		return true
	}
	return h.rateLimiter.Allow(r.Context(), userID)
}

// CreateRoom handles POST /chat/rooms
// @Summary Создать или получить чат-комнату
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRoomRequest true "Данные для создания комнаты"
// @Success 201 {object} response.Response{data=RoomResponse}
// @Failure 400,403,404,422,429,503 {object} response.Response
// @Router /chat/rooms [post]
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if req.Message != "" && !h.allow(r, userID) {
		response.TooManyRequests(w)
		return
	}

	result, err := h.service.CreateOrGetRoom(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Created(w, RoomResponseFromResult(result, userID))
}

// ListRooms handles GET /chat/rooms
// @Summary Список диалогов
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]ConversationResponse}
// @Failure 503 {object} response.Response
// @Router /chat/rooms [get]
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	conversations, err := h.service.ListConversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]*ConversationResponse, len(conversations))
	for i, c := range conversations {
		items[i] = ConversationResponseFromEntity(c)
	}

	response.OK(w, items)
}

// GetMessages handles GET /chat/rooms/{id}/messages
// @Summary Получить сообщения комнаты
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID комнаты"
// @Success 200 {object} response.Response{data=ChatWindowResponse}
// @Failure 400,403,404,503 {object} response.Response
// @Router /chat/rooms/{id}/messages [get]
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	window, err := h.service.ChatWindow(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, ChatWindowResponseFromEntity(window))
}

// SendMessage handles POST /chat/rooms/{id}/messages
// @Summary Отправить сообщение
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID комнаты"
// @Param request body SendMessageRequest true "Тело сообщения"
// @Success 201 {object} response.Response{data=MessageResponse}
// @Failure 400,403,404,422,429,503 {object} response.Response
// @Router /chat/rooms/{id}/messages [post]
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	userID := middleware.GetUserID(r.Context())

	// Rate limiting
	if !h.allow(r, userID) {
		response.TooManyRequests(w)
		return
	}

	var req SendMessageRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	result, err := h.service.Append(r.Context(), roomID, userID, req.Content, req.IsAnonymous)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if result.Advisory() != nil {
		w.Header().Set("X-Partner-Left", "true")
	}
	response.Created(w, MessageResponseFromEntity(result.Message, userID))
}

// MarkAsRead handles POST /chat/rooms/{id}/read
// @Summary Отметить сообщения комнаты как прочитанные
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID комнаты"
// @Success 200 {object} response.Response
// @Failure 400,403,404,503 {object} response.Response
// @Router /chat/rooms/{id}/read [post]
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	n, err := h.service.MarkAllRead(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, map[string]int64{"marked": n})
}

// MarkMessageAsRead handles POST /chat/messages/{id}/read
// @Summary Отметить сообщение как прочитанное
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID сообщения"
// @Success 200 {object} response.Response
// @Failure 400,404,503 {object} response.Response
// @Router /chat/messages/{id}/read [post]
func (h *Handler) MarkMessageAsRead(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid message ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.service.MarkRead(r.Context(), messageID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}

// LeaveRoom handles POST /chat/rooms/{id}/leave
// @Summary Покинуть диалог
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID комнаты"
// @Success 200 {object} response.Response
// @Failure 400,403,404,503 {object} response.Response
// @Router /chat/rooms/{id}/leave [post]
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.service.Leave(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}

// GetPartnerStatus handles GET /chat/rooms/{id}/partner
// @Summary Статус собеседника
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID комнаты"
// @Success 200 {object} response.Response{data=PartnerStatusResponse}
// @Failure 400,403,404,503 {object} response.Response
// @Router /chat/rooms/{id}/partner [get]
func (h *Handler) GetPartnerStatus(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid room ID")
		return
	}

	userID := middleware.GetUserID(r.Context())
	status, err := h.service.PartnerStatus(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := &PartnerStatusResponse{PartnerLeft: status.PartnerLeft}
	if status.LeftAt != nil {
		s := status.LeftAt.Format(time.RFC3339)
		resp.LeftAt = &s
	}
	response.OK(w, resp)
}

// GetUnreadCount handles GET /chat/unread
// @Summary Количество непрочитанных сообщений
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /chat/unread [get]
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	count, err := h.service.UnreadTotal(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, map[string]int{"unread_count": count})
}

// Connection is a websocket client subscribed to the user's change feed
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Events <-chan Event
	cancel context.CancelFunc
}

// wsEvent is what a client receives. User ids stay server side.
type wsEvent struct {
	Type      EventType  `json:"type"`
	RoomID    uuid.UUID  `json:"room_id"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	At        string     `json:"at"`
}

func wsEventFromEvent(e Event) wsEvent {
	out := wsEvent{Type: e.Type, RoomID: e.RoomID, At: e.At.Format(time.RFC3339Nano)}
	if e.MessageID != uuid.Nil {
		id := e.MessageID
		out.MessageID = &id
	}
	return out
}

// WebSocket handles WS /ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Connection{
		UserID: userID,
		Conn:   conn,
		Events: h.hub.OnChange(ctx, Filter{UserID: userID}),
		cancel: cancel,
	}
	log.Debug().Str("user_id", userID.String()).Msg("User connected to WebSocket")

	// Start reader and writer goroutines
	go h.wsReader(client)
	go h.wsWriter(client)
}

func (h *Handler) wsReader(client *Connection) {
	defer func() {
		client.cancel()
		client.Conn.Close()
		log.Debug().Str("user_id", client.UserID.String()).Msg("User disconnected from WebSocket")
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", client.UserID.String()).Msg("WebSocket read error")
			}
			break
		}

		var event struct {
			Type      string    `json:"type"`
			RoomID    uuid.UUID `json:"room_id"`
			MessageID uuid.UUID `json:"message_id"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}

		ctx := context.Background()
		if h.rateLimiter != nil && !h.rateLimiter.Allow(ctx, client.UserID) {
			continue
		}

		switch event.Type {
		case "read":
			if event.MessageID != uuid.Nil {
				_ = h.service.MarkRead(ctx, event.MessageID, client.UserID)
			} else {
				_, _ = h.service.MarkAllRead(ctx, event.RoomID, client.UserID)
			}
		}
	}
}

func (h *Handler) wsWriter(client *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Events:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Feed closed
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteJSON(wsEventFromEvent(event)); err != nil {
				return
			}

		case <-ticker.C:
			// Send ping for heartbeat
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
