package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/boardhub/boardhub-api/internal/middleware"
)

func newRequest(method, target, body string, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestHandlerSendMessage_StatusCodes(t *testing.T) {
	ctx := context.Background()
	u1, u2, stranger := uuid.New(), uuid.New(), uuid.New()

	blocks := newBlockSet()
	svc := newTestService(newMemRepo(), blocks, nil, nil, nil)
	room, _ := svc.ResolveRoom(ctx, ResolveInput{SenderID: u1, ReceiverID: u2})
	h := NewHandler(svc, nil, nil, nil)
	params := map[string]string{"id": room.ID.String()}

	tests := []struct {
		name   string
		userID uuid.UUID
		params map[string]string
		body   string
		want   int
	}{
		{"invalid room id", u1, map[string]string{"id": "nope"}, `{"content":"hi"}`, http.StatusBadRequest},
		{"invalid json", u1, params, `{`, http.StatusBadRequest},
		{"blank content", u1, params, `{"content":"   "}`, http.StatusUnprocessableEntity},
		{"unknown room", u1, map[string]string{"id": uuid.NewString()}, `{"content":"hi"}`, http.StatusNotFound},
		{"not a member", stranger, params, `{"content":"hi"}`, http.StatusForbidden},
		{"ok", u1, params, `{"content":"hi","is_anonymous":false}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.SendMessage(w, newRequest(http.MethodPost, "/rooms/x/messages", tt.body, tt.userID, tt.params))
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}

	blocks.block(u2, u1)
	w := httptest.NewRecorder()
	h.SendMessage(w, newRequest(http.MethodPost, "/rooms/x/messages", `{"content":"hi"}`, u1, params))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when blocked, got %d", w.Code)
	}
}

func TestHandlerSendMessage_PartnerLeftHeader(t *testing.T) {
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()

	svc := newTestService(newMemRepo(), newBlockSet(), nil, nil, nil)
	room, _ := svc.ResolveRoom(ctx, ResolveInput{SenderID: u1, ReceiverID: u2})
	_ = svc.Leave(ctx, room.ID, u2)
	h := NewHandler(svc, nil, nil, nil)

	w := httptest.NewRecorder()
	h.SendMessage(w, newRequest(http.MethodPost, "/rooms/x/messages", `{"content":"still there?"}`, u1, map[string]string{"id": room.ID.String()}))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w.Header().Get("X-Partner-Left") != "true" {
		t.Fatal("expected X-Partner-Left header")
	}
}

func TestHandlerSendMessage_RateLimited(t *testing.T) {
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()

	svc := newTestService(newMemRepo(), newBlockSet(), nil, nil, nil)
	room, _ := svc.ResolveRoom(ctx, ResolveInput{SenderID: u1, ReceiverID: u2})
	h := NewHandler(svc, nil, NewRateLimiter(nil, 1, time.Hour), nil)
	params := map[string]string{"id": room.ID.String()}

	w := httptest.NewRecorder()
	h.SendMessage(w, newRequest(http.MethodPost, "/rooms/x/messages", `{"content":"one"}`, u1, params))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.SendMessage(w, newRequest(http.MethodPost, "/rooms/x/messages", `{"content":"two"}`, u1, params))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestHandlerGetMessages_HidesAnonymousIdentity(t *testing.T) {
	ctx := context.Background()
	seeker, author := uuid.New(), uuid.New()
	postID := uuid.New()
	posts := &staticPosts{posts: map[uuid.UUID]*PostInfo{
		postID: {ID: postID, AuthorID: author, IsAnonymous: true, Title: "Bike found"},
	}}
	profiles := &staticProfiles{profiles: map[uuid.UUID]*ProfileInfo{
		author: {UserID: author, DisplayName: "Real Name"},
	}}

	svc := newTestService(newMemRepo(), newBlockSet(), posts, profiles, nil)
	res, err := svc.CreateOrGetRoom(ctx, seeker, &CreateRoomRequest{RecipientID: author, RelatedPostID: &postID, Message: "Is it blue?"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := svc.Append(ctx, res.Room.ID, author, "yes", true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	h := NewHandler(svc, nil, nil, nil)
	w := httptest.NewRecorder()
	h.GetMessages(w, newRequest(http.MethodGet, "/rooms/x/messages", "", seeker, map[string]string{"id": res.Room.ID.String()}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	raw := w.Body.String()
	if strings.Contains(raw, author.String()) {
		t.Fatal("expected anonymous author id to stay hidden")
	}
	if strings.Contains(raw, "Real Name") {
		t.Fatal("expected anonymous author name to stay hidden")
	}

	env := decodeEnvelope(t, w)
	var window ChatWindowResponse
	if err := json.Unmarshal(env.Data, &window); err != nil {
		t.Fatalf("decode window: %v", err)
	}
	if !window.Partner.IsAnonymous || window.Partner.DisplayName != AnonymousDisplayName {
		t.Fatal("expected anonymous partner")
	}
	if window.Post == nil || window.Post.Title != "Bike found" {
		t.Fatal("expected post banner")
	}
	if len(window.Messages) != 2 || !window.Messages[0].IsMine || window.Messages[1].IsMine {
		t.Fatal("expected two messages, first one mine")
	}
}

func TestHandlerCreateRoom(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	svc := newTestService(newMemRepo(), newBlockSet(), nil, nil, nil)
	h := NewHandler(svc, nil, nil, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing recipient", `{}`, http.StatusUnprocessableEntity},
		{"self", `{"recipient_id":"` + me.String() + `"}`, http.StatusBadRequest},
		{"ok", `{"recipient_id":"` + other.String() + `","message":"hello"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.CreateRoom(w, newRequest(http.MethodPost, "/rooms", tt.body, me, nil))
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestHandlerListRooms_StoreUnavailable(t *testing.T) {
	repo := newMemRepo()
	repo.failWith = errors.New("connection refused")
	h := NewHandler(newTestService(repo, newBlockSet(), nil, nil, nil), nil, nil, nil)

	w := httptest.NewRecorder()
	h.ListRooms(w, newRequest(http.MethodGet, "/rooms", "", uuid.New(), nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != "STORE_UNAVAILABLE" {
		t.Fatal("expected STORE_UNAVAILABLE error code")
	}
}

func TestHandlerGetUnreadCount(t *testing.T) {
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()

	svc := newTestService(newMemRepo(), newBlockSet(), nil, nil, nil)
	room, _ := svc.ResolveRoom(ctx, ResolveInput{SenderID: u1, ReceiverID: u2})
	_, _ = svc.Append(ctx, room.ID, u1, "a", false)
	_, _ = svc.Append(ctx, room.ID, u1, "b", false)
	h := NewHandler(svc, nil, nil, nil)

	w := httptest.NewRecorder()
	h.GetUnreadCount(w, newRequest(http.MethodGet, "/unread", "", u2, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	env := decodeEnvelope(t, w)
	var data map[string]int
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["unread_count"] != 2 {
		t.Fatalf("expected 2 unread, got %d", data["unread_count"])
	}
}

func TestHandlerGetUnreadCount_StoreUnavailable(t *testing.T) {
	repo := newMemRepo()
	repo.failWith = errors.New("connection refused")
	h := NewHandler(newTestService(repo, newBlockSet(), nil, nil, nil), nil, nil, nil)

	w := httptest.NewRecorder()
	h.GetUnreadCount(w, newRequest(http.MethodGet, "/unread", "", uuid.New(), nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != "STORE_UNAVAILABLE" {
		t.Fatal("expected STORE_UNAVAILABLE error code")
	}
	if env.Data != nil {
		t.Fatalf("expected no data, got %s", env.Data)
	}
}

func TestHandlerPartnerStatusAndLeave(t *testing.T) {
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()

	svc := newTestService(newMemRepo(), newBlockSet(), nil, nil, nil)
	room, _ := svc.ResolveRoom(ctx, ResolveInput{SenderID: u1, ReceiverID: u2})
	h := NewHandler(svc, nil, nil, nil)
	params := map[string]string{"id": room.ID.String()}

	w := httptest.NewRecorder()
	h.LeaveRoom(w, newRequest(http.MethodPost, "/rooms/x/leave", "", u2, params))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.GetPartnerStatus(w, newRequest(http.MethodGet, "/rooms/x/partner", "", u1, params))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	var status PartnerStatusResponse
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.PartnerLeft || status.LeftAt == nil {
		t.Fatal("expected partner to have left")
	}
}
