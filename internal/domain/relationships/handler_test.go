package relationships

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/boardhub/boardhub-api/internal/middleware"
)

type staticProfiles map[uuid.UUID]*UserProfile

func (p staticProfiles) GetUserProfile(_ context.Context, userID uuid.UUID) (*UserProfile, error) {
	if profile, ok := p[userID]; ok {
		return profile, nil
	}
	return nil, errors.New("profile not found")
}

func newRequest(method, target string, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestHandlerBlockUser_StatusCodes(t *testing.T) {
	me, target := uuid.New(), uuid.New()
	h := NewHandler(NewService(&memRepo{}, nil), nil)

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"invalid id", "not-a-uuid", http.StatusBadRequest},
		{"self", me.String(), http.StatusBadRequest},
		{"ok", target.String(), http.StatusOK},
		{"duplicate", target.String(), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.BlockUser(w, newRequest(http.MethodPost, "/users/"+tt.id+"/block", me, map[string]string{"id": tt.id}))
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestHandlerUnblockUser_NotBlocked(t *testing.T) {
	me, target := uuid.New(), uuid.New()
	h := NewHandler(NewService(&memRepo{}, nil), nil)

	w := httptest.NewRecorder()
	h.UnblockUser(w, newRequest(http.MethodDelete, "/users/x/block", me, map[string]string{"id": target.String()}))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandlerListBlocked_FallsBackToPlaceholder(t *testing.T) {
	me, known, unknown := uuid.New(), uuid.New(), uuid.New()
	repo := &memRepo{blocks: []*BlockRelation{
		{ID: uuid.New(), BlockerID: me, BlockedID: known, CreatedAt: time.Now()},
		{ID: uuid.New(), BlockerID: me, BlockedID: unknown, CreatedAt: time.Now().Add(-time.Hour)},
	}}
	profiles := staticProfiles{known: {ID: known, DisplayName: "Mira"}}
	h := NewHandler(NewService(repo, nil), profiles)

	w := httptest.NewRecorder()
	h.ListBlocked(w, newRequest(http.MethodGet, "/users/me/blocked", me, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Data []BlockedUserResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("expected 2 items, got %d", len(body.Data))
	}
	if body.Data[0].DisplayName != "Mira" {
		t.Fatalf("expected Mira, got %q", body.Data[0].DisplayName)
	}
	if body.Data[1].DisplayName != unknownDisplayName {
		t.Fatalf("expected placeholder, got %q", body.Data[1].DisplayName)
	}
}

func TestHandlerListBlocked_StoreUnavailable(t *testing.T) {
	h := NewHandler(NewService(&memRepo{failWith: errors.New("timeout")}, nil), nil)

	w := httptest.NewRecorder()
	h.ListBlocked(w, newRequest(http.MethodGet, "/users/me/blocked", uuid.New(), nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
