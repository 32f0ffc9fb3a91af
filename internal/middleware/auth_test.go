package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/boardhub/boardhub-api/internal/pkg/jwt"
)

func protectedHandler(t *testing.T, jwtSvc *jwt.Service, want uuid.UUID) http.Handler {
	return Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetUserID(r.Context()); got != want {
			t.Fatalf("expected user %s in context, got %s", want, got)
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMiddlewareAllowsValidAccessToken(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	userID := uuid.New()
	token, err := jwtSvc.GenerateAccessToken(userID, false)
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protectedHandler(t, jwtSvc, userID).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsMissingAndMalformed(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	handler := protectedHandler(t, jwtSvc, uuid.Nil)

	for _, header := range []string{"", "Token abc", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %q, got %d", header, w.Code)
		}
	}
}

func TestAuthMiddlewareRejectsBannedUser(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	token, _ := jwtSvc.GenerateAccessToken(uuid.New(), true)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protectedHandler(t, jwtSvc, uuid.Nil).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAuthMiddlewareQueryTokenOnlyForWebSocket(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	userID := uuid.New()
	token, _ := jwtSvc.GenerateAccessToken(userID, false)

	plain := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	w := httptest.NewRecorder()
	protectedHandler(t, jwtSvc, userID).ServeHTTP(w, plain)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without upgrade header, got %d", w.Code)
	}

	upgrade := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	protectedHandler(t, jwtSvc, userID).ServeHTTP(w, upgrade)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for websocket upgrade, got %d", w.Code)
	}
}
