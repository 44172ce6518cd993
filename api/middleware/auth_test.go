package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devmarket/ledger-core/pkg/auth"
	"github.com/devmarket/ledger-core/pkg/config"
	"github.com/devmarket/ledger-core/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "identity"}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	userID := uuid.New()
	token, err := auth.MintAccessToken(testJWT, time.Now(), time.Hour, userID, enums.RoleUser)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var got Identity
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got.UserID != userID {
		t.Fatalf("expected user %s got %s", userID, got.UserID)
	}
	if got.Role != enums.RoleUser {
		t.Fatalf("unexpected role %q", got.Role)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name string
		ctx  func(*http.Request) *http.Request
		want int
	}{
		{"anonymous", func(r *http.Request) *http.Request { return r }, http.StatusUnauthorized},
		{"user", func(r *http.Request) *http.Request {
			return r.WithContext(WithIdentity(r.Context(), uuid.New(), enums.RoleUser))
		}, http.StatusForbidden},
		{"admin", func(r *http.Request) *http.Request {
			return r.WithContext(WithIdentity(r.Context(), uuid.New(), enums.RoleAdmin))
		}, http.StatusOK},
	}
	for _, tt := range tests {
		req := tt.ctx(httptest.NewRequest(http.MethodPost, "/", nil))
		resp := httptest.NewRecorder()
		RequireRole(nil, enums.RoleAdmin)(okHandler()).ServeHTTP(resp, req)
		if resp.Code != tt.want {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.want, resp.Code)
		}
	}
}

func TestCallerIDRequiresIdentity(t *testing.T) {
	if _, err := CallerID(context.Background()); err == nil {
		t.Fatal("expected unauthorized without identity")
	}
	id := uuid.New()
	got, err := CallerID(WithIdentity(context.Background(), id, enums.RoleDeveloper))
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s err=%v", id, got, err)
	}
}
