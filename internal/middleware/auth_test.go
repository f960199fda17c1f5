package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imgvault/imgvault/internal/auth"
	"github.com/imgvault/imgvault/internal/testutil"
)

func newAuthedRouter(tokens *auth.TokenService) http.Handler {
	mw := Auth(AuthConfig{
		Logger: testutil.NewTestLogger(),
		Tokens: tokens,
	})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())
		if identity == nil {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(identity.Username))
	}))
}

func TestAuth_ValidToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	handler := newAuthedRouter(tokens)

	token, err := tokens.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/images", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "alice" {
		t.Errorf("expected identity alice, got %q", rec.Body.String())
	}
}

func TestAuth_Rejections(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	otherTokens := auth.NewTokenService("other-secret", time.Hour)
	expiredTokens := auth.NewTokenService("test-secret", -time.Minute)

	foreign, _ := otherTokens.Issue("user-1", "alice")
	expired, _ := expiredTokens.Issue("user-1", "alice")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + foreign},
		{"expired", "Bearer " + expired},
	}

	handler := newAuthedRouter(tokens)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/images", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}

			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["code"] != "UNAUTHORIZED" {
				t.Errorf("expected code UNAUTHORIZED, got %s", resp["code"])
			}
		})
	}
}
