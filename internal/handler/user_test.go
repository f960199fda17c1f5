package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/imgvault/imgvault/internal/auth"
	"github.com/imgvault/imgvault/internal/handler/dto"
	"github.com/imgvault/imgvault/internal/model"
	"github.com/imgvault/imgvault/internal/repository"
	"github.com/imgvault/imgvault/internal/service"
	"github.com/imgvault/imgvault/internal/testutil"
)

// memUserStore is a minimal in-memory UserStore for handler tests.
type memUserStore struct {
	users map[string]*model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*model.User)}
}

func (s *memUserStore) CreateUser(ctx context.Context, user *model.User) error {
	if _, ok := s.users[user.Username]; ok {
		return repository.ErrUsernameExists
	}
	copied := *user
	s.users[user.Username] = &copied
	return nil
}

func (s *memUserStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func newUserHandler(store *memUserStore) (*UserHandler, *auth.TokenService) {
	logger := testutil.NewTestLogger()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	svc := service.NewUserService(store, tokens, logger)
	return NewUserHandler(svc, logger), tokens
}

func TestUserHandler_Register(t *testing.T) {
	h, _ := newUserHandler(newMemUserStore())

	body := `{"username": "alice", "email": "alice@example.com", "password": "password1"}`
	req := httptest.NewRequest(http.MethodPost, "/users/register", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Username != "alice" || resp.Email != "alice@example.com" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestUserHandler_Register_NeverExposesPassword(t *testing.T) {
	h, _ := newUserHandler(newMemUserStore())

	body := `{"username": "alice", "email": "alice@example.com", "password": "password1"}`
	req := httptest.NewRequest(http.MethodPost, "/users/register", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	raw := rec.Body.String()
	if strings.Contains(raw, "password") || strings.Contains(raw, "argon2id") {
		t.Errorf("response leaks password material: %s", raw)
	}
}

func TestUserHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid json",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name:       "bad username",
			body:       `{"username": "a", "email": "a@example.com", "password": "password1"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_USERNAME",
		},
		{
			name:       "bad email",
			body:       `{"username": "alice", "email": "nope", "password": "password1"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_EMAIL",
		},
		{
			name:       "weak password",
			body:       `{"username": "alice", "email": "a@example.com", "password": "short"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "WEAK_PASSWORD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newUserHandler(newMemUserStore())

			req := httptest.NewRequest(http.MethodPost, "/users/register", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Register(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestUserHandler_Register_DuplicateUsername(t *testing.T) {
	store := newMemUserStore()
	h, _ := newUserHandler(store)

	body := `{"username": "alice", "email": "alice@example.com", "password": "password1"}`
	req := httptest.NewRequest(http.MethodPost, "/users/register", strings.NewReader(body))
	h.Register(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/users/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "USERNAME_TAKEN" {
		t.Errorf("expected code USERNAME_TAKEN, got %s", resp.Code)
	}
}

func TestUserHandler_Login(t *testing.T) {
	store := newMemUserStore()
	h, tokens := newUserHandler(store)

	register := `{"username": "alice", "email": "alice@example.com", "password": "password1"}`
	req := httptest.NewRequest(http.MethodPost, "/users/register", strings.NewReader(register))
	h.Register(httptest.NewRecorder(), req)

	login := `{"username": "alice", "password": "password1"}`
	req = httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(login))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("returned token does not verify: %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("expected subject alice, got %s", claims.Subject)
	}
}

func TestUserHandler_Login_InvalidCredentials(t *testing.T) {
	store := newMemUserStore()
	h, _ := newUserHandler(store)

	register := `{"username": "alice", "email": "alice@example.com", "password": "password1"}`
	req := httptest.NewRequest(http.MethodPost, "/users/register", strings.NewReader(register))
	h.Register(httptest.NewRecorder(), req)

	login := `{"username": "alice", "password": "wrong-password"}`
	req = httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(login))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "INVALID_CREDENTIALS" {
		t.Errorf("expected code INVALID_CREDENTIALS, got %s", resp.Code)
	}
}
