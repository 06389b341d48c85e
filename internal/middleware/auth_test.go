package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupAuthMiddleware(t *testing.T) (*auth.TokenVerifier, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	v, err := auth.NewTokenVerifier(testSecret, "")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v, store.NewUserStore(db)
}

func TestRequireAuthNoToken(t *testing.T) {
	v, us := setupAuthMiddleware(t)

	handler := RequireAuth(v, us, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	v, us := setupAuthMiddleware(t)

	handler := RequireAuth(v, us, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	v, us := setupAuthMiddleware(t)

	tok, err := v.Generate(auth.AuthContext{UserID: "u1", Name: "Alice", Email: "alice@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var gotAC auth.AuthContext
	handler := RequireAuth(v, us, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != "u1" {
		t.Errorf("UserID = %q, want %q", gotAC.UserID, "u1")
	}

	u, err := us.GetByID(req.Context(), "u1")
	if err != nil || u == nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.DisplayName != "Alice" {
		t.Errorf("display_name = %q, want %q", u.DisplayName, "Alice")
	}
}

func TestRequireAuthQueryTokenOnlyForWebSocket(t *testing.T) {
	v, us := setupAuthMiddleware(t)

	tok, err := v.Generate(auth.AuthContext{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	handler := RequireAuth(v, us, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/me?access_token="+tok, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("plain request: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest("GET", "/ws?household_id=h1&access_token="+tok, nil)
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("upgrade request: status = %d, want %d", rec.Code, http.StatusOK)
	}
}
