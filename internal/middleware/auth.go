package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/model"
)

// Verifier turns a bearer token into a caller identity.
type Verifier interface {
	Verify(token string) (auth.AuthContext, error)
}

// UserEnsurer creates the user row on first sight.
type UserEnsurer interface {
	Ensure(ctx context.Context, id, displayName, email, avatar string) (*model.User, error)
}

// RequireAuth verifies the bearer token and populates AuthContext. The user
// row is created from the token claims the first time a subject is seen.
// The access_token query parameter is accepted for WebSocket upgrades, where
// browsers cannot set headers.
func RequireAuth(verifier Verifier, users UserEnsurer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			ac, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected token", "error", err, "remote", RealIP(r))
				unauthorized(w)
				return
			}

			if _, err := users.Ensure(r.Context(), ac.UserID, ac.Name, ac.Email, ac.Picture); err != nil {
				logger.Error("ensure user", "user_id", ac.UserID, "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			recordUser(r.Context(), ac.UserID)
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	if websocketUpgrade(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func websocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="chorely"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
