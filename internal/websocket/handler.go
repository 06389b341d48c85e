package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/model"
)

// Authorizer checks that the user may subscribe to the household.
type Authorizer interface {
	Authorize(ctx context.Context, userID, householdID string) (*model.Household, error)
}

// HandleWebSocket upgrades an authenticated request to a live subscription on
// the household named by the household_id query parameter.
func HandleWebSocket(hub *Hub, authz Authorizer, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		householdID := r.URL.Query().Get("household_id")
		if householdID == "" {
			writeError(w, http.StatusBadRequest, "household_id is required")
			return
		}
		if _, err := authz.Authorize(r.Context(), userID, householdID); err != nil {
			logger.Warn("websocket subscription denied", "user_id", userID, "household_id", householdID, "error", err)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns:     originPatterns,
			InsecureSkipVerify: len(originPatterns) == 0,
		})
		if err != nil {
			logger.Error("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("websocket connected", "user_id", userID, "household_id", householdID)
		NewClient(hub, conn, householdID, userID).Run(r.Context())
		logger.Debug("websocket disconnected", "user_id", userID, "household_id", householdID)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
