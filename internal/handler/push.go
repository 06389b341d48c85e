package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/model"
)

type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, userID, householdID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, id, userID string) error
}

// Authorizer checks household membership.
type Authorizer interface {
	Authorize(ctx context.Context, userID, householdID string) (*model.Household, error)
}

type PushHandler struct {
	subs       SubscriptionStore
	households Authorizer
	publicKey  string
	logger     *slog.Logger
}

// NewPushHandler builds the handler. An empty publicKey disables web push.
func NewPushHandler(subs SubscriptionStore, households Authorizer, publicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: subs, households: households, publicKey: publicKey, logger: logger}
}

type subscribeRequest struct {
	HouseholdID string `json:"household_id"`
	Endpoint    string `json:"endpoint"`
	P256dh      string `json:"p256dh"`
	Auth        string `json:"auth"`
	DeviceName  string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "web push is not configured")
		return
	}

	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.HouseholdID == "" || req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "household_id, endpoint, p256dh, and auth are required")
		return
	}

	userID := auth.UserID(r.Context())
	if _, err := h.households.Authorize(r.Context(), userID, req.HouseholdID); err != nil {
		fail(w, r, h.logger, "authorize push subscription", err)
		return
	}

	sub, err := h.subs.CreateSubscription(r.Context(), userID, req.HouseholdID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		fail(w, r, h.logger, "create push subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := h.subs.DeleteSubscription(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context())); err != nil {
		fail(w, r, h.logger, "delete push subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "web push is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}
