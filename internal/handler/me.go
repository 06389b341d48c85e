package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/push"
)

const maxDisplayName = 60

type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, id, displayName, avatar string) (*model.User, error)
	SetPushToken(ctx context.Context, id, token string) error
}

// ActiveSetter switches the caller's active household after checking membership.
type ActiveSetter interface {
	SetActive(ctx context.Context, userID, householdID string) error
}

type MeHandler struct {
	users      UserStore
	households ActiveSetter
	pub        feed.Publisher
	logger     *slog.Logger
}

func NewMeHandler(users UserStore, households ActiveSetter, pub feed.Publisher, logger *slog.Logger) *MeHandler {
	return &MeHandler{users: users, households: households, pub: pub, logger: logger}
}

func (h *MeHandler) current(w http.ResponseWriter, r *http.Request) *model.User {
	u, err := h.users.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		fail(w, r, h.logger, "get current user", err)
		return nil
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return u
}

// Get handles GET /api/me
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	u := h.current(w, r)
	if u == nil {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// Update handles PUT /api/me
func (h *MeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}
	if utf8.RuneCountInString(req.DisplayName) > maxDisplayName {
		writeError(w, http.StatusBadRequest, "display_name is too long")
		return
	}

	before := h.current(w, r)
	if before == nil {
		return
	}
	after, err := h.users.UpdateProfile(r.Context(), before.ID, req.DisplayName, req.Avatar)
	if err != nil {
		fail(w, r, h.logger, "update profile", err)
		return
	}

	for _, hid := range after.HouseholdIDs {
		h.pub.Publish(feed.UserChanged(hid, before, after))
	}
	writeJSON(w, http.StatusOK, after)
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

// SetPushToken handles PUT /api/me/push-token
func (h *MeHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if !decode(w, r, &req) {
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if !push.ValidExpoToken(req.Token) {
		writeError(w, http.StatusBadRequest, "invalid Expo push token")
		return
	}
	if err := h.users.SetPushToken(r.Context(), auth.UserID(r.Context()), req.Token); err != nil {
		fail(w, r, h.logger, "set push token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearPushToken handles DELETE /api/me/push-token
func (h *MeHandler) ClearPushToken(w http.ResponseWriter, r *http.Request) {
	if err := h.users.SetPushToken(r.Context(), auth.UserID(r.Context()), ""); err != nil {
		fail(w, r, h.logger, "clear push token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type activeHouseholdRequest struct {
	HouseholdID string `json:"household_id"`
}

// SetActiveHousehold handles PUT /api/me/active-household
func (h *MeHandler) SetActiveHousehold(w http.ResponseWriter, r *http.Request) {
	var req activeHouseholdRequest
	if !decode(w, r, &req) {
		return
	}
	if req.HouseholdID == "" {
		writeError(w, http.StatusBadRequest, "household_id is required")
		return
	}
	if err := h.households.SetActive(r.Context(), auth.UserID(r.Context()), req.HouseholdID); err != nil {
		fail(w, r, h.logger, "set active household", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
