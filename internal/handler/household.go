package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/household"
	"github.com/dukerupert/chorely/internal/model"
)

type HouseholdHandler struct {
	svc    *household.Service
	logger *slog.Logger
}

func NewHouseholdHandler(svc *household.Service, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{svc: svc, logger: logger}
}

type nameRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/households
func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	households, err := h.svc.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		fail(w, r, h.logger, "list households", err)
		return
	}
	if households == nil {
		households = []model.Household{}
	}
	writeJSON(w, http.StatusOK, households)
}

// Create handles POST /api/households
func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	hh, err := h.svc.Create(r.Context(), auth.UserID(r.Context()), req.Name)
	if err != nil {
		fail(w, r, h.logger, "create household", err)
		return
	}
	writeJSON(w, http.StatusCreated, hh)
}

type joinRequest struct {
	Code string `json:"code"`
}

// Join handles POST /api/households/join
func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	hh, err := h.svc.Join(r.Context(), auth.UserID(r.Context()), req.Code)
	if err != nil {
		fail(w, r, h.logger, "join household", err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

// Get handles GET /api/households/{id}
func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Get(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "get household", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Rename handles PUT /api/households/{id}
func (h *HouseholdHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	hh, err := h.svc.Rename(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		fail(w, r, h.logger, "rename household", err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

// Delete handles DELETE /api/households/{id}
func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, r, h.logger, "delete household", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leave handles POST /api/households/{id}/leave
func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Leave(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, r, h.logger, "leave household", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/households/{id}/members/{user_id}
func (h *HouseholdHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveMember(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "user_id"))
	if err != nil {
		fail(w, r, h.logger, "remove member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type roleRequest struct {
	Role model.Role `json:"role"`
}

// SetRole handles PUT /api/households/{id}/members/{user_id}/role
func (h *HouseholdHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be admin or member")
		return
	}
	err := h.svc.SetRole(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "user_id"), req.Role)
	if err != nil {
		fail(w, r, h.logger, "set role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetProfile handles PUT /api/households/{id}/profile
func (h *HouseholdHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.svc.SetProfile(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req.DisplayName, req.Avatar)
	if err != nil {
		fail(w, r, h.logger, "set household profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	Email string `json:"email"`
}

// Invite handles POST /api/households/{id}/invite
func (h *HouseholdHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Invite(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req.Email); err != nil {
		fail(w, r, h.logger, "send invite", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// ResetLeaderboard handles POST /api/households/{id}/reset
func (h *HouseholdHandler) ResetLeaderboard(w http.ResponseWriter, r *http.Request) {
	hh, err := h.svc.ResetLeaderboard(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "reset leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}
