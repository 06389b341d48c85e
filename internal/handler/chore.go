package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/leaderboard"
	"github.com/dukerupert/chorely/internal/model"
)

type ChoreHandler struct {
	svc    *chore.Service
	logger *slog.Logger
}

func NewChoreHandler(svc *chore.Service, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{svc: svc, logger: logger}
}

// List handles GET /api/households/{id}/chores
func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.List(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "list chores", err)
		return
	}
	if views == nil {
		views = []chore.View{}
	}
	writeJSON(w, http.StatusOK, views)
}

// Create handles POST /api/households/{id}/chores
func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in chore.Input
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.Create(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, h.logger, "create chore", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// DeleteAll handles DELETE /api/households/{id}/chores
func (h *ChoreHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.DeleteAll(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "delete all chores", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// Update handles PUT /api/chores/{id}
func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in chore.Input
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.Update(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, h.logger, "update chore", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/chores/{id}
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, r, h.logger, "delete chore", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Claim handles POST /api/chores/{id}/claim
func (h *ChoreHandler) Claim(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Claim(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "claim chore", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Complete handles POST /api/chores/{id}/complete
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Complete(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "complete chore", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Reset handles POST /api/chores/{id}/reset
func (h *ChoreHandler) Reset(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Reset(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "reset chore", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Activities handles GET /api/households/{id}/activities?limit=
func (h *ChoreHandler) Activities(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	acts, err := h.svc.RecentActivity(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), limit)
	if err != nil {
		fail(w, r, h.logger, "list activities", err)
		return
	}
	if acts == nil {
		acts = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, acts)
}

// Leaderboard handles GET /api/households/{id}/leaderboard?period=
func (h *ChoreHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.svc.Standings(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), period)
	if err != nil {
		fail(w, r, h.logger, "leaderboard", err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": period, "entries": entries})
}
