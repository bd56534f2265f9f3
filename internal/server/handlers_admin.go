package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kaiwa-ai/gemrack/internal/auth"
	"github.com/kaiwa-ai/gemrack/internal/model"
	"github.com/kaiwa-ai/gemrack/internal/storage"
)

// HandleAdminLogin exchanges the admin password for a session cookie.
func (h *Handlers) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		writeError(w, r, http.StatusNotFound, "admin_disabled", "admin surface is not configured")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	token, exp, err := h.sessions.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid_credentials", "wrong password")
			return
		}
		h.logger.Error("admin login failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, r, http.StatusOK, map[string]any{"expires_at": exp})
}

// HandleAdminLogout clears the session cookie.
func (h *Handlers) HandleAdminLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, r, http.StatusOK, map[string]any{"logged_out": true})
}

// HandleAdminMe confirms an authenticated session.
func (h *Handlers) HandleAdminMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"authenticated": true})
}

// HandleAdminSetEnabled toggles a gem's enabled flag.
func (h *Handlers) HandleAdminSetEnabled(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		Enabled   *bool  `json:"enabled"`
		Workspace string `json:"workspace,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Enabled == nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "body must carry an enabled flag")
		return
	}
	workspace := h.workspace(req.Workspace)

	updatedBy := "admin"
	gem, err := h.store.SetEnabled(r.Context(), workspace, name, *req.Enabled, &updatedBy)
	switch {
	case errors.Is(err, model.ErrInvalidName):
		writeError(w, r, http.StatusBadRequest, "invalid_name", "invalid gem name")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "gem not found")
	case err != nil:
		h.logger.Error("admin set enabled failed", "gem", name, "error", err)
		writeError(w, r, http.StatusInternalServerError, "storage_error", "could not update gem")
	default:
		writeJSON(w, r, http.StatusOK, gem)
	}
}

// HandleAdminUsage returns the aggregated usage summary.
func (h *Handlers) HandleAdminUsage(w http.ResponseWriter, r *http.Request) {
	workspace := h.workspace(r.URL.Query().Get("workspace"))
	days := queryInt(r, "days", 30)
	top := queryInt(r, "top", 10)

	summary, err := h.recorder.Summary(r.Context(), workspace, days, top)
	if err != nil {
		h.logger.Error("admin usage summary failed", "workspace", workspace, "error", err)
		writeError(w, r, http.StatusInternalServerError, "metrics_error", "could not aggregate usage")
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// HandleAdminUsageDaily returns raw per-day, per-gem rollup rows.
func (h *Handlers) HandleAdminUsageDaily(w http.ResponseWriter, r *http.Request) {
	workspace := h.workspace(r.URL.Query().Get("workspace"))
	days := queryInt(r, "days", 30)

	rows, err := h.recorder.Daily(r.Context(), workspace, days)
	if err != nil {
		h.logger.Error("admin usage daily failed", "workspace", workspace, "error", err)
		writeError(w, r, http.StatusInternalServerError, "metrics_error", "could not read usage rows")
		return
	}
	if rows == nil {
		rows = []model.GemUsageRow{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"workspace_id": workspace,
		"days":         days,
		"rows":         rows,
		"generated_at": time.Now().UTC(),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
