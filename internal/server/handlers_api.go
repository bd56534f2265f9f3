package server

import (
	"errors"
	"net/http"

	"github.com/kaiwa-ai/gemrack/internal/model"
	"github.com/kaiwa-ai/gemrack/internal/storage"
)

// redactGem withholds prompt material from the list view. Body and
// SystemPrompt carry omitempty tags, so zeroing them drops the keys.
func redactGem(g model.Gem) model.Gem {
	g.Body = ""
	g.SystemPrompt = ""
	return g
}

// HandleListGems lists gems for a workspace with body and system prompt
// redacted. No session required; this backs the read-only browsing UI.
func (h *Handlers) HandleListGems(w http.ResponseWriter, r *http.Request) {
	workspace := h.workspace(r.URL.Query().Get("workspace"))
	limit := queryInt(r, "limit", 200)

	gemList, err := h.store.List(r.Context(), workspace, limit)
	if err != nil {
		h.logger.Error("list gems failed", "workspace", workspace, "error", err)
		writeError(w, r, http.StatusInternalServerError, "storage_error", "could not list gems")
		return
	}
	out := make([]model.Gem, 0, len(gemList))
	for _, g := range gemList {
		out = append(out, redactGem(g))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"workspace_id": workspace,
		"count":        len(out),
		"gems":         out,
	})
}

// HandleGetGem returns one gem's full definition, prompts included.
func (h *Handlers) HandleGetGem(w http.ResponseWriter, r *http.Request) {
	workspace := h.workspace(r.URL.Query().Get("workspace"))
	name := r.PathValue("name")

	gem, err := h.store.Get(r.Context(), workspace, name)
	switch {
	case errors.Is(err, model.ErrInvalidName):
		writeError(w, r, http.StatusBadRequest, "invalid_name", "invalid gem name")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "gem not found")
	case err != nil:
		h.logger.Error("get gem failed", "gem", name, "error", err)
		writeError(w, r, http.StatusInternalServerError, "storage_error", "could not read gem")
	default:
		writeJSON(w, r, http.StatusOK, map[string]any{
			"workspace_id": workspace,
			"gem":          gem,
		})
	}
}
