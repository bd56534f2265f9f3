package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kaiwa-ai/gemrack/internal/auth"
	"github.com/kaiwa-ai/gemrack/internal/chat"
	"github.com/kaiwa-ai/gemrack/internal/metrics"
	"github.com/kaiwa-ai/gemrack/internal/service/gems"
	"github.com/kaiwa-ai/gemrack/internal/storage"
	"github.com/kaiwa-ai/gemrack/internal/worker"
)

// Handlers holds the request handlers and their dependencies.
type Handlers struct {
	engine   *gems.Engine
	store    storage.GemStore
	recorder metrics.Recorder
	sessions *auth.SessionManager
	chat     chat.Client
	pool     *worker.Pool
	logger   *slog.Logger

	signingSecret      string
	defaultWorkspaceID string
	version            string
}

// HandlersDeps carries everything Handlers needs. Chat and Sessions may
// be nil; the corresponding surfaces degrade gracefully.
type HandlersDeps struct {
	Engine   *gems.Engine
	Store    storage.GemStore
	Recorder metrics.Recorder
	Sessions *auth.SessionManager
	Chat     chat.Client
	Pool     *worker.Pool
	Logger   *slog.Logger

	SigningSecret      string
	DefaultWorkspaceID string
	Version            string
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	return &Handlers{
		engine:             deps.Engine,
		store:              deps.Store,
		recorder:           deps.Recorder,
		sessions:           deps.Sessions,
		chat:               deps.Chat,
		pool:               deps.Pool,
		logger:             deps.Logger,
		signingSecret:      deps.SigningSecret,
		defaultWorkspaceID: deps.DefaultWorkspaceID,
		version:            deps.Version,
	}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// slashResponse is the inline JSON answer to a slash command.
type slashResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// HandleSlashCommand verifies, parses and executes one /gem invocation.
// Static gems, definition commands and inline text generations answer
// synchronously; when the engine asks for multi-line input the handler
// opens a modal instead.
func (h *Handlers) HandleSlashCommand(w http.ResponseWriter, r *http.Request) {
	body, err := chat.VerifySignedRequest(r, h.signingSecret)
	if err != nil {
		h.logger.Warn("slash command rejected", "error", err)
		writeError(w, r, http.StatusUnauthorized, "bad_signature", "signature verification failed")
		return
	}
	cmd, err := chat.ParseSlashCommand(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "malformed slash command")
		return
	}

	outcome := h.engine.Handle(r.Context(), gems.Request{
		WorkspaceID: h.workspace(cmd.WorkspaceID),
		UserID:      cmd.UserID,
		ChannelID:   cmd.ChannelID,
		Text:        cmd.Text,
		Uploader:    h.uploader(),
	})

	if outcome.Modal != nil {
		h.openModal(w, r, cmd, outcome.Modal)
		return
	}
	respondSlash(w, outcome.Result)
}

func (h *Handlers) openModal(w http.ResponseWriter, r *http.Request, cmd chat.Command, modal *gems.ModalRequest) {
	sc, ok := h.chat.(*chat.SlackClient)
	if h.chat == nil || !ok || cmd.TriggerID == "" {
		respondSlash(w, gems.Result{
			Message: "Gem `" + modal.GemName + "` needs input. Pass it inline: `/gem " + modal.GemName + " <input...>`.",
		})
		return
	}
	if err := sc.OpenGemInputModalInChannel(r.Context(), cmd.TriggerID, modal.GemName, modal.Public, cmd.ChannelID); err != nil {
		h.logger.Error("open modal failed", "gem", modal.GemName, "error", err)
		respondSlash(w, gems.Result{
			Message: "Could not open the input dialog. Try again, or pass the input inline: `/gem " + modal.GemName + " <input...>`.",
		})
		return
	}
	// Empty 200 acknowledges the command; the modal takes over.
	w.WriteHeader(http.StatusOK)
}

// respondSlash writes the inline slash-command response. Failed results
// are always ephemeral.
func respondSlash(w http.ResponseWriter, res gems.Result) {
	responseType := "ephemeral"
	if res.Public && res.OK {
		responseType = "in_channel"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(slashResponse{
		ResponseType: responseType,
		Text:         res.Message,
	})
}

// HandleInteraction receives view submissions from the gem input modal.
// The submission is acknowledged immediately and executed on the worker
// pool; generation can take far longer than Slack's response budget.
func (h *Handlers) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	body, err := chat.VerifySignedRequest(r, h.signingSecret)
	if err != nil {
		h.logger.Warn("interaction rejected", "error", err)
		writeError(w, r, http.StatusUnauthorized, "bad_signature", "signature verification failed")
		return
	}
	cb, err := chat.ParseInteraction(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "malformed interaction payload")
		return
	}

	sub, ok := chat.ParseModalSubmission(cb)
	if !ok {
		// Not ours; acknowledge and move on.
		w.WriteHeader(http.StatusOK)
		return
	}

	task := worker.Task{
		Name: "gem-run:" + sub.GemName,
		Run: func(ctx context.Context) error {
			h.runSubmission(ctx, sub)
			return nil
		},
	}
	if err := h.pool.Submit(task); err != nil {
		h.logger.Warn("submission rejected", "gem", sub.GemName, "error", err)
		// Keep the modal open with an inline error.
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response_action": "errors",
			"errors": map[string]string{
				"gem_input_block": "The service is busy right now. Try again in a moment.",
			},
		})
		return
	}

	// Empty 200 closes the modal.
	w.WriteHeader(http.StatusOK)
}

// runSubmission executes a modal submission off the request thread and
// delivers the result back through the chat client. Failures here are
// logged only; there is no caller to report to.
func (h *Handlers) runSubmission(ctx context.Context, sub chat.ModalSubmission) {
	outcome := h.engine.Handle(ctx, gems.Request{
		WorkspaceID: h.workspace(sub.WorkspaceID),
		UserID:      sub.UserID,
		ChannelID:   sub.ChannelID,
		Text:        gems.BuildSubmission(sub.GemName, sub.Public, sub.Text),
		Uploader:    h.uploader(),
	})

	res := outcome.Result
	if outcome.Modal != nil {
		// An empty modal submission would loop; render it as an error.
		res = gems.Result{Message: "Input is empty. Paste the input for the gem and submit again."}
	}
	if res.Message == "" {
		return
	}
	h.deliver(ctx, sub, res)
}

func (h *Handlers) deliver(ctx context.Context, sub chat.ModalSubmission, res gems.Result) {
	if h.chat == nil {
		h.logger.Info("no chat client; dropping deferred result", "gem", sub.GemName, "ok", res.OK)
		return
	}

	var err error
	switch {
	case res.Public && res.OK && sub.ChannelID != "":
		err = h.chat.PostMessage(ctx, sub.ChannelID, res.Message)
	case sub.ChannelID != "":
		err = h.chat.PostEphemeral(ctx, sub.ChannelID, sub.UserID, res.Message)
	default:
		var dm string
		if dm, err = h.chat.OpenDirectMessage(ctx, sub.UserID); err == nil {
			err = h.chat.PostMessage(ctx, dm, res.Message)
		}
	}
	if err != nil {
		h.logger.Error("deliver deferred result failed",
			"gem", sub.GemName, "user", sub.UserID, "error", err)
	}
}

// uploader exposes the chat client to the engine's image path, keeping
// the nil case a true nil interface.
func (h *Handlers) uploader() gems.Uploader {
	if h.chat == nil {
		return nil
	}
	return h.chat
}

func (h *Handlers) workspace(id string) string {
	if id != "" {
		return id
	}
	return h.defaultWorkspaceID
}
