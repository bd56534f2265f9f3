// Package chat adapts the Slack platform surface: slash command
// parsing, signed-request verification, message delivery, file uploads
// and the multi-line input modal.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Command is one parsed inbound slash command or modal submission,
// normalized away from transport details.
type Command struct {
	WorkspaceID string
	UserID      string
	ChannelID   string
	TriggerID   string
	ResponseURL string
	Text        string
}

// Client is the outbound platform surface the engine and handlers need.
type Client interface {
	PostMessage(ctx context.Context, channelID, text string) error
	PostEphemeral(ctx context.Context, channelID, userID, text string) error
	OpenDirectMessage(ctx context.Context, userID string) (string, error)
	UploadFile(ctx context.Context, channelID, filename string, data []byte, title string) error
	OpenGemInputModal(ctx context.Context, triggerID, gemName string, public bool) error
}

// Respond posts text back through a slash-command response URL. Slack
// honors these URLs for 30 minutes, which comfortably covers deferred
// generations.
func Respond(ctx context.Context, httpClient *http.Client, responseURL, text string, public bool) error {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	responseType := "ephemeral"
	if public {
		responseType = "in_channel"
	}
	payload, err := json.Marshal(map[string]string{
		"response_type": responseType,
		"text":          text,
	})
	if err != nil {
		return fmt.Errorf("chat: marshal response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("chat: build response request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat: post response: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("chat: response url returned status %d: %s", resp.StatusCode, body)
	}
	return nil
}
