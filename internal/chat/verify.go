package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/slack-go/slack"
)

// maxInboundBody caps inbound Slack payloads.
const maxInboundBody = 1 << 20

// VerifySignedRequest checks the Slack request signature and returns the
// raw body for downstream parsing. An empty signing secret skips
// verification, which is only acceptable for local development.
func VerifySignedRequest(r *http.Request, signingSecret string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBody))
	if err != nil {
		return nil, fmt.Errorf("chat: read request body: %w", err)
	}
	if signingSecret == "" {
		return body, nil
	}

	sv, err := slack.NewSecretsVerifier(r.Header, signingSecret)
	if err != nil {
		return nil, fmt.Errorf("chat: init signature verifier: %w", err)
	}
	if _, err := sv.Write(body); err != nil {
		return nil, fmt.Errorf("chat: hash request body: %w", err)
	}
	if err := sv.Ensure(); err != nil {
		return nil, fmt.Errorf("chat: signature mismatch: %w", err)
	}
	return body, nil
}

// ParseSlashCommand decodes an already-verified slash command body into
// a Command.
func ParseSlashCommand(body []byte) (Command, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Command{}, fmt.Errorf("chat: parse slash command: %w", err)
	}
	return Command{
		WorkspaceID: values.Get("team_id"),
		UserID:      values.Get("user_id"),
		ChannelID:   values.Get("channel_id"),
		TriggerID:   values.Get("trigger_id"),
		ResponseURL: values.Get("response_url"),
		Text:        values.Get("text"),
	}, nil
}

// ParseInteraction decodes an already-verified interaction payload
// (form-encoded with a JSON "payload" field).
func ParseInteraction(body []byte) (*slack.InteractionCallback, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("chat: parse interaction form: %w", err)
	}
	payload := values.Get("payload")
	if payload == "" {
		return nil, fmt.Errorf("chat: interaction payload missing")
	}
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		return nil, fmt.Errorf("chat: parse interaction payload: %w", err)
	}
	return &cb, nil
}
