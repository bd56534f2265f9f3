package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// SlackClient implements Client against the Slack Web API.
type SlackClient struct {
	api    *slack.Client
	logger *slog.Logger
}

// NewSlackClient returns a client, or nil when the bot token is empty so
// callers treat delivery as an absent collaborator.
func NewSlackClient(botToken string, logger *slog.Logger) *SlackClient {
	if botToken == "" {
		return nil
	}
	return &SlackClient{api: slack.New(botToken), logger: logger}
}

func (c *SlackClient) PostMessage(ctx context.Context, channelID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("chat: post message to %s: %w", channelID, err)
	}
	return nil
}

func (c *SlackClient) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	_, err := c.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("chat: post ephemeral to %s: %w", channelID, err)
	}
	return nil
}

func (c *SlackClient) OpenDirectMessage(ctx context.Context, userID string) (string, error) {
	ch, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", fmt.Errorf("chat: open dm with %s: %w", userID, err)
	}
	return ch.ID, nil
}

func (c *SlackClient) UploadFile(ctx context.Context, channelID, filename string, data []byte, title string) error {
	_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:  channelID,
		Filename: filename,
		FileSize: len(data),
		Reader:   bytes.NewReader(data),
		Title:    title,
	})
	if err != nil {
		return fmt.Errorf("chat: upload %s to %s: %w", filename, channelID, err)
	}
	return nil
}

// gemModalCallbackID identifies gem input modal submissions among
// interaction callbacks.
const gemModalCallbackID = "gem_input"

// modalMetadata rides in the view's private metadata so the submission
// handler knows which gem to run and with what visibility.
type modalMetadata struct {
	GemName   string `json:"gem_name"`
	Public    bool   `json:"public"`
	ChannelID string `json:"channel_id,omitempty"`
}

const (
	modalInputBlockID  = "gem_input_block"
	modalInputActionID = "gem_input_text"
)

func (c *SlackClient) OpenGemInputModal(ctx context.Context, triggerID, gemName string, public bool) error {
	return c.openGemInputModal(ctx, triggerID, modalMetadata{GemName: gemName, Public: public})
}

// OpenGemInputModalInChannel carries the invoking channel through the
// modal round trip so public results land where the command was typed.
func (c *SlackClient) OpenGemInputModalInChannel(ctx context.Context, triggerID, gemName string, public bool, channelID string) error {
	return c.openGemInputModal(ctx, triggerID, modalMetadata{GemName: gemName, Public: public, ChannelID: channelID})
}

func (c *SlackClient) openGemInputModal(ctx context.Context, triggerID string, meta modalMetadata) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("chat: marshal modal metadata: %w", err)
	}

	input := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "Paste the input for the gem", false, false),
		modalInputActionID,
	)
	input.Multiline = true

	view := slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      gemModalCallbackID,
		PrivateMetadata: string(metaJSON),
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "Run gem: "+meta.GemName, false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Run", false, false),
		Close:           slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(
				modalInputBlockID,
				slack.NewTextBlockObject(slack.PlainTextType, "Input", false, false),
				nil,
				input,
			),
		}},
	}

	if _, err := c.api.OpenViewContext(ctx, triggerID, view); err != nil {
		return fmt.Errorf("chat: open modal: %w", err)
	}
	return nil
}

// ModalSubmission is the decoded payload of a gem input modal.
type ModalSubmission struct {
	WorkspaceID string
	UserID      string
	ChannelID   string
	GemName     string
	Public      bool
	Text        string
}

// ParseModalSubmission extracts the gem submission from a view_submission
// callback; ok is false for callbacks belonging to other views.
func ParseModalSubmission(cb *slack.InteractionCallback) (ModalSubmission, bool) {
	if cb.Type != slack.InteractionTypeViewSubmission || cb.View.CallbackID != gemModalCallbackID {
		return ModalSubmission{}, false
	}
	var meta modalMetadata
	if err := json.Unmarshal([]byte(cb.View.PrivateMetadata), &meta); err != nil {
		return ModalSubmission{}, false
	}

	text := ""
	if cb.View.State != nil {
		if block, ok := cb.View.State.Values[modalInputBlockID]; ok {
			text = block[modalInputActionID].Value
		}
	}

	return ModalSubmission{
		WorkspaceID: cb.Team.ID,
		UserID:      cb.User.ID,
		ChannelID:   meta.ChannelID,
		GemName:     meta.GemName,
		Public:      meta.Public,
		Text:        text,
	}, true
}
