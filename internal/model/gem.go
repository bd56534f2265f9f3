// Package model defines the core domain types shared across Gemrack packages.
package model

import "time"

// Input format identifiers. Execution branches on these raw values;
// human-readable labels live in the gems format registry.
const (
	InputFree           = "free_text"
	InputBulletPoints   = "bullet_points"
	InputJSON           = "json"
	InputURLList        = "url_list"
	InputSlackThreadURL = "slack_thread_url"
)

// Output format identifiers.
const (
	OutputPlainText    = "plain_text"
	OutputMarkdown     = "markdown"
	OutputJSON         = "json"
	OutputMarpMarkdown = "marp_markdown"
	OutputImageURL     = "image_url"
)

// Gem is a named, per-workspace directive: either static response text
// or an AI prompt template with declared input/output formats.
type Gem struct {
	WorkspaceID  string    `json:"workspace_id"`
	Name         string    `json:"name"`
	Summary      string    `json:"summary"`
	Body         string    `json:"body,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	InputFormat  string    `json:"input_format"`
	OutputFormat string    `json:"output_format"`
	Enabled      bool      `json:"enabled"`
	CreatedBy    *string   `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Static reports whether the gem is a static gem: execution returns Body
// verbatim and never touches the AI backend.
func (g Gem) Static() bool {
	return g.Body != ""
}

// GemUpsert carries the caller-supplied fields for a full-replace upsert.
// Name must already be validated and normalized.
type GemUpsert struct {
	WorkspaceID  string
	Name         string
	Summary      string
	Body         string
	SystemPrompt string
	InputFormat  string
	OutputFormat string
	CreatedBy    *string
}
