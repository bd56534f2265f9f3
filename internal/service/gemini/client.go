// Package gemini is a thin HTTP client for the Google generative
// language API, exposing exactly the two operations gem execution
// needs: text generation and image generation.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Wall-clock budgets per operation. Image generation regularly takes
// over a minute; callers on a chat acknowledgment deadline must defer
// to a worker before calling.
const (
	textTimeout  = 60 * time.Second
	imageTimeout = 90 * time.Second
)

// diagnostic body excerpts are capped so upstream HTML error pages
// cannot flood logs or chat messages.
const maxDiagnosticLen = 500

// Client calls the generative language API over plain HTTP.
type Client struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New returns a client, or nil when apiKey is empty so callers can treat
// an unconfigured backend as an absent collaborator.
func New(apiKey, textModel, imageModel string, logger *slog.Logger, opts ...Option) *Client {
	if apiKey == "" {
		return nil
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		textModel:  textModel,
		imageModel: imageModel,
		httpClient: &http.Client{Timeout: imageTimeout + 10*time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	SystemInstruction *content        `json:"systemInstruction,omitempty"`
	Contents          []content       `json:"contents"`
	GenerationConfig  *generateConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateConfig struct {
	ResponseMIMEType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
	AspectRatio        string   `json:"aspectRatio,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateText runs one text generation. responseMIMEType may be empty
// to let the model pick its own formatting. The result is the trimmed
// concatenation of the first candidate's text parts.
func (c *Client) GenerateText(ctx context.Context, systemInstruction, userText, responseMIMEType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, textTimeout)
	defer cancel()

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: userText}}}},
	}
	if systemInstruction != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemInstruction}}}
	}
	if responseMIMEType != "" {
		req.GenerationConfig = &generateConfig{ResponseMIMEType: responseMIMEType}
	}

	resp, err := c.generate(ctx, c.textModel, req)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: no candidates returned")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("gemini: candidate contained no text")
	}
	return out, nil
}

// GenerateImage runs one image generation and returns the decoded image
// bytes with their MIME type.
func (c *Client) GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, imageTimeout)
	defer cancel()

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generateConfig{
			ResponseModalities: []string{"IMAGE"},
			AspectRatio:        aspectRatio,
		},
	}

	resp, err := c.generate(ctx, c.imageModel, req)
	if err != nil {
		return nil, "", err
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, "", fmt.Errorf("gemini: decode image payload: %w", err)
			}
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return data, mime, nil
		}
	}
	return nil, "", fmt.Errorf("gemini: response contained no image payload")
}

func (c *Client) generate(ctx context.Context, model string, reqBody generateRequest) (*generateResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: call %s: %w", model, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	c.logger.Debug("gemini request finished",
		"model", model, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: %s returned status %d: %s", model, resp.StatusCode, diagnostic(body))
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("gemini: parse response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("gemini: api error: %s", out.Error.Message)
	}
	return &out, nil
}

func diagnostic(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxDiagnosticLen {
		s = s[:maxDiagnosticLen]
	}
	return s
}
