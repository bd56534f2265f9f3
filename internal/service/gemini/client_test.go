package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("test-key", "text-model", "image-model", testLogger(), WithBaseURL(srv.URL))
	require.NotNil(t, c)
	return c
}

func TestNewWithoutKeyReturnsNil(t *testing.T) {
	assert.Nil(t, New("", "m", "m", testLogger()))
}

func TestGenerateText(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Hello "},{"text":"world"}]}}]}`)
	})

	out, err := c.GenerateText(context.Background(), "be brief", "say hello", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", out)
	assert.Equal(t, "/models/text-model:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Contains(t, gotBody, "systemInstruction")

	cfg, ok := gotBody["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "text/plain", cfg["responseMimeType"])
}

func TestGenerateTextOmitsEmptyMIMEHint(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	})

	_, err := c.GenerateText(context.Background(), "", "hi", "")
	require.NoError(t, err)
	assert.NotContains(t, gotBody, "generationConfig")
	assert.NotContains(t, gotBody, "systemInstruction")
}

func TestGenerateTextNoCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[]}`)
	})

	_, err := c.GenerateText(context.Background(), "", "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestGenerateTextUpstreamStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, strings.Repeat("x", 2000))
	})

	_, err := c.GenerateText(context.Background(), "", "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	// Diagnostic excerpt is capped.
	assert.Less(t, len(err.Error()), 700)
}

func TestGenerateTextAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":{"message":"quota exhausted"}}`)
	})

	_, err := c.GenerateText(context.Background(), "", "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestGenerateImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"`+payload+`"}}]}}]}`)
	})

	data, mime, err := c.GenerateImage(context.Background(), "a red fox", "1:1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, "/models/image-model:generateContent", gotPath)
}

func TestGenerateImageNoPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"cannot draw that"}]}}]}`)
	})

	_, _, err := c.GenerateImage(context.Background(), "a red fox", "1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image payload")
}

func TestGenerateImageBadBase64(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"$$$not-base64$$$"}}]}}]}`)
	})

	_, _, err := c.GenerateImage(context.Background(), "a red fox", "1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode image payload")
}
