package enhance

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(endpoint string) *Client {
	return New(Config{
		Endpoint: endpoint,
		APIKey:   "test-key",
		Model:    "test-model",
		Timeout:  5 * time.Second,
		RPS:      100,
	}, discardLogger())
}

func TestEnhance_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"<p>Improved.</p>"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	out, err := c.Enhance(context.Background(), "<p>improov</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>Improved.</p>", out)
}

func TestEnhance_StripsFencedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```html\\n<p>Hi</p>\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	out, err := c.Enhance(context.Background(), "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi</p>", out)
}

func TestEnhance_NotConfigured(t *testing.T) {
	c := newTestClient("")

	_, err := c.Enhance(context.Background(), "<p>hi</p>")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEnhance_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.Enhance(context.Background(), "<p>hi</p>")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestEnhance_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.Enhance(context.Background(), "<p>hi</p>")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", "<p>plain</p>", "<p>plain</p>"},
		{"html fence", "```html\n<p>hi</p>\n```", "<p>hi</p>"},
		{"bare fence", "```\n<p>hi</p>\n```", "<p>hi</p>"},
		{"whitespace around", "  ```html\n<p>hi</p>\n```  ", "<p>hi</p>"},
		{"inline fence with tag", "```html<p>hi</p>```", "<p>hi</p>"},
		{"inline fence without tag", "```<p>hi</p>```", "<p>hi</p>"},
		{"empty fence", "```", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.input))
		})
	}
}
