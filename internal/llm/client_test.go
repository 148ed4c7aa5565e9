package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(config.LLM{
		APIKey:    "test-key",
		BaseURL:   url,
		Model:     "claude-test",
		MaxTokens: 1024,
		Timeout:   time.Second,
	}, nil)
}

func TestClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, 1024, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "compare these", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Complete(context.Background(), "compare these")

	require.NoError(t, err)
	assert.Equal(t, "part one part two", text)
}

func TestClient_CompleteFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		retryAfter string
		wantKind   config.ErrorKind
		wantDelay  time.Duration
	}{
		{name: "overloaded", status: 529, body: `{"type":"error"}`, wantKind: config.ErrorKindTransient},
		{name: "rate limited with retry-after", status: http.StatusTooManyRequests, body: `{}`, retryAfter: "90", wantKind: config.ErrorKindTransient, wantDelay: 90 * time.Second},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":"prompt too long"}`, wantKind: config.ErrorKindTerminal},
		{name: "no text blocks", status: http.StatusOK, body: `{"content":[]}`, wantKind: config.ErrorKindParse},
		{name: "unreadable body", status: http.StatusOK, body: `not json`, wantKind: config.ErrorKindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Complete(context.Background(), "prompt")

			require.Error(t, err)
			kind, _ := policy.Classify(err)
			assert.Equal(t, tt.wantKind, kind)

			var ra *policy.RetryAfterError
			if tt.wantDelay > 0 {
				require.True(t, errors.As(err, &ra))
				assert.Equal(t, tt.wantDelay, ra.Delay)
			}
		})
	}
}

func TestClient_CompleteWithoutKey(t *testing.T) {
	c := NewClient(config.LLM{BaseURL: "http://unused"}, nil)

	_, err := c.Complete(context.Background(), "prompt")

	kind, _ := policy.Classify(err)
	assert.Equal(t, config.ErrorKindTerminal, kind)
}
