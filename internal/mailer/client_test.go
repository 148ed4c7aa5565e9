package mailer

import (
	"context"
	"encoding/json"
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
	return NewClient(config.Mail{
		APIKey:  "re_test",
		BaseURL: url,
		From:    "Reports <reports@example.com>",
		Timeout: time.Second,
	}, nil)
}

func TestClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.Equal(t, "job-1/a@example.com", r.Header.Get("Idempotency-Key"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Reports <reports@example.com>", req.From)
		assert.Equal(t, []string{"a@example.com"}, req.To)
		assert.Equal(t, "Benefits Alignment Report: Acme", req.Subject)

		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Send(context.Background(), Message{
		To:             "a@example.com",
		Subject:        "Benefits Alignment Report: Acme",
		HTML:           "<p>hi</p>",
		IdempotencyKey: "job-1/a@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "msg_123", id)
}

func TestClient_SendFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind config.ErrorKind
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantKind: config.ErrorKindTransient},
		{name: "server error", status: http.StatusBadGateway, wantKind: config.ErrorKindTransient},
		{name: "invalid recipient", status: http.StatusUnprocessableEntity, wantKind: config.ErrorKindTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Send(context.Background(), Message{To: "a@example.com", Subject: "s"})

			kind, _ := policy.Classify(err)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestClient_SendWithoutRecipient(t *testing.T) {
	_, err := newTestClient("http://unused").Send(context.Background(), Message{Subject: "s"})

	kind, _ := policy.Classify(err)
	assert.Equal(t, config.ErrorKindTerminal, kind)
}
