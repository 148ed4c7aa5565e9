// Package mailer sends transactional email through the Resend HTTP API.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/httpjson"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	// IdempotencyKey makes a resend of the same message a no-op at the
	// provider.
	IdempotencyKey string
}

type Client struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.Mail, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers one message and returns the provider's message id.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if c.apiKey == "" {
		return "", policy.Terminal(errors.New("RESEND_API_KEY is not set"), "Email delivery is not configured.")
	}
	if strings.TrimSpace(msg.To) == "" {
		return "", policy.Terminal(errors.New("message has no recipient"), "The report has no recipient.")
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if msg.IdempotencyKey != "" {
		headers["Idempotency-Key"] = msg.IdempotencyKey
	}

	body := sendRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}

	resp, err := httpjson.Send(ctx, c.http, c.baseURL+"/emails", body, headers, c.logger, "mailer.http")
	if err != nil {
		return "", httpjson.Classify(resp, err,
			"The report email could not be sent yet. It will be retried.",
			fmt.Sprintf("The report email to %s was rejected.", msg.To))
	}

	var out sendResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		// the mail was accepted; a missing id only costs us the reference
		c.logger.Warn("mailer.decode_error", "to", msg.To, "error", err)
	}

	c.logger.Info("mailer.sent", "to", msg.To, "message_id", out.ID)
	return out.ID, nil
}
