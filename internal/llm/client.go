// Package llm talks to the Anthropic Messages API and turns its free-text
// answers into validated JSON.
package llm

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

const anthropicVersion = "2023-06-01"

type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
	logger    *slog.Logger
}

func NewClient(cfg config.LLM, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Complete sends a single user prompt and returns the concatenated text of
// the reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", policy.Terminal(errors.New("ANTHROPIC_API_KEY is not set"), "Analysis is not configured.")
	}

	body := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	resp, err := httpjson.Send(ctx, c.http, c.baseURL+"/v1/messages", body, headers, c.logger, "llm.http")
	if err != nil {
		return "", httpjson.Classify(resp, err,
			"The analysis service is busy. It will be retried.",
			"The analysis service rejected the request.")
	}

	var out messagesResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", policy.Parse(fmt.Errorf("decode messages response: %w", err), "The analysis service returned an unreadable response.")
	}

	var sb strings.Builder
	for _, b := range out.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return "", policy.Parse(errors.New("response has no text content"), "The analysis service returned an empty response.")
	}

	c.logger.Info("llm.complete", "model", c.model, "stop_reason", out.StopReason, "chars", sb.Len())
	return sb.String(), nil
}
