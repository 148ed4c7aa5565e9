// Package extract calls the document text-extraction service.
package extract

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

type Document struct {
	Text  string
	Pages int
}

type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg config.Extraction, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    cfg.URL,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type extractRequest struct {
	PDFURL string `json:"pdf_url"`
}

type extractResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Pages   int    `json:"pages"`
	Error   string `json:"error"`
}

// Extract asks the service for the plain text behind a signed document URL.
// Unavailability is transient. A rejected document, or one with no text
// layer, is terminal.
func (c *Client) Extract(ctx context.Context, documentURL string) (*Document, error) {
	resp, err := httpjson.Send(ctx, c.http, c.url, extractRequest{PDFURL: documentURL}, nil, c.logger, "extract.http")
	if err != nil {
		var se *httpjson.StatusError
		if errors.As(err, &se) && se.Status < 500 {
			if msg := serviceError(resp); msg != "" {
				err = fmt.Errorf("%w: %s", err, msg)
			}
		}
		return nil, httpjson.Classify(resp, err,
			"The document extraction service is unavailable. It will be retried.",
			"The document could not be processed.")
	}

	var out extractResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, policy.Parse(fmt.Errorf("decode extraction response: %w", err), "The document extraction service returned an unreadable response.")
	}

	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, policy.Terminal(fmt.Errorf("extraction failed: %s", msg), "The document could not be processed.")
	}

	if strings.TrimSpace(out.Text) == "" {
		return nil, policy.Terminal(
			errors.New("extraction returned empty text"),
			"No text could be read from the document. It may be a scanned PDF that needs OCR, or the file is corrupted.",
		)
	}

	return &Document{Text: out.Text, Pages: out.Pages}, nil
}

func serviceError(resp *httpjson.Response) string {
	if resp == nil {
		return ""
	}
	var out extractResponse
	if json.Unmarshal(resp.Body, &out) != nil {
		return ""
	}
	return out.Error
}
