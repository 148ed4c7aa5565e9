// Package httpjson sends JSON requests to third-party APIs and maps their
// failures onto the job failure classes.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
)

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Send POSTs body as JSON to url with the given headers. A non-2xx status is
// returned as a StatusError alongside the response.
func Send(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger, event string) (*Response, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}

	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error(event+".encode_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error(event+".build_request_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Info(event+".request", "req_id", reqID, "url", url, "content_length", len(bs))

	resp, err := client.Do(req)
	if err != nil {
		logger.Error(event+".send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn(event+".response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error(event+".read_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("read response: %w", err)
	}

	logger.Info(event+".response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}
	if resp.StatusCode/100 != 2 {
		return out, &StatusError{Status: resp.StatusCode, Body: truncate(string(raw), 500)}
	}
	return out, nil
}

type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status: %d: %s", e.Status, e.Body)
}

// Classify wraps a Send failure for the retry policy. Network failures,
// timeouts, 408, 429, 529 and 5xx are transient; other statuses are
// terminal. A Retry-After header on the response is carried along.
func Classify(resp *Response, err error, transientSummary, terminalSummary string) error {
	if err == nil {
		return nil
	}

	var se *StatusError
	if !errors.As(err, &se) {
		return policy.Transient(err, transientSummary)
	}

	switch {
	case se.Status == http.StatusRequestTimeout,
		se.Status == http.StatusTooManyRequests,
		se.Status == 529,
		se.Status >= 500:
		wrapped := policy.Transient(err, transientSummary)
		if d := retryAfter(resp); d > 0 {
			return policy.RetryAfter(d, wrapped)
		}
		return wrapped
	default:
		return policy.Terminal(err, terminalSummary)
	}
}

func retryAfter(resp *Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
