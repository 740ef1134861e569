// Package remote talks to the runweek server over HTTP. Client persists
// swaps for the optimistic controller and fetches weeks for the view.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/optimistic"
	"github.com/claude/runweek/internal/weekview"
)

// Compile-time checks: Client satisfies the engine's ports.
var (
	_ optimistic.Persister = (*Client)(nil)
	_ weekview.Source      = (*Client)(nil)
)

const fetchAttempts = 3

// APIError is a non-200 response from the server. Message is the server's
// human readable error, empty when the body carried none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// UserMessage returns Message so the controller can show it verbatim.
func (e *APIError) UserMessage() string {
	return e.Message
}

// Client sends requests to the runweek server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	// backoff is the first retry delay; it doubles per attempt.
	backoff time.Duration
}

// NewClient creates a client for the server at baseURL. The per-call timeout
// comes from the caller's context.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		backoff:    time.Second,
	}
}

type swapRequest struct {
	Session1ID   string      `json:"session_1_id"`
	Session2ID   string      `json:"session_2_id"`
	Session1Kind models.Kind `json:"session_1_kind,omitempty"`
	Session2Kind models.Kind `json:"session_2_kind,omitempty"`
}

// SwapSessions asks the server to exchange the dates of first and second.
// It is never retried: a swap sent twice undoes itself.
func (c *Client) SwapSessions(ctx context.Context, kind models.Kind, first, second models.Session) error {
	var path string
	body := swapRequest{
		Session1ID: models.RawID(first).String(),
		Session2ID: models.RawID(second).String(),
	}
	switch kind {
	case models.KindWorkout:
		path = "/api/v1/workouts/swap"
	case models.KindStrengthening:
		path = "/api/v1/strengthening/swap"
	case models.KindMixed:
		path = "/api/v1/sessions/swap"
		body.Session1Kind = first.Kind()
		body.Session2Kind = second.Kind()
	default:
		return fmt.Errorf("remote: unknown swap kind %q", kind)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("remote: marshaling swap: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("remote: %s: %w", path, err)
	}
	return nil
}

// FetchWeek retrieves the sessions scheduled in [start, end). Transport
// errors and 5xx responses are retried up to 3 times with exponential
// backoff.
func (c *Client) FetchWeek(ctx context.Context, start, end time.Time) (models.WeekPayload, error) {
	// The server reads a date-only end as inclusive.
	params := url.Values{}
	params.Set("start", start.Format(time.DateOnly))
	params.Set("end", end.AddDate(0, 0, -1).Format(time.DateOnly))
	u := c.baseURL + "/api/v1/week?" + params.Encode()

	var lastErr error
	for attempt := range fetchAttempts {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff<<uint(attempt-1)); err != nil {
				return models.WeekPayload{}, fmt.Errorf("remote: fetching week: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return models.WeekPayload{}, fmt.Errorf("remote: create request: %w", err)
		}
		body, err := c.do(req)
		if err != nil {
			lastErr = err
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
				break
			}
			continue
		}

		var payload models.WeekPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return models.WeekPayload{}, fmt.Errorf("remote: decode week: %w", err)
		}
		return payload, nil
	}
	return models.WeekPayload{}, fmt.Errorf("remote: fetching week: %w", lastErr)
}

// do sends req with the API key and returns the body of a 200 response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts "error" from a JSON error body. Bodies that are not
// the server's error shape yield "".
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
