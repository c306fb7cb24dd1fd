package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/api"
	"github.com/phrazzld/dayplan-api/internal/api/shared"
)

// ErrStreamIncomplete is returned when a plan stream ends without a done or
// error event.
var ErrStreamIncomplete = errors.New("stream ended before the run finished")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("server returned %d: %s (trace %s)", e.StatusCode, e.Message, e.TraceID)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the Dayplan HTTP API on behalf of one token holder.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Client. A nil httpClient uses one without a timeout;
// requests are bounded by their context.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// CurrentPlan fetches the owner's most recent plan.
func (c *Client) CurrentPlan(ctx context.Context) (*api.PlanResponse, error) {
	var plan api.PlanResponse
	if err := c.getJSON(ctx, "/api/plans/current", &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// PlanForDate fetches the plan for a YYYY-MM-DD date.
func (c *Client) PlanForDate(ctx context.Context, date string) (*api.PlanResponse, error) {
	var plan api.PlanResponse
	if err := c.getJSON(ctx, "/api/plans/"+date, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// RequestRegeneration schedules a background regeneration of today's plan.
func (c *Client) RequestRegeneration(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/plans/regenerate", "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StreamRegeneration regenerates today's plan and calls onFragment with each
// committed fragment as it arrives. It returns the plan's ID once the run
// finishes. A run that fails after it started returns the plan ID together
// with the error.
func (c *Client) StreamRegeneration(ctx context.Context, onFragment func(string)) (uuid.UUID, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/plans/stream", "text/event-stream")
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var planID uuid.UUID
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
			continue
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
			continue
		case line != "":
			continue
		}

		switch event {
		case "started":
			var started api.StreamStarted
			if err := json.Unmarshal([]byte(data), &started); err != nil {
				return uuid.Nil, fmt.Errorf("invalid started event: %w", err)
			}
			planID = started.PlanID
		case "fragment":
			var fragment api.StreamFragment
			if err := json.Unmarshal([]byte(data), &fragment); err != nil {
				return planID, fmt.Errorf("invalid fragment event: %w", err)
			}
			onFragment(fragment.Text)
		case "error":
			var streamErr api.StreamError
			_ = json.Unmarshal([]byte(data), &streamErr)
			return planID, &APIError{StatusCode: resp.StatusCode, Message: streamErr.Error}
		case "done":
			return planID, nil
		}
		event, data = "", ""
	}
	if err := scanner.Err(); err != nil {
		return planID, fmt.Errorf("failed to read stream: %w", err)
	}
	return planID, ErrStreamIncomplete
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do sends a request and converts non-2xx responses into *APIError.
func (c *Client) do(ctx context.Context, method, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	apiErr := &APIError{StatusCode: resp.StatusCode, TraceID: resp.Header.Get(shared.TraceIDHeader)}
	var body shared.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return nil, apiErr
}
