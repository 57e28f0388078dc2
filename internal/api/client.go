package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to a running daemon's control surface.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(address string) *Client {
	base := address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Error is a non-2xx response from the daemon.
type Error struct {
	Status int
	ErrorDetail
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (c *Client) Steps(ctx context.Context) (StepsView, error) {
	var v StepsView
	err := c.do(ctx, http.MethodGet, "/v1/steps", &v)
	return v, err
}

func (c *Client) Start(ctx context.Context) (TrackingView, error) {
	var v TrackingView
	err := c.do(ctx, http.MethodPost, "/v1/tracking/start", &v)
	return v, err
}

func (c *Client) Stop(ctx context.Context) (TrackingView, error) {
	var v TrackingView
	err := c.do(ctx, http.MethodPost, "/v1/tracking/stop", &v)
	return v, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body errorBody
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return &Error{Status: resp.StatusCode, ErrorDetail: ErrorDetail{Code: "http_error", Message: resp.Status}}
		}
		return &Error{Status: resp.StatusCode, ErrorDetail: body.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
