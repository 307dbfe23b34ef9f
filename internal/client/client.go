// Package client talks to the squad API over HTTP. It implements the gateway
// used by terminal sessions.
package client

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

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
)

const (
	DefaultBaseURL     = "http://localhost:3000"
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 4 << 10
)

// Config controls how the client reaches the API.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// ValidationProblems returns the server's list of rejected fields for a 400 response.
func ValidationProblems(err error) ([]string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && len(apiErr.Details) > 0 {
		return apiErr.Details, true
	}
	return nil, false
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient httpDoer
}

// New constructs a Client.
func New(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	var doer httpDoer = cfg.HTTPClient
	if cfg.HTTPClient == nil {
		doer = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{baseURL: base, httpClient: doer}
}

// Status fetches squad metadata, creating the squad on first visit.
func (c *Client) Status(ctx context.Context, squadID string) (squads.Status, error) {
	var out squads.Status
	err := c.do(ctx, http.MethodGet, "/api/squad-status/"+url.PathEscape(squadID), nil, &out)
	return out, err
}

// Purchase records a licence for the squad.
func (c *Client) Purchase(ctx context.Context, squadID string) error {
	return c.do(ctx, http.MethodPost, "/api/purchase/"+url.PathEscape(squadID), nil, nil)
}

// Players fetches the stored roster.
func (c *Client) Players(ctx context.Context, squadID string) ([]players.Player, error) {
	var out []players.Player
	if err := c.do(ctx, http.MethodGet, "/api/players/"+url.PathEscape(squadID), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []players.Player{}
	}
	return out, nil
}

// ReplacePlayers overwrites the stored roster with list.
func (c *Client) ReplacePlayers(ctx context.Context, squadID string, list []players.Player) error {
	if list == nil {
		list = []players.Player{}
	}
	return c.do(ctx, http.MethodPost, "/api/players/"+url.PathEscape(squadID), list, nil)
}

// Health reports whether the API answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Error     string   `json:"error"`
		Details   []string `json:"details"`
		RequestID string   `json:"requestId"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Details = payload.Details
		apiErr.RequestID = payload.RequestID
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
