// Package apiclient is the typed client the CLI uses to reach a running
// daemon.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/mcfleet/internal/api"
	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/history"
)

// DefaultTimeout covers a full host and server start.
const DefaultTimeout = 5 * time.Minute

// Error is a non-2xx answer from the daemon.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the status back onto the domain error kinds.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadGateway:
		return domain.ErrProvider
	}
	return nil
}

// Client calls the daemon HTTP API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New returns a client for the daemon at baseURL. hc may be nil.
func New(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("apiclient: invalid daemon URL %q", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: u, httpClient: hc}, nil
}

// Health reports whether the daemon answers.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, &out)
}

// ListServers returns every server known to the monitoring provider.
func (c *Client) ListServers(ctx context.Context) ([]domain.ServerIdentity, error) {
	var out []domain.ServerIdentity
	err := c.do(ctx, http.MethodGet, "/servers", nil, nil, &out)
	return out, err
}

// GetServer returns a fresh snapshot of one server.
func (c *Client) GetServer(ctx context.Context, id int) (*domain.ServerSnapshot, error) {
	var out domain.ServerSnapshot
	if err := c.do(ctx, http.MethodGet, serverPath(id, ""), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartServer asks the daemon to start the host and one server.
func (c *Client) StartServer(ctx context.Context, id int) (api.StartResponse, error) {
	var out api.StartResponse
	err := c.do(ctx, http.MethodPost, serverPath(id, "start"), nil, nil, &out)
	return out, err
}

// StopServer asks the daemon to stop one server.
func (c *Client) StopServer(ctx context.Context, id int) (api.StopResult, error) {
	var out api.StopResult
	err := c.do(ctx, http.MethodPost, serverPath(id, "stop"), nil, nil, &out)
	return out, err
}

// SendCommand writes console input to one server.
func (c *Client) SendCommand(ctx context.Context, id int, command string) error {
	var out map[string]bool
	return c.do(ctx, http.MethodPost, serverPath(id, "command"), nil, api.CommandRequest{Command: command}, &out)
}

// Fleet returns the reconciled state of every tracked server.
func (c *Client) Fleet(ctx context.Context) ([]domain.ServerState, error) {
	var out []domain.ServerState
	err := c.do(ctx, http.MethodGet, "/fleet", nil, nil, &out)
	return out, err
}

// Host returns the last observed host status.
func (c *Client) Host(ctx context.Context) (domain.HostStatus, error) {
	var out domain.HostStatus
	err := c.do(ctx, http.MethodGet, "/host", nil, nil, &out)
	return out, err
}

// History returns recorded transitions, newest first.
func (c *Client) History(ctx context.Context, limit int, subject string) ([]history.Entry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if subject != "" {
		q.Set("subject", subject)
	}
	var out []history.Entry
	err := c.do(ctx, http.MethodGet, "/history", q, nil, &out)
	return out, err
}

func serverPath(id int, action string) string {
	p := "/servers/" + strconv.Itoa(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("apiclient: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w: %v", method, path, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read response: %w: %v", domain.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w: %v", domain.ErrDecode, err)
	}
	return nil
}
