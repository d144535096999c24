// Package crafty talks to the Crafty Controller monitoring service: the
// REST API for listings, snapshots and actions, and the per-server
// websocket stream for live console lines and detail updates.
package crafty

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/logger"
)

const maxResponseBytes = 4 << 20

// Client is the request/response client for the monitoring provider.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	tlsConfig  *tls.Config
	log        logrus.FieldLogger
	now        func() time.Time
	loc        *time.Location

	sinkMu sync.RWMutex
	sink   func(domain.ServerSnapshot)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for REST calls and the
// session handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithInsecureTLS disables certificate verification for providers using a
// self-signed certificate. It applies to REST calls and streams alike.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.tlsConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithClock overrides the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithTimeLocation sets the zone the provider's naive timestamps are read
// in. The default is UTC.
func WithTimeLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewClient returns a client for the provider rooted at baseURL, e.g.
// https://crafty.example:8443. token is the API bearer token.
func NewClient(baseURL string, token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("crafty: base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("crafty: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("crafty: base URL must be http or https, got %q", u.Scheme)
	}
	if token == "" {
		return nil, fmt.Errorf("crafty: token is required: %w", domain.ErrUnauthorized)
	}

	c := &Client{
		baseURL: u,
		token:   token,
		log:     logger.Discard(),
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.tlsConfig != nil {
			transport.TLSClientConfig = c.tlsConfig
		}
		c.httpClient = &http.Client{Timeout: 30 * time.Second, Transport: transport}
	}
	return c, nil
}

// SetSnapshotSink registers fn to receive every snapshot GetStatus
// returns successfully. Passing nil removes it.
func (c *Client) SetSnapshotSink(fn func(domain.ServerSnapshot)) {
	c.sinkMu.Lock()
	c.sink = fn
	c.sinkMu.Unlock()
}

// ListServers returns the identity of every server the provider manages.
// Entries without a valid UUID are skipped.
func (c *Client) ListServers(ctx context.Context) ([]domain.ServerIdentity, error) {
	data, err := c.do(ctx, http.MethodGet, nil, "", "servers")
	if err != nil {
		return nil, fmt.Errorf("crafty: list servers: %w", err)
	}

	var raw []identityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("crafty: list servers: %w: %w: %v", domain.ErrProvider, domain.ErrDecode, err)
	}

	servers := make([]domain.ServerIdentity, 0, len(raw))
	for _, r := range raw {
		id, err := r.toDomain()
		if err != nil {
			c.log.WithError(err).Warn("skipping server with undecodable identity")
			continue
		}
		servers = append(servers, id)
	}
	return servers, nil
}

// GetStatus fetches the current snapshot for one server and forwards it
// to the snapshot sink.
func (c *Client) GetStatus(ctx context.Context, id int) (*domain.ServerSnapshot, error) {
	data, err := c.do(ctx, http.MethodGet, nil, "", "servers", strconv.Itoa(id), "stats")
	if err != nil {
		return nil, fmt.Errorf("crafty: get status of server %d: %w", id, err)
	}

	var raw statsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("crafty: get status of server %d: %w: %w: %v", id, domain.ErrProvider, domain.ErrDecode, err)
	}
	identity, err := raw.Identity.toDomain()
	if err != nil {
		return nil, fmt.Errorf("crafty: get status of server %d: %w: %w", id, domain.ErrProvider, err)
	}

	snap := &domain.ServerSnapshot{
		Identity:    identity,
		Running:     bool(raw.Running),
		Description: string(raw.Desc),
		OnlineCount: int(raw.Online),
		MaxPlayers:  int(raw.Max),
		Started:     raw.Started.In(c.loc),
		FetchedAt:   c.now().UTC(),
	}

	c.sinkMu.RLock()
	sink := c.sink
	c.sinkMu.RUnlock()
	if sink != nil {
		sink(*snap)
	}
	return snap, nil
}

// StartServer asks the provider to launch the server process.
func (c *Client) StartServer(ctx context.Context, id int) error {
	if _, err := c.do(ctx, http.MethodPost, nil, "", "servers", strconv.Itoa(id), "action", "start_server"); err != nil {
		return fmt.Errorf("crafty: start server %d: %w", id, err)
	}
	return nil
}

// StopServer asks the provider to stop the server process.
func (c *Client) StopServer(ctx context.Context, id int) error {
	if _, err := c.do(ctx, http.MethodPost, nil, "", "servers", strconv.Itoa(id), "action", "stop_server"); err != nil {
		return fmt.Errorf("crafty: stop server %d: %w", id, err)
	}
	return nil
}

// SendCommand writes a raw console command to the server's stdin.
func (c *Client) SendCommand(ctx context.Context, id int, command string) error {
	body := strings.NewReader(command)
	if _, err := c.do(ctx, http.MethodPost, body, "text/plain", "servers", strconv.Itoa(id), "stdin"); err != nil {
		return fmt.Errorf("crafty: send command to server %d: %w", id, err)
	}
	return nil
}

// do performs one API round trip and returns the envelope payload.
func (c *Client) do(ctx context.Context, method string, body io.Reader, contentType string, elem ...string) (json.RawMessage, error) {
	endpoint := c.baseURL.JoinPath(append([]string{"api", "v2"}, elem...)...)

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrTransport, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && env.Status != "" {
			msg = env.message()
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", statusError(resp.StatusCode), resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %w: %v", domain.ErrProvider, domain.ErrDecode, decodeErr)
	}
	if env.Status != "ok" {
		return nil, fmt.Errorf("%w: %s", domain.ErrProvider, env.message())
	}
	return env.Data, nil
}

func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return domain.ErrProvider
	}
}
