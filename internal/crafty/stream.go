package crafty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/retry"
)

// Stream event tags.
const (
	EventNewLine       = "vterm_new_line"
	EventServerDetails = "update_server_details"
)

// ErrStreamClosed is returned by Stream.Next when the provider ended the
// stream with a close frame.
var ErrStreamClosed = errors.New("crafty: stream closed by provider")

// Event is a decoded stream frame the core acts on.
type Event interface {
	Tag() string
}

// LineEvent is one line of console output.
type LineEvent struct {
	Line string
}

func (LineEvent) Tag() string { return EventNewLine }

// DetailEvent is a structured server detail update.
type DetailEvent struct {
	ServerID int
	Detail   domain.LiveDetail
}

func (DetailEvent) Tag() string { return EventServerDetails }

// Dialer opens per-server event streams. It performs the session
// handshake once and reuses the resulting cookie until a dial is rejected.
type Dialer struct {
	client *Client
	ws     *websocket.Dialer
	retry  retry.Config

	mu   sync.Mutex
	xsrf string
}

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// WithDialRetry sets the retry policy for one Open call.
func WithDialRetry(cfg retry.Config) DialerOption {
	return func(d *Dialer) { d.retry = cfg }
}

// NewDialer returns a Dialer sharing the client's credentials and TLS
// settings.
func NewDialer(client *Client, opts ...DialerOption) *Dialer {
	d := &Dialer{
		client: client,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
			TLSClientConfig:  client.tlsConfig,
		},
		retry: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open connects to the stream for one server.
func (d *Dialer) Open(ctx context.Context, serverID int) (*Stream, error) {
	var conn *websocket.Conn
	err := retry.Do(ctx, d.retry, retry.IsRetryable, func() error {
		xsrf, err := d.sessionToken(ctx)
		if err != nil {
			return err
		}

		header := http.Header{}
		header.Set("Cookie", fmt.Sprintf("token=%s; _xsrf=%s", d.client.token, xsrf))

		c, resp, err := d.ws.DialContext(ctx, d.streamURL(serverID), header)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				// The session token may have expired; the next attempt redoes the handshake.
				d.invalidate()
				return fmt.Errorf("%w: stream rejected with HTTP %d", domain.ErrTransport, resp.StatusCode)
			}
			return fmt.Errorf("%w: %v", domain.ErrTransport, err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("crafty: open stream for server %d: %w", serverID, err)
	}

	return &Stream{
		conn:     conn,
		serverID: serverID,
		log:      d.client.log.WithField("server_id", serverID),
		now:      d.client.now,
		loc:      d.client.loc,
	}, nil
}

func (d *Dialer) streamURL(serverID int) string {
	u := *d.client.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = "page=%2Fpanel%2Fserver_detail&page_query_params=id%3D" + strconv.Itoa(serverID)
	return u.String()
}

// sessionToken returns the cached _xsrf value, fetching it from the
// provider root when absent.
func (d *Dialer) sessionToken(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.xsrf != "" {
		return d.xsrf, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.client.baseURL.JoinPath("/").String(), nil)
	if err != nil {
		return "", fmt.Errorf("building handshake request: %w", err)
	}
	resp, err := d.client.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: handshake: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "_xsrf" && cookie.Value != "" {
			d.xsrf = cookie.Value
			return d.xsrf, nil
		}
	}
	return "", fmt.Errorf("%w: handshake returned no _xsrf cookie (HTTP %d)", domain.ErrTransport, resp.StatusCode)
}

func (d *Dialer) invalidate() {
	d.mu.Lock()
	d.xsrf = ""
	d.mu.Unlock()
}

// Stream is one open event stream. Next must be called from a single
// goroutine; Close may be called from any.
type Stream struct {
	conn     *websocket.Conn
	serverID int
	log      logrus.FieldLogger
	now      func() time.Time
	loc      *time.Location

	closeOnce sync.Once
	closeErr  error
}

// Next blocks until the next meaningful event. Frames with other tags are
// skipped and undecodable frames are logged and dropped. A close frame
// from the provider yields ErrStreamClosed; any other failure wraps
// domain.ErrTransport.
func (s *Stream) Next() (Event, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, classifyReadError(err)
		}

		ev, err := decodeFrame(data, s.now, s.loc)
		if err != nil {
			s.log.WithError(err).Warn("dropping stream frame")
			continue
		}
		if ev != nil {
			return ev, nil
		}
	}
}

// Close ends the stream. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func classifyReadError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
		return fmt.Errorf("%w: code %d %s", ErrStreamClosed, closeErr.Code, closeErr.Text)
	}
	return fmt.Errorf("crafty: read stream: %w: %v", domain.ErrTransport, err)
}

// decodeFrame returns nil, nil for frames whose tag the core ignores.
func decodeFrame(data []byte, now func() time.Time, loc *time.Location) (Event, error) {
	var frame frameJSON
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: frame: %v", domain.ErrDecode, err)
	}

	switch frame.Event {
	case EventNewLine:
		var line lineJSON
		if err := json.Unmarshal(frame.Data, &line); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecode, frame.Event, err)
		}
		return LineEvent{Line: string(line.Line)}, nil

	case EventServerDetails:
		var detail detailJSON
		if err := json.Unmarshal(frame.Data, &detail); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecode, frame.Event, err)
		}
		return detail.toEvent(now().UTC(), loc), nil
	}
	return nil, nil
}

func (d detailJSON) toEvent(receivedAt time.Time, loc *time.Location) DetailEvent {
	players := make([]domain.PlayerSighting, 0, len(d.Players))
	for _, p := range d.Players {
		sighting := domain.PlayerSighting{Name: string(p.Name), Status: string(p.Status)}
		if seen := p.LastSeen.In(loc); seen != nil {
			sighting.LastSeen = *seen
		}
		players = append(players, sighting)
	}
	return DetailEvent{
		ServerID: int(d.ID),
		Detail: domain.LiveDetail{
			Running:     bool(d.Running),
			OnlineCount: int(d.Online),
			MaxPlayers:  int(d.Max),
			Started:     d.Started.In(loc),
			Players:     players,
			ReceivedAt:  receivedAt,
		},
	}
}
