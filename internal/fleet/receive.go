package fleet

import (
	"context"
	"errors"

	"nathanbeddoewebdev/mcfleet/internal/crafty"
	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/retry"
)

// StreamHandle is one open event stream.
type StreamHandle interface {
	Next() (crafty.Event, error)
	Close() error
}

// StreamDialer opens event streams by server id.
type StreamDialer interface {
	Open(ctx context.Context, serverID int) (StreamHandle, error)
}

// DialerFunc adapts a function to StreamDialer.
type DialerFunc func(ctx context.Context, serverID int) (StreamHandle, error)

func (f DialerFunc) Open(ctx context.Context, serverID int) (StreamHandle, error) {
	return f(ctx, serverID)
}

// CraftyStreams adapts a crafty.Dialer to StreamDialer.
func CraftyStreams(d *crafty.Dialer) StreamDialer {
	return DialerFunc(func(ctx context.Context, serverID int) (StreamHandle, error) {
		s, err := d.Open(ctx, serverID)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// wantsStreamLocked reports whether the server is believed to be up.
// A server whose status is unknown keeps its stream while the last
// snapshot said it was running.
func (s *Server) wantsStreamLocked() bool {
	if s.phase.Active() {
		return true
	}
	return s.phase == domain.PhaseUnknown && s.haveSnapshot && s.snapshot.Running
}

func (s *Server) ensureStreamLocked() {
	if s.env.dialer == nil || s.streamActive || s.env.ctx.Err() != nil {
		return
	}
	s.streamActive = true
	go s.receive()
}

// releaseStreamLocked detaches the open stream and closes it outside the
// lock, since closing a dead connection can block on the close handshake.
// The receive loop then sees the server is no longer up and exits without
// reconnecting.
func (s *Server) releaseStreamLocked() {
	h := s.handle
	if h == nil {
		return
	}
	s.handle = nil
	go func() { _ = h.Close() }()
}

// receive is the server's single receive loop. It connects, feeds events
// to the state machine in arrival order and, after an abrupt failure,
// reconnects once for as long as the server is believed to be up. A close
// frame from the provider ends the loop without reconnecting.
func (s *Server) receive() {
	failures := 0
	for {
		if !s.keepStreaming() {
			return
		}

		h, err := s.env.dialer.Open(s.env.ctx, s.identity.ID)
		if err != nil {
			if s.env.ctx.Err() != nil {
				s.stopStreaming()
				return
			}
			failures++
			s.log.WithError(err).WithField("attempt", failures).Warn("stream connect failed")
			if !retry.Sleep(s.env.ctx, retry.Backoff(s.env.redial, failures)) {
				s.stopStreaming()
				return
			}
			continue
		}
		failures = 0

		if !s.attach(h) {
			_ = h.Close()
			return
		}
		s.log.Info("stream connected")

		err = s.consume(h)
		s.detach(h)
		_ = h.Close()

		if errors.Is(err, crafty.ErrStreamClosed) {
			s.log.Info("stream closed by provider")
			s.stopStreaming()
			return
		}
		if s.keepStreamingPeek() {
			s.log.WithError(err).Warn("stream dropped; reconnecting")
		}
	}
}

func (s *Server) consume(h StreamHandle) error {
	for {
		ev, err := h.Next()
		if err != nil {
			return err
		}
		s.handleEvent(ev)
	}
}

// keepStreaming reports whether the loop should (re)connect. When it
// reports false the loop is marked finished under the same lock, so a
// concurrent transition can start a fresh loop.
func (s *Server) keepStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wantsStreamLocked() && s.env.ctx.Err() == nil {
		return true
	}
	s.streamActive = false
	return false
}

func (s *Server) keepStreamingPeek() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wantsStreamLocked() && s.env.ctx.Err() == nil
}

func (s *Server) stopStreaming() {
	s.mu.Lock()
	s.streamActive = false
	s.mu.Unlock()
}

func (s *Server) attach(h StreamHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.wantsStreamLocked() || s.env.ctx.Err() != nil {
		s.streamActive = false
		return false
	}
	s.handle = h
	s.streamConnected = true
	return true
}

func (s *Server) detach(h StreamHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == h {
		s.handle = nil
	}
	s.streamConnected = false
}
