package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nathanbeddoewebdev/mcfleet/internal/crafty"
	"nathanbeddoewebdev/mcfleet/internal/domain"
)

// Server is the state machine for one tracked game server. Every field
// below mu is guarded by it; snapshot application, stream events and
// start/stop requests all take it, so each decision sees a consistent
// (phase, snapshot, idle) tuple.
type Server struct {
	env      *env
	identity domain.ServerIdentity
	log      logrus.FieldLogger

	mu             sync.Mutex
	phase          domain.Phase
	phaseSince     time.Time
	beforeStart    domain.Phase
	snapshot       domain.ServerSnapshot
	haveSnapshot   bool
	detail         *domain.LiveDetail
	lastPlayerAt   *time.Time
	idleHours      float64
	updatedAt      time.Time
	autoStopIssued bool
	changed        chan struct{}

	streamActive    bool
	streamConnected bool
	handle          StreamHandle
}

func newServer(e *env, identity domain.ServerIdentity) *Server {
	now := e.now()
	return &Server{
		env:      e,
		identity: identity,
		log: e.log.WithFields(logrus.Fields{
			"server_id":   identity.ID,
			"server_uuid": identity.UUID.String(),
			"server":      identity.Name,
		}),
		phase:      domain.PhaseUnknown,
		phaseSince: now,
		updatedAt:  now,
		changed:    make(chan struct{}),
	}
}

// Identity returns the server's identity.
func (s *Server) Identity() domain.ServerIdentity { return s.identity }

// Phase returns the current phase.
func (s *Server) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State returns a copy of the server's reconciled state.
func (s *Server) State() domain.ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Server) stateLocked() domain.ServerState {
	st := domain.ServerState{
		Identity:        s.identity,
		Phase:           s.phase,
		Snapshot:        s.snapshot,
		IdleHours:       s.idleHours,
		StreamConnected: s.streamConnected,
		PhaseSince:      s.phaseSince,
		UpdatedAt:       s.updatedAt,
	}
	if s.detail != nil {
		d := *s.detail
		d.Players = append([]domain.PlayerSighting(nil), s.detail.Players...)
		st.Detail = &d
	}
	if s.lastPlayerAt != nil {
		t := *s.lastPlayerAt
		st.LastPlayerPresenceAt = &t
	}
	return st
}

// applySnapshot reconciles a freshly fetched snapshot. Applying the same
// snapshot twice, or one older than the current, is a no-op.
func (s *Server) applySnapshot(snap domain.ServerSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveSnapshot && (s.snapshot.Equal(snap) || snap.FetchedAt.Before(s.snapshot.FetchedAt)) {
		return
	}

	now := s.env.now()
	s.snapshot = snap
	s.haveSnapshot = true
	s.updatedAt = now

	switch {
	case s.phase == domain.PhaseUnknown:
		if snap.Running {
			s.transitionLocked(domain.PhaseRunning, "snapshot reports running")
		} else {
			s.transitionLocked(domain.PhaseStopped, "snapshot reports not running")
		}

	case !snap.Running && s.phase != domain.PhaseStopped:
		if s.phase == domain.PhaseStarting && now.Sub(s.phaseSince) < s.env.startGrace {
			s.log.Debug("ignoring not-running snapshot during start grace")
			break
		}
		s.log.WithFields(logrus.Fields{
			"consistency": true,
			"phase":       s.phase.String(),
		}).Warn("snapshot reports not running; correcting phase to stopped")
		s.transitionLocked(domain.PhaseStopped, "snapshot reports not running")

	case snap.Running && s.phase == domain.PhaseStopped:
		s.log.WithFields(logrus.Fields{
			"consistency": true,
			"error":       domain.ErrInconsistent.Error(),
		}).Warn("snapshot reports running while phase is stopped")

	case snap.Running && s.phase == domain.PhaseStarting:
		s.transitionLocked(domain.PhaseRunning, "snapshot reports running")

	case snap.Running && s.phase == domain.PhaseStopping && now.Sub(s.phaseSince) > s.env.stopGrace:
		s.transitionLocked(domain.PhaseRunning, "still running after stop grace")
	}

	if snap.Running && (s.phase == domain.PhaseRunning || s.phase == domain.PhaseIdle) {
		s.observePresenceLocked(snap.OnlineCount, nil)
		started := snap.Started
		if started == nil && s.detail != nil {
			started = s.detail.Started
		}
		s.evaluateIdleLocked(snap.OnlineCount, started)
	}

	if s.wantsStreamLocked() {
		s.ensureStreamLocked()
	}
}

// markUnknown records that the server's status could not be fetched.
func (s *Server) markUnknown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.WithError(err).Warn("status fetch failed")
	s.transitionLocked(domain.PhaseUnknown, "status fetch failed")
}

// handleEvent applies one stream event. Events for a server are handled
// in arrival order by its single receive loop.
func (s *Server) handleEvent(ev crafty.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case crafty.LineEvent:
		s.applyLineLocked(e.Line)
	case crafty.DetailEvent:
		s.applyDetailLocked(e.Detail)
	}
}

func (s *Server) applyLineLocked(line string) {
	switch {
	case s.phase == domain.PhaseStarting && (DonePattern.MatchString(line) || SavedPattern.MatchString(line)):
		s.transitionLocked(domain.PhaseRunning, "server finished starting")

	case s.phase.Active() && StoppingPattern.MatchString(line):
		s.transitionLocked(domain.PhaseStopping, "server is stopping")
	}
}

func (s *Server) applyDetailLocked(d domain.LiveDetail) {
	now := s.env.now()
	detail := d
	s.detail = &detail
	s.updatedAt = now

	if !d.Running {
		switch s.phase {
		case domain.PhaseStopped:
			return
		case domain.PhaseStarting:
			if now.Sub(s.phaseSince) < s.env.startGrace {
				return
			}
		case domain.PhaseRunning, domain.PhaseIdle:
			s.transitionLocked(domain.PhaseStopping, "detail update reports not running")
		}
		s.transitionLocked(domain.PhaseStopped, "detail update reports not running")
		return
	}

	switch s.phase {
	case domain.PhaseStarting, domain.PhaseUnknown:
		s.transitionLocked(domain.PhaseRunning, "detail update reports running")
	case domain.PhaseStopped:
		s.log.WithFields(logrus.Fields{
			"consistency": true,
			"error":       domain.ErrInconsistent.Error(),
		}).Warn("stream reports running while phase is stopped")
		return
	case domain.PhaseStopping:
		return
	}

	latest, ok := d.LatestSighting()
	if ok {
		s.observePresenceLocked(d.OnlineCount, &latest.LastSeen)
	} else {
		s.observePresenceLocked(d.OnlineCount, nil)
	}

	started := d.Started
	if started == nil && s.haveSnapshot {
		started = s.snapshot.Started
	}
	s.evaluateIdleLocked(d.OnlineCount, started)
}

// observePresenceLocked moves the last player presence forward. Players
// online means now; otherwise a cache sighting newer than what is known
// wins. A known presence is never discarded.
func (s *Server) observePresenceLocked(online int, sighting *time.Time) {
	if online > 0 {
		now := s.env.now()
		s.lastPlayerAt = &now
		return
	}
	if sighting == nil {
		return
	}
	if s.lastPlayerAt == nil || sighting.After(*s.lastPlayerAt) {
		t := *sighting
		s.lastPlayerAt = &t
	}
}

func (s *Server) evaluateIdleLocked(online int, started *time.Time) {
	s.idleHours = IdleHours(s.env.now(), s.lastPlayerAt, started)
	threshold := s.env.idleThreshold.Hours()

	switch s.phase {
	case domain.PhaseRunning:
		if online == 0 && s.idleHours > threshold {
			s.transitionLocked(domain.PhaseIdle, fmt.Sprintf("no players for %.2fh", s.idleHours))
		}
	case domain.PhaseIdle:
		if online > 0 {
			s.transitionLocked(domain.PhaseRunning, "players online")
		}
	}

	if s.phase == domain.PhaseIdle && !s.autoStopIssued {
		s.autoStopIssued = true
		go s.autoStop()
	}
}

// autoStop asks the provider to stop this idle server. A failed request
// is re-issued on the next idle evaluation.
func (s *Server) autoStop() {
	ctx, cancel := context.WithTimeout(s.env.ctx, s.env.autoStopTimeout)
	defer cancel()

	s.log.Info("stopping idle server")
	if err := s.env.source.StopServer(ctx, s.identity.ID); err != nil {
		s.log.WithError(err).Warn("idle stop request failed")
		s.mu.Lock()
		if s.phase == domain.PhaseIdle {
			s.autoStopIssued = false
		}
		s.mu.Unlock()
	}
}

type startAction int

const (
	startIssue startAction = iota
	startAwait
	startDone
)

// requestStart moves a stopped or unknown server to Starting and reports
// what the caller should do next.
func (s *Server) requestStart() (startAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case domain.PhaseRunning, domain.PhaseIdle:
		return startDone, nil
	case domain.PhaseStarting:
		return startAwait, nil
	case domain.PhaseStopping:
		return startIssue, fmt.Errorf("server %d is stopping: %w", s.identity.ID, domain.ErrConflict)
	}

	s.beforeStart = s.phase
	s.transitionLocked(domain.PhaseStarting, "start requested")
	return startIssue, nil
}

// abortStart reverts a Starting server whose start request was rejected.
func (s *Server) abortStart(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseStarting {
		return
	}
	s.log.WithError(err).Warn("start request failed")
	s.transitionLocked(s.beforeStart, "start request failed")
}

// transitionLocked moves to a new phase, publishes the change and opens
// or releases the event stream accordingly.
func (s *Server) transitionLocked(to domain.Phase, reason string) {
	from := s.phase
	if from == to {
		return
	}

	now := s.env.now()
	s.phase = to
	s.phaseSince = now
	s.updatedAt = now
	if from == domain.PhaseIdle {
		s.autoStopIssued = false
	}
	close(s.changed)
	s.changed = make(chan struct{})

	s.log.WithFields(logrus.Fields{
		"from":   from.String(),
		"to":     to.String(),
		"reason": reason,
	}).Info("server phase changed")

	s.env.notify.publish(StateChange{
		Identity: s.identity,
		From:     from,
		To:       to,
		Reason:   reason,
		At:       now,
		State:    s.stateLocked(),
	})

	switch {
	case s.wantsStreamLocked():
		s.ensureStreamLocked()
	case to == domain.PhaseStopped || to == domain.PhaseStopping:
		s.releaseStreamLocked()
	}
}

// await blocks until done reports true for the current phase, failed
// reports true, or ctx ends. After the given delay, poll runs on every
// tick of interval to pull fresh snapshots.
func (s *Server) await(ctx context.Context, done, failed func(domain.Phase) bool, poll func(context.Context), interval, delay time.Duration) error {
	var tick <-chan time.Time
	if poll != nil && interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	began := time.Now()

	for {
		s.mu.Lock()
		phase := s.phase
		changed := s.changed
		s.mu.Unlock()

		if done(phase) {
			return nil
		}
		if failed != nil && failed(phase) {
			return fmt.Errorf("server %d entered %s: %w", s.identity.ID, phase, domain.ErrConflict)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		case <-tick:
			if time.Since(began) >= delay {
				poll(ctx)
			}
		}
	}
}
