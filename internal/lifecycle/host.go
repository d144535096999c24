package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/logger"
)

// PollInterval is the delay between successive instance status queries.
// Exported as a variable so tests can override it for speed.
var PollInterval = time.Second

// MaxTransientErrors is the number of consecutive failed status queries
// tolerated inside a start or stop sequence before it gives up.
var MaxTransientErrors = 5

// HostTransition describes one change of the host power state.
type HostTransition struct {
	From   domain.HostPowerState
	To     domain.HostPowerState
	Status domain.HostStatus
}

// Host is the power state machine of the compute instance backing the
// fleet. Start and Stop sequences are serialized; Status never blocks on
// them.
type Host struct {
	provider     domain.ComputeProvider
	log          logrus.FieldLogger
	now          func() time.Time
	onTransition func(HostTransition)

	op sync.Mutex // held for a whole start or stop sequence

	mu     sync.RWMutex
	status domain.HostStatus
}

// HostOption configures a Host.
type HostOption func(*Host)

func WithHostLogger(log logrus.FieldLogger) HostOption {
	return func(h *Host) { h.log = log }
}

func WithHostClock(now func() time.Time) HostOption {
	return func(h *Host) { h.now = now }
}

// WithTransitionHook registers fn to run after every power state change.
// fn must not call back into the Host.
func WithTransitionHook(fn func(HostTransition)) HostOption {
	return func(h *Host) { h.onTransition = fn }
}

// NewHost creates a host controller in the Unknown state.
func NewHost(provider domain.ComputeProvider, opts ...HostOption) *Host {
	h := &Host{
		provider: provider,
		log:      logger.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithField("provider", provider.GetDisplayName())
	return h
}

// Status returns the last observed host status.
func (h *Host) Status() domain.HostStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Refresh queries the provider once and records the result.
func (h *Host) Refresh(ctx context.Context) (domain.HostStatus, error) {
	inst, err := h.provider.GetInstance(ctx)
	if err != nil {
		return h.Status(), fmt.Errorf("host: get instance: %w", err)
	}

	next := domain.HostStatus{
		State:      domain.ParseInstanceStatus(inst.Status),
		RawStatus:  inst.Status,
		ExternalIP: inst.ExternalIP,
		CheckedAt:  h.now(),
	}

	h.mu.Lock()
	prev := h.status
	h.status = next
	h.mu.Unlock()

	if prev.State != next.State {
		h.log.WithFields(logrus.Fields{
			"from":       prev.State.String(),
			"to":         next.State.String(),
			"host_state": next.RawStatus,
		}).Info("host power state changed")
		if h.onTransition != nil {
			h.onTransition(HostTransition{From: prev.State, To: next.State, Status: next})
		}
	}
	return next, nil
}

// Start powers the host on. A running host is left alone; a terminated
// host is started and a suspended one resumed. Any other state is polled
// until it resolves. There is no overall timeout beyond ctx.
func (h *Host) Start(ctx context.Context) error {
	h.op.Lock()
	defer h.op.Unlock()

	st, err := h.waitFor(ctx, domain.HostPowerState.Decisive)
	if err != nil {
		return fmt.Errorf("host: start: %w", err)
	}

	switch st.State {
	case domain.HostRunning:
		return nil
	case domain.HostTerminated:
		h.log.Info("starting host")
		err = h.provider.StartInstance(ctx)
	case domain.HostSuspended:
		h.log.Info("resuming host")
		err = h.provider.ResumeInstance(ctx)
	}
	if err != nil {
		return fmt.Errorf("host: start: %w", err)
	}

	if _, err := h.waitFor(ctx, is(domain.HostRunning)); err != nil {
		return fmt.Errorf("host: waiting for running: %w", err)
	}
	return nil
}

// Stop powers the host off. Only a running host receives a stop call; a
// terminated or suspended host is already down.
func (h *Host) Stop(ctx context.Context) error {
	h.op.Lock()
	defer h.op.Unlock()

	st, err := h.waitFor(ctx, domain.HostPowerState.Decisive)
	if err != nil {
		return fmt.Errorf("host: stop: %w", err)
	}
	if st.State != domain.HostRunning {
		return nil
	}

	h.log.Info("stopping host")
	if err := h.provider.StopInstance(ctx); err != nil {
		return fmt.Errorf("host: stop: %w", err)
	}

	if _, err := h.waitFor(ctx, is(domain.HostTerminated)); err != nil {
		return fmt.Errorf("host: waiting for terminated: %w", err)
	}
	return nil
}

// waitFor refreshes immediately and then every PollInterval until done
// reports true for the observed state.
func (h *Host) waitFor(ctx context.Context, done func(domain.HostPowerState) bool) (domain.HostStatus, error) {
	var consecutiveErrors int
	for {
		st, err := h.Refresh(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return st, ctx.Err()
			}
			if errors.Is(err, domain.ErrUnauthorized) {
				return st, err
			}
			consecutiveErrors++
			if consecutiveErrors >= MaxTransientErrors {
				return st, fmt.Errorf("after %d consecutive failures: %w", consecutiveErrors, err)
			}
			h.log.WithError(err).Warn("host status query failed, retrying")
		case done(st.State):
			return st, nil
		default:
			consecutiveErrors = 0
			h.log.WithField("host_state", st.RawStatus).Debug("waiting for host")
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-time.After(PollInterval):
		}
	}
}

func is(want domain.HostPowerState) func(domain.HostPowerState) bool {
	return func(s domain.HostPowerState) bool { return s == want }
}
