package fleet

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"nathanbeddoewebdev/mcfleet/internal/logger"
	"nathanbeddoewebdev/mcfleet/internal/retry"
)

// Defaults for the registry's timing knobs.
const (
	DefaultIdleThreshold     = time.Hour
	DefaultStartGrace        = 15 * time.Second
	DefaultStopGrace         = 120 * time.Second
	DefaultStartPollInterval = 5 * time.Second
	DefaultStopPollInterval  = 2 * time.Second
	DefaultAutoStopTimeout   = 30 * time.Second
	DefaultRefreshLimit      = 4
)

// env carries the dependencies and settings shared by the registry and
// every server it tracks.
type env struct {
	ctx    context.Context
	source SnapshotSource
	dialer StreamDialer
	log    logrus.FieldLogger
	now    func() time.Time
	notify *notifier

	idleThreshold     time.Duration
	startGrace        time.Duration
	stopGrace         time.Duration
	startPollInterval time.Duration
	stopPollInterval  time.Duration
	autoStopTimeout   time.Duration
	refreshLimit      int
	redial            retry.Config
}

func defaultEnv() *env {
	return &env{
		log:               logger.Discard(),
		now:               time.Now,
		idleThreshold:     DefaultIdleThreshold,
		startGrace:        DefaultStartGrace,
		stopGrace:         DefaultStopGrace,
		startPollInterval: DefaultStartPollInterval,
		stopPollInterval:  DefaultStopPollInterval,
		autoStopTimeout:   DefaultAutoStopTimeout,
		refreshLimit:      DefaultRefreshLimit,
		redial:            retry.RedialConfig(),
	}
}

// Option configures a Registry.
type Option func(*env)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *env) { e.log = log }
}

// WithClock overrides the time source used for idle computation and
// transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

// WithIdleThreshold sets how long a server may run without players before
// it is considered idle.
func WithIdleThreshold(d time.Duration) Option {
	return func(e *env) { e.idleThreshold = d }
}

// WithStartGrace sets how long a Starting server ignores not-running
// reports, and how long a start wait runs before polling snapshots.
func WithStartGrace(d time.Duration) Option {
	return func(e *env) { e.startGrace = d }
}

// WithStopGrace sets how long a Stopping server may keep reporting
// running before it is considered up again.
func WithStopGrace(d time.Duration) Option {
	return func(e *env) { e.stopGrace = d }
}

// WithPollIntervals sets the snapshot poll cadence of start and stop waits.
func WithPollIntervals(start, stop time.Duration) Option {
	return func(e *env) {
		e.startPollInterval = start
		e.stopPollInterval = stop
	}
}

// WithAutoStopTimeout bounds the provider call issued for idle servers.
func WithAutoStopTimeout(d time.Duration) Option {
	return func(e *env) { e.autoStopTimeout = d }
}

// WithRefreshLimit caps concurrent snapshot fetches during Refresh.
func WithRefreshLimit(n int) Option {
	return func(e *env) { e.refreshLimit = n }
}

// WithRedial sets the backoff between failed stream connects.
func WithRedial(cfg retry.Config) Option {
	return func(e *env) { e.redial = cfg }
}
