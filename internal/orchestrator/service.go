// Package orchestrator wires the fleet registry, the host controller and
// the lifecycle controller together and exposes the consumer surface.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/fleet"
	"nathanbeddoewebdev/mcfleet/internal/history"
	"nathanbeddoewebdev/mcfleet/internal/lifecycle"
	"nathanbeddoewebdev/mcfleet/internal/logger"
)

// ErrHistoryUnavailable is returned by History when no repository is wired.
var ErrHistoryUnavailable = errors.New("history unavailable")

// Options tunes the service. Zero values fall back to the defaults.
type Options struct {
	IdleThreshold   time.Duration
	RefreshInterval time.Duration
	StartTimeout    time.Duration
	StopTimeout     time.Duration

	// Fleet is appended to the registry options built from the fields above.
	Fleet []fleet.Option
}

func (o Options) withDefaults() Options {
	if o.IdleThreshold <= 0 {
		o.IdleThreshold = fleet.DefaultIdleThreshold
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 5 * time.Minute
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = 120 * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 120 * time.Second
	}
	return o
}

// Deps are the external collaborators of the service.
type Deps struct {
	Source  fleet.SnapshotSource
	Dialer  fleet.StreamDialer
	Compute domain.ComputeProvider
	History history.Repository
	Log     logrus.FieldLogger
}

// Service is the orchestration glue and the consumer-facing surface.
type Service struct {
	registry   *fleet.Registry
	host       *lifecycle.Host
	controller *lifecycle.Controller
	history    history.Repository
	log        logrus.FieldLogger
	opts       Options
}

// StartResult reports the outcome of a start request.
type StartResult struct {
	OK      bool   `json:"ok"`
	Address string `json:"address,omitempty"`
}

// New builds the service from explicit dependencies.
func New(deps Deps, opts Options) *Service {
	opts = opts.withDefaults()
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}

	s := &Service{
		history: deps.History,
		log:     log,
		opts:    opts,
	}

	fleetOpts := []fleet.Option{
		fleet.WithLogger(log),
		fleet.WithIdleThreshold(opts.IdleThreshold),
		fleet.WithStopGrace(opts.StopTimeout),
	}
	s.registry = fleet.NewRegistry(deps.Source, deps.Dialer, append(fleetOpts, opts.Fleet...)...)
	s.host = lifecycle.NewHost(deps.Compute,
		lifecycle.WithHostLogger(log),
		lifecycle.WithTransitionHook(s.recordHost(deps.Compute.GetDisplayName())),
	)
	s.controller = lifecycle.NewController(s.registry, s.host, log)
	return s
}

// Registry exposes the fleet registry, e.g. to wire a snapshot sink.
func (s *Service) Registry() *fleet.Registry { return s.registry }

// Run refreshes the fleet and host, then drives the lifecycle controller
// and history recorder until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	lifecycleChanges, cancelLifecycle := s.registry.Subscribe()
	defer cancelLifecycle()
	historyChanges, cancelHistory := s.registry.Subscribe()
	defer cancelHistory()

	s.refresh(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.controller.Run(ctx, lifecycleChanges)
	}()
	go func() {
		defer wg.Done()
		s.recordServers(ctx, historyChanges)
	}()

	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.registry.Close()
			wg.Wait()
			return nil
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Service) refresh(ctx context.Context) {
	if err := s.registry.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("fleet refresh failed")
	}
	if _, err := s.host.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("host refresh failed")
	}
}

// FetchServers lists the servers known to the monitoring provider.
func (s *Service) FetchServers(ctx context.Context) ([]domain.ServerIdentity, error) {
	return s.registry.ListServers(ctx)
}

// GetServerStatus fetches and applies a fresh snapshot of one server.
func (s *Service) GetServerStatus(ctx context.Context, id int) (*domain.ServerSnapshot, error) {
	return s.registry.FetchStatus(ctx, id)
}

// StartServer starts the host and the server concurrently and waits for
// both within the start timeout. The error carries the cause when OK is
// false.
func (s *Service) StartServer(ctx context.Context, id int) (StartResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StartTimeout)
	defer cancel()

	log := s.log.WithField("server_id", id)
	var g errgroup.Group
	g.Go(func() error {
		if err := s.host.Start(ctx); err != nil {
			log.WithError(err).Warn("host failed to start")
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := s.registry.StartServer(ctx, id); err != nil {
			log.WithError(err).Warn("server failed to start")
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return StartResult{}, err
	}

	return StartResult{OK: true, Address: s.address(id)}, nil
}

func (s *Service) address(id int) string {
	ip := s.host.Status().ExternalIP
	srv, ok := s.registry.Server(id)
	if ip == "" || !ok {
		return ip
	}
	return net.JoinHostPort(ip, strconv.Itoa(srv.Identity().Port))
}

// StopServer stops one server and waits within the stop timeout. A
// successful stop nudges the lifecycle controller.
func (s *Service) StopServer(ctx context.Context, id int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StopTimeout)
	defer cancel()

	if err := s.registry.StopServer(ctx, id); err != nil {
		s.log.WithError(err).WithField("server_id", id).Warn("server failed to stop")
		return false, err
	}
	s.controller.Nudge()
	return true, nil
}

// SendCommand writes raw console input to one server.
func (s *Service) SendCommand(ctx context.Context, id int, command string) error {
	return s.registry.SendCommand(ctx, id, command)
}

// ListTrackedServers returns the reconciled state of every tracked server.
func (s *Service) ListTrackedServers() []domain.ServerState {
	return s.registry.States()
}

// HostStatus returns the last observed host status.
func (s *Service) HostStatus() domain.HostStatus {
	return s.host.Status()
}

// SubscribeStopped streams every transition to Stopped until cancel is
// called.
func (s *Service) SubscribeStopped() (<-chan fleet.StateChange, func()) {
	changes, cancelSub := s.registry.Subscribe()
	out := make(chan fleet.StateChange)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			cancelSub()
		})
	}

	go func() {
		defer close(out)
		for change := range changes {
			if change.To != domain.PhaseStopped {
				continue
			}
			select {
			case out <- change:
			case <-done:
				return
			}
		}
	}()
	return out, cancel
}

// History returns recorded transitions, optionally for one subject.
func (s *Service) History(limit int, subject string) ([]history.Entry, error) {
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if subject != "" {
		return s.history.ListBySubject(subject, limit)
	}
	return s.history.List(limit)
}

// Close releases the registry and the history repository.
func (s *Service) Close() error {
	s.registry.Close()
	if s.history == nil {
		return nil
	}
	if err := s.history.Close(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}
