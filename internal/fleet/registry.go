// Package fleet reconciles snapshot and stream signals into one state
// machine per game server and owns the set of tracked servers.
package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"nathanbeddoewebdev/mcfleet/internal/domain"
)

// SaveCommand is sent after a start request. A server that is already
// up answers with a "Saved the game" line, which confirms Running.
const SaveCommand = "save-all"

// SnapshotSource is the request/response side of the monitoring provider.
type SnapshotSource interface {
	ListServers(ctx context.Context) ([]domain.ServerIdentity, error)
	GetStatus(ctx context.Context, id int) (*domain.ServerSnapshot, error)
	StartServer(ctx context.Context, id int) error
	StopServer(ctx context.Context, id int) error
	SendCommand(ctx context.Context, id int, command string) error
}

// Registry owns the tracked servers. Servers are added the first time a
// snapshot for their UUID arrives and are never removed.
type Registry struct {
	env    *env
	cancel context.CancelFunc

	mu      sync.RWMutex
	servers map[uuid.UUID]*Server
	byID    map[int]uuid.UUID
}

// NewRegistry returns an empty registry. dialer may be nil, in which case
// no event streams are opened and the registry relies on snapshots alone.
func NewRegistry(source SnapshotSource, dialer StreamDialer, opts ...Option) *Registry {
	e := defaultEnv()
	for _, opt := range opts {
		opt(e)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.ctx = ctx
	e.source = source
	e.dialer = dialer
	e.notify = newNotifier()

	return &Registry{
		env:     e,
		cancel:  cancel,
		servers: make(map[uuid.UUID]*Server),
		byID:    make(map[int]uuid.UUID),
	}
}

// Close stops every receive loop and ends all subscriptions.
func (r *Registry) Close() {
	r.cancel()
	for _, srv := range r.all() {
		srv.mu.Lock()
		srv.releaseStreamLocked()
		srv.mu.Unlock()
	}
	r.env.notify.close()
}

// IdleThreshold returns the configured idle threshold.
func (r *Registry) IdleThreshold() float64 {
	return r.env.idleThreshold.Hours()
}

// Subscribe returns a channel receiving every phase transition in the
// order it happened, and a function ending the subscription.
func (r *Registry) Subscribe() (<-chan StateChange, func()) {
	return r.env.notify.subscribe()
}

// ApplySnapshot reconciles a snapshot into its server's state machine,
// creating the server on first sight. It is idempotent and safe to call
// concurrently with stream updates.
func (r *Registry) ApplySnapshot(snap domain.ServerSnapshot) {
	r.upsert(snap.Identity).applySnapshot(snap)
}

// ListServers passes through to the source without touching state.
func (r *Registry) ListServers(ctx context.Context) ([]domain.ServerIdentity, error) {
	return r.env.source.ListServers(ctx)
}

// Refresh lists the fleet and fetches every snapshot concurrently. A
// failed fetch marks that server Unknown and is otherwise skipped; only a
// failed listing is returned.
func (r *Registry) Refresh(ctx context.Context) error {
	servers, err := r.env.source.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("fleet: refresh: %w", err)
	}

	var g errgroup.Group
	if r.env.refreshLimit > 0 {
		g.SetLimit(r.env.refreshLimit)
	}
	for _, id := range servers {
		g.Go(func() error {
			if _, err := r.FetchStatus(ctx, id.ID); err != nil {
				r.env.log.WithError(err).WithField("server_id", id.ID).Warn("skipping server in refresh")
			}
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// FetchStatus fetches one snapshot and applies it.
func (r *Registry) FetchStatus(ctx context.Context, id int) (*domain.ServerSnapshot, error) {
	snap, err := r.env.source.GetStatus(ctx, id)
	if err != nil {
		if ctx.Err() == nil {
			if srv, ok := r.lookup(id); ok {
				srv.markUnknown(err)
			}
		}
		return nil, err
	}
	r.ApplySnapshot(*snap)
	return snap, nil
}

// States returns the state of every tracked server ordered by id.
func (r *Registry) States() []domain.ServerState {
	servers := r.all()
	states := make([]domain.ServerState, 0, len(servers))
	for _, srv := range servers {
		states = append(states, srv.State())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Identity.ID < states[j].Identity.ID })
	return states
}

// Server returns the tracked server with the given id.
func (r *Registry) Server(id int) (*Server, bool) {
	return r.lookup(id)
}

// StartServer starts one server and waits until it is confirmed up, ctx
// ends, or the server falls back to Stopped. The state machine keeps
// converging after a failed wait.
func (r *Registry) StartServer(ctx context.Context, id int) error {
	srv, err := r.serverFor(ctx, id)
	if err != nil {
		return err
	}

	action, err := srv.requestStart()
	if err != nil {
		return fmt.Errorf("fleet: start server %d: %w", id, err)
	}
	switch action {
	case startDone:
		return nil
	case startIssue:
		if err := r.env.source.StartServer(ctx, id); err != nil {
			srv.abortStart(err)
			return fmt.Errorf("fleet: start server %d: %w", id, err)
		}
		if err := r.env.source.SendCommand(ctx, id, SaveCommand); err != nil {
			srv.log.WithError(err).Debug("save probe failed")
		}
	}

	poll := func(ctx context.Context) { _, _ = r.FetchStatus(ctx, id) }
	err = srv.await(ctx, isUp, isStopped, poll, r.env.startPollInterval, r.env.startGrace)
	if err != nil {
		return fmt.Errorf("fleet: waiting for server %d to start: %w", id, err)
	}
	return nil
}

// StopServer stops one server and waits until it is confirmed Stopped or
// ctx ends.
func (r *Registry) StopServer(ctx context.Context, id int) error {
	srv, err := r.serverFor(ctx, id)
	if err != nil {
		return err
	}
	if err := r.env.source.StopServer(ctx, id); err != nil {
		return fmt.Errorf("fleet: stop server %d: %w", id, err)
	}

	poll := func(ctx context.Context) { _, _ = r.FetchStatus(ctx, id) }
	if err := srv.await(ctx, isStopped, nil, poll, r.env.stopPollInterval, 0); err != nil {
		return fmt.Errorf("fleet: waiting for server %d to stop: %w", id, err)
	}
	return nil
}

// SendCommand writes a console command to one server.
func (r *Registry) SendCommand(ctx context.Context, id int, command string) error {
	return r.env.source.SendCommand(ctx, id, command)
}

// serverFor returns the tracked server, fetching its snapshot first if it
// has not been seen yet.
func (r *Registry) serverFor(ctx context.Context, id int) (*Server, error) {
	if srv, ok := r.lookup(id); ok {
		return srv, nil
	}
	if _, err := r.FetchStatus(ctx, id); err != nil {
		return nil, fmt.Errorf("fleet: server %d: %w", id, err)
	}
	if srv, ok := r.lookup(id); ok {
		return srv, nil
	}
	return nil, fmt.Errorf("fleet: server %d: %w", id, domain.ErrNotFound)
}

func (r *Registry) upsert(identity domain.ServerIdentity) *Server {
	r.mu.RLock()
	srv, ok := r.servers[identity.UUID]
	r.mu.RUnlock()
	if ok {
		return srv
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if srv, ok := r.servers[identity.UUID]; ok {
		return srv
	}
	srv = newServer(r.env, identity)
	r.servers[identity.UUID] = srv
	r.byID[identity.ID] = identity.UUID
	r.env.log.WithField("server_uuid", identity.UUID.String()).WithField("server", identity.Name).Info("tracking new server")
	return srv
}

func (r *Registry) lookup(id int) (*Server, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	srv, ok := r.servers[key]
	return srv, ok
}

func (r *Registry) all() []*Server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	servers := make([]*Server, 0, len(r.servers))
	for _, srv := range r.servers {
		servers = append(servers, srv)
	}
	return servers
}

func isUp(p domain.Phase) bool {
	return p == domain.PhaseRunning || p == domain.PhaseIdle
}

func isStopped(p domain.Phase) bool {
	return p == domain.PhaseStopped
}
