package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"nathanbeddoewebdev/mcfleet/internal/crafty"
	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/retry"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeSource implements SnapshotSource in memory.
type fakeSource struct {
	mu         sync.Mutex
	now        func() time.Time
	identities []domain.ServerIdentity
	listErr    error
	snapshots  map[int]domain.ServerSnapshot
	statusErr  map[int]error
	startErr   error
	stopErr    error
	calls      []string
	onStart    func(id int)
	onStop     func(id int)
	stops      chan int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		now:       time.Now,
		snapshots: make(map[int]domain.ServerSnapshot),
		statusErr: make(map[int]error),
		stops:     make(chan int, 16),
	}
}

func (f *fakeSource) set(snap domain.ServerSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snap.Identity.ID] = snap
	for _, id := range f.identities {
		if id.ID == snap.Identity.ID {
			return
		}
	}
	f.identities = append(f.identities, snap.Identity)
}

func (f *fakeSource) setRunning(id int, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshots[id]
	snap.Running = running
	f.snapshots[id] = snap
}

func (f *fakeSource) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSource) ListServers(_ context.Context) ([]domain.ServerIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.ServerIdentity(nil), f.identities...), nil
}

func (f *fakeSource) GetStatus(_ context.Context, id int) (*domain.ServerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statusErr[id]; err != nil {
		return nil, err
	}
	snap, ok := f.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("server %d: %w", id, domain.ErrNotFound)
	}
	snap.FetchedAt = f.now()
	return &snap, nil
}

func (f *fakeSource) StartServer(_ context.Context, id int) error {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("start %d", id))
	hook, err := f.onStart, f.startErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(id)
	}
	return nil
}

func (f *fakeSource) StopServer(_ context.Context, id int) error {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("stop %d", id))
	hook, err := f.onStop, f.stopErr
	f.mu.Unlock()
	f.stops <- id
	if err != nil {
		return err
	}
	if hook != nil {
		hook(id)
	}
	return nil
}

func (f *fakeSource) SendCommand(_ context.Context, id int, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("command %d %s", id, command))
	return nil
}

// fakeHandle is a scripted event stream.
type fakeHandle struct {
	events chan crafty.Event
	errs   chan error
	closed chan struct{}
	once   sync.Once

	// closeGate, when set, holds Close until it is closed, like a close
	// handshake on a dead connection.
	closeGate chan struct{}
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		events: make(chan crafty.Event),
		errs:   make(chan error),
		closed: make(chan struct{}),
	}
}

func (h *fakeHandle) Next() (crafty.Event, error) {
	select {
	case <-h.closed:
		return nil, errors.New("use of closed network connection")
	default:
	}
	select {
	case ev := <-h.events:
		return ev, nil
	case err := <-h.errs:
		return nil, err
	case <-h.closed:
		return nil, errors.New("use of closed network connection")
	}
}

func (h *fakeHandle) Close() error {
	h.once.Do(func() {
		if h.closeGate != nil {
			<-h.closeGate
		}
		close(h.closed)
	})
	return nil
}

func (h *fakeHandle) isClosed() bool {
	select {
	case <-h.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out fakeHandles and counts Open calls.
type fakeDialer struct {
	mu      sync.Mutex
	opens   int
	handles chan *fakeHandle

	closeGate chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{handles: make(chan *fakeHandle, 16)}
}

func (d *fakeDialer) Open(_ context.Context, _ int) (StreamHandle, error) {
	d.mu.Lock()
	d.opens++
	d.mu.Unlock()
	h := newFakeHandle()
	h.closeGate = d.closeGate
	d.handles <- h
	return h, nil
}

func (d *fakeDialer) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func (d *fakeDialer) next(t *testing.T) *fakeHandle {
	t.Helper()
	select {
	case h := <-d.handles:
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to open")
		return nil
	}
}

func identity(id int) domain.ServerIdentity {
	return domain.ServerIdentity{
		ID:   id,
		UUID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("server-%d", id))),
		Name: fmt.Sprintf("server-%d", id),
		Port: 25564 + id,
	}
}

func snapshotOf(id int, running bool, online int, started *time.Time, fetched time.Time) domain.ServerSnapshot {
	return domain.ServerSnapshot{
		Identity:    identity(id),
		Running:     running,
		OnlineCount: online,
		MaxPlayers:  20,
		Started:     started,
		FetchedAt:   fetched,
	}
}

func ago(now time.Time, d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func newTestRegistry(t *testing.T, source SnapshotSource, dialer StreamDialer, opts ...Option) *Registry {
	t.Helper()
	base := []Option{
		WithRedial(retry.Config{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
		WithAutoStopTimeout(time.Second),
	}
	r := NewRegistry(source, dialer, append(base, opts...)...)
	t.Cleanup(r.Close)
	return r
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func nextChange(t *testing.T, ch <-chan StateChange) StateChange {
	t.Helper()
	select {
	case c, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state change")
		return StateChange{}
	}
}

func phaseOf(r *Registry, id int) domain.Phase {
	srv, ok := r.Server(id)
	if !ok {
		return domain.PhaseUnknown
	}
	return srv.Phase()
}
