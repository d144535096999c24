package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/fleet"
	"nathanbeddoewebdev/mcfleet/internal/history"
	"nathanbeddoewebdev/mcfleet/internal/lifecycle"
)

type fakeSource struct {
	mu        sync.Mutex
	snapshots map[int]domain.ServerSnapshot
	startErr  error
	commands  []string
}

func newFakeSource(snaps ...domain.ServerSnapshot) *fakeSource {
	f := &fakeSource{snapshots: make(map[int]domain.ServerSnapshot)}
	for _, s := range snaps {
		f.snapshots[s.Identity.ID] = s
	}
	return f
}

func (f *fakeSource) setRunning(id int, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshots[id]
	snap.Running = running
	f.snapshots[id] = snap
}

func (f *fakeSource) ListServers(_ context.Context) ([]domain.ServerIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []domain.ServerIdentity
	for _, s := range f.snapshots {
		ids = append(ids, s.Identity)
	}
	return ids, nil
}

func (f *fakeSource) GetStatus(_ context.Context, id int) (*domain.ServerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("server %d: %w", id, domain.ErrNotFound)
	}
	snap.FetchedAt = time.Now()
	return &snap, nil
}

func (f *fakeSource) StartServer(_ context.Context, id int) error {
	f.mu.Lock()
	err := f.startErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.setRunning(id, true)
	return nil
}

func (f *fakeSource) StopServer(_ context.Context, id int) error {
	f.setRunning(id, false)
	return nil
}

func (f *fakeSource) SendCommand(_ context.Context, id int, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, fmt.Sprintf("%d %s", id, command))
	return nil
}

// fakeCompute flips instantly between RUNNING and TERMINATED.
type fakeCompute struct {
	mu     sync.Mutex
	status string
	starts int
	stops  int
}

func (f *fakeCompute) GetDisplayName() string { return "Fake" }

func (f *fakeCompute) GetInstance(_ context.Context) (*domain.ComputeInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.ComputeInstance{Status: f.status, ExternalIP: "203.0.113.7"}, nil
}

func (f *fakeCompute) StartInstance(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.status = "RUNNING"
	return nil
}

func (f *fakeCompute) ResumeInstance(ctx context.Context) error { return f.StartInstance(ctx) }

func (f *fakeCompute) StopInstance(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.status = "TERMINATED"
	return nil
}

func (f *fakeCompute) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func identity(id int) domain.ServerIdentity {
	return domain.ServerIdentity{
		ID:   id,
		UUID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("server-%d", id))),
		Name: fmt.Sprintf("server-%d", id),
		Port: 25564 + id,
	}
}

func snapshot(id int, running bool) domain.ServerSnapshot {
	started := time.Now().Add(-time.Minute)
	return domain.ServerSnapshot{Identity: identity(id), Running: running, OnlineCount: 1, MaxPlayers: 20, Started: &started}
}

func newTestService(t *testing.T, source *fakeSource, host *fakeCompute, repo history.Repository) *Service {
	t.Helper()
	orig := lifecycle.PollInterval
	lifecycle.PollInterval = time.Millisecond
	t.Cleanup(func() { lifecycle.PollInterval = orig })

	s := New(Deps{Source: source, Compute: host, History: repo}, Options{
		RefreshInterval: time.Hour,
		StartTimeout:    2 * time.Second,
		StopTimeout:     2 * time.Second,
		Fleet: []fleet.Option{
			fleet.WithStartGrace(10 * time.Millisecond),
			fleet.WithPollIntervals(5*time.Millisecond, 5*time.Millisecond),
		},
	})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func runService(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
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

func TestStartServer(t *testing.T) {
	t.Run("StartsHostAndServer", func(t *testing.T) {
		source := newFakeSource(snapshot(1, false))
		host := &fakeCompute{status: "TERMINATED"}
		s := newTestService(t, source, host, nil)

		res, err := s.StartServer(context.Background(), 1)
		if err != nil {
			t.Fatalf("StartServer: %v", err)
		}
		if !res.OK || res.Address != "203.0.113.7:25565" {
			t.Errorf("result = %+v", res)
		}
		if starts, _ := host.counts(); starts != 1 {
			t.Errorf("host started %d times, want 1", starts)
		}
		if got := s.ListTrackedServers()[0].Phase; got != domain.PhaseRunning {
			t.Errorf("phase = %s, want running", got)
		}
	})

	t.Run("ServerRejectsStart", func(t *testing.T) {
		source := newFakeSource(snapshot(1, false))
		source.startErr = fmt.Errorf("start: %w", domain.ErrProvider)
		s := newTestService(t, source, &fakeCompute{status: "RUNNING"}, nil)

		res, err := s.StartServer(context.Background(), 1)
		if res.OK || !errors.Is(err, domain.ErrProvider) {
			t.Fatalf("got %+v, %v; want failure with ErrProvider", res, err)
		}
	})

	t.Run("UnknownServer", func(t *testing.T) {
		s := newTestService(t, newFakeSource(), &fakeCompute{status: "RUNNING"}, nil)

		res, err := s.StartServer(context.Background(), 9)
		if res.OK || !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("got %+v, %v; want ErrNotFound", res, err)
		}
	})
}

func TestStopServer_StopsHostWhenFleetQuiesces(t *testing.T) {
	source := newFakeSource(snapshot(1, true), snapshot(2, false))
	host := &fakeCompute{status: "RUNNING"}
	s := newTestService(t, source, host, nil)
	runService(t, s)

	eventually(t, "fleet tracked", func() bool { return len(s.ListTrackedServers()) == 2 })

	ok, err := s.StopServer(context.Background(), 1)
	if !ok || err != nil {
		t.Fatalf("StopServer = %v, %v", ok, err)
	}

	eventually(t, "host stopped", func() bool {
		_, stops := host.counts()
		return stops == 1
	})
	if got := s.HostStatus().State; got != domain.HostTerminated {
		t.Errorf("host state = %s, want terminated", got)
	}
}

func TestSubscribeStopped(t *testing.T) {
	source := newFakeSource(snapshot(1, true))
	s := newTestService(t, source, &fakeCompute{status: "RUNNING"}, nil)
	if _, err := s.GetServerStatus(context.Background(), 1); err != nil {
		t.Fatalf("GetServerStatus: %v", err)
	}

	stopped, cancel := s.SubscribeStopped()
	defer cancel()

	if _, err := s.StopServer(context.Background(), 1); err != nil {
		t.Fatalf("StopServer: %v", err)
	}

	select {
	case change := <-stopped:
		if change.Identity.ID != 1 || change.To != domain.PhaseStopped {
			t.Errorf("unexpected change %+v", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no stopped notification")
	}
}

func TestHistory(t *testing.T) {
	t.Run("RecordsTransitions", func(t *testing.T) {
		repo, err := history.OpenAt(filepath.Join(t.TempDir(), "mcfleet.db"))
		if err != nil {
			t.Fatalf("OpenAt: %v", err)
		}
		source := newFakeSource(snapshot(1, false))
		s := newTestService(t, source, &fakeCompute{status: "TERMINATED"}, repo)
		runService(t, s)

		eventually(t, "history entries", func() bool {
			server, _ := s.History(10, "1")
			host, _ := s.History(10, "host")
			return len(server) >= 1 && len(host) >= 1
		})

		entries, err := s.History(10, "server-1")
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if entries[0].Kind != history.KindServer || entries[0].To != "stopped" {
			t.Errorf("latest server entry = %+v", entries[0])
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		s := newTestService(t, newFakeSource(), &fakeCompute{status: "RUNNING"}, nil)
		if _, err := s.History(10, ""); !errors.Is(err, ErrHistoryUnavailable) {
			t.Fatalf("expected ErrHistoryUnavailable, got %v", err)
		}
	})
}

func TestSendCommand(t *testing.T) {
	source := newFakeSource(snapshot(1, true))
	s := newTestService(t, source, &fakeCompute{status: "RUNNING"}, nil)

	if err := s.SendCommand(context.Background(), 1, "say hello"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if len(source.commands) != 1 || source.commands[0] != "1 say hello" {
		t.Errorf("commands = %v", source.commands)
	}
}
