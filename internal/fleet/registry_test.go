package fleet

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/mcfleet/internal/crafty"
	"nathanbeddoewebdev/mcfleet/internal/domain"
)

func TestRefresh(t *testing.T) {
	t.Run("PartialFailure", func(t *testing.T) {
		source := newFakeSource()
		now := time.Now()
		source.set(snapshotOf(1, true, 1, ago(now, time.Minute), now))
		source.set(snapshotOf(2, false, 0, nil, now))
		source.set(snapshotOf(3, false, 0, nil, now))
		source.statusErr[2] = fmt.Errorf("status: %w", domain.ErrTransport)

		r := newTestRegistry(t, source, nil)
		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}

		var got []int
		for _, st := range r.States() {
			got = append(got, st.Identity.ID)
		}
		if diff := cmp.Diff([]int{1, 3}, got); diff != "" {
			t.Errorf("tracked servers mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("FailureMarksTrackedServerUnknown", func(t *testing.T) {
		source := newFakeSource()
		now := time.Now()
		source.set(snapshotOf(1, false, 0, nil, now))
		r := newTestRegistry(t, source, nil)
		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if got := phaseOf(r, 1); got != domain.PhaseStopped {
			t.Fatalf("phase = %s, want stopped", got)
		}

		source.mu.Lock()
		source.statusErr[1] = fmt.Errorf("status: %w", domain.ErrProvider)
		source.mu.Unlock()
		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if got := phaseOf(r, 1); got != domain.PhaseUnknown {
			t.Errorf("phase = %s, want unknown", got)
		}
	})

	t.Run("ListFailure", func(t *testing.T) {
		source := newFakeSource()
		source.listErr = fmt.Errorf("list: %w", domain.ErrTransport)
		r := newTestRegistry(t, source, nil)

		err := r.Refresh(context.Background())
		if !errors.Is(err, domain.ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
	})

	t.Run("NeverRemovesServers", func(t *testing.T) {
		source := newFakeSource()
		now := time.Now()
		source.set(snapshotOf(1, false, 0, nil, now))
		source.set(snapshotOf(2, false, 0, nil, now))
		r := newTestRegistry(t, source, nil)
		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}

		source.mu.Lock()
		source.identities = source.identities[:1]
		source.mu.Unlock()
		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if got := len(r.States()); got != 2 {
			t.Errorf("tracked %d servers, want 2", got)
		}
	})
}

func TestStartServer(t *testing.T) {
	t.Run("ConfirmedByDoneLine", func(t *testing.T) {
		source := newFakeSource()
		source.set(snapshotOf(1, false, 0, nil, time.Now()))
		dialer := newFakeDialer()
		r := newTestRegistry(t, source, dialer)
		if _, err := r.FetchStatus(context.Background(), 1); err != nil {
			t.Fatalf("FetchStatus: %v", err)
		}

		errCh := make(chan error, 1)
		go func() { errCh <- r.StartServer(context.Background(), 1) }()

		h := dialer.next(t)
		eventually(t, "start issued", func() bool { return len(source.callLog()) >= 2 })
		h.events <- crafty.LineEvent{Line: `[Server thread/INFO]</span>: Done (8.102s)! For help, type "help"`}

		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("StartServer: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("StartServer did not return")
		}

		if got := phaseOf(r, 1); got != domain.PhaseRunning {
			t.Errorf("phase = %s, want running", got)
		}
		want := []string{"start 1", "command 1 save-all"}
		if diff := cmp.Diff(want, source.callLog()); diff != "" {
			t.Errorf("provider calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("AlreadyRunning", func(t *testing.T) {
		source := newFakeSource()
		now := time.Now()
		source.set(snapshotOf(1, true, 1, ago(now, time.Minute), now))
		r := newTestRegistry(t, source, nil)

		if err := r.StartServer(context.Background(), 1); err != nil {
			t.Fatalf("StartServer: %v", err)
		}
		if calls := source.callLog(); len(calls) != 0 {
			t.Errorf("expected no provider calls, got %v", calls)
		}
	})

	t.Run("CrashDuringStart", func(t *testing.T) {
		source := newFakeSource()
		source.set(snapshotOf(1, false, 0, nil, time.Now()))
		r := newTestRegistry(t, source, nil,
			WithStartGrace(20*time.Millisecond),
			WithPollIntervals(5*time.Millisecond, 5*time.Millisecond),
		)

		err := r.StartServer(context.Background(), 1)
		if err == nil {
			t.Fatal("expected start to fail when the server never comes up")
		}
		if got := phaseOf(r, 1); got != domain.PhaseStopped {
			t.Errorf("phase = %s, want stopped", got)
		}
	})

	t.Run("RejectedRevertsPhase", func(t *testing.T) {
		source := newFakeSource()
		source.set(snapshotOf(1, false, 0, nil, time.Now()))
		source.startErr = fmt.Errorf("start: %w", domain.ErrProvider)
		r := newTestRegistry(t, source, nil)

		err := r.StartServer(context.Background(), 1)
		if !errors.Is(err, domain.ErrProvider) {
			t.Fatalf("expected ErrProvider, got %v", err)
		}
		if got := phaseOf(r, 1); got != domain.PhaseStopped {
			t.Errorf("phase = %s, want stopped", got)
		}
	})

	t.Run("DeadlineLeavesStateMachineRunning", func(t *testing.T) {
		source := newFakeSource()
		source.set(snapshotOf(1, false, 0, nil, time.Now()))
		r := newTestRegistry(t, source, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		err := r.StartServer(ctx, 1)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if got := phaseOf(r, 1); got != domain.PhaseStarting {
			t.Errorf("phase = %s, want starting to continue converging", got)
		}
	})

	t.Run("UnknownServer", func(t *testing.T) {
		r := newTestRegistry(t, newFakeSource(), nil)
		err := r.StartServer(context.Background(), 42)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStopServer(t *testing.T) {
	source := newFakeSource()
	now := time.Now()
	source.set(snapshotOf(1, true, 1, ago(now, time.Minute), now))
	source.onStop = func(id int) { source.setRunning(id, false) }
	r := newTestRegistry(t, source, nil, WithPollIntervals(5*time.Millisecond, 5*time.Millisecond))
	if _, err := r.FetchStatus(context.Background(), 1); err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	changes, cancel := r.Subscribe()
	defer cancel()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelCtx()
	if err := r.StopServer(ctx, 1); err != nil {
		t.Fatalf("StopServer: %v", err)
	}

	c := nextChange(t, changes)
	if c.To != domain.PhaseStopped {
		t.Errorf("change to %s, want stopped", c.To)
	}
}

func TestSnapshotSinkAndRefreshApplyOnce(t *testing.T) {
	source := newFakeSource()
	now := time.Now()
	source.set(snapshotOf(1, true, 1, ago(now, time.Minute), now))
	r := newTestRegistry(t, source, nil)
	changes, cancel := r.Subscribe()
	defer cancel()

	snap, err := source.GetStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	// The same observation arriving through the sink and the registry.
	r.ApplySnapshot(*snap)
	r.ApplySnapshot(*snap)

	nextChange(t, changes)
	select {
	case c := <-changes:
		t.Fatalf("unexpected change %s -> %s", c.From, c.To)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_OrderAndCancel(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(t, newFakeSource(), nil, WithClock(clock.Now))
	changes, cancel := r.Subscribe()

	r.ApplySnapshot(snapshotOf(1, false, 0, nil, clock.Now()))
	srv, _ := r.Server(1)
	srv.requestStart()
	srv.handleEvent(crafty.DetailEvent{ServerID: 1, Detail: domain.LiveDetail{Running: true, OnlineCount: 1}})

	want := [][2]domain.Phase{
		{domain.PhaseUnknown, domain.PhaseStopped},
		{domain.PhaseStopped, domain.PhaseStarting},
		{domain.PhaseStarting, domain.PhaseRunning},
	}
	for i, w := range want {
		c := nextChange(t, changes)
		if c.From != w[0] || c.To != w[1] {
			t.Errorf("change %d = %s -> %s, want %s -> %s", i, c.From, c.To, w[0], w[1])
		}
		if c.State.Phase != w[1] {
			t.Errorf("change %d carries state phase %s, want %s", i, c.State.Phase, w[1])
		}
	}

	cancel()
	eventually(t, "subscription closed", func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	})
}
