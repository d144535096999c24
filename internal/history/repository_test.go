package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func tempRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcfleet.db")
	r, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSave_AssignsIDAndTimestamp(t *testing.T) {
	r := tempRepo(t)

	entry := &Entry{Kind: KindServer, Subject: "1", Name: "survival", From: "stopped", To: "starting"}
	if err := r.Save(entry); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if entry.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestList_NewestFirst(t *testing.T) {
	r := tempRepo(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, to := range []string{"starting", "running", "idle"} {
		entry := &Entry{
			Kind:      KindServer,
			Subject:   "1",
			Name:      "survival",
			To:        to,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := r.Save(entry); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	entries, err := r.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.To)
	}
	if diff := cmp.Diff([]string{"idle", "running"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if !entries[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("timestamp = %s", entries[0].Timestamp)
	}
}

func TestListBySubject(t *testing.T) {
	r := tempRepo(t)

	for _, e := range []*Entry{
		{Kind: KindServer, Subject: "1", Name: "survival", To: "running"},
		{Kind: KindServer, Subject: "2", Name: "creative", To: "running"},
		{Kind: KindHost, Subject: "host", Name: "Hetzner", To: "running"},
	} {
		if err := r.Save(e); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	tests := []struct {
		subject string
		want    int
	}{
		{"1", 1},
		{"creative", 1},
		{"host", 1},
		{"missing", 0},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			entries, err := r.ListBySubject(tt.subject, 10)
			if err != nil {
				t.Fatalf("ListBySubject failed: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestPrune(t *testing.T) {
	r := tempRepo(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	old := &Entry{Kind: KindHost, Subject: "host", To: "terminated", Timestamp: now.Add(-48 * time.Hour)}
	recent := &Entry{Kind: KindHost, Subject: "host", To: "running", Timestamp: now.Add(-time.Hour)}
	for _, e := range []*Entry{old, recent} {
		if err := r.Save(e); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	n, err := r.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d entries, want 1", n)
	}

	entries, err := r.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].To != "running" {
		t.Errorf("remaining entries = %+v", entries)
	}
}
