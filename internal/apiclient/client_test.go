package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/mcfleet/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://x", "://"} {
		if _, err := New(raw, nil); err == nil {
			t.Errorf("New(%q) expected error", raw)
		}
	}
}

func TestStartServer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/servers/2/start" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"ok":true,"address":"203.0.113.7:25566"}`))
	})

	res, err := c.StartServer(context.Background(), 2)
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	if !res.OK || res.Address != "203.0.113.7:25566" {
		t.Errorf("result = %+v", res)
	}
}

func TestSendCommand_Body(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	})

	if err := c.SendCommand(context.Background(), 1, "whitelist add steve"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"command": "whitelist add steve"}, got); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestHistory_Query(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.RawQuery; got != "limit=5&subject=host" {
			t.Errorf("query = %q", got)
		}
		w.Write([]byte(`[{"id":1,"kind":"host","subject":"host","from":"unknown","to":"running"}]`))
	})

	entries, err := c.History(context.Background(), 5, "host")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0].To != "running" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		is     error
		msg    string
	}{
		{"not found", http.StatusNotFound, `{"error":"server 9: resource not found"}`, domain.ErrNotFound, "server 9: resource not found"},
		{"bad gateway", http.StatusBadGateway, `{"error":"upstream"}`, domain.ErrProvider, "upstream"},
		{"plain body", http.StatusInternalServerError, `oops`, nil, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.GetServer(context.Background(), 9)
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.msg {
				t.Errorf("got %d %q", apiErr.Status, apiErr.Message)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("expected errors.Is(%v)", tt.is)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	c, err := New("http://127.0.0.1:1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Host(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
