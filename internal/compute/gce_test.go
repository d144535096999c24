package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"

	"nathanbeddoewebdev/mcfleet/internal/domain"
)

type gceFake struct {
	mu     sync.Mutex
	status int
	calls  []string
}

func newTestGCE(t *testing.T, handler http.HandlerFunc) *GCE {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGCE(context.Background(), "proj", "europe-west2-b", "mc-host",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewGCE: %v", err)
	}
	return g
}

func (f *gceFake) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const instancePath = "/projects/proj/zones/europe-west2-b/instances/mc-host"
		w.Header().Set("Content-Type", "application/json")

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.status != 0 {
			w.WriteHeader(f.status)
			fmt.Fprintf(w, `{"error":{"code":%d,"message":"denied"}}`, f.status)
			return
		}

		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, instancePath):
			f.calls = append(f.calls, "get")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"name":   "mc-host",
				"status": "RUNNING",
				"networkInterfaces": []any{
					map[string]any{"accessConfigs": []any{map[string]any{"natIP": "203.0.113.9"}}},
				},
			})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, instancePath+"/start"):
			f.calls = append(f.calls, "start")
			_, _ = w.Write([]byte(`{"name":"op-start","status":"RUNNING"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, instancePath+"/resume"):
			f.calls = append(f.calls, "resume")
			_, _ = w.Write([]byte(`{"name":"op-resume","status":"RUNNING"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, instancePath+"/stop"):
			f.calls = append(f.calls, "stop")
			_, _ = w.Write([]byte(`{"name":"op-stop","status":"RUNNING"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestGCE_Operations(t *testing.T) {
	f := &gceFake{}
	g := newTestGCE(t, f.handler(t))
	ctx := context.Background()

	inst, err := g.GetInstance(ctx)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	want := &domain.ComputeInstance{Status: "RUNNING", ExternalIP: "203.0.113.9"}
	if diff := cmp.Diff(want, inst); diff != "" {
		t.Errorf("instance mismatch (-want +got):\n%s", diff)
	}

	if err := g.StartInstance(ctx); err != nil {
		t.Fatalf("StartInstance: %v", err)
	}
	if err := g.ResumeInstance(ctx); err != nil {
		t.Fatalf("ResumeInstance: %v", err)
	}
	if err := g.StopInstance(ctx); err != nil {
		t.Fatalf("StopInstance: %v", err)
	}

	if diff := cmp.Diff([]string{"get", "start", "resume", "stop"}, f.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestGCE_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadRequest, domain.ErrProvider},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := &gceFake{status: tt.status}
			g := newTestGCE(t, f.handler(t))

			_, err := g.GetInstance(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewGCE_RequiresIdentifiers(t *testing.T) {
	if _, err := NewGCE(context.Background(), "proj", "", "mc-host", option.WithoutAuthentication()); err == nil {
		t.Fatal("expected error for missing zone")
	}
}

func TestNatIP_NoAccessConfig(t *testing.T) {
	g := newTestGCE(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"mc-host","status":"TERMINATED","networkInterfaces":[{"accessConfigs":[]}]}`))
	})

	inst, err := g.GetInstance(context.Background())
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if inst.ExternalIP != "" || inst.Status != "TERMINATED" {
		t.Errorf("got %+v", inst)
	}
}
