package compute

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"nathanbeddoewebdev/mcfleet/internal/auth"
	"nathanbeddoewebdev/mcfleet/internal/domain"
)

// Hetzner controls one Hetzner Cloud server as the fleet host.
type Hetzner struct {
	client   *hcloud.Client
	serverID int64
}

// NewHetzner creates a Hetzner host for the given server id. Default
// options (application name) are applied first; callers can override them.
func NewHetzner(serverID int64, opts ...hcloud.ClientOption) *Hetzner {
	defaults := []hcloud.ClientOption{
		hcloud.WithApplication("mcfleet", "0.1.0"),
	}
	return &Hetzner{
		client:   hcloud.NewClient(append(defaults, opts...)...),
		serverID: serverID,
	}
}

// RegisterHetzner registers the Hetzner factory with the global registry.
func RegisterHetzner() {
	Register("hetzner", func(s Settings, store auth.Store) (domain.ComputeProvider, error) {
		if s.HetznerServerID == 0 {
			return nil, errors.New("hetzner: server id is required")
		}
		token, _, err := auth.Resolve(store, auth.TokenHetzner)
		if err != nil {
			return nil, fmt.Errorf("hetzner auth: %w", err)
		}
		return NewHetzner(s.HetznerServerID, hcloud.WithToken(token)), nil
	})
}

func (h *Hetzner) GetDisplayName() string {
	return "Hetzner"
}

// GetInstance maps the Hetzner status onto the compute vocabulary:
// running is RUNNING, off is TERMINATED, anything else is in transition.
func (h *Hetzner) GetInstance(ctx context.Context) (*domain.ComputeInstance, error) {
	server, _, err := h.client.Server.GetByID(ctx, h.serverID)
	if err != nil {
		return nil, hetznerError("get server", err)
	}
	if server == nil {
		return nil, fmt.Errorf("hetzner: server %d: %w", h.serverID, domain.ErrNotFound)
	}

	inst := &domain.ComputeInstance{Status: hetznerStatus(server.Status)}
	if !server.PublicNet.IPv4.IsUnspecified() {
		inst.ExternalIP = server.PublicNet.IPv4.IP.String()
	}
	return inst, nil
}

func (h *Hetzner) StartInstance(ctx context.Context) error {
	if _, _, err := h.client.Server.Poweron(ctx, &hcloud.Server{ID: h.serverID}); err != nil {
		return hetznerError("power on", err)
	}
	return nil
}

// ResumeInstance powers the server on; Hetzner has no suspended state.
func (h *Hetzner) ResumeInstance(ctx context.Context) error {
	return h.StartInstance(ctx)
}

// StopInstance requests a graceful ACPI shutdown.
func (h *Hetzner) StopInstance(ctx context.Context) error {
	if _, _, err := h.client.Server.Shutdown(ctx, &hcloud.Server{ID: h.serverID}); err != nil {
		return hetznerError("shutdown", err)
	}
	return nil
}

func hetznerStatus(s hcloud.ServerStatus) string {
	switch s {
	case hcloud.ServerStatusRunning:
		return "RUNNING"
	case hcloud.ServerStatusOff:
		return "TERMINATED"
	default:
		return strings.ToUpper(string(s))
	}
}

func hetznerError(op string, err error) error {
	switch {
	case hcloud.IsError(err, hcloud.ErrorCodeNotFound):
		return fmt.Errorf("hetzner: %s: %w", op, domain.ErrNotFound)
	case hcloud.IsError(err, hcloud.ErrorCodeUnauthorized):
		return fmt.Errorf("hetzner: %s: %w", op, domain.ErrUnauthorized)
	case hcloud.IsError(err, hcloud.ErrorCodeRateLimitExceeded):
		return fmt.Errorf("hetzner: %s: %w", op, domain.ErrRateLimited)
	case hcloud.IsError(err, hcloud.ErrorCodeConflict), hcloud.IsError(err, hcloud.ErrorCodeLocked):
		return fmt.Errorf("hetzner: %s: %w", op, domain.ErrConflict)
	}
	var hzErr hcloud.Error
	if errors.As(err, &hzErr) {
		return fmt.Errorf("hetzner: %s: %w: %s", op, domain.ErrProvider, hzErr.Message)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("hetzner: %s: %w: %w", op, domain.ErrTransport, err)
	}
	return fmt.Errorf("hetzner: %s: %w", op, err)
}
