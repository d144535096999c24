package compute

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"nathanbeddoewebdev/mcfleet/internal/auth"
	"nathanbeddoewebdev/mcfleet/internal/domain"
)

// GCE controls one Compute Engine instance.
type GCE struct {
	service  *compute.Service
	project  string
	zone     string
	instance string
}

// NewGCE builds a Compute Engine client. Without options it uses
// Application Default Credentials.
func NewGCE(ctx context.Context, project, zone, instance string, opts ...option.ClientOption) (*GCE, error) {
	if project == "" || zone == "" || instance == "" {
		return nil, errors.New("gce: project, zone and instance are required")
	}
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gce: %w", err)
	}
	return &GCE{service: svc, project: project, zone: zone, instance: instance}, nil
}

// RegisterGCE registers the Compute Engine factory.
func RegisterGCE() {
	Register("gce", func(s Settings, _ auth.Store) (domain.ComputeProvider, error) {
		var opts []option.ClientOption
		if s.GCECredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(s.GCECredentialsFile))
		}
		return NewGCE(context.Background(), s.GCEProject, s.GCEZone, s.GCEInstance, opts...)
	})
}

func (g *GCE) GetDisplayName() string {
	return "Google Compute Engine"
}

func (g *GCE) GetInstance(ctx context.Context) (*domain.ComputeInstance, error) {
	inst, err := g.service.Instances.Get(g.project, g.zone, g.instance).Context(ctx).Do()
	if err != nil {
		return nil, gceError("get instance", err)
	}
	return &domain.ComputeInstance{Status: inst.Status, ExternalIP: natIP(inst)}, nil
}

func (g *GCE) StartInstance(ctx context.Context) error {
	if _, err := g.service.Instances.Start(g.project, g.zone, g.instance).Context(ctx).Do(); err != nil {
		return gceError("start instance", err)
	}
	return nil
}

func (g *GCE) ResumeInstance(ctx context.Context) error {
	if _, err := g.service.Instances.Resume(g.project, g.zone, g.instance).Context(ctx).Do(); err != nil {
		return gceError("resume instance", err)
	}
	return nil
}

func (g *GCE) StopInstance(ctx context.Context) error {
	if _, err := g.service.Instances.Stop(g.project, g.zone, g.instance).Context(ctx).Do(); err != nil {
		return gceError("stop instance", err)
	}
	return nil
}

// natIP returns the external address of the first network interface.
func natIP(inst *compute.Instance) string {
	if len(inst.NetworkInterfaces) == 0 || inst.NetworkInterfaces[0] == nil {
		return ""
	}
	configs := inst.NetworkInterfaces[0].AccessConfigs
	if len(configs) == 0 || configs[0] == nil {
		return ""
	}
	return configs[0].NatIP
}

func gceError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("gce: %s: %w", op, domain.ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("gce: %s: %w", op, domain.ErrNotFound)
		case http.StatusTooManyRequests:
			return fmt.Errorf("gce: %s: %w", op, domain.ErrRateLimited)
		}
		return fmt.Errorf("gce: %s: %w: %s", op, domain.ErrProvider, apiErr.Message)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("gce: %s: %w: %w", op, domain.ErrTransport, err)
	}
	return fmt.Errorf("gce: %s: %w", op, err)
}
