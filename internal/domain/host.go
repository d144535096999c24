package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HostPowerState is the power state of the compute host backing the fleet.
type HostPowerState int

const (
	HostUnknown HostPowerState = iota
	HostRunning
	HostTerminated
	HostSuspended
	HostTransitioning
)

var hostStateNames = map[HostPowerState]string{
	HostUnknown:       "unknown",
	HostRunning:       "running",
	HostTerminated:    "terminated",
	HostSuspended:     "suspended",
	HostTransitioning: "transitioning",
}

func (s HostPowerState) String() string {
	if name, ok := hostStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("host_state(%d)", int(s))
}

// Decisive reports whether the host is in a state that start and stop
// can act on.
func (s HostPowerState) Decisive() bool {
	return s == HostRunning || s == HostTerminated || s == HostSuspended
}

func (s HostPowerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *HostPowerState) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for state, n := range hostStateNames {
		if n == name {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown host state %q", name)
}

// ParseInstanceStatus maps a compute provider status string onto a power
// state. Anything other than RUNNING, TERMINATED or SUSPENDED is treated
// as a transition in progress.
func ParseInstanceStatus(status string) HostPowerState {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "":
		return HostUnknown
	case "RUNNING":
		return HostRunning
	case "TERMINATED":
		return HostTerminated
	case "SUSPENDED":
		return HostSuspended
	default:
		return HostTransitioning
	}
}

// HostStatus is the last known state of the compute host.
type HostStatus struct {
	State      HostPowerState `json:"state"`
	RawStatus  string         `json:"raw_status,omitempty"`
	ExternalIP string         `json:"external_ip,omitempty"`
	CheckedAt  time.Time      `json:"checked_at,omitempty"`
}

// ComputeInstance is the provider's view of the host instance.
type ComputeInstance struct {
	Status     string
	ExternalIP string
}

// ComputeProvider controls the single compute instance hosting the fleet.
// Implementations normalize their status vocabulary onto
// RUNNING/TERMINATED/SUSPENDED.
type ComputeProvider interface {
	GetDisplayName() string
	GetInstance(ctx context.Context) (*ComputeInstance, error)
	StartInstance(ctx context.Context) error
	ResumeInstance(ctx context.Context) error
	StopInstance(ctx context.Context) error
}
