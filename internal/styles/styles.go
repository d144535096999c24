// Package styles holds the color palette used to render fleet and host
// state in terminal output.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"nathanbeddoewebdev/mcfleet/internal/domain"
)

var (
	Gray   = lipgloss.Color("#888888")
	Blue   = lipgloss.Color("#5FAFFF")
	Green  = lipgloss.Color("#5FD787")
	Yellow = lipgloss.Color("#FFD787")
	Red    = lipgloss.Color("#FF8787")
)

var (
	Header = lipgloss.NewStyle().Bold(true).Foreground(Blue)
	Dim    = lipgloss.NewStyle().Foreground(Gray)
)

// PhaseColor returns the color a server phase is rendered in.
func PhaseColor(p domain.Phase) lipgloss.Color {
	switch p {
	case domain.PhaseRunning:
		return Green
	case domain.PhaseIdle, domain.PhaseStarting, domain.PhaseStopping:
		return Yellow
	case domain.PhaseStopped:
		return Red
	default:
		return Gray
	}
}

// HostColor returns the color a host power state is rendered in.
func HostColor(s domain.HostPowerState) lipgloss.Color {
	switch s {
	case domain.HostRunning:
		return Green
	case domain.HostTransitioning:
		return Yellow
	case domain.HostTerminated, domain.HostSuspended:
		return Red
	default:
		return Gray
	}
}

// Phase renders a phase name, colored when color is true.
func Phase(p domain.Phase, color bool) string {
	if !color {
		return p.String()
	}
	return lipgloss.NewStyle().Foreground(PhaseColor(p)).Render(p.String())
}

// Host renders a host power state, colored when color is true.
func Host(s domain.HostPowerState, color bool) string {
	if !color {
		return s.String()
	}
	return lipgloss.NewStyle().Foreground(HostColor(s)).Bold(true).Render(s.String())
}
