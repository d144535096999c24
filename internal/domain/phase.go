package domain

import (
	"fmt"
	"strings"
)

// Phase is the lifecycle phase of one game server.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseStopped
	PhaseStarting
	PhaseRunning
	PhaseIdle
	PhaseStopping
)

var phaseNames = map[Phase]string{
	PhaseUnknown:  "unknown",
	PhaseStopped:  "stopped",
	PhaseStarting: "starting",
	PhaseRunning:  "running",
	PhaseIdle:     "idle",
	PhaseStopping: "stopping",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Active reports whether the process is believed to be up: Starting,
// Running or Idle. Only active servers keep an event stream open.
func (p Phase) Active() bool {
	return p == PhaseStarting || p == PhaseRunning || p == PhaseIdle
}

// ParsePhase parses the lowercase phase name produced by String.
func ParsePhase(s string) (Phase, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return PhaseUnknown, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
