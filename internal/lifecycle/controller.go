package lifecycle

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/fleet"
	"nathanbeddoewebdev/mcfleet/internal/logger"
)

// FleetView is the part of the fleet registry the controller reads.
type FleetView interface {
	States() []domain.ServerState
	Refresh(ctx context.Context) error
	IdleThreshold() float64
}

// HostPower is the host operation the controller drives.
type HostPower interface {
	Stop(ctx context.Context) error
}

// Decision is the outcome of evaluating the fleet shutdown precondition.
type Decision int

const (
	// DecisionVeto keeps the host running.
	DecisionVeto Decision = iota
	// DecisionStop shuts the host down.
	DecisionStop
	// DecisionRefresh defers until unknown servers have been refreshed.
	DecisionRefresh
)

func (d Decision) String() string {
	switch d {
	case DecisionStop:
		return "stop"
	case DecisionRefresh:
		return "refresh"
	default:
		return "veto"
	}
}

// Decide evaluates the fleet shutdown precondition. The host may stop
// when the fleet is empty or every server is Stopped or Idle for at
// least threshold hours. Any other phase vetoes; an Unknown server asks
// for a refresh unless another server already vetoes.
func Decide(states []domain.ServerState, threshold float64) Decision {
	unknown := false
	for _, st := range states {
		switch st.Phase {
		case domain.PhaseStopped:
		case domain.PhaseIdle:
			if st.IdleHours < threshold {
				return DecisionVeto
			}
		case domain.PhaseUnknown:
			unknown = true
		default:
			return DecisionVeto
		}
	}
	if unknown {
		return DecisionRefresh
	}
	return DecisionStop
}

// Controller consumes fleet transitions and stops the host once no
// server needs it.
type Controller struct {
	fleet FleetView
	host  HostPower
	log   logrus.FieldLogger
	nudge chan struct{}
}

// NewController creates a controller over the given fleet and host.
func NewController(view FleetView, host HostPower, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logger.Discard()
	}
	return &Controller{
		fleet: view,
		host:  host,
		log:   log.WithField("component", "lifecycle"),
		nudge: make(chan struct{}, 1),
	}
}

// Nudge asks the run loop for an evaluation outside a Stopped transition.
// Nudges coalesce while one is pending.
func (c *Controller) Nudge() {
	select {
	case c.nudge <- struct{}{}:
	default:
	}
}

// Run evaluates the precondition for every transition to Stopped and
// every nudge until ctx ends or changes is closed.
func (c *Controller) Run(ctx context.Context, changes <-chan fleet.StateChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.To != domain.PhaseStopped {
				continue
			}
			c.log.WithField("server", change.Identity.Name).Debug("server stopped, evaluating fleet")
		case <-c.nudge:
		}
		if _, err := c.Evaluate(ctx); err != nil {
			c.log.WithError(err).Warn("fleet evaluation failed")
		}
	}
}

// Evaluate decides once and acts on the decision. An Unknown server
// triggers one fleet refresh before deciding again; if it is still
// Unknown the shutdown is deferred.
func (c *Controller) Evaluate(ctx context.Context) (Decision, error) {
	threshold := c.fleet.IdleThreshold()
	d := Decide(c.fleet.States(), threshold)

	if d == DecisionRefresh {
		if err := c.fleet.Refresh(ctx); err != nil {
			return DecisionVeto, fmt.Errorf("lifecycle: refresh: %w", err)
		}
		d = Decide(c.fleet.States(), threshold)
		if d == DecisionRefresh {
			c.log.Info("servers still unknown after refresh, deferring host shutdown")
			return DecisionRefresh, nil
		}
	}

	c.log.WithField("decision", d.String()).Debug("fleet evaluated")
	if d != DecisionStop {
		return d, nil
	}

	c.log.Info("fleet quiescent, stopping host")
	if err := c.host.Stop(ctx); err != nil {
		return d, fmt.Errorf("lifecycle: %w", err)
	}
	return d, nil
}
