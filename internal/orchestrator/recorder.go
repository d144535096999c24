package orchestrator

import (
	"context"
	"strconv"

	"nathanbeddoewebdev/mcfleet/internal/fleet"
	"nathanbeddoewebdev/mcfleet/internal/history"
	"nathanbeddoewebdev/mcfleet/internal/lifecycle"
)

// hostSubject is the history subject of the single fleet host.
const hostSubject = "host"

func (s *Service) recordServers(ctx context.Context, changes <-chan fleet.StateChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			s.save(&history.Entry{
				Timestamp: change.At,
				Kind:      history.KindServer,
				Subject:   strconv.Itoa(change.Identity.ID),
				Name:      change.Identity.Name,
				From:      change.From.String(),
				To:        change.To.String(),
				Reason:    change.Reason,
			})
		}
	}
}

func (s *Service) recordHost(name string) func(lifecycle.HostTransition) {
	return func(tr lifecycle.HostTransition) {
		s.save(&history.Entry{
			Timestamp: tr.Status.CheckedAt,
			Kind:      history.KindHost,
			Subject:   hostSubject,
			Name:      name,
			From:      tr.From.String(),
			To:        tr.To.String(),
			Reason:    tr.Status.RawStatus,
		})
	}
}

func (s *Service) save(entry *history.Entry) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(entry); err != nil {
		s.log.WithError(err).WithField("subject", entry.Subject).Warn("failed to record transition")
	}
}
