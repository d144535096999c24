package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServerIdentity identifies one game server on the monitoring provider.
// The UUID is the join key between snapshot and stream data.
type ServerIdentity struct {
	ID   int       `json:"id"`
	UUID uuid.UUID `json:"uuid"`
	Name string    `json:"name"`
	Port int       `json:"port"`
}

// ServerSnapshot is the point-in-time status of one server as returned by
// the monitoring provider. A snapshot is replaced wholesale, never mutated.
type ServerSnapshot struct {
	Identity    ServerIdentity `json:"identity"`
	Running     bool           `json:"running"`
	Description string         `json:"description,omitempty"`
	OnlineCount int            `json:"online"`
	MaxPlayers  int            `json:"max"`
	Started     *time.Time     `json:"started,omitempty"`
	FetchedAt   time.Time      `json:"fetched_at"`
}

// Equal reports whether two snapshots carry the same observation.
func (s ServerSnapshot) Equal(o ServerSnapshot) bool {
	if s.Identity != o.Identity || s.Running != o.Running || s.Description != o.Description ||
		s.OnlineCount != o.OnlineCount || s.MaxPlayers != o.MaxPlayers || !s.FetchedAt.Equal(o.FetchedAt) {
		return false
	}
	return timePtrEqual(s.Started, o.Started)
}

// PlayerSighting is one entry of the provider's recent player cache.
type PlayerSighting struct {
	Name     string    `json:"name"`
	Status   string    `json:"status,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// LiveDetail is the most recent structured detail update received over a
// server's event stream.
type LiveDetail struct {
	Running     bool             `json:"running"`
	OnlineCount int              `json:"online"`
	MaxPlayers  int              `json:"max"`
	Started     *time.Time       `json:"started,omitempty"`
	Players     []PlayerSighting `json:"players,omitempty"`
	ReceivedAt  time.Time        `json:"received_at"`
}

// LatestSighting returns the most recently seen player, if any.
func (d LiveDetail) LatestSighting() (PlayerSighting, bool) {
	var latest PlayerSighting
	found := false
	for _, p := range d.Players {
		if p.LastSeen.IsZero() {
			continue
		}
		if !found || p.LastSeen.After(latest.LastSeen) {
			latest = p
			found = true
		}
	}
	return latest, found
}

// ServerState is a read-only copy of one server's reconciled state.
type ServerState struct {
	Identity             ServerIdentity `json:"identity"`
	Phase                Phase          `json:"phase"`
	Snapshot             ServerSnapshot `json:"snapshot"`
	Detail               *LiveDetail    `json:"detail,omitempty"`
	LastPlayerPresenceAt *time.Time     `json:"last_player_presence_at,omitempty"`
	IdleHours            float64        `json:"idle_hours"`
	StreamConnected      bool           `json:"stream_connected"`
	PhaseSince           time.Time      `json:"phase_since"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
