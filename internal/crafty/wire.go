package crafty

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"nathanbeddoewebdev/mcfleet/internal/domain"
)

// envelope wraps every REST response.
type envelope struct {
	Status    string          `json:"status"`
	Error     FlexString      `json:"error"`
	ErrorData FlexString      `json:"error_data"`
	Info      FlexString      `json:"info"`
	Data      json.RawMessage `json:"data"`
}

func (e envelope) message() string {
	switch {
	case e.Error != "" && e.ErrorData != "":
		return fmt.Sprintf("%s: %s", e.Error, e.ErrorData)
	case e.Error != "":
		return string(e.Error)
	case e.Info != "":
		return string(e.Info)
	default:
		return fmt.Sprintf("status %q", e.Status)
	}
}

type identityJSON struct {
	ID   FlexInt    `json:"server_id"`
	UUID FlexString `json:"server_uuid"`
	Name FlexString `json:"server_name"`
	Port FlexInt    `json:"server_port"`
}

func (j identityJSON) toDomain() (domain.ServerIdentity, error) {
	id, err := uuid.Parse(string(j.UUID))
	if err != nil {
		return domain.ServerIdentity{}, fmt.Errorf("server %d: invalid uuid %q: %w", j.ID, j.UUID, domain.ErrDecode)
	}
	return domain.ServerIdentity{
		ID:   int(j.ID),
		UUID: id,
		Name: string(j.Name),
		Port: int(j.Port),
	}, nil
}

type statsJSON struct {
	Running  FlexBool     `json:"running"`
	Identity identityJSON `json:"server_id"`
	Started  FlexTime     `json:"started"`
	Desc     FlexString   `json:"desc"`
	Online   FlexInt      `json:"online"`
	Max      FlexInt      `json:"max"`
}

type frameJSON struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type lineJSON struct {
	Line FlexString `json:"line"`
}

type detailJSON struct {
	ID      FlexInt     `json:"id"`
	Started FlexTime    `json:"started"`
	Running FlexBool    `json:"running"`
	Online  FlexInt     `json:"online"`
	Max     FlexInt     `json:"max"`
	Players playerCache `json:"players_cache"`
}

type playerJSON struct {
	Name     FlexString `json:"name"`
	Status   FlexString `json:"status"`
	LastSeen FlexTime   `json:"last_seen"`
}

// playerCache accepts an array, a JSON-encoded array inside a string, or
// anything else as empty.
type playerCache []playerJSON

func (p *playerCache) UnmarshalJSON(b []byte) error {
	*p = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return nil
		}
		b = []byte(inner)
	}
	var players []playerJSON
	if err := json.Unmarshal(b, &players); err != nil {
		return nil
	}
	*p = players
	return nil
}
