package history

import "time"

// Kinds of transition recorded.
const (
	KindServer = "server"
	KindHost   = "host"
)

// Entry is one recorded phase or power state transition.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Name      string    `json:"name,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
}
