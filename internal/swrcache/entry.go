package swrcache

import "time"

// Entry is the on-disk form of one cached value.
type Entry[T any] struct {
	Data      T         `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Age is how long ago the value was fetched, as of now.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}
