package fleet

import (
	"math"
	"time"
)

// Unbounded is the idle time of a server with no known player presence
// and no known start time.
const Unbounded = math.MaxFloat64

// IdleHours returns the hours since the later of the last player presence
// and the process start. A nil input counts as infinitely long ago.
func IdleHours(now time.Time, lastPlayer, started *time.Time) float64 {
	hours := Unbounded
	if lastPlayer != nil {
		hours = math.Min(hours, hoursSince(now, *lastPlayer))
	}
	if started != nil {
		hours = math.Min(hours, hoursSince(now, *started))
	}
	return hours
}

func hoursSince(now, t time.Time) float64 {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return d.Hours()
}
