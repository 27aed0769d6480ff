package domain

import (
	"fmt"
	"time"
)

// deadlineLayouts lists the accepted deadline encodings, tried in order.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	"20060102T150405,000000",
	"20060102T150405",
}

// Deadline is an optional absolute instant after which the remaining work of
// a request is abandoned. The zero value means "no deadline".
type Deadline struct {
	at time.Time
}

// DeadlineAt returns a deadline at the given instant.
func DeadlineAt(at time.Time) Deadline {
	return Deadline{at: at}
}

// ParseDeadline parses a deadline. An empty string yields no deadline.
func ParseDeadline(s string) (Deadline, error) {
	if s == "" {
		return Deadline{}, nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Deadline{at: t}, nil
		}
	}
	return Deadline{}, fmt.Errorf("unparsable deadline %q", s)
}

// IsSet reports whether a deadline is present.
func (d Deadline) IsSet() bool {
	return !d.at.IsZero()
}

// At returns the deadline instant (zero when unset).
func (d Deadline) At() time.Time {
	return d.at
}

// Expired reports whether the deadline is set and now is at or past it.
func (d Deadline) Expired(now time.Time) bool {
	return d.IsSet() && !now.Before(d.at)
}

// String implements fmt.Stringer.
func (d Deadline) String() string {
	if !d.IsSet() {
		return "none"
	}
	return d.at.Format(time.RFC3339Nano)
}
