package service

import "time"

const (
	// MaxTries caps the number of primitive calls of one search.
	MaxTries = 100
	// SimpleRequestTriesFactor multiplies MaxTries for requests without
	// transfers, whose calls are individually cheap.
	SimpleRequestTriesFactor = 10
)

// KeepGoingParams is the state the termination policy looks at.
type KeepGoingParams struct {
	TotalJourneys  int
	NbTry          int
	Clockwise      bool
	RequestDate    time.Time
	MinNbJourneys  *int
	TimeframeLimit *time.Time
	MaxTransfers   int
}

// KeepGoing reports whether another primitive call is needed.
func KeepGoing(p KeepGoingParams) bool {
	limit := MaxTries
	if p.MaxTransfers == 0 {
		limit *= SimpleRequestTriesFactor
	}
	if p.NbTry > limit {
		return false
	}

	under := p.MinNbJourneys != nil && p.TotalJourneys < *p.MinNbJourneys
	inside := p.TimeframeLimit != nil && insideTimeframe(p.RequestDate, *p.TimeframeLimit, p.Clockwise)

	switch {
	case p.MinNbJourneys != nil && p.TimeframeLimit != nil:
		return under || inside
	case p.MinNbJourneys != nil:
		return under
	case p.TimeframeLimit != nil:
		return inside
	default:
		return false
	}
}

func insideTimeframe(at, limit time.Time, clockwise bool) bool {
	if clockwise {
		return !at.After(limit)
	}
	return !at.Before(limit)
}
