package service

import (
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
)

// Night-bus filter defaults.
const (
	DefaultNightBusMaxFactor  = 3.0
	DefaultNightBusBaseFactor = time.Hour
)

// NightBusParams configures FilterNightBus.
type NightBusParams struct {
	RequestedDateTime time.Time
	Clockwise         bool
	MaxFactor         float64
	BaseFactor        time.Duration
}

// DefaultNightBusParams returns the default filter for a request.
func DefaultNightBusParams(requested time.Time, clockwise bool) NightBusParams {
	return NightBusParams{
		RequestedDateTime: requested,
		Clockwise:         clockwise,
		MaxFactor:         DefaultNightBusMaxFactor,
		BaseFactor:        DefaultNightBusBaseFactor,
	}
}

// FilterNightBus drops the journeys whose distance to the requested
// datetime is out of proportion with the best journey of the batch.
func FilterNightBus(journeys []domain.Journey, p NightBusParams) []domain.Journey {
	if len(journeys) < 2 {
		return journeys
	}
	pseudo := func(j domain.Journey) time.Duration {
		d := j.EdgeTime(p.Clockwise).Sub(p.RequestedDateTime)
		if d < 0 {
			return -d
		}
		return d
	}

	best := pseudo(journeys[0])
	for _, j := range journeys[1:] {
		best = min(best, pseudo(j))
	}
	limit := time.Duration(float64(best)*p.MaxFactor) + p.BaseFactor

	kept := journeys[:0:0]
	for _, j := range journeys {
		if pseudo(j) <= limit {
			kept = append(kept, j)
		}
	}
	return kept
}
