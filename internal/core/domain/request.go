package domain

import (
	"time"
)

// API identifies the handler a request is dispatched to.
type API string

const (
	APIJourneys     API = "journeys"
	APIIsochrone    API = "isochrone"
	APIPlacesNearby API = "places_nearby"
	APIMetadata     API = "metadata"
	APIStatus       API = "status"
)

// DirectPathMode controls how the street-only alternative is combined with
// transit results.
type DirectPathMode string

const (
	DirectPathIndifferent DirectPathMode = "indifferent"
	DirectPathOnly        DirectPathMode = "only"
	DirectPathNone        DirectPathMode = "none"
)

// Request is the payload frame of an inbound message.
type Request struct {
	RequestID    string               `json:"request_id,omitempty"`
	API          API                  `json:"api" validate:"required"`
	Deadline     string               `json:"deadline,omitempty"`
	Journeys     *JourneysRequest     `json:"journeys,omitempty" validate:"required_if=API journeys,omitempty"`
	Isochrone    *IsochroneRequest    `json:"isochrone,omitempty" validate:"required_if=API isochrone,omitempty"`
	PlacesNearby *PlacesNearbyRequest `json:"places_nearby,omitempty" validate:"required_if=API places_nearby,omitempty"`
}

// EntryPoint is an origin or destination: a stop point id or a "lon;lat"
// coordinate.
type EntryPoint struct {
	Place string `json:"place" validate:"required"`
}

// JourneysRequest carries the parameters of a journey search.
type JourneysRequest struct {
	Origin      []EntryPoint `json:"origin" validate:"required,min=1,dive"`
	Destination []EntryPoint `json:"destination" validate:"required,min=1,dive"`
	DateTimes   []time.Time  `json:"datetimes" validate:"required,min=1"`

	// DateTimeRepresents is "departure" (clockwise, default) or "arrival".
	DateTimeRepresents string `json:"datetime_represents,omitempty" validate:"omitempty,oneof=departure arrival"`

	MaxDuration        int     `json:"max_duration,omitempty" validate:"gte=0"` // seconds
	MaxTransfers       *int    `json:"max_transfers,omitempty" validate:"omitempty,gte=0"`
	MinNbJourneys      *int    `json:"min_nb_journeys,omitempty" validate:"omitempty,gte=0"`
	TimeframeDuration  *int    `json:"timeframe_duration,omitempty" validate:"omitempty,gte=0"` // seconds
	MaxWalkingDuration int     `json:"max_walking_duration,omitempty" validate:"gte=0"`         // seconds
	WalkingSpeed       float64 `json:"walking_speed,omitempty" validate:"gte=0"`                // m/s

	NightBusFilterMaxFactor  *float64 `json:"night_bus_filter_max_factor,omitempty" validate:"omitempty,gte=0"`
	NightBusFilterBaseFactor *int     `json:"night_bus_filter_base_factor,omitempty" validate:"omitempty,gte=0"` // seconds

	DirectPath DirectPathMode `json:"direct_path,omitempty" validate:"omitempty,oneof=indifferent only none"`
}

// Clockwise reports whether the datetimes are departure times.
func (r *JourneysRequest) Clockwise() bool {
	return r.DateTimeRepresents != "arrival"
}

// IsochroneRequest asks for the best reachable time at every stop point.
type IsochroneRequest struct {
	Origin             []EntryPoint `json:"origin" validate:"required,min=1,dive"`
	DateTime           time.Time    `json:"datetime" validate:"required"`
	MaxDuration        int          `json:"max_duration,omitempty" validate:"gte=0"`
	MaxTransfers       *int         `json:"max_transfers,omitempty" validate:"omitempty,gte=0"`
	MaxWalkingDuration int          `json:"max_walking_duration,omitempty" validate:"gte=0"`
}

// PlacesNearbyRequest asks for the stop points around a coordinate.
type PlacesNearbyRequest struct {
	Coord    Coord   `json:"coord"`
	Distance float64 `json:"distance" validate:"gt=0"` // meters
	Count    int     `json:"count,omitempty" validate:"gte=0"`
}
