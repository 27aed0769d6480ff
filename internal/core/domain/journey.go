package domain

import (
	"sort"
	"time"
)

// SectionType identifies the kind of leg a section describes.
type SectionType string

const (
	SectionStreetNetwork   SectionType = "street_network"
	SectionPublicTransport SectionType = "public_transport"
	SectionTransfer        SectionType = "transfer"
)

// Coord is a WGS84 coordinate.
type Coord struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Place is a section endpoint: a stop point or a free coordinate.
type Place struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Coord Coord  `json:"coord" yaml:"coord"`
}

// Section is one leg of a journey.
type Section struct {
	Type           SectionType `json:"type" yaml:"type"`
	From           Place       `json:"from" yaml:"from"`
	To             Place       `json:"to" yaml:"to"`
	Departure      time.Time   `json:"departure" yaml:"departure"`
	Arrival        time.Time   `json:"arrival" yaml:"arrival"`
	VehicleJourney string      `json:"vehicle_journey,omitempty" yaml:"vehicle_journey,omitempty"`
	Route          string      `json:"route,omitempty" yaml:"route,omitempty"`

	// Position of a public transport section inside its vehicle journey.
	// ServiceDay is the midnight the stop times are relative to.
	VJ         int       `json:"-" yaml:"-"`
	BoardPos   int       `json:"-" yaml:"-"`
	AlightPos  int       `json:"-" yaml:"-"`
	ServiceDay time.Time `json:"-" yaml:"-"`
}

// Duration returns the section duration.
func (s Section) Duration() time.Duration {
	return s.Arrival.Sub(s.Departure)
}

// Journey is a candidate search result.
type Journey struct {
	Departure         time.Time `json:"departure" yaml:"departure"`
	Arrival           time.Time `json:"arrival" yaml:"arrival"`
	NbTransfers       int       `json:"nb_transfers" yaml:"nb_transfers"`
	RequestedDateTime time.Time `json:"requested_date_time" yaml:"requested_date_time"`
	Sections          []Section `json:"sections" yaml:"sections"`

	// Empty marks the placeholder emitted for a requested instant without result.
	Empty bool `json:"empty,omitempty" yaml:"empty,omitempty"`
}

// Duration returns the door-to-door duration.
func (j Journey) Duration() time.Duration {
	return j.Arrival.Sub(j.Departure)
}

// IsDirectPath reports whether the journey uses the street network only.
func (j Journey) IsDirectPath() bool {
	if len(j.Sections) == 0 {
		return false
	}
	for _, s := range j.Sections {
		if s.Type == SectionPublicTransport {
			return false
		}
	}
	return true
}

// VehicleJourneys returns the sorted ids of the vehicle journeys used.
func (j Journey) VehicleJourneys() []string {
	var ids []string
	for _, s := range j.Sections {
		if s.Type == SectionPublicTransport {
			ids = append(ids, s.VehicleJourney)
		}
	}
	sort.Strings(ids)
	return ids
}

// EdgeTime returns the arrival when clockwise, the departure otherwise.
func (j Journey) EdgeTime(clockwise bool) time.Time {
	if clockwise {
		return j.Arrival
	}
	return j.Departure
}

// RecomputeBounds refreshes departure, arrival and transfer count from the
// sections.
func (j *Journey) RecomputeBounds() {
	if len(j.Sections) == 0 {
		return
	}
	j.Departure = j.Sections[0].Departure
	j.Arrival = j.Sections[len(j.Sections)-1].Arrival
	pt := 0
	for _, s := range j.Sections {
		if s.Type == SectionPublicTransport {
			pt++
		}
	}
	if pt > 0 {
		j.NbTransfers = pt - 1
	} else {
		j.NbTransfers = 0
	}
}
