package domain

import "time"

// PublicationDateUnknown is reported when no loaded snapshot backs a response.
const PublicationDateUnknown = "unknown"

// Response is the payload frame of an outbound reply.
type Response struct {
	RequestID       string         `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	API             API            `json:"api,omitempty" yaml:"api,omitempty"`
	PublicationDate string         `json:"publication_date" yaml:"publication_date"`
	Error           *ResponseError `json:"error,omitempty" yaml:"error,omitempty"`

	Journeys []Journey     `json:"journeys,omitempty" yaml:"journeys,omitempty"`
	Labels   []StopLabel   `json:"labels,omitempty" yaml:"labels,omitempty"`
	Places   []PlaceNearby `json:"places,omitempty" yaml:"places,omitempty"`
	Metadata *Metadata     `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Status   *Status       `json:"status,omitempty" yaml:"status,omitempty"`
}

// ResponseError is the typed error carried by a reply.
type ResponseError struct {
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

// SetError fills the response error from err.
func (r *Response) SetError(err error) {
	r.Error = &ResponseError{Kind: KindOf(err), Message: err.Error()}
}

// StopLabel is the best reachable datetime of a stop point in an isochrone.
type StopLabel struct {
	StopPoint string    `json:"stop_point" yaml:"stop_point"`
	DateTime  time.Time `json:"datetime" yaml:"datetime"`
	Round     int       `json:"round" yaml:"round"`
}

// PlaceNearby is a stop point found around a coordinate.
type PlaceNearby struct {
	Place    Place   `json:"place" yaml:"place"`
	Distance float64 `json:"distance" yaml:"distance"`
}

// Metadata describes the data a snapshot serves.
type Metadata struct {
	StartProductionDate string   `json:"start_production_date" yaml:"start_production_date"`
	EndProductionDate   string   `json:"end_production_date" yaml:"end_production_date"`
	Timezone            string   `json:"timezone" yaml:"timezone"`
	Contributors        []string `json:"contributors" yaml:"contributors"`
	NbStopPoints        int      `json:"nb_stop_points" yaml:"nb_stop_points"`
	NbVehicleJourneys   int      `json:"nb_vehicle_journeys" yaml:"nb_vehicle_journeys"`
}

// Status describes the serving state of the process.
type Status struct {
	SnapshotID        uint64 `json:"snapshot_id" yaml:"snapshot_id"`
	Loaded            bool   `json:"loaded" yaml:"loaded"`
	Loading           bool   `json:"loading" yaml:"loading"`
	RealtimeConnected bool   `json:"realtime_connected" yaml:"realtime_connected"`
	PublicationDate   string `json:"publication_date" yaml:"publication_date"`
	Version           string `json:"version" yaml:"version"`
	Worker            int    `json:"worker" yaml:"worker"`
}
