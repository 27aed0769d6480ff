package snapshot

import (
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/timetable"
	"github.com/hove-io/navitia-sub004/internal/routing/raptor"
)

// RealtimeStatus tells whether the last realtime fetch succeeded.
type RealtimeStatus int

const (
	// RealtimeUnknown means the snapshot has not established its own status.
	RealtimeUnknown RealtimeStatus = iota
	RealtimeConnected
	RealtimeDisconnected
)

func (s RealtimeStatus) String() string {
	switch s {
	case RealtimeConnected:
		return "connected"
	case RealtimeDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Snapshot is one published data set. It must not be modified once
// published.
type Snapshot struct {
	ID              uint64
	Loading         bool
	Loaded          bool
	Realtime        RealtimeStatus
	PublicationDate time.Time
	Fingerprint     uint64

	// Contributors restricts realtime merges to these agency ids.
	Contributors []string
	// CacheSize sizes the per-worker street cache.
	CacheSize int

	Data      *timetable.Data
	Proximity *timetable.Proximity
	Index     *raptor.Index
}

// Empty returns the placeholder served before the first load.
func Empty(id uint64) *Snapshot {
	s := &Snapshot{ID: id, Data: timetable.Empty()}
	s.buildIndices(raptor.DefaultIndexConfig())
	return s
}

func (s *Snapshot) buildIndices(cfg raptor.IndexConfig) {
	s.Proximity = timetable.NewProximity(s.Data)
	s.Index = raptor.BuildIndex(s.Data, s.Proximity, cfg)
}

// RealtimeConnected reports whether the snapshot carries fresh realtime data.
func (s *Snapshot) RealtimeConnected() bool {
	return s.Realtime == RealtimeConnected
}
