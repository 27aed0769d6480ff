// Package raptor implements the round-based public transport search used
// as the shortest-path primitive: one round per vehicle boarded, Pareto
// optimal on edge time and number of transfers.
package raptor

import (
	"math"
	"strconv"
	"strings"

	"github.com/hove-io/navitia-sub004/internal/core/timetable"
)

// Pattern is an ordered stop sequence shared by several vehicle journeys.
type Pattern struct {
	Stops []int
	VJs   []int
}

// StopPos locates a stop inside a pattern.
type StopPos struct {
	Pattern int
	Pos     int
}

// Transfer is a walking connection between two stop points.
type Transfer struct {
	To       int
	Duration int32 // seconds
}

// IndexConfig tunes the precomputation.
type IndexConfig struct {
	// TransferRadius bounds walking transfers, in meters.
	TransferRadius float64
	// WalkingSpeed is used to turn distances into durations, in m/s.
	WalkingSpeed float64
	// MinConnection is the minimum time between two vehicles, in seconds.
	MinConnection int32
}

// DefaultIndexConfig returns the default precomputation settings.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		TransferRadius: 300,
		WalkingSpeed:   1.12,
		MinConnection:  120,
	}
}

// Index is the routing precomputation of a snapshot. Read-only once built.
type Index struct {
	Data         *timetable.Data
	Patterns     []Pattern
	StopPatterns [][]StopPos
	Transfers    [][]Transfer
	cfg          IndexConfig
}

// BuildIndex groups vehicle journeys into patterns and computes walking
// transfers through the proximity index.
func BuildIndex(d *timetable.Data, prox *timetable.Proximity, cfg IndexConfig) *Index {
	if cfg.WalkingSpeed <= 0 {
		cfg.WalkingSpeed = DefaultIndexConfig().WalkingSpeed
	}
	idx := &Index{
		Data:         d,
		StopPatterns: make([][]StopPos, len(d.StopPoints)),
		Transfers:    make([][]Transfer, len(d.StopPoints)),
		cfg:          cfg,
	}

	byKey := make(map[string]int)
	for vi, vj := range d.VehicleJourneys {
		key := patternKey(vj.StopTimes)
		p, ok := byKey[key]
		if !ok {
			p = len(idx.Patterns)
			byKey[key] = p
			stops := make([]int, len(vj.StopTimes))
			for i, st := range vj.StopTimes {
				stops[i] = st.StopPoint
			}
			idx.Patterns = append(idx.Patterns, Pattern{Stops: stops})
			for pos, s := range stops {
				idx.StopPatterns[s] = append(idx.StopPatterns[s], StopPos{Pattern: p, Pos: pos})
			}
		}
		idx.Patterns[p].VJs = append(idx.Patterns[p].VJs, vi)
	}

	if prox != nil && cfg.TransferRadius > 0 {
		for s, sp := range d.StopPoints {
			for _, n := range prox.Nearby(sp.Coord, cfg.TransferRadius) {
				if n.StopPoint == s {
					continue
				}
				idx.Transfers[s] = append(idx.Transfers[s], Transfer{
					To:       n.StopPoint,
					Duration: int32(math.Ceil(n.Distance / cfg.WalkingSpeed)),
				})
			}
		}
	}
	return idx
}

func patternKey(sts []timetable.StopTime) string {
	var sb strings.Builder
	for i, st := range sts {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(st.StopPoint))
	}
	return sb.String()
}

// NbStops returns the number of stop points covered.
func (idx *Index) NbStops() int {
	return len(idx.StopPatterns)
}
