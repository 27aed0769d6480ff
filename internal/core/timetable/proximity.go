package timetable

import (
	"math"
	"sort"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
)

const earthRadius = 6371000.0 // meters

// Distance returns the great-circle distance in meters.
func Distance(a, b domain.Coord) float64 {
	φ1 := a.Lat * math.Pi / 180.0
	φ2 := b.Lat * math.Pi / 180.0
	dφ := (b.Lat - a.Lat) * math.Pi / 180.0
	dλ := (b.Lon - a.Lon) * math.Pi / 180.0
	h := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// cellSize is the grid step in degrees (~1.1 km in latitude).
const cellSize = 0.01

type cell struct{ x, y int }

func cellOf(c domain.Coord) cell {
	return cell{int(math.Floor(c.Lon / cellSize)), int(math.Floor(c.Lat / cellSize))}
}

// Neighbour is a stop point found by a proximity query.
type Neighbour struct {
	StopPoint int
	Distance  float64
}

// Proximity is a uniform grid over stop point coordinates.
type Proximity struct {
	stops []StopPoint
	grid  map[cell][]int
}

// NewProximity indexes the stop points of d.
func NewProximity(d *Data) *Proximity {
	p := &Proximity{stops: d.StopPoints, grid: make(map[cell][]int)}
	for i, sp := range d.StopPoints {
		c := cellOf(sp.Coord)
		p.grid[c] = append(p.grid[c], i)
	}
	return p
}

// Nearby returns the stop points within radius meters of c, closest first.
func (p *Proximity) Nearby(c domain.Coord, radius float64) []Neighbour {
	if p == nil || len(p.stops) == 0 || radius < 0 {
		return nil
	}
	// Longitude degrees shrink with latitude.
	latSpan := radius / (earthRadius * math.Pi / 180.0)
	cosLat := math.Max(math.Cos(c.Lat*math.Pi/180.0), 0.01)
	lonSpan := latSpan / cosLat

	lo := cellOf(domain.Coord{Lon: c.Lon - lonSpan, Lat: c.Lat - latSpan})
	hi := cellOf(domain.Coord{Lon: c.Lon + lonSpan, Lat: c.Lat + latSpan})

	var out []Neighbour
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			for _, sp := range p.grid[cell{x, y}] {
				if d := Distance(c, p.stops[sp].Coord); d <= radius {
					out = append(out, Neighbour{StopPoint: sp, Distance: d})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].StopPoint < out[j].StopPoint
	})
	return out
}

// Len returns the number of indexed stop points.
func (p *Proximity) Len() int {
	if p == nil {
		return 0
	}
	return len(p.stops)
}
