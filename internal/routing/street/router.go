// Package street resolves entry points and computes walking legs.
//
// Walking is approximated by the great-circle distance at a constant
// speed; fallback lookups go through the snapshot proximity index and are
// memoised in an LRU cache owned by the router.
package street

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/timetable"
)

// ErrUnknownPlace is returned for entry points that are neither a known stop
// point nor a "lon;lat" coordinate.
var ErrUnknownPlace = errors.New("street: unknown place")

// Config tunes a Router.
type Config struct {
	WalkingSpeed float64 // m/s
	CacheSize    int
}

// DefaultConfig returns the default router settings.
func DefaultConfig() Config {
	return Config{WalkingSpeed: 1.12, CacheSize: 1024}
}

// Endpoint is a resolved entry point.
type Endpoint struct {
	Place domain.Place
	// StopPoint is the stop index when the entry point is a stop, None otherwise.
	StopPoint int
}

type cacheKey struct {
	lon, lat float64
	maxDur   time.Duration
	speed    float64
}

// Router computes walking legs over one snapshot. It is not safe for
// concurrent use.
type Router struct {
	data  *timetable.Data
	prox  *timetable.Proximity
	cfg   Config
	cache *lru.Cache[cacheKey, map[int]time.Duration]

	hits, misses int
}

// NewRouter returns a router bound to the snapshot data.
func NewRouter(data *timetable.Data, prox *timetable.Proximity, cfg Config) (*Router, error) {
	if cfg.WalkingSpeed <= 0 {
		cfg.WalkingSpeed = DefaultConfig().WalkingSpeed
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	cache, err := lru.New[cacheKey, map[int]time.Duration](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create fallback cache: %w", err)
	}
	return &Router{data: data, prox: prox, cfg: cfg, cache: cache}, nil
}

// Resolve turns an entry point into an endpoint.
func (r *Router) Resolve(place string) (Endpoint, error) {
	if s, ok := r.data.StopByID(place); ok {
		return Endpoint{Place: r.data.PlaceOf(s), StopPoint: s}, nil
	}
	c, ok := ParseCoord(place)
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownPlace, place)
	}
	return Endpoint{Place: domain.Place{ID: place, Coord: c}, StopPoint: timetable.None}, nil
}

// ParseCoord parses "lon;lat".
func ParseCoord(s string) (domain.Coord, bool) {
	lonS, latS, ok := strings.Cut(s, ";")
	if !ok {
		return domain.Coord{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonS), 64)
	if err != nil || lon < -180 || lon > 180 {
		return domain.Coord{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.Coord{}, false
	}
	return domain.Coord{Lon: lon, Lat: lat}, true
}

// WalkingDuration returns the walking time over distance meters.
func (r *Router) WalkingDuration(distance float64, speed float64) time.Duration {
	if speed <= 0 {
		speed = r.cfg.WalkingSpeed
	}
	return time.Duration(math.Ceil(distance/speed)) * time.Second
}

// Fallback returns the stop points reachable on foot from the endpoint
// within maxDur. A stop endpoint always includes itself at zero duration.
func (r *Router) Fallback(ep Endpoint, maxDur time.Duration, speed float64) map[int]time.Duration {
	if speed <= 0 {
		speed = r.cfg.WalkingSpeed
	}
	key := cacheKey{
		lon:    quantize(ep.Place.Coord.Lon),
		lat:    quantize(ep.Place.Coord.Lat),
		maxDur: maxDur,
		speed:  speed,
	}

	var out map[int]time.Duration
	if cached, ok := r.cache.Get(key); ok {
		r.hits++
		out = make(map[int]time.Duration, len(cached)+1)
		for s, d := range cached {
			out[s] = d
		}
	} else {
		r.misses++
		radius := maxDur.Seconds() * speed
		found := make(map[int]time.Duration)
		for _, n := range r.prox.Nearby(ep.Place.Coord, radius) {
			found[n.StopPoint] = r.WalkingDuration(n.Distance, speed)
		}
		r.cache.Add(key, found)
		out = make(map[int]time.Duration, len(found)+1)
		for s, d := range found {
			out[s] = d
		}
	}

	if ep.StopPoint != timetable.None {
		out[ep.StopPoint] = 0
	}
	return out
}

// DirectPath returns the walking-only journey between two endpoints, or
// false when it exceeds maxDur.
func (r *Router) DirectPath(from, to Endpoint, at time.Time, clockwise bool, maxDur time.Duration, speed float64) (domain.Journey, bool) {
	dist := timetable.Distance(from.Place.Coord, to.Place.Coord)
	dur := r.WalkingDuration(dist, speed)
	if maxDur > 0 && dur > maxDur {
		return domain.Journey{}, false
	}
	dep, arr := at, at.Add(dur)
	if !clockwise {
		dep, arr = at.Add(-dur), at
	}
	j := domain.Journey{
		RequestedDateTime: at,
		Sections: []domain.Section{{
			Type:      domain.SectionStreetNetwork,
			From:      from.Place,
			To:        to.Place,
			Departure: dep,
			Arrival:   arr,
		}},
	}
	j.RecomputeBounds()
	return j, true
}

// TakeStats returns the cache hits and misses since the last call.
func (r *Router) TakeStats() (hits, misses int) {
	hits, misses = r.hits, r.misses
	r.hits, r.misses = 0, 0
	return hits, misses
}

// quantize rounds a coordinate to ~11 m so nearby lookups share entries.
func quantize(v float64) float64 {
	return math.Round(v*10000) / 10000
}
