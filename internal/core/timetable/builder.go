package timetable

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
)

// Builder errors.
var (
	ErrDuplicateID     = errors.New("timetable: duplicate id")
	ErrUnknownRef      = errors.New("timetable: unknown reference")
	ErrInvalidSchedule = errors.New("timetable: invalid schedule")
	ErrInvalidClock    = errors.New("timetable: invalid clock time")
)

// Builder assembles a Data value. It is not safe for concurrent use.
type Builder struct {
	data *Data
}

// NewBuilder starts a graph whose production period covers days days from
// start (truncated to midnight in loc).
func NewBuilder(loc *time.Location, start time.Time, days int) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	st := start.In(loc)
	d := Empty()
	d.Location = loc
	d.Start = time.Date(st.Year(), st.Month(), st.Day(), 0, 0, 0, 0, loc)
	d.Days = days
	return &Builder{data: d}
}

// AddAgency registers an agency.
func (b *Builder) AddAgency(id, name, timezone string) (int, error) {
	if _, ok := b.data.agencyIndex[id]; ok {
		return None, fmt.Errorf("%w: agency %q", ErrDuplicateID, id)
	}
	idx := len(b.data.Agencies)
	b.data.Agencies = append(b.data.Agencies, Agency{ID: id, Name: name, Timezone: timezone})
	b.data.agencyIndex[id] = idx
	return idx, nil
}

// AddStopPoint registers a stop point.
func (b *Builder) AddStopPoint(id, name string, coord domain.Coord) (int, error) {
	if _, ok := b.data.stopIndex[id]; ok {
		return None, fmt.Errorf("%w: stop point %q", ErrDuplicateID, id)
	}
	idx := len(b.data.StopPoints)
	b.data.StopPoints = append(b.data.StopPoints, StopPoint{Idx: idx, ID: id, Name: name, Coord: coord})
	b.data.stopIndex[id] = idx
	return idx, nil
}

// AddRoute registers a route. An empty agency id attaches the route to the
// only agency when there is exactly one.
func (b *Builder) AddRoute(id, name, agencyID string) (int, error) {
	if _, ok := b.data.routeIndex[id]; ok {
		return None, fmt.Errorf("%w: route %q", ErrDuplicateID, id)
	}
	agency := None
	switch {
	case agencyID != "":
		a, ok := b.data.agencyIndex[agencyID]
		if !ok {
			return None, fmt.Errorf("%w: route %q references agency %q", ErrUnknownRef, id, agencyID)
		}
		agency = a
	case len(b.data.Agencies) == 1:
		agency = 0
	}
	idx := len(b.data.Routes)
	b.data.Routes = append(b.data.Routes, Route{Idx: idx, ID: id, Name: name, Agency: agency})
	b.data.routeIndex[id] = idx
	return idx, nil
}

// SetServiceDay marks a service active or inactive on date, creating the
// calendar on first use. Dates outside the production period are ignored.
func (b *Builder) SetServiceDay(serviceID string, date time.Time, active bool) {
	c := b.calendar(serviceID)
	day := b.data.DayIndex(date)
	if day < 0 || day >= b.data.Days {
		return
	}
	b.data.Calendars[c].Active[day] = active
}

// SetServicePattern activates a service on every day of [from, to] whose
// weekday is enabled.
func (b *Builder) SetServicePattern(serviceID string, from, to time.Time, weekdays [7]bool) {
	c := b.calendar(serviceID)
	first := b.data.DayIndex(from)
	last := b.data.DayIndex(to)
	for day := max(first, 0); day <= last && day < b.data.Days; day++ {
		if weekdays[b.data.ServiceDay(day).Weekday()] {
			b.data.Calendars[c].Active[day] = true
		}
	}
}

func (b *Builder) calendar(serviceID string) int {
	if c, ok := b.data.calendarIndex[serviceID]; ok {
		return c
	}
	c := len(b.data.Calendars)
	b.data.Calendars = append(b.data.Calendars, Calendar{ID: serviceID, Active: make([]bool, b.data.Days)})
	b.data.calendarIndex[serviceID] = c
	return c
}

// StopTimeSpec is the builder input for one call of a vehicle journey.
type StopTimeSpec struct {
	StopID    string
	Arrival   int32
	Departure int32
	PickUp    bool
	DropOff   bool
}

// AddVehicleJourney registers a vehicle journey. Stop times must be given in
// calling order.
func (b *Builder) AddVehicleJourney(id, routeID, serviceID, block string, calls []StopTimeSpec) (int, error) {
	if _, ok := b.data.vjIndex[id]; ok {
		return None, fmt.Errorf("%w: vehicle journey %q", ErrDuplicateID, id)
	}
	route, ok := b.data.routeIndex[routeID]
	if !ok {
		return None, fmt.Errorf("%w: vehicle journey %q references route %q", ErrUnknownRef, id, routeID)
	}
	if len(calls) < 2 {
		return None, fmt.Errorf("%w: vehicle journey %q has %d stop times", ErrInvalidSchedule, id, len(calls))
	}

	sts := make([]StopTime, len(calls))
	for i, c := range calls {
		sp, ok := b.data.stopIndex[c.StopID]
		if !ok {
			return None, fmt.Errorf("%w: vehicle journey %q references stop %q", ErrUnknownRef, id, c.StopID)
		}
		if c.Departure < c.Arrival {
			return None, fmt.Errorf("%w: vehicle journey %q departs %q before arriving", ErrInvalidSchedule, id, c.StopID)
		}
		if i > 0 && c.Arrival < calls[i-1].Departure {
			return None, fmt.Errorf("%w: vehicle journey %q goes back in time at %q", ErrInvalidSchedule, id, c.StopID)
		}
		sts[i] = StopTime{StopPoint: sp, Arrival: c.Arrival, Departure: c.Departure, PickUp: c.PickUp, DropOff: c.DropOff}
	}

	idx := len(b.data.VehicleJourneys)
	b.data.VehicleJourneys = append(b.data.VehicleJourneys, VehicleJourney{
		Idx:         idx,
		ID:          id,
		Route:       route,
		Calendar:    b.calendar(serviceID),
		Block:       block,
		StopTimes:   sts,
		NextInBlock: None,
		PrevInBlock: None,
	})
	b.data.vjIndex[id] = idx
	return idx, nil
}

// Build resolves the derived relations and returns the graph. The builder
// must not be used afterwards.
func (b *Builder) Build() (*Data, error) {
	d := b.data
	b.data = nil
	if d == nil {
		return nil, errors.New("timetable: builder already used")
	}
	d.linkStops()
	d.linkBlocks()
	return d, nil
}

// linkStops rebuilds StopVJs.
func (d *Data) linkStops() {
	d.StopVJs = make([][]int, len(d.StopPoints))
	for vi := range d.VehicleJourneys {
		seen := make(map[int]bool, len(d.VehicleJourneys[vi].StopTimes))
		for _, st := range d.VehicleJourneys[vi].StopTimes {
			if seen[st.StopPoint] {
				continue
			}
			seen[st.StopPoint] = true
			d.StopVJs[st.StopPoint] = append(d.StopVJs[st.StopPoint], vi)
		}
	}
}

// linkBlocks chains vehicle journeys sharing a block and a calendar when a
// run ends where the next one starts.
func (d *Data) linkBlocks() {
	type key struct {
		block    string
		calendar int
	}
	groups := make(map[key][]int)
	for vi, vj := range d.VehicleJourneys {
		if vj.Block == "" || vj.Realtime {
			continue
		}
		k := key{vj.Block, vj.Calendar}
		groups[k] = append(groups[k], vi)
	}
	for _, vjs := range groups {
		sort.Slice(vjs, func(i, j int) bool {
			return d.VehicleJourneys[vjs[i]].StopTimes[0].Departure < d.VehicleJourneys[vjs[j]].StopTimes[0].Departure
		})
		for i := 1; i < len(vjs); i++ {
			prev := &d.VehicleJourneys[vjs[i-1]]
			next := &d.VehicleJourneys[vjs[i]]
			last := prev.StopTimes[len(prev.StopTimes)-1]
			first := next.StopTimes[0]
			if last.StopPoint != first.StopPoint || first.Departure < last.Arrival {
				continue
			}
			prev.NextInBlock = next.Idx
			next.PrevInBlock = prev.Idx
		}
	}
}

// ParseClock parses "HH:MM:SS" (hours may exceed 23) into seconds.
func ParseClock(s string) (int32, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	var total int32
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || (i > 0 && v > 59) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		total = total*60 + int32(v)
	}
	return total, nil
}

// MustClock is ParseClock for literals known to be valid.
func MustClock(s string) int32 {
	v, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return v
}
