package timetable

import (
	"sort"
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
)

// None marks an absent index reference.
const None = -1

// Agency is a transit operator. Agency ids double as contributor ids.
type Agency struct {
	ID       string
	Name     string
	Timezone string
}

// StopPoint is a boarding location.
type StopPoint struct {
	Idx   int
	ID    string
	Name  string
	Coord domain.Coord
}

// Route groups vehicle journeys under one commercial line.
type Route struct {
	Idx    int
	ID     string
	Name   string
	Agency int
}

// StopTime is one call of a vehicle journey. Times are seconds after the
// service day midnight and may exceed 24h.
type StopTime struct {
	StopPoint int
	Arrival   int32
	Departure int32
	PickUp    bool
	DropOff   bool
}

// VehicleJourney is one run of a vehicle along a sequence of stops.
type VehicleJourney struct {
	Idx       int
	ID        string
	Route     int
	Calendar  int
	Block     string
	StopTimes []StopTime

	// Same-block chaining, sorted by first departure. None when unchained.
	NextInBlock int
	PrevInBlock int

	// Realtime marks a journey created by a trip update.
	Realtime bool
	// Excluded lists service days removed by realtime (cancellation or
	// replacement by a realtime copy).
	Excluded map[int]bool
}

// Calendar lists the service days of a set of vehicle journeys, indexed
// from Data.Start.
type Calendar struct {
	ID     string
	Active []bool
}

// Data is the arena-backed transit graph.
type Data struct {
	Location *time.Location
	Start    time.Time // midnight of the first production day
	Days     int

	Agencies        []Agency
	StopPoints      []StopPoint
	Routes          []Route
	VehicleJourneys []VehicleJourney
	Calendars       []Calendar

	// StopVJs lists, per stop point, the vehicle journeys calling there.
	StopVJs [][]int

	stopIndex     map[string]int
	routeIndex    map[string]int
	vjIndex       map[string]int
	agencyIndex   map[string]int
	calendarIndex map[string]int
}

// Empty returns a graph without any entity.
func Empty() *Data {
	d := &Data{Location: time.UTC}
	d.reindex()
	return d
}

func (d *Data) reindex() {
	d.stopIndex = make(map[string]int, len(d.StopPoints))
	for i, sp := range d.StopPoints {
		d.stopIndex[sp.ID] = i
	}
	d.routeIndex = make(map[string]int, len(d.Routes))
	for i, r := range d.Routes {
		d.routeIndex[r.ID] = i
	}
	d.vjIndex = make(map[string]int, len(d.VehicleJourneys))
	for i, vj := range d.VehicleJourneys {
		d.vjIndex[vj.ID] = i
	}
	d.agencyIndex = make(map[string]int, len(d.Agencies))
	for i, a := range d.Agencies {
		d.agencyIndex[a.ID] = i
	}
	d.calendarIndex = make(map[string]int, len(d.Calendars))
	for i, c := range d.Calendars {
		d.calendarIndex[c.ID] = i
	}
}

// StopByID resolves a stop point id.
func (d *Data) StopByID(id string) (int, bool) {
	i, ok := d.stopIndex[id]
	return i, ok
}

// RouteByID resolves a route id.
func (d *Data) RouteByID(id string) (int, bool) {
	i, ok := d.routeIndex[id]
	return i, ok
}

// VJByID resolves a vehicle journey id.
func (d *Data) VJByID(id string) (int, bool) {
	i, ok := d.vjIndex[id]
	return i, ok
}

// AgencyByID resolves an agency id.
func (d *Data) AgencyByID(id string) (int, bool) {
	i, ok := d.agencyIndex[id]
	return i, ok
}

// ServiceDay returns the midnight of the given day index.
func (d *Data) ServiceDay(day int) time.Time {
	return d.Start.AddDate(0, 0, day)
}

// DayIndex returns the day index containing t (may be out of range).
func (d *Data) DayIndex(t time.Time) int {
	lt := t.In(d.Location)
	midnight := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, d.Location)
	// Round to absorb DST shifts.
	return int((midnight.Sub(d.Start) + 12*time.Hour) / (24 * time.Hour))
}

// IsActive reports whether the vehicle journey runs on the day index.
func (d *Data) IsActive(vj, day int) bool {
	if day < 0 || day >= d.Days {
		return false
	}
	v := &d.VehicleJourneys[vj]
	if v.Excluded[day] {
		return false
	}
	if v.Calendar == None {
		return false
	}
	return d.Calendars[v.Calendar].Active[day]
}

// At returns the absolute instant of seconds after the day's midnight.
func (d *Data) At(day int, secs int32) time.Time {
	return d.ServiceDay(day).Add(time.Duration(secs) * time.Second)
}

// PlaceOf returns the domain place of a stop point.
func (d *Data) PlaceOf(stop int) domain.Place {
	sp := &d.StopPoints[stop]
	return domain.Place{ID: sp.ID, Name: sp.Name, Coord: sp.Coord}
}

// Contributors returns the sorted agency ids.
func (d *Data) Contributors() []string {
	ids := make([]string, 0, len(d.Agencies))
	for _, a := range d.Agencies {
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)
	return ids
}

// AgencyOfVJ returns the agency id operating a vehicle journey.
func (d *Data) AgencyOfVJ(vj int) string {
	r := d.VehicleJourneys[vj].Route
	if r == None {
		return ""
	}
	a := d.Routes[r].Agency
	if a == None {
		return ""
	}
	return d.Agencies[a].ID
}

// EndDay returns the midnight of the last production day.
func (d *Data) EndDay() time.Time {
	if d.Days == 0 {
		return d.Start
	}
	return d.ServiceDay(d.Days - 1)
}

// Clone returns a deep copy that can be patched without affecting d.
func (d *Data) Clone() *Data {
	cp := &Data{
		Location:   d.Location,
		Start:      d.Start,
		Days:       d.Days,
		Agencies:   append([]Agency(nil), d.Agencies...),
		StopPoints: append([]StopPoint(nil), d.StopPoints...),
		Routes:     append([]Route(nil), d.Routes...),
	}

	cp.VehicleJourneys = make([]VehicleJourney, len(d.VehicleJourneys))
	for i, vj := range d.VehicleJourneys {
		vj.StopTimes = append([]StopTime(nil), vj.StopTimes...)
		if vj.Excluded != nil {
			ex := make(map[int]bool, len(vj.Excluded))
			for k, v := range vj.Excluded {
				ex[k] = v
			}
			vj.Excluded = ex
		}
		cp.VehicleJourneys[i] = vj
	}

	cp.Calendars = make([]Calendar, len(d.Calendars))
	for i, c := range d.Calendars {
		cp.Calendars[i] = Calendar{ID: c.ID, Active: append([]bool(nil), c.Active...)}
	}

	cp.StopVJs = make([][]int, len(d.StopVJs))
	for i, vjs := range d.StopVJs {
		cp.StopVJs[i] = append([]int(nil), vjs...)
	}

	cp.reindex()
	return cp
}
