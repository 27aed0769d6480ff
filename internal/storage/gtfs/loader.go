// Package gtfs loads a GTFS base extract (zip archive or directory) into a
// timetable.
package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // agency timezones must resolve on minimal images

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/timetable"
)

// Loader errors.
var (
	ErrMissingFile = errors.New("gtfs: missing mandatory file")
	ErrMalformed   = errors.New("gtfs: malformed extract")
	ErrNoService   = errors.New("gtfs: no service period")
)

const dateLayout = "20060102"

// Load reads the extract at path.
func Load(path string) (*timetable.Data, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("gtfs: open extract: %w", err)
	}
	if info.IsDir() {
		return LoadFS(os.DirFS(path))
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("gtfs: open zip: %w", err)
	}
	defer zr.Close()
	return LoadFS(zr)
}

// LoadFS reads an extract from fsys. Files may sit at the root or in a
// single top-level directory.
func LoadFS(fsys fs.FS) (*timetable.Data, error) {
	l := &loader{fsys: fsys, trips: make(map[string]tripInfo)}
	if err := l.locate(); err != nil {
		return nil, err
	}
	return l.load()
}

type tripInfo struct {
	route, service, block string
}

type stopTimeRow struct {
	seq  int
	call timetable.StopTimeSpec
}

type loader struct {
	fsys   fs.FS
	prefix string
	loc    *time.Location
	b      *timetable.Builder
	trips  map[string]tripInfo
}

// locate finds the directory holding stops.txt.
func (l *loader) locate() error {
	if _, err := fs.Stat(l.fsys, "stops.txt"); err == nil {
		return nil
	}
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return fmt.Errorf("gtfs: list extract: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(l.fsys, e.Name()+"/stops.txt"); err == nil {
			l.prefix = e.Name() + "/"
			return nil
		}
	}
	return fmt.Errorf("%w: stops.txt", ErrMissingFile)
}

func (l *loader) load() (*timetable.Data, error) {
	loc, err := l.timezone()
	if err != nil {
		return nil, err
	}
	l.loc = loc
	start, end, err := l.period(loc)
	if err != nil {
		return nil, err
	}
	days := int(end.Sub(start).Hours()/24+0.5) + 1
	l.b = timetable.NewBuilder(loc, start, days)

	steps := []struct {
		name     string
		required bool
		fn       func(*table) error
	}{
		{"agency.txt", true, l.agency},
		{"stops.txt", true, l.stops},
		{"routes.txt", true, l.routes},
		{"calendar.txt", false, l.calendar},
		{"calendar_dates.txt", false, l.calendarDates},
		{"trips.txt", true, l.tripsFile},
		{"stop_times.txt", true, l.stopTimes},
	}
	for _, st := range steps {
		if err := l.consume(st.name, st.required, st.fn); err != nil {
			return nil, err
		}
	}
	return l.b.Build()
}

// table is a streaming CSV reader with header lookup.
type table struct {
	name   string
	r      *csv.Reader
	header map[string]int
	row    []string
	line   int
}

func (t *table) next() (bool, error) {
	row, err := t.r.Read()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrMalformed, t.name, err)
	}
	t.row = row
	t.line++
	return true, nil
}

func (t *table) get(col string) string {
	i, ok := t.header[col]
	if !ok || i >= len(t.row) {
		return ""
	}
	return strings.TrimSpace(t.row[i])
}

func (t *table) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s line %d: %s", ErrMalformed, t.name, t.line+1, fmt.Sprintf(format, args...))
}

func (l *loader) open(name string) (*table, io.Closer, error) {
	f, err := l.fsys.Open(l.prefix + name)
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = false
	head, err := r.Read()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s: read header: %v", ErrMalformed, name, err)
	}
	header := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.TrimPrefix(h, "\ufeff")
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return &table{name: name, r: r, header: header}, f, nil
}

func (l *loader) consume(name string, required bool, fn func(*table) error) error {
	t, closer, err := l.open(name)
	if errors.Is(err, fs.ErrNotExist) {
		if required {
			return fmt.Errorf("%w: %s", ErrMissingFile, name)
		}
		return nil
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return fn(t)
}

// timezone reads the first agency timezone.
func (l *loader) timezone() (*time.Location, error) {
	loc := time.UTC
	err := l.consume("agency.txt", true, func(t *table) error {
		ok, err := t.next()
		if err != nil || !ok {
			return err
		}
		name := t.get("agency_timezone")
		if name == "" {
			return nil
		}
		loc, err = time.LoadLocation(name)
		if err != nil {
			return t.errorf("agency_timezone %q: %v", name, err)
		}
		return nil
	})
	return loc, err
}

// period scans the calendars for the production period.
func (l *loader) period(loc *time.Location) (time.Time, time.Time, error) {
	var start, end time.Time
	extend := func(d time.Time) {
		if start.IsZero() || d.Before(start) {
			start = d
		}
		if end.IsZero() || d.After(end) {
			end = d
		}
	}

	err := l.consume("calendar.txt", false, func(t *table) error {
		for {
			ok, err := t.next()
			if err != nil || !ok {
				return err
			}
			from, err := time.ParseInLocation(dateLayout, t.get("start_date"), loc)
			if err != nil {
				return t.errorf("start_date: %v", err)
			}
			to, err := time.ParseInLocation(dateLayout, t.get("end_date"), loc)
			if err != nil {
				return t.errorf("end_date: %v", err)
			}
			extend(from)
			extend(to)
		}
	})
	if err != nil {
		return start, end, err
	}

	err = l.consume("calendar_dates.txt", false, func(t *table) error {
		for {
			ok, err := t.next()
			if err != nil || !ok {
				return err
			}
			d, err := time.ParseInLocation(dateLayout, t.get("date"), loc)
			if err != nil {
				return t.errorf("date: %v", err)
			}
			if t.get("exception_type") == "1" {
				extend(d)
			}
		}
	})
	if err != nil {
		return start, end, err
	}

	if start.IsZero() {
		return start, end, ErrNoService
	}
	return start, end, nil
}

func (l *loader) agency(t *table) error {
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return err
		}
		id := t.get("agency_id")
		if id == "" {
			id = "default_agency"
		}
		if _, err := l.b.AddAgency(id, t.get("agency_name"), t.get("agency_timezone")); err != nil {
			return t.errorf("%v", err)
		}
	}
}

func (l *loader) stops(t *table) error {
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return err
		}
		// Stations and entrances are not boarding points.
		if lt := t.get("location_type"); lt != "" && lt != "0" {
			continue
		}
		lat, err := strconv.ParseFloat(t.get("stop_lat"), 64)
		if err != nil {
			return t.errorf("stop_lat: %v", err)
		}
		lon, err := strconv.ParseFloat(t.get("stop_lon"), 64)
		if err != nil {
			return t.errorf("stop_lon: %v", err)
		}
		if _, err := l.b.AddStopPoint(t.get("stop_id"), t.get("stop_name"), domain.Coord{Lon: lon, Lat: lat}); err != nil {
			return t.errorf("%v", err)
		}
	}
}

func (l *loader) routes(t *table) error {
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return err
		}
		name := t.get("route_short_name")
		if name == "" {
			name = t.get("route_long_name")
		}
		if _, err := l.b.AddRoute(t.get("route_id"), name, t.get("agency_id")); err != nil {
			return t.errorf("%v", err)
		}
	}
}

var weekdayColumns = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func (l *loader) calendar(t *table) error {
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return err
		}
		from, err := time.ParseInLocation(dateLayout, t.get("start_date"), l.loc)
		if err != nil {
			return t.errorf("start_date: %v", err)
		}
		to, err := time.ParseInLocation(dateLayout, t.get("end_date"), l.loc)
		if err != nil {
			return t.errorf("end_date: %v", err)
		}
		var days [7]bool
		for i, col := range weekdayColumns {
			days[i] = t.get(col) == "1"
		}
		l.b.SetServicePattern(t.get("service_id"), from, to, days)
	}
}

func (l *loader) calendarDates(t *table) error {
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return err
		}
		d, err := time.ParseInLocation(dateLayout, t.get("date"), l.loc)
		if err != nil {
			return t.errorf("date: %v", err)
		}
		switch t.get("exception_type") {
		case "1":
			l.b.SetServiceDay(t.get("service_id"), d, true)
		case "2":
			l.b.SetServiceDay(t.get("service_id"), d, false)
		default:
			return t.errorf("exception_type %q", t.get("exception_type"))
		}
	}
}

func (l *loader) tripsFile(t *table) error {
	for {
		ok, err := t.next()
		if err != nil || !ok {
			return err
		}
		l.trips[t.get("trip_id")] = tripInfo{
			route:   t.get("route_id"),
			service: t.get("service_id"),
			block:   t.get("block_id"),
		}
	}
}

func (l *loader) stopTimes(t *table) error {
	byTrip := make(map[string][]stopTimeRow)
	order := make([]string, 0, len(l.trips))
	for {
		ok, err := t.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		trip := t.get("trip_id")
		if _, known := l.trips[trip]; !known {
			return t.errorf("unknown trip %q", trip)
		}
		seq, err := strconv.Atoi(t.get("stop_sequence"))
		if err != nil {
			return t.errorf("stop_sequence: %v", err)
		}
		arrS, depS := t.get("arrival_time"), t.get("departure_time")
		if arrS == "" {
			arrS = depS
		}
		if depS == "" {
			depS = arrS
		}
		if arrS == "" {
			return t.errorf("trip %q has no time at sequence %d", trip, seq)
		}
		arr, err := timetable.ParseClock(arrS)
		if err != nil {
			return t.errorf("arrival_time: %v", err)
		}
		dep, err := timetable.ParseClock(depS)
		if err != nil {
			return t.errorf("departure_time: %v", err)
		}
		if _, seen := byTrip[trip]; !seen {
			order = append(order, trip)
		}
		byTrip[trip] = append(byTrip[trip], stopTimeRow{seq: seq, call: timetable.StopTimeSpec{
			StopID:    t.get("stop_id"),
			Arrival:   arr,
			Departure: dep,
			PickUp:    t.get("pickup_type") != "1",
			DropOff:   t.get("drop_off_type") != "1",
		}})
	}

	for _, trip := range order {
		rows := byTrip[trip]
		sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
		calls := make([]timetable.StopTimeSpec, len(rows))
		for i, r := range rows {
			calls[i] = r.call
		}
		info := l.trips[trip]
		if _, err := l.b.AddVehicleJourney(trip, info.route, info.service, info.block, calls); err != nil {
			return fmt.Errorf("%w: stop_times.txt: %v", ErrMalformed, err)
		}
	}
	return nil
}
