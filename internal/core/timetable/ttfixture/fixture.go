// Package ttfixture builds small timetables shared by tests.
package ttfixture

import (
	"fmt"
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/timetable"
)

// Zone is the local time zone of every fixture.
var Zone = time.FixedZone("CET", 3600)

// Day is the first production day of every fixture.
var Day = time.Date(2024, 3, 4, 0, 0, 0, 0, Zone)

// Coordinates far enough apart that walking between them is never viable.
var (
	CoordA = domain.Coord{Lon: 2.30, Lat: 48.80}
	CoordB = domain.Coord{Lon: 2.45, Lat: 48.90}
)

// At returns the fixture day at hh:mm.
func At(hh, mm int) time.Time {
	return time.Date(Day.Year(), Day.Month(), Day.Day(), hh, mm, 0, 0, Zone)
}

func newBuilder() *timetable.Builder {
	b := timetable.NewBuilder(Zone, Day, 7)
	must(b.AddAgency("agency:1", "Fixture Transit", Zone.String()))
	must(b.AddRoute("route:1", "Line 1", "agency:1"))
	b.SetServicePattern("service:all", Day, Day.AddDate(0, 0, 6), [7]bool{true, true, true, true, true, true, true})
	return b
}

func call(stop, arr, dep string) timetable.StopTimeSpec {
	return timetable.StopTimeSpec{
		StopID:    stop,
		Arrival:   timetable.MustClock(arr),
		Departure: timetable.MustClock(dep),
		PickUp:    true,
		DropOff:   true,
	}
}

// SingleRun is one vehicle journey A (08:10/08:11) -> B (08:20).
func SingleRun() *timetable.Data {
	b := newBuilder()
	must(b.AddStopPoint("stop_point:A", "A", CoordA))
	must(b.AddStopPoint("stop_point:B", "B", CoordB))
	must(b.AddVehicleJourney("vj:AB", "route:1", "service:all", "", []timetable.StopTimeSpec{
		call("stop_point:A", "08:10:00", "08:11:00"),
		call("stop_point:B", "08:20:00", "08:20:00"),
	}))
	return build(b)
}

// FiveRuns is five A -> B runs every 30 minutes from 08:00, 10 minutes long.
func FiveRuns() *timetable.Data {
	b := newBuilder()
	must(b.AddStopPoint("stop_point:A", "A", CoordA))
	must(b.AddStopPoint("stop_point:B", "B", CoordB))
	for i := 0; i < 5; i++ {
		dep := fmt.Sprintf("%02d:%02d:00", 8+i*30/60, i*30%60)
		arr := fmt.Sprintf("%02d:%02d:00", 8+(i*30+10)/60, (i*30+10)%60)
		must(b.AddVehicleJourney(fmt.Sprintf("vj:%d", i), "route:1", "service:all", "", []timetable.StopTimeSpec{
			call("stop_point:A", dep, dep),
			call("stop_point:B", arr, arr),
		}))
	}
	return build(b)
}

// Loop stop coordinates: O1 and O2 both lie near Origin, O2 closer.
var (
	CoordOrigin = domain.Coord{Lon: 2.3500, Lat: 48.8500}
	CoordO1     = domain.Coord{Lon: 2.3560, Lat: 48.8500}
	CoordO2     = domain.Coord{Lon: 2.3505, Lat: 48.8500}
	CoordX      = domain.Coord{Lon: 2.4000, Lat: 48.8800}
	CoordD      = domain.Coord{Lon: 2.5000, Lat: 48.9500}
)

// Loop is a run O1 (08:00) -> X (08:10) -> O2 (08:20) -> D (08:30) coming back
// near its first stop.
func Loop() *timetable.Data {
	b := newBuilder()
	must(b.AddStopPoint("stop_point:O1", "O1", CoordO1))
	must(b.AddStopPoint("stop_point:X", "X", CoordX))
	must(b.AddStopPoint("stop_point:O2", "O2", CoordO2))
	must(b.AddStopPoint("stop_point:D", "D", CoordD))
	must(b.AddVehicleJourney("vj:loop", "route:1", "service:all", "", []timetable.StopTimeSpec{
		call("stop_point:O1", "08:00:00", "08:00:00"),
		call("stop_point:X", "08:10:00", "08:10:00"),
		call("stop_point:O2", "08:20:00", "08:20:00"),
		call("stop_point:D", "08:30:00", "08:30:00"),
	}))
	return build(b)
}

// Chained is the loop split in two runs of block "block:1":
// O1 (08:00) -> X (08:10), then X (08:12) -> O2 (08:20) -> D (08:30).
func Chained() *timetable.Data {
	b := newBuilder()
	must(b.AddStopPoint("stop_point:O1", "O1", CoordO1))
	must(b.AddStopPoint("stop_point:X", "X", CoordX))
	must(b.AddStopPoint("stop_point:O2", "O2", CoordO2))
	must(b.AddStopPoint("stop_point:D", "D", CoordD))
	must(b.AddVehicleJourney("vj:first", "route:1", "service:all", "block:1", []timetable.StopTimeSpec{
		call("stop_point:O1", "08:00:00", "08:00:00"),
		call("stop_point:X", "08:10:00", "08:10:00"),
	}))
	must(b.AddVehicleJourney("vj:second", "route:1", "service:all", "block:1", []timetable.StopTimeSpec{
		call("stop_point:X", "08:12:00", "08:12:00"),
		call("stop_point:O2", "08:20:00", "08:20:00"),
		call("stop_point:D", "08:30:00", "08:30:00"),
	}))
	return build(b)
}

// Transfer is A -> C (08:00 -> 08:20) then C -> B (08:30 -> 08:50), plus a
// slow direct A -> B run (08:05 -> 09:30).
func Transfer() *timetable.Data {
	b := newBuilder()
	must(b.AddRoute("route:2", "Line 2", "agency:1"))
	must(b.AddStopPoint("stop_point:A", "A", CoordA))
	must(b.AddStopPoint("stop_point:C", "C", domain.Coord{Lon: 2.38, Lat: 48.85}))
	must(b.AddStopPoint("stop_point:B", "B", CoordB))
	must(b.AddVehicleJourney("vj:AC", "route:1", "service:all", "", []timetable.StopTimeSpec{
		call("stop_point:A", "08:00:00", "08:00:00"),
		call("stop_point:C", "08:20:00", "08:20:00"),
	}))
	must(b.AddVehicleJourney("vj:CB", "route:2", "service:all", "", []timetable.StopTimeSpec{
		call("stop_point:C", "08:30:00", "08:30:00"),
		call("stop_point:B", "08:50:00", "08:50:00"),
	}))
	must(b.AddVehicleJourney("vj:slow", "route:1", "service:all", "", []timetable.StopTimeSpec{
		call("stop_point:A", "08:05:00", "08:05:00"),
		call("stop_point:B", "09:30:00", "09:30:00"),
	}))
	return build(b)
}

func build(b *timetable.Builder) *timetable.Data {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

func must[T any](_ T, err error) {
	if err != nil {
		panic(err)
	}
}
