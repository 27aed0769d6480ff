package realtime

import (
	"fmt"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/hove-io/navitia-sub004/internal/core/timetable"
)

// Decode parses a FeedMessage into trip updates against d. Updates for trips
// operated by agencies outside contributors are dropped; an empty
// contributors list keeps everything. Trips unknown to d are kept and
// skipped when applied.
func Decode(b []byte, d *timetable.Data, contributors []string) ([]timetable.TripUpdate, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}

	allowed := make(map[string]bool, len(contributors))
	for _, c := range contributors {
		allowed[c] = true
	}

	var out []timetable.TripUpdate
	for _, e := range fm.GetEntity() {
		if e.GetIsDeleted() || e.GetTripUpdate() == nil {
			continue
		}
		tu := e.GetTripUpdate()
		tripID := tu.GetTrip().GetTripId()
		if tripID == "" {
			continue
		}
		if len(allowed) > 0 {
			if vj, ok := d.VJByID(tripID); ok && !allowed[d.AgencyOfVJ(vj)] {
				continue
			}
		}

		u, err := convert(tu, d.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: entity %q: %v", ErrData, e.GetId(), err)
		}
		out = append(out, u)
	}
	return out, nil
}

func convert(tu *gtfsrtpb.TripUpdate, loc *time.Location) (timetable.TripUpdate, error) {
	trip := tu.GetTrip()
	u := timetable.TripUpdate{
		TripID:    trip.GetTripId(),
		Cancelled: trip.GetScheduleRelationship() == gtfsrtpb.TripDescriptor_CANCELED,
	}
	if sd := trip.GetStartDate(); sd != "" {
		day, err := time.ParseInLocation("20060102", sd, loc)
		if err != nil {
			return u, fmt.Errorf("start_date %q: %v", sd, err)
		}
		u.StartDate = day
	}
	if u.Cancelled {
		return u, nil
	}

	for _, stu := range tu.GetStopTimeUpdate() {
		if stu.GetStopId() == "" {
			continue
		}
		su := timetable.StopUpdate{
			StopID:  stu.GetStopId(),
			Skipped: stu.GetScheduleRelationship() == gtfsrtpb.TripUpdate_StopTimeUpdate_SKIPPED,
		}
		if ev := stu.GetArrival(); ev != nil {
			su.ArrivalDelay, su.ArrivalTime = event(ev)
		}
		if ev := stu.GetDeparture(); ev != nil {
			su.DepartureDelay, su.DepartureTime = event(ev)
		}
		u.Stops = append(u.Stops, su)
	}
	return u, nil
}

// event returns the delay, or the absolute time when the feed carries one.
func event(ev *gtfsrtpb.TripUpdate_StopTimeEvent) (time.Duration, time.Time) {
	if ev.Time != nil {
		return 0, time.Unix(ev.GetTime(), 0)
	}
	return time.Duration(ev.GetDelay()) * time.Second, time.Time{}
}
