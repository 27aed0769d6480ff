package timetable

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownTrip is returned when a trip update names no known vehicle journey.
var ErrUnknownTrip = errors.New("timetable: unknown trip")

// StopUpdate is the realtime state of one call.
type StopUpdate struct {
	StopID string

	// Delays apply when the absolute times are zero.
	ArrivalDelay   time.Duration
	DepartureDelay time.Duration
	ArrivalTime    time.Time
	DepartureTime  time.Time

	Skipped bool
}

// TripUpdate is the realtime state of one vehicle journey.
type TripUpdate struct {
	TripID string
	// StartDate restricts the update to one service day. Zero applies the
	// update to every day of the journey.
	StartDate time.Time
	Cancelled bool
	Stops     []StopUpdate
}

// ApplyTripUpdates patches d with the given updates and refreshes the
// derived relations. Updates naming unknown trips are skipped and counted.
// d must be a private clone.
func (d *Data) ApplyTripUpdates(updates []TripUpdate) (applied, skipped int, err error) {
	for _, u := range updates {
		switch e := d.applyTripUpdate(u); {
		case e == nil:
			applied++
		case errors.Is(e, ErrUnknownTrip):
			skipped++
		default:
			return applied, skipped, e
		}
	}
	d.linkStops()
	return applied, skipped, nil
}

func (d *Data) applyTripUpdate(u TripUpdate) error {
	vi, ok := d.vjIndex[u.TripID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTrip, u.TripID)
	}

	day := None
	if !u.StartDate.IsZero() {
		day = d.DayIndex(u.StartDate)
		if day < 0 || day >= d.Days {
			return fmt.Errorf("%w: trip %q start date %s outside production period",
				ErrInvalidSchedule, u.TripID, u.StartDate.Format("20060102"))
		}
	}

	if u.Cancelled {
		d.exclude(vi, day)
		return nil
	}

	sts, err := d.realtimeStopTimes(vi, day, u.Stops)
	if err != nil {
		return err
	}

	if day == None {
		d.VehicleJourneys[vi].StopTimes = sts
		return nil
	}

	// Day-specific change: keep the base schedule for the other days.
	base := d.VehicleJourneys[vi]
	c := len(d.Calendars)
	active := make([]bool, d.Days)
	active[day] = true
	d.Calendars = append(d.Calendars, Calendar{ID: fmt.Sprintf("%s:rt:%d", base.ID, day), Active: active})
	d.calendarIndex[d.Calendars[c].ID] = c

	idx := len(d.VehicleJourneys)
	rt := VehicleJourney{
		Idx:         idx,
		ID:          fmt.Sprintf("%s:RealTime:%s", base.ID, d.ServiceDay(day).Format("20060102")),
		Route:       base.Route,
		Calendar:    c,
		Block:       base.Block,
		StopTimes:   sts,
		NextInBlock: None,
		PrevInBlock: None,
		Realtime:    true,
	}
	if prev, ok := d.vjIndex[rt.ID]; ok {
		// A newer update for the same day replaces the previous copy.
		rt.Idx = prev
		rt.Calendar = d.VehicleJourneys[prev].Calendar
		d.Calendars = d.Calendars[:c]
		delete(d.calendarIndex, fmt.Sprintf("%s:rt:%d", base.ID, day))
		d.VehicleJourneys[prev] = rt
	} else {
		d.VehicleJourneys = append(d.VehicleJourneys, rt)
		d.vjIndex[rt.ID] = idx
	}
	d.exclude(vi, day)
	return nil
}

func (d *Data) exclude(vi, day int) {
	vj := &d.VehicleJourneys[vi]
	if vj.Excluded == nil {
		vj.Excluded = make(map[int]bool)
	}
	if day == None {
		for i := 0; i < d.Days; i++ {
			vj.Excluded[i] = true
		}
		return
	}
	vj.Excluded[day] = true
}

// realtimeStopTimes propagates the updates along the journey: a delay
// holds until the next updated stop.
func (d *Data) realtimeStopTimes(vi, day int, updates []StopUpdate) ([]StopTime, error) {
	base := d.VehicleJourneys[vi].StopTimes
	sts := append([]StopTime(nil), base...)

	next := 0
	var arrDelay, depDelay int32
	for i := range sts {
		st := &sts[i]
		if next < len(updates) && d.StopPoints[st.StopPoint].ID == updates[next].StopID {
			su := updates[next]
			next++
			if su.Skipped {
				st.PickUp = false
				st.DropOff = false
			}
			arrDelay = d.delay(day, st.Arrival, su.ArrivalTime, su.ArrivalDelay)
			depDelay = d.delay(day, st.Departure, su.DepartureTime, su.DepartureDelay)
			if su.DepartureTime.IsZero() && su.DepartureDelay == 0 {
				depDelay = arrDelay
			}
		}
		st.Arrival += arrDelay
		st.Departure += depDelay
		if st.Departure < st.Arrival {
			st.Departure = st.Arrival
		}
		if i > 0 && st.Arrival < sts[i-1].Departure {
			st.Arrival = sts[i-1].Departure
			if st.Departure < st.Arrival {
				st.Departure = st.Arrival
			}
		}
		arrDelay = depDelay
	}
	if next < len(updates) {
		return nil, fmt.Errorf("%w: trip %q has no call at %q",
			ErrInvalidSchedule, d.VehicleJourneys[vi].ID, updates[next].StopID)
	}
	return sts, nil
}

func (d *Data) delay(day int, scheduled int32, abs time.Time, delay time.Duration) int32 {
	if abs.IsZero() {
		return int32(delay / time.Second)
	}
	if day == None {
		day = d.DayIndex(abs)
		// Calls past midnight belong to the previous service day.
		if scheduled >= 24*3600 {
			day--
		}
	}
	return int32(abs.Sub(d.At(day, scheduled)) / time.Second)
}
