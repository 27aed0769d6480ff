package service

import (
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/timetable"
)

// candidate is a stop position of a public transport section.
type candidate struct {
	section int
	pos     int
}

// Backtrack moves the boarding point of the first public transport section
// (clockwise) or the alighting point of the last one (anticlockwise) to the
// fallback stop with the shortest walk that the same vehicle still serves.
// The scan follows a same-block continuation when the journey stays aboard.
// It reports whether the journey changed.
func Backtrack(j *domain.Journey, d *timetable.Data, fallback map[int]time.Duration, clockwise bool) bool {
	if clockwise {
		return backtrackBoarding(j, d, fallback)
	}
	return backtrackAlighting(j, d, fallback)
}

func backtrackBoarding(j *domain.Journey, d *timetable.Data, fallback map[int]time.Duration) bool {
	first := nextPT(j.Sections, -1)
	if first < 0 {
		return false
	}
	sec := j.Sections[first]
	cur, ok := fallback[stopAt(d, sec.VJ, sec.BoardPos)]
	if !ok {
		cur = walked(j.Sections[:first])
	}

	var scan []candidate
	for p := sec.BoardPos + 1; p < sec.AlightPos; p++ {
		scan = append(scan, candidate{first, p})
	}
	if second := nextPT(j.Sections, first); second >= 0 && chained(d, sec, j.Sections[second]) {
		next := j.Sections[second]
		for p := next.BoardPos; p < next.AlightPos; p++ {
			scan = append(scan, candidate{second, p})
		}
	}

	best, dur, found := pick(d, j.Sections, scan, fallback, cur, func(st timetable.StopTime) bool { return st.PickUp })
	if !found {
		return false
	}

	target := j.Sections[best.section]
	st := d.VehicleJourneys[target.VJ].StopTimes[best.pos]
	target.BoardPos = best.pos
	target.From = d.PlaceOf(st.StopPoint)
	target.Departure = target.ServiceDay.Add(time.Duration(st.Departure) * time.Second)

	access := domain.Section{
		Type:      domain.SectionStreetNetwork,
		From:      j.Sections[0].From,
		To:        target.From,
		Departure: target.Departure.Add(-dur),
		Arrival:   target.Departure,
	}
	rest := j.Sections[best.section+1:]
	sections := make([]domain.Section, 0, len(rest)+2)
	sections = append(sections, access, target)
	j.Sections = append(sections, rest...)
	j.RecomputeBounds()
	return true
}

func backtrackAlighting(j *domain.Journey, d *timetable.Data, fallback map[int]time.Duration) bool {
	last := prevPT(j.Sections, len(j.Sections))
	if last < 0 {
		return false
	}
	sec := j.Sections[last]
	cur, ok := fallback[stopAt(d, sec.VJ, sec.AlightPos)]
	if !ok {
		cur = walked(j.Sections[last+1:])
	}

	var scan []candidate
	for p := sec.AlightPos - 1; p > sec.BoardPos; p-- {
		scan = append(scan, candidate{last, p})
	}
	if prev := prevPT(j.Sections, last); prev >= 0 && chained(d, j.Sections[prev], sec) {
		before := j.Sections[prev]
		for p := before.AlightPos; p > before.BoardPos; p-- {
			scan = append(scan, candidate{prev, p})
		}
	}

	best, dur, found := pick(d, j.Sections, scan, fallback, cur, func(st timetable.StopTime) bool { return st.DropOff })
	if !found {
		return false
	}

	target := j.Sections[best.section]
	st := d.VehicleJourneys[target.VJ].StopTimes[best.pos]
	target.AlightPos = best.pos
	target.To = d.PlaceOf(st.StopPoint)
	target.Arrival = target.ServiceDay.Add(time.Duration(st.Arrival) * time.Second)

	egress := domain.Section{
		Type:      domain.SectionStreetNetwork,
		From:      target.To,
		To:        j.Sections[len(j.Sections)-1].To,
		Departure: target.Arrival,
		Arrival:   target.Arrival.Add(dur),
	}
	sections := make([]domain.Section, 0, best.section+2)
	sections = append(sections, j.Sections[:best.section]...)
	j.Sections = append(sections, target, egress)
	j.RecomputeBounds()
	return true
}

// pick returns the scanned stop with the shortest fallback strictly below
// cur. On ties the stop scanned last wins.
func pick(d *timetable.Data, sections []domain.Section, scan []candidate, fallback map[int]time.Duration,
	cur time.Duration, allowed func(timetable.StopTime) bool) (candidate, time.Duration, bool) {
	var (
		best  candidate
		bestD time.Duration
		found bool
	)
	for _, c := range scan {
		st := d.VehicleJourneys[sections[c.section].VJ].StopTimes[c.pos]
		if !allowed(st) {
			continue
		}
		dur, ok := fallback[st.StopPoint]
		if !ok || dur >= cur {
			continue
		}
		if !found || dur <= bestD {
			best, bestD, found = c, dur, true
		}
	}
	return best, bestD, found
}

// chained reports whether b continues a aboard the same vehicle.
func chained(d *timetable.Data, a, b domain.Section) bool {
	return d.VehicleJourneys[a.VJ].NextInBlock == b.VJ && a.To.ID == b.From.ID
}

func stopAt(d *timetable.Data, vj, pos int) int {
	return d.VehicleJourneys[vj].StopTimes[pos].StopPoint
}

func walked(sections []domain.Section) time.Duration {
	var total time.Duration
	for _, s := range sections {
		total += s.Duration()
	}
	return total
}

func nextPT(sections []domain.Section, after int) int {
	for i := after + 1; i < len(sections); i++ {
		if sections[i].Type == domain.SectionPublicTransport {
			return i
		}
	}
	return -1
}

func prevPT(sections []domain.Section, before int) int {
	for i := before - 1; i >= 0; i-- {
		if sections[i].Type == domain.SectionPublicTransport {
			return i
		}
	}
	return -1
}
