package raptor

import (
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
)

// journey rebuilds the journey ending at target stop s of round k.
func (p *Planner) journey(prm Params, k, s int) domain.Journey {
	var sections []domain.Section
	first := s

	for k > 0 {
		par := p.parents[k][s]
		switch par.kind {
		case kindNone:
			k--
			continue
		case kindTransfer:
			sections = append(sections, domain.Section{
				Type: domain.SectionTransfer,
				From: p.data.PlaceOf(par.from),
				To:   p.data.PlaceOf(s),
				// Anchored later; only the duration matters here.
				Departure: time.Unix(0, 0),
				Arrival:   time.Unix(abs64(p.labels[k][s]-p.labels[k][par.from]), 0),
			})
			s = par.from
		case kindVehicle:
			sections = append(sections, p.ptSection(par))
			s = par.from
			k--
		default:
			k = 0
		}
	}
	last := s

	// Sections were collected from the seed side back to the search origin.
	// Clockwise that is destination to origin, so reverse.
	if p.dir.cw {
		for i, j := 0, len(sections)-1; i < j; i, j = i+1, j-1 {
			sections[i], sections[j] = sections[j], sections[i]
		}
		first, last = last, first
	} else {
		// Transfers were recorded against the scan direction.
		for i := range sections {
			if sections[i].Type == domain.SectionTransfer {
				sections[i].From, sections[i].To = sections[i].To, sections[i].From
			}
		}
	}

	access := domain.Section{
		Type: domain.SectionStreetNetwork,
		From: prm.Origin,
		To:   p.data.PlaceOf(first),
	}
	egress := domain.Section{
		Type: domain.SectionStreetNetwork,
		From: p.data.PlaceOf(last),
		To:   prm.Destination,
	}
	all := make([]domain.Section, 0, len(sections)+2)
	all = append(all, access)
	all = append(all, sections...)
	all = append(all, egress)

	anchor(all, prm.Departures[first], prm.Destinations[last])

	j := domain.Journey{
		RequestedDateTime: prm.RequestDate,
		Sections:          all,
	}
	j.RecomputeBounds()
	return j
}

func (p *Planner) ptSection(par parent) domain.Section {
	vj := &p.data.VehicleJourneys[par.vj]
	board, alight := par.enter, par.leave
	if !p.dir.cw {
		board, alight = par.leave, par.enter
	}
	day := p.data.ServiceDay(par.day)
	sec := domain.Section{
		Type:           domain.SectionPublicTransport,
		From:           p.data.PlaceOf(vj.StopTimes[board].StopPoint),
		To:             p.data.PlaceOf(vj.StopTimes[alight].StopPoint),
		Departure:      day.Add(time.Duration(vj.StopTimes[board].Departure) * time.Second),
		Arrival:        day.Add(time.Duration(vj.StopTimes[alight].Arrival) * time.Second),
		VehicleJourney: vj.ID,
		VJ:             par.vj,
		BoardPos:       board,
		AlightPos:      alight,
		ServiceDay:     day,
	}
	if vj.Route >= 0 {
		sec.Route = p.data.Routes[vj.Route].ID
	}
	return sec
}

// anchor fixes the times of the walking sections around the public
// transport ones: walks before the first vehicle end when it leaves, the
// others start when the previous section ends.
func anchor(sections []domain.Section, accessDur, egressDur time.Duration) {
	n := len(sections)
	if n < 3 {
		return
	}
	durs := make([]time.Duration, n)
	for i := range sections {
		durs[i] = sections[i].Arrival.Sub(sections[i].Departure)
	}
	durs[0], durs[n-1] = accessDur, egressDur

	firstPT := -1
	for i, sec := range sections {
		if sec.Type == domain.SectionPublicTransport {
			firstPT = i
			break
		}
	}
	if firstPT < 0 {
		return
	}

	for i := firstPT - 1; i >= 0; i-- {
		sections[i].Arrival = sections[i+1].Departure
		sections[i].Departure = sections[i].Arrival.Add(-durs[i])
	}
	for i := firstPT + 1; i < n; i++ {
		if sections[i].Type == domain.SectionPublicTransport {
			continue
		}
		sections[i].Departure = sections[i-1].Arrival
		sections[i].Arrival = sections[i].Departure.Add(durs[i])
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
