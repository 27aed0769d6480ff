package raptor

import (
	"math"
	"sort"
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/timetable"
)

const (
	kindNone uint8 = iota
	kindAccess
	kindVehicle
	kindTransfer
)

// parent records how a label was improved in a round. For a vehicle, enter
// is the position the traveller got on in scan order (boarding clockwise,
// alighting anticlockwise) and leave the position the label is set at.
type parent struct {
	kind  uint8
	vj    int
	day   int
	enter int
	leave int
	from  int
}

// Params describes one search.
//
// Departures and Destinations map stop points to the walking duration
// from the origin, respectively to the destination, regardless of the
// direction.
type Params struct {
	Departures   map[int]time.Duration
	Destinations map[int]time.Duration
	Origin       domain.Place
	Destination  domain.Place
	RequestDate  time.Time
	Clockwise    bool
	// Bound is the worst acceptable edge time. Zero means unbounded.
	Bound        time.Time
	MaxTransfers int
}

// Label is the best reachable time of a stop point.
type Label struct {
	StopPoint int
	Time      time.Time
	Round     int
}

// dir abstracts the search direction: clockwise minimises arrival times,
// anticlockwise maximises departure times.
type dir struct{ cw bool }

func (d dir) better(a, b int64) bool {
	if d.cw {
		return a < b
	}
	return a > b
}

func (d dir) offset(t, secs int64) int64 {
	if d.cw {
		return t + secs
	}
	return t - secs
}

func (d dir) inf() int64 {
	if d.cw {
		return math.MaxInt64
	}
	return math.MinInt64
}

func (d dir) enterTime(st timetable.StopTime) int32 {
	if d.cw {
		return st.Departure
	}
	return st.Arrival
}

func (d dir) leaveTime(st timetable.StopTime) int32 {
	if d.cw {
		return st.Arrival
	}
	return st.Departure
}

func (d dir) canEnter(st timetable.StopTime) bool {
	if d.cw {
		return st.PickUp
	}
	return st.DropOff
}

func (d dir) canLeave(st timetable.StopTime) bool {
	if d.cw {
		return st.DropOff
	}
	return st.PickUp
}

// Planner runs searches over one Index. It owns reusable buffers and is
// not safe for concurrent use.
type Planner struct {
	idx  *Index
	data *timetable.Data

	labels  [][]int64
	parents [][]parent
	best    []int64
	marked  []bool
	touched []int

	dir        dir
	bound      int64
	bounded    bool
	targetBest int64
}

// NewPlanner returns a planner bound to idx.
func NewPlanner(idx *Index) *Planner {
	return &Planner{idx: idx, data: idx.Data}
}

// Index returns the index the planner searches.
func (p *Planner) Index() *Index {
	return p.idx
}

func (p *Planner) reset(rounds int, d dir) {
	n := p.idx.NbStops()
	for len(p.labels) < rounds+1 {
		p.labels = append(p.labels, make([]int64, n))
		p.parents = append(p.parents, make([]parent, n))
	}
	inf := d.inf()
	for k := 0; k <= rounds; k++ {
		for s := range p.labels[k] {
			p.labels[k][s] = inf
			p.parents[k][s] = parent{}
		}
	}
	if len(p.best) != n {
		p.best = make([]int64, n)
		p.marked = make([]bool, n)
	}
	for s := range p.best {
		p.best[s] = inf
		p.marked[s] = false
	}
	p.touched = p.touched[:0]
	p.dir = d
	p.targetBest = inf
}

func secs(d time.Duration) int64 {
	return int64(d / time.Second)
}

// start seeds round 0 and prepares the bound.
func (p *Planner) start(prm Params, seeds map[int]time.Duration) {
	req := prm.RequestDate.Unix()
	p.bounded = !prm.Bound.IsZero()
	p.bound = prm.Bound.Unix()
	for s, dur := range seeds {
		if s < 0 || s >= len(p.best) {
			continue
		}
		t := p.dir.offset(req, secs(dur))
		if !p.dir.better(t, p.labels[0][s]) {
			continue
		}
		p.labels[0][s] = t
		p.parents[0][s] = parent{kind: kindAccess}
		p.best[s] = t
		p.mark(s)
	}
}

func (p *Planner) mark(s int) {
	if !p.marked[s] {
		p.marked[s] = true
		p.touched = append(p.touched, s)
	}
}

func (p *Planner) within(t int64) bool {
	return !p.bounded || !p.dir.better(p.bound, t)
}

func (p *Planner) improves(t int64, s int) bool {
	return p.within(t) && p.dir.better(t, p.best[s]) && p.dir.better(t, p.targetBest)
}

// round runs round k. It reports whether any label improved.
func (p *Planner) round(k int) bool {
	d := p.dir
	prev, cur := p.labels[k-1], p.labels[k]
	copy(cur, prev)

	queue := make(map[int]int)
	for _, s := range p.touched {
		for _, sp := range p.idx.StopPatterns[s] {
			pos, ok := queue[sp.Pattern]
			if !ok || (d.cw && sp.Pos < pos) || (!d.cw && sp.Pos > pos) {
				queue[sp.Pattern] = sp.Pos
			}
		}
		p.marked[s] = false
	}
	p.touched = p.touched[:0]

	patterns := make([]int, 0, len(queue))
	for pi := range queue {
		patterns = append(patterns, pi)
	}
	sort.Ints(patterns)

	for _, pi := range patterns {
		p.scanPattern(k, pi, queue[pi])
	}

	// Walking transfers from stops reached by vehicle in this round.
	byVehicle := append([]int(nil), p.touched...)
	for _, s := range byVehicle {
		for _, tr := range p.idx.Transfers[s] {
			t := d.offset(cur[s], int64(tr.Duration))
			if !p.improves(t, tr.To) {
				continue
			}
			cur[tr.To] = t
			p.parents[k][tr.To] = parent{kind: kindTransfer, from: s}
			p.best[tr.To] = t
			p.mark(tr.To)
		}
	}
	return len(p.touched) > 0
}

type trip struct {
	vj, day, enter int
	ok             bool
}

func (p *Planner) scanPattern(k, pi, start int) {
	d := p.dir
	pat := &p.idx.Patterns[pi]
	prev, cur := p.labels[k-1], p.labels[k]
	step := 1
	if !d.cw {
		step = -1
	}

	var tr trip
	for pos := start; pos >= 0 && pos < len(pat.Stops); pos += step {
		s := pat.Stops[pos]
		if tr.ok {
			st := p.data.VehicleJourneys[tr.vj].StopTimes[pos]
			if d.canLeave(st) {
				t := p.dayStart(tr.day) + int64(d.leaveTime(st))
				if p.improves(t, s) {
					cur[s] = t
					p.parents[k][s] = parent{
						kind:  kindVehicle,
						vj:    tr.vj,
						day:   tr.day,
						enter: tr.enter,
						leave: pos,
						from:  pat.Stops[tr.enter],
					}
					p.best[s] = t
					p.mark(s)
				}
			}
		}

		if prev[s] == d.inf() {
			continue
		}
		x := prev[s]
		if k > 1 && p.parents[k-1][s].kind == kindVehicle {
			x = d.offset(x, int64(p.idx.cfg.MinConnection))
		}
		vj, day, e, ok := p.findTrip(pat, pos, x)
		if !ok {
			continue
		}
		if !tr.ok || d.better(e, p.enterAt(tr, pos)) {
			tr = trip{vj: vj, day: day, enter: pos, ok: true}
		}
	}
}

func (p *Planner) enterAt(tr trip, pos int) int64 {
	st := p.data.VehicleJourneys[tr.vj].StopTimes[pos]
	return p.dayStart(tr.day) + int64(p.dir.enterTime(st))
}

// findTrip returns the best vehicle journey of the pattern that can be
// entered at pos given the label x.
func (p *Planner) findTrip(pat *Pattern, pos int, x int64) (vj, day int, e int64, ok bool) {
	d := p.dir
	e = d.inf()
	day0 := p.data.DayIndex(time.Unix(x, 0))
	for _, v := range pat.VJs {
		st := p.data.VehicleJourneys[v].StopTimes[pos]
		if !d.canEnter(st) {
			continue
		}
		// Stop times may run past 48h of their service day.
		for dd := day0 - 2; dd <= day0+1; dd++ {
			if !p.data.IsActive(v, dd) {
				continue
			}
			t := p.dayStart(dd) + int64(d.enterTime(st))
			if d.better(t, x) {
				continue
			}
			if !ok || d.better(t, e) {
				vj, day, e, ok = v, dd, t, true
			}
		}
	}
	return vj, day, e, ok
}

func (p *Planner) dayStart(day int) int64 {
	return p.data.ServiceDay(day).Unix()
}

func (p *Planner) rounds(maxTransfers int) int {
	if maxTransfers < 0 {
		maxTransfers = 0
	}
	return maxTransfers + 1
}

// ComputeAllJourneys returns the Pareto set of journeys for one request
// instant: at most one journey per number of transfers, each strictly
// better on edge time than the ones with fewer transfers.
func (p *Planner) ComputeAllJourneys(prm Params) []domain.Journey {
	d := dir{cw: prm.Clockwise}
	rounds := p.rounds(prm.MaxTransfers)
	p.reset(rounds, d)

	seeds, targets := prm.Departures, prm.Destinations
	if !d.cw {
		seeds, targets = prm.Destinations, prm.Departures
	}
	p.start(prm, seeds)

	targetStops := make([]int, 0, len(targets))
	for s := range targets {
		if s >= 0 && s < len(p.best) {
			targetStops = append(targetStops, s)
		}
	}
	sort.Ints(targetStops)

	var journeys []domain.Journey
	for k := 1; k <= rounds; k++ {
		if !p.round(k) {
			break
		}
		bestStop, bestT := -1, p.targetBest
		for _, s := range targetStops {
			if p.parents[k][s].kind == kindNone {
				continue
			}
			t := d.offset(p.labels[k][s], secs(targets[s]))
			if d.better(t, bestT) {
				bestStop, bestT = s, t
			}
		}
		if bestStop < 0 {
			continue
		}
		p.targetBest = bestT
		journeys = append(journeys, p.journey(prm, k, bestStop))
	}
	return journeys
}

// Isochrone returns the best label of every stop point reachable from the
// seeds (Departures clockwise, Destinations anticlockwise).
func (p *Planner) Isochrone(prm Params) []Label {
	d := dir{cw: prm.Clockwise}
	rounds := p.rounds(prm.MaxTransfers)
	p.reset(rounds, d)

	seeds := prm.Departures
	if !d.cw {
		seeds = prm.Destinations
	}
	p.start(prm, seeds)

	last := 0
	for k := 1; k <= rounds; k++ {
		if !p.round(k) {
			break
		}
		last = k
	}

	var out []Label
	for s, t := range p.best {
		if t == d.inf() {
			continue
		}
		round := 0
		for k := 0; k <= last; k++ {
			if p.parents[k][s].kind != kindNone && p.labels[k][s] == t {
				round = k
				break
			}
		}
		out = append(out, Label{StopPoint: s, Time: time.Unix(t, 0).In(p.data.Location), Round: round})
	}
	return out
}
