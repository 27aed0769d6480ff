package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/timetable"
	"github.com/hove-io/navitia-sub004/internal/routing/raptor"
	"github.com/hove-io/navitia-sub004/internal/routing/street"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
	"github.com/hove-io/navitia-sub004/internal/telemetry/metric"
	"github.com/hove-io/navitia-sub004/internal/telemetry/tracer"
)

// Planner is the shortest-path primitive.
type Planner interface {
	ComputeAllJourneys(raptor.Params) []domain.Journey
	Isochrone(raptor.Params) []raptor.Label
}

// Config holds the search defaults applied when a request leaves a
// parameter unset.
type Config struct {
	MaxDuration        time.Duration
	MaxTransfers       int
	NightBusMaxFactor  float64
	NightBusBaseFactor time.Duration
	WalkingSpeed       float64
	MaxWalkingDuration time.Duration
}

// DefaultConfig returns the default search settings.
func DefaultConfig() Config {
	return Config{
		MaxDuration:        24 * time.Hour,
		MaxTransfers:       10,
		NightBusMaxFactor:  DefaultNightBusMaxFactor,
		NightBusBaseFactor: DefaultNightBusBaseFactor,
		WalkingSpeed:       street.DefaultConfig().WalkingSpeed,
		MaxWalkingDuration: 30 * time.Minute,
	}
}

// Deps are the collaborators of an Orchestrator. Data, Planner and Street
// must belong to the same snapshot.
type Deps struct {
	Data      *timetable.Data
	Proximity *timetable.Proximity
	Planner   Planner
	Street    *street.Router

	Logger  logger.Logger
	Metrics *metric.Registry
	Tracer  *tracer.Provider
	Now     func() time.Time
}

// Orchestrator runs journey searches over one snapshot.
type Orchestrator struct {
	data    *timetable.Data
	prox    *timetable.Proximity
	planner Planner
	street  *street.Router
	cfg     Config

	log     logger.Logger
	metrics *metric.Registry
	tracer  *tracer.Provider
	now     func() time.Time
}

// New returns an orchestrator bound to deps.
func New(deps Deps, cfg Config) *Orchestrator {
	o := &Orchestrator{
		data:    deps.Data,
		prox:    deps.Proximity,
		planner: deps.Planner,
		street:  deps.Street,
		cfg:     cfg,
		log:     deps.Logger,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		now:     deps.Now,
	}
	if o.log == nil {
		o.log = logger.Discard()
	}
	if o.tracer == nil {
		o.tracer = tracer.Noop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// SearchRequest is one journeys query.
type SearchRequest struct {
	Journeys *domain.JourneysRequest
	Deadline domain.Deadline
}

// SearchResult is the outcome of a search. It is filled even when Search
// returns ErrDeadlineExpired.
type SearchResult struct {
	Journeys       []domain.Journey
	PrimitiveCalls int
}

// searchParams are the request parameters with the defaults applied.
type searchParams struct {
	clockwise     bool
	maxDuration   time.Duration
	maxTransfers  int
	maxWalking    time.Duration
	speed         float64
	minNb         *int
	timeframe     *time.Duration
	nightMax      float64
	nightBase     time.Duration
	directPath    domain.DirectPathMode
	deadline      domain.Deadline
	departures    map[int]time.Duration
	destinations  map[int]time.Duration
	origin        domain.Place
	destination   domain.Place
	nbDirectPaths int
}

func (o *Orchestrator) params(req SearchRequest) searchParams {
	jr := req.Journeys
	p := searchParams{
		clockwise:    jr.Clockwise(),
		maxDuration:  o.cfg.MaxDuration,
		maxTransfers: o.cfg.MaxTransfers,
		maxWalking:   o.cfg.MaxWalkingDuration,
		speed:        o.cfg.WalkingSpeed,
		minNb:        jr.MinNbJourneys,
		nightMax:     o.cfg.NightBusMaxFactor,
		nightBase:    o.cfg.NightBusBaseFactor,
		directPath:   jr.DirectPath,
		deadline:     req.Deadline,
	}
	if jr.MaxDuration > 0 {
		p.maxDuration = seconds(jr.MaxDuration)
	}
	if jr.MaxTransfers != nil {
		p.maxTransfers = *jr.MaxTransfers
	}
	if jr.MaxWalkingDuration > 0 {
		p.maxWalking = seconds(jr.MaxWalkingDuration)
	}
	if jr.WalkingSpeed > 0 {
		p.speed = jr.WalkingSpeed
	}
	if jr.TimeframeDuration != nil {
		tf := seconds(*jr.TimeframeDuration)
		p.timeframe = &tf
	}
	if jr.NightBusFilterMaxFactor != nil {
		p.nightMax = *jr.NightBusFilterMaxFactor
	}
	if jr.NightBusFilterBaseFactor != nil {
		p.nightBase = seconds(*jr.NightBusFilterBaseFactor)
	}
	if p.directPath == "" {
		p.directPath = domain.DirectPathIndifferent
	}
	return p
}

// Search answers a journeys request.
//
// With one requested datetime every journey found is returned. With
// several, each datetime contributes its best journey, or an empty
// placeholder when it has none, and the best edge time found so far
// tightens the bound of the following datetimes. The street-only journey
// is appended for every datetime unless direct_path is none.
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	var res SearchResult
	jr := req.Journeys
	if jr == nil || len(jr.DateTimes) == 0 {
		return res, domain.ErrInvalidRequest.WithDetails("no datetime requested")
	}
	p := o.params(req)

	origins, err := o.resolveAll(jr.Origin)
	if err != nil {
		return res, err
	}
	destinations, err := o.resolveAll(jr.Destination)
	if err != nil {
		return res, err
	}
	p.origin, p.destination = origins[0].Place, destinations[0].Place
	p.departures = o.fallbacks(origins, p.maxWalking, p.speed)
	p.destinations = o.fallbacks(destinations, p.maxWalking, p.speed)

	direct, hasDirect := o.directPath(origins, destinations, jr.DateTimes[0], p)
	if p.directPath == domain.DirectPathNone {
		hasDirect = false
	}
	if hasDirect {
		p.nbDirectPaths = 1
	}

	multi := len(jr.DateTimes) > 1
	var (
		best     domain.Journey
		haveBest bool
	)
	for _, dt := range jr.DateTimes {
		var found []domain.Journey
		if p.directPath != domain.DirectPathOnly {
			bound := o.bound(dt, p)
			if multi && haveBest {
				bound = tighten(bound, best.EdgeTime(p.clockwise), p.clockwise)
			}
			var calls int
			found, calls, err = o.keepGoing(ctx, dt, bound, p)
			res.PrimitiveCalls += calls
		}

		switch {
		case !multi:
			res.Journeys = append(res.Journeys, found...)
		case len(found) > 0:
			b := bestOf(found, p.clockwise)
			res.Journeys = append(res.Journeys, b)
			if !haveBest || better(b, best, p.clockwise) {
				best, haveBest = b, true
			}
		case !hasDirect && err == nil:
			res.Journeys = append(res.Journeys, domain.Journey{Empty: true, RequestedDateTime: dt})
		}
		if hasDirect {
			res.Journeys = append(res.Journeys, shift(direct, dt, p.clockwise))
		}
		if err != nil {
			return res, err
		}
	}

	o.log.WithContext(ctx).Debug("search done",
		"datetimes", len(jr.DateTimes),
		"journeys", len(res.Journeys),
		"primitive_calls", res.PrimitiveCalls)
	return res, nil
}

// keepGoing repeats the primitive call for one requested datetime until
// KeepGoing says stop, the batch comes back empty or the deadline expires.
func (o *Orchestrator) keepGoing(ctx context.Context, dt, bound time.Time, p searchParams) ([]domain.Journey, int, error) {
	prm := raptor.Params{
		Departures:   p.departures,
		Destinations: p.destinations,
		Origin:       p.origin,
		Destination:  p.destination,
		RequestDate:  dt,
		Clockwise:    p.clockwise,
		Bound:        bound,
		MaxTransfers: p.maxTransfers,
	}
	var timeframeLimit *time.Time
	if p.timeframe != nil {
		limit := dt.Add(*p.timeframe)
		if !p.clockwise {
			limit = dt.Add(-*p.timeframe)
		}
		timeframeLimit = &limit
	}
	night := NightBusParams{
		RequestedDateTime: dt,
		Clockwise:         p.clockwise,
		MaxFactor:         p.nightMax,
		BaseFactor:        p.nightBase,
	}
	fallback := p.departures
	if !p.clockwise {
		fallback = p.destinations
	}

	set := newJourneySet()
	nbTry := 0
	for {
		if p.deadline.Expired(o.now()) || ctx.Err() != nil {
			return set.list, nbTry, domain.ErrDeadlineExpired.WithDetailsf("after %d primitive calls", nbTry)
		}
		batch := o.compute(ctx, prm, nbTry)
		nbTry++

		batch = withoutDirectPaths(batch)
		if len(batch) == 0 {
			break
		}
		batch = FilterNightBus(batch, night)
		for i := range batch {
			Backtrack(&batch[i], o.data, fallback, p.clockwise)
			batch[i].RequestedDateTime = dt
			set.add(batch[i])
		}

		prm.RequestDate = nextRequestDate(batch, p.clockwise)
		if !KeepGoing(KeepGoingParams{
			TotalJourneys:  set.len() + p.nbDirectPaths,
			NbTry:          nbTry,
			Clockwise:      p.clockwise,
			RequestDate:    prm.RequestDate,
			MinNbJourneys:  p.minNb,
			TimeframeLimit: timeframeLimit,
			MaxTransfers:   p.maxTransfers,
		}) {
			break
		}
	}
	return set.list, nbTry, nil
}

func (o *Orchestrator) compute(ctx context.Context, prm raptor.Params, try int) []domain.Journey {
	_, span := o.tracer.StartSpan(ctx, "search.primitive",
		attribute.Int("try", try),
		attribute.String("request_date", prm.RequestDate.Format(time.RFC3339)))
	defer span.End()
	if o.metrics != nil {
		o.metrics.PrimitiveCalls.Inc()
	}
	js := o.planner.ComputeAllJourneys(prm)
	span.SetAttributes(attribute.Int("journeys", len(js)))
	return js
}

func (o *Orchestrator) bound(dt time.Time, p searchParams) time.Time {
	if p.maxDuration <= 0 {
		return time.Time{}
	}
	if p.clockwise {
		return dt.Add(p.maxDuration)
	}
	return dt.Add(-p.maxDuration)
}

func (o *Orchestrator) resolveAll(eps []domain.EntryPoint) ([]street.Endpoint, error) {
	if len(eps) == 0 {
		return nil, domain.ErrInvalidRequest.WithDetails("missing entry point")
	}
	out := make([]street.Endpoint, 0, len(eps))
	for _, ep := range eps {
		r, err := o.street.Resolve(ep.Place)
		if err != nil {
			return nil, domain.ErrUnknownPlace.WithDetails(ep.Place).WithCause(err)
		}
		out = append(out, r)
	}
	return out, nil
}

// fallbacks merges the walking reach of every endpoint, keeping the
// shortest duration per stop point.
func (o *Orchestrator) fallbacks(eps []street.Endpoint, maxDur time.Duration, speed float64) map[int]time.Duration {
	out := make(map[int]time.Duration)
	for _, ep := range eps {
		for s, d := range o.street.Fallback(ep, maxDur, speed) {
			if cur, ok := out[s]; !ok || d < cur {
				out[s] = d
			}
		}
	}
	return out
}

// directPath returns the shortest walk over every origin/destination pair.
func (o *Orchestrator) directPath(origins, destinations []street.Endpoint, at time.Time, p searchParams) (domain.Journey, bool) {
	var (
		best  domain.Journey
		found bool
	)
	for _, from := range origins {
		for _, to := range destinations {
			j, ok := o.street.DirectPath(from, to, at, p.clockwise, p.maxWalking, p.speed)
			if ok && (!found || j.Duration() < best.Duration()) {
				best, found = j, true
			}
		}
	}
	return best, found
}

func withoutDirectPaths(js []domain.Journey) []domain.Journey {
	out := js[:0]
	for _, j := range js {
		if !j.IsDirectPath() {
			out = append(out, j)
		}
	}
	return out
}

// nextRequestDate returns the instant just past the batch: clockwise, the
// latest departure among the journeys with the earliest arrival plus one
// second; anticlockwise, the symmetric instant minus one second.
func nextRequestDate(batch []domain.Journey, clockwise bool) time.Time {
	if clockwise {
		arr, dep := batch[0].Arrival, batch[0].Departure
		for _, j := range batch[1:] {
			switch {
			case j.Arrival.Before(arr):
				arr, dep = j.Arrival, j.Departure
			case j.Arrival.Equal(arr) && j.Departure.After(dep):
				dep = j.Departure
			}
		}
		return dep.Add(time.Second)
	}
	dep, arr := batch[0].Departure, batch[0].Arrival
	for _, j := range batch[1:] {
		switch {
		case j.Departure.After(dep):
			dep, arr = j.Departure, j.Arrival
		case j.Departure.Equal(dep) && j.Arrival.Before(arr):
			arr = j.Arrival
		}
	}
	return arr.Add(-time.Second)
}

// better orders journeys by edge time, the opposite end breaking ties.
func better(a, b domain.Journey, clockwise bool) bool {
	if clockwise {
		if !a.Arrival.Equal(b.Arrival) {
			return a.Arrival.Before(b.Arrival)
		}
		return a.Departure.After(b.Departure)
	}
	if !a.Departure.Equal(b.Departure) {
		return a.Departure.After(b.Departure)
	}
	return a.Arrival.Before(b.Arrival)
}

func bestOf(js []domain.Journey, clockwise bool) domain.Journey {
	b := js[0]
	for _, j := range js[1:] {
		if better(j, b, clockwise) {
			b = j
		}
	}
	return b
}

func tighten(bound, edge time.Time, clockwise bool) time.Time {
	if bound.IsZero() {
		return edge
	}
	if clockwise && edge.Before(bound) || !clockwise && edge.After(bound) {
		return edge
	}
	return bound
}

// shift moves a street-only journey to the requested datetime.
func shift(j domain.Journey, dt time.Time, clockwise bool) domain.Journey {
	offset := dt.Sub(j.Departure)
	if !clockwise {
		offset = dt.Sub(j.Arrival)
	}
	out := j
	out.Sections = make([]domain.Section, len(j.Sections))
	for i, s := range j.Sections {
		s.Departure = s.Departure.Add(offset)
		s.Arrival = s.Arrival.Add(offset)
		out.Sections[i] = s
	}
	out.RequestedDateTime = dt
	out.RecomputeBounds()
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
