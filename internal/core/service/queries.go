package service

import (
	"context"
	"sort"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/routing/raptor"
)

// DefaultNearbyCount caps a places-nearby answer when the request does not.
const DefaultNearbyCount = 10

const productionDateLayout = "20060102"

// Isochrone returns the best reachable datetime of every stop point from
// the request origins, earliest first.
func (o *Orchestrator) Isochrone(ctx context.Context, req *domain.IsochroneRequest, deadline domain.Deadline) ([]domain.StopLabel, error) {
	if req == nil {
		return nil, domain.ErrInvalidRequest.WithDetails("missing isochrone parameters")
	}
	origins, err := o.resolveAll(req.Origin)
	if err != nil {
		return nil, err
	}

	maxWalking := o.cfg.MaxWalkingDuration
	if req.MaxWalkingDuration > 0 {
		maxWalking = seconds(req.MaxWalkingDuration)
	}
	prm := raptor.Params{
		Departures:   o.fallbacks(origins, maxWalking, o.cfg.WalkingSpeed),
		Origin:       origins[0].Place,
		RequestDate:  req.DateTime,
		Clockwise:    true,
		MaxTransfers: o.cfg.MaxTransfers,
	}
	if req.MaxTransfers != nil {
		prm.MaxTransfers = *req.MaxTransfers
	}
	maxDuration := o.cfg.MaxDuration
	if req.MaxDuration > 0 {
		maxDuration = seconds(req.MaxDuration)
	}
	if maxDuration > 0 {
		prm.Bound = req.DateTime.Add(maxDuration)
	}

	if deadline.Expired(o.now()) {
		return nil, domain.ErrDeadlineExpired
	}
	_, span := o.tracer.StartSpan(ctx, "search.isochrone")
	labels := o.planner.Isochrone(prm)
	span.End()
	if o.metrics != nil {
		o.metrics.PrimitiveCalls.Inc()
	}

	out := make([]domain.StopLabel, 0, len(labels))
	for _, l := range labels {
		out = append(out, domain.StopLabel{
			StopPoint: o.data.StopPoints[l.StopPoint].ID,
			DateTime:  l.Time,
			Round:     l.Round,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateTime.Equal(out[j].DateTime) {
			return out[i].DateTime.Before(out[j].DateTime)
		}
		return out[i].StopPoint < out[j].StopPoint
	})
	return out, nil
}

// PlacesNearby returns the stop points within the requested distance,
// closest first.
func (o *Orchestrator) PlacesNearby(req *domain.PlacesNearbyRequest) ([]domain.PlaceNearby, error) {
	if req == nil {
		return nil, domain.ErrInvalidRequest.WithDetails("missing places_nearby parameters")
	}
	count := req.Count
	if count <= 0 {
		count = DefaultNearbyCount
	}
	found := o.prox.Nearby(req.Coord, req.Distance)
	if len(found) > count {
		found = found[:count]
	}
	out := make([]domain.PlaceNearby, 0, len(found))
	for _, n := range found {
		out = append(out, domain.PlaceNearby{Place: o.data.PlaceOf(n.StopPoint), Distance: n.Distance})
	}
	return out, nil
}

// Metadata describes the data served.
func (o *Orchestrator) Metadata() *domain.Metadata {
	m := &domain.Metadata{
		Timezone:          o.data.Location.String(),
		Contributors:      o.data.Contributors(),
		NbStopPoints:      len(o.data.StopPoints),
		NbVehicleJourneys: len(o.data.VehicleJourneys),
	}
	if o.data.Days > 0 {
		m.StartProductionDate = o.data.Start.Format(productionDateLayout)
		m.EndProductionDate = o.data.EndDay().Format(productionDateLayout)
	}
	return m
}
