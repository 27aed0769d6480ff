package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/timetable"
	"github.com/hove-io/navitia-sub004/internal/core/timetable/ttfixture"
	"github.com/hove-io/navitia-sub004/internal/routing/raptor"
	"github.com/hove-io/navitia-sub004/internal/routing/street"
	"github.com/hove-io/navitia-sub004/internal/telemetry/metric"
)

// countingPlanner counts the calls made to the primitive.
type countingPlanner struct {
	*raptor.Planner
	calls int
}

func (p *countingPlanner) ComputeAllJourneys(prm raptor.Params) []domain.Journey {
	p.calls++
	return p.Planner.ComputeAllJourneys(prm)
}

type env struct {
	orch    *Orchestrator
	planner *countingPlanner
	metrics *metric.Registry
}

func newEnv(t *testing.T, d *timetable.Data, now func() time.Time) env {
	t.Helper()
	prox := timetable.NewProximity(d)
	router, err := street.NewRouter(d, prox, street.DefaultConfig())
	require.NoError(t, err)
	cp := &countingPlanner{Planner: raptor.NewPlanner(raptor.BuildIndex(d, prox, raptor.DefaultIndexConfig()))}
	reg := metric.NewRegistry()
	o := New(Deps{
		Data:      d,
		Proximity: prox,
		Planner:   cp,
		Street:    router,
		Metrics:   reg,
		Now:       now,
	}, DefaultConfig())
	return env{orch: o, planner: cp, metrics: reg}
}

func journeysRequest(from, to string, dts ...time.Time) *domain.JourneysRequest {
	return &domain.JourneysRequest{
		Origin:      []domain.EntryPoint{{Place: from}},
		Destination: []domain.EntryPoint{{Place: to}},
		DateTimes:   dts,
	}
}

func TestSearch_SingleRun(t *testing.T) {
	e := newEnv(t, ttfixture.SingleRun(), nil)

	res, err := e.orch.Search(context.Background(), SearchRequest{
		Journeys: journeysRequest("stop_point:A", "stop_point:B", ttfixture.At(8, 0)),
	})
	require.NoError(t, err)
	require.Len(t, res.Journeys, 1)

	j := res.Journeys[0]
	require.Len(t, j.Sections, 3)
	assert.Equal(t, domain.SectionStreetNetwork, j.Sections[0].Type)
	assert.Equal(t, domain.SectionPublicTransport, j.Sections[1].Type)
	assert.Equal(t, domain.SectionStreetNetwork, j.Sections[2].Type)
	assert.Equal(t, ttfixture.At(8, 11), j.Departure)
	assert.Equal(t, ttfixture.At(8, 20), j.Arrival)
	assert.Equal(t, ttfixture.At(8, 0), j.RequestedDateTime)

	assert.Equal(t, 1, res.PrimitiveCalls)
	assert.Equal(t, 1, e.planner.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.PrimitiveCalls))
}

func TestSearch_MinNbJourneys(t *testing.T) {
	e := newEnv(t, ttfixture.FiveRuns(), nil)
	req := journeysRequest("stop_point:A", "stop_point:B", ttfixture.At(8, 0))
	req.MinNbJourneys = intPtr(2)

	res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
	require.NoError(t, err)
	require.Len(t, res.Journeys, 2)
	assert.Equal(t, []string{"vj:0"}, res.Journeys[0].VehicleJourneys())
	assert.Equal(t, []string{"vj:1"}, res.Journeys[1].VehicleJourneys())
	assert.Equal(t, 2, e.planner.calls, "stops as soon as two distinct journeys are known")
}

func TestSearch_Timeframe(t *testing.T) {
	e := newEnv(t, ttfixture.FiveRuns(), nil)
	req := journeysRequest("stop_point:A", "stop_point:B", ttfixture.At(8, 0))
	req.TimeframeDuration = intPtr(3600)

	res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
	require.NoError(t, err)
	require.Len(t, res.Journeys, 3)
	assert.Equal(t, ttfixture.At(9, 0), res.Journeys[2].Departure)
	assert.Equal(t, 3, e.planner.calls)
}

func TestSearch_RunsOutOfJourneys(t *testing.T) {
	e := newEnv(t, ttfixture.FiveRuns(), nil)
	req := journeysRequest("stop_point:A", "stop_point:B", ttfixture.At(8, 0))
	req.MinNbJourneys = intPtr(10)

	res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
	require.NoError(t, err)
	assert.Len(t, res.Journeys, 5)
	assert.Equal(t, 6, e.planner.calls, "the last call comes back empty")
}

func TestSearch_Anticlockwise(t *testing.T) {
	e := newEnv(t, ttfixture.FiveRuns(), nil)
	req := journeysRequest("stop_point:A", "stop_point:B", ttfixture.At(9, 15))
	req.DateTimeRepresents = "arrival"
	req.MinNbJourneys = intPtr(2)

	res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
	require.NoError(t, err)
	require.Len(t, res.Journeys, 2)
	assert.Equal(t, ttfixture.At(9, 10), res.Journeys[0].Arrival)
	assert.Equal(t, ttfixture.At(8, 40), res.Journeys[1].Arrival)
	assert.Equal(t, 2, e.planner.calls)
}

func TestSearch_Backtracking(t *testing.T) {
	e := newEnv(t, ttfixture.Loop(), nil)
	req := journeysRequest("2.35;48.85", "stop_point:D", ttfixture.At(7, 50))

	res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
	require.NoError(t, err)
	require.Len(t, res.Journeys, 1)
	j := res.Journeys[0]
	require.Len(t, j.Sections, 3)
	assert.Equal(t, "stop_point:O2", j.Sections[1].From.ID)
	assert.Equal(t, ttfixture.At(8, 20), j.Sections[0].Arrival)
	assert.True(t, j.Departure.After(ttfixture.At(8, 19)))
}

func TestSearch_MultipleDateTimes(t *testing.T) {
	t.Run("placeholder for an instant without result", func(t *testing.T) {
		e := newEnv(t, ttfixture.FiveRuns(), nil)
		req := journeysRequest("stop_point:A", "stop_point:B", ttfixture.At(8, 0), ttfixture.At(8, 5))

		res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
		require.NoError(t, err)
		require.Len(t, res.Journeys, 2)
		assert.Equal(t, ttfixture.At(8, 10), res.Journeys[0].Arrival)
		assert.False(t, res.Journeys[0].Empty)
		assert.True(t, res.Journeys[1].Empty, "the 08:10 arrival bounds the second instant")
		assert.Equal(t, ttfixture.At(8, 5), res.Journeys[1].RequestedDateTime)
	})

	t.Run("later instant reaching the same arrival", func(t *testing.T) {
		e := newEnv(t, ttfixture.SingleRun(), nil)
		req := journeysRequest("stop_point:A", "stop_point:B", ttfixture.At(8, 0), ttfixture.At(8, 5))

		res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
		require.NoError(t, err)
		require.Len(t, res.Journeys, 2)
		for i, dt := range []time.Time{ttfixture.At(8, 0), ttfixture.At(8, 5)} {
			assert.Equal(t, dt, res.Journeys[i].RequestedDateTime)
			assert.Equal(t, ttfixture.At(8, 20), res.Journeys[i].Arrival)
		}
	})
}

func TestSearch_DirectPath(t *testing.T) {
	t.Run("only", func(t *testing.T) {
		e := newEnv(t, ttfixture.Loop(), nil)
		req := journeysRequest("2.35;48.85", "stop_point:O1", ttfixture.At(8, 0), ttfixture.At(9, 0))
		req.DirectPath = domain.DirectPathOnly

		res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
		require.NoError(t, err)
		assert.Zero(t, e.planner.calls)
		require.Len(t, res.Journeys, 2)
		for i, dt := range []time.Time{ttfixture.At(8, 0), ttfixture.At(9, 0)} {
			assert.True(t, res.Journeys[i].IsDirectPath())
			assert.Equal(t, dt, res.Journeys[i].Departure)
			assert.Equal(t, dt, res.Journeys[i].RequestedDateTime)
		}
		assert.Equal(t, res.Journeys[0].Duration(), res.Journeys[1].Duration())
	})

	t.Run("none", func(t *testing.T) {
		e := newEnv(t, ttfixture.Loop(), nil)
		req := journeysRequest("2.35;48.85", "stop_point:O1", ttfixture.At(7, 50))
		req.DirectPath = domain.DirectPathNone

		res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
		require.NoError(t, err)
		for _, j := range res.Journeys {
			assert.False(t, j.IsDirectPath())
		}
	})

	t.Run("indifferent appends it", func(t *testing.T) {
		e := newEnv(t, ttfixture.Loop(), nil)
		req := journeysRequest("2.35;48.85", "stop_point:O1", ttfixture.At(7, 50))

		res, err := e.orch.Search(context.Background(), SearchRequest{Journeys: req})
		require.NoError(t, err)
		require.NotEmpty(t, res.Journeys)
		last := res.Journeys[len(res.Journeys)-1]
		assert.True(t, last.IsDirectPath())
		assert.Equal(t, ttfixture.At(7, 50), last.Departure)
	})
}

func TestSearch_Deadline(t *testing.T) {
	start := ttfixture.At(7, 0)

	t.Run("expired before the first call", func(t *testing.T) {
		e := newEnv(t, ttfixture.FiveRuns(), func() time.Time { return start })
		res, err := e.orch.Search(context.Background(), SearchRequest{
			Journeys: journeysRequest("stop_point:A", "stop_point:B", ttfixture.At(8, 0)),
			Deadline: domain.DeadlineAt(start.Add(-time.Second)),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDeadlineExpired))
		assert.Empty(t, res.Journeys)
		assert.Zero(t, e.planner.calls)
	})

	t.Run("partial result is kept", func(t *testing.T) {
		ticks := 0
		now := func() time.Time {
			ticks++
			return start.Add(time.Duration(ticks-1) * time.Minute)
		}
		e := newEnv(t, ttfixture.FiveRuns(), now)
		req := journeysRequest("stop_point:A", "stop_point:B", ttfixture.At(8, 0))
		req.MinNbJourneys = intPtr(5)

		res, err := e.orch.Search(context.Background(), SearchRequest{
			Journeys: req,
			Deadline: domain.DeadlineAt(start.Add(30 * time.Second)),
		})
		assert.True(t, domain.IsKind(err, domain.KindDeadlineExpired))
		assert.Len(t, res.Journeys, 1)
		assert.Equal(t, 1, e.planner.calls)
	})
}

func TestSearch_Errors(t *testing.T) {
	e := newEnv(t, ttfixture.SingleRun(), nil)

	_, err := e.orch.Search(context.Background(), SearchRequest{
		Journeys: journeysRequest("stop_point:nowhere", "stop_point:B", ttfixture.At(8, 0)),
	})
	assert.True(t, errors.Is(err, domain.ErrUnknownPlace))
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))

	_, err = e.orch.Search(context.Background(), SearchRequest{Journeys: journeysRequest("stop_point:A", "stop_point:B")})
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}

func TestIsochrone(t *testing.T) {
	e := newEnv(t, ttfixture.SingleRun(), nil)

	labels, err := e.orch.Isochrone(context.Background(), &domain.IsochroneRequest{
		Origin:   []domain.EntryPoint{{Place: "stop_point:A"}},
		DateTime: ttfixture.At(8, 0),
	}, domain.Deadline{})
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "stop_point:A", labels[0].StopPoint)
	assert.Equal(t, 0, labels[0].Round)
	assert.Equal(t, "stop_point:B", labels[1].StopPoint)
	assert.True(t, labels[1].DateTime.Equal(ttfixture.At(8, 20)))
	assert.Equal(t, 1, labels[1].Round)

	_, err = e.orch.Isochrone(context.Background(), &domain.IsochroneRequest{
		Origin:   []domain.EntryPoint{{Place: "stop_point:A"}},
		DateTime: ttfixture.At(8, 0),
	}, domain.DeadlineAt(time.Unix(0, 0)))
	assert.True(t, domain.IsKind(err, domain.KindDeadlineExpired))
}

func TestPlacesNearby(t *testing.T) {
	e := newEnv(t, ttfixture.Loop(), nil)

	places, err := e.orch.PlacesNearby(&domain.PlacesNearbyRequest{Coord: ttfixture.CoordOrigin, Distance: 500})
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "stop_point:O2", places[0].Place.ID)
	assert.Equal(t, "stop_point:O1", places[1].Place.ID)
	assert.Less(t, places[0].Distance, places[1].Distance)

	places, err = e.orch.PlacesNearby(&domain.PlacesNearbyRequest{Coord: ttfixture.CoordOrigin, Distance: 500, Count: 1})
	require.NoError(t, err)
	assert.Len(t, places, 1)
}

func TestMetadata(t *testing.T) {
	e := newEnv(t, ttfixture.SingleRun(), nil)
	m := e.orch.Metadata()
	assert.Equal(t, "20240304", m.StartProductionDate)
	assert.Equal(t, "20240310", m.EndProductionDate)
	assert.Equal(t, "CET", m.Timezone)
	assert.Equal(t, []string{"agency:1"}, m.Contributors)
	assert.Equal(t, 2, m.NbStopPoints)
	assert.Equal(t, 1, m.NbVehicleJourneys)
}
