package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/service"
	"github.com/hove-io/navitia-sub004/internal/maintenance"
	"github.com/hove-io/navitia-sub004/internal/routing/raptor"
	"github.com/hove-io/navitia-sub004/internal/server/broker"
	"github.com/hove-io/navitia-sub004/internal/server/httpserver"
	"github.com/hove-io/navitia-sub004/internal/server/worker"
	"github.com/hove-io/navitia-sub004/internal/storage/gtfs"
	"github.com/hove-io/navitia-sub004/internal/storage/snapshot"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
	"github.com/hove-io/navitia-sub004/internal/telemetry/metric"
	"github.com/hove-io/navitia-sub004/pkg/client"
)

var feed = map[string]string{
	"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
		"tc,Transports,http://tc.example,Europe/Paris\n",
	"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
		"A,Stop A,48.80,2.30\n" +
		"B,Stop B,48.85,2.35\n" +
		"C,Stop C,48.90,2.40\n",
	"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n" +
		"R1,tc,1,Line one,3\n",
	"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"ALL,1,1,1,1,1,1,1,20240304,20240310\n",
	"trips.txt": "route_id,service_id,trip_id\n" +
		"R1,ALL,T1\n" +
		"R1,ALL,T2\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:00:00,08:00:00,A,1\n" +
		"T1,08:10:00,08:10:00,B,2\n" +
		"T1,08:20:00,08:20:00,C,3\n" +
		"T2,09:00:00,09:00:00,A,1\n" +
		"T2,09:10:00,09:10:00,B,2\n" +
		"T2,09:20:00,09:20:00,C,3\n",
}

func writeFeed(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
}

type stack struct {
	client *client.Client
	admin  *httptest.Server
	snaps  *snapshot.Manager
	dir    string
}

// startStack runs every server component on loopback listeners until the
// test ends.
func startStack(t testing.TB) *stack {
	t.Helper()
	dir := t.TempDir()
	writeFeed(t, dir, feed)

	log := logger.Discard()
	reg := metric.NewRegistry()
	snaps := snapshot.NewManager(snapshot.Config{
		Loader:      snapshot.BaseLoaderFunc(gtfs.Load),
		Fingerprint: gtfs.Fingerprint,
		Index:       raptor.DefaultIndexConfig(),
		Logger:      log,
		Metrics:     reg,
	})
	reg.MustRegister(metric.NewCollector(snaps.State))

	workers := worker.Pool(2, worker.Deps{Snapshots: snaps, Logger: log, Metrics: reg}, service.DefaultConfig())
	brk := broker.New(broker.Config{Address: "127.0.0.1:0"}, workers, log, reg)
	loop := maintenance.New(maintenance.Config{BasePath: dir, Contributors: []string{"tc"}}, snaps, log)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	go func() { errs <- brk.Serve(ctx) }()
	go func() { errs <- loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		for i := 0; i < 2; i++ {
			select {
			case err := <-errs:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Error("server component did not stop")
			}
		}
	})

	router := httpserver.DefaultRouterConfig()
	router.Snapshots = snaps
	router.Reloader = loop
	router.Metrics = reg.Handler()
	router.Logger = log
	router.AdminRateLimit = 0
	admin := httptest.NewServer(httpserver.NewRouter(router))
	t.Cleanup(admin.Close)

	select {
	case <-brk.Bound():
	case <-time.After(5 * time.Second):
		t.Fatal("broker did not bind")
	}
	require.Eventually(t, func() bool { return snaps.Get().Loaded }, 5*time.Second, 10*time.Millisecond)

	c, err := client.Dial(context.Background(), brk.Addr().String(), client.WithTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return &stack{client: c, admin: admin, snaps: snaps, dir: dir}
}

func TestStack_Queries(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	s := startStack(t)
	ctx := context.Background()
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	status, err := s.client.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.Status)
	assert.True(t, status.Status.Loaded)
	assert.NotEqual(t, domain.PublicationDateUnknown, status.PublicationDate)

	meta, err := s.client.Metadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta.Metadata)
	assert.Equal(t, 3, meta.Metadata.NbStopPoints)
	assert.Equal(t, 2, meta.Metadata.NbVehicleJourneys)

	resp, err := s.client.Journeys(ctx, &domain.JourneysRequest{
		Origin:      []domain.EntryPoint{{Place: "A"}},
		Destination: []domain.EntryPoint{{Place: "C"}},
		DateTimes:   []time.Time{time.Date(2024, 3, 5, 7, 50, 0, 0, paris)},
	})
	require.NoError(t, err)
	var best *domain.Journey
	for i, j := range resp.Journeys {
		if j.Empty || j.IsDirectPath() {
			continue
		}
		if best == nil || j.Arrival.Before(best.Arrival) {
			best = &resp.Journeys[i]
		}
	}
	require.NotNil(t, best, "no public transport journey in %+v", resp.Journeys)
	assert.True(t, best.Arrival.Equal(time.Date(2024, 3, 5, 8, 20, 0, 0, paris)), "arrival %s", best.Arrival)
	assert.Zero(t, best.NbTransfers)

	nearby, err := s.client.PlacesNearby(ctx, &domain.PlacesNearbyRequest{
		Coord:    domain.Coord{Lon: 2.30, Lat: 48.80},
		Distance: 100,
	})
	require.NoError(t, err)
	require.Len(t, nearby.Places, 1)
	assert.Equal(t, "A", nearby.Places[0].Place.ID)

	_, err = s.client.Journeys(ctx, &domain.JourneysRequest{
		Origin:      []domain.EntryPoint{{Place: "nowhere"}},
		Destination: []domain.EntryPoint{{Place: "C"}},
		DateTimes:   []time.Time{time.Date(2024, 3, 5, 7, 50, 0, 0, paris)},
	})
	var rerr *client.ResponseError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, domain.KindInvalidRequest, rerr.Kind)
}

func TestStack_AdminReload(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	s := startStack(t)
	before := s.snaps.Get().ID

	resp, err := http.Get(s.admin.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	files := map[string]string{"stops.txt": feed["stops.txt"] + "D,Stop D,48.95,2.45\n"}
	writeFeed(t, s.dir, files)

	resp, err = http.Post(s.admin.URL+"/admin/reload?kind=base", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		snap := s.snaps.Get()
		return snap.ID > before && snap.Loaded && len(snap.Data.StopPoints) == 4
	}, 5*time.Second, 20*time.Millisecond)

	meta, err := s.client.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, meta.Metadata.NbStopPoints)

	resp, err = http.Get(s.admin.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
