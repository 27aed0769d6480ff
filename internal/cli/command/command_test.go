package command

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hove-io/navitia-sub004/internal/cli/config"
	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/server/broker"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
)

// fakeKraken is a broker whose single worker records requests and answers
// with reply.
type fakeKraken struct {
	addr string

	mu       sync.Mutex
	requests []domain.Request
	reply    func(domain.Request) domain.Response
}

func newFakeKraken(t *testing.T, reply func(domain.Request) domain.Response) *fakeKraken {
	t.Helper()
	f := &fakeKraken{reply: reply}
	worker := func(ctx context.Context, ep *broker.Endpoint) {
		if ep.Ready(ctx) != nil {
			return
		}
		for {
			frames, err := ep.Recv(ctx)
			if err != nil {
				return
			}
			var req domain.Request
			json.Unmarshal(frames[len(frames)-1], &req)
			f.mu.Lock()
			f.requests = append(f.requests, req)
			f.mu.Unlock()

			resp := f.reply(req)
			resp.RequestID = req.RequestID
			body, _ := json.Marshal(resp)
			out := append(append([][]byte{}, frames[:len(frames)-1]...), body)
			if ep.Send(ctx, out) != nil {
				return
			}
		}
	}

	b := broker.New(broker.Config{Address: "127.0.0.1:0"}, []broker.WorkerFunc{worker}, logger.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	<-b.Bound()
	f.addr = b.Addr().String()
	return f
}

func (f *fakeKraken) last(t *testing.T) domain.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no request received")
	}
	return f.requests[len(f.requests)-1]
}

// run executes kraken-cli with a settings file that does not exist.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	full := append([]string{"kraken-cli", "--config", filepath.Join(t.TempDir(), "cli.yaml")}, args...)
	err := app.Run(full)
	return out.String(), err
}

func TestApp_Commands(t *testing.T) {
	app := App()
	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"journeys", "isochrone", "nearby", "metadata", "status", "admin", "config"} {
		if !names[want] {
			t.Errorf("missing command %s", want)
		}
	}
}

func TestParseDateTime(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	now := time.Date(2024, 3, 4, 7, 30, 15, 500, paris)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", time.Date(2024, 3, 4, 7, 30, 15, 0, paris), false},
		{"now", time.Date(2024, 3, 4, 7, 30, 15, 0, paris), false},
		{"2024-03-04T08:00:00Z", time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), false},
		{"20240305T080000", time.Date(2024, 3, 5, 8, 0, 0, 0, paris), false},
		{"09:15", time.Date(2024, 3, 4, 9, 15, 0, 0, paris), false},
		{"tomorrow", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseDateTime(tt.in, now)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDateTime(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDateTime(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseDateTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJourneys(t *testing.T) {
	f := newFakeKraken(t, func(domain.Request) domain.Response {
		return domain.Response{
			PublicationDate: "2024-03-04T06:00:00Z",
			Journeys: []domain.Journey{{
				Departure: time.Date(2024, 3, 4, 8, 11, 0, 0, time.UTC),
				Arrival:   time.Date(2024, 3, 4, 8, 20, 0, 0, time.UTC),
			}},
		}
	})

	out, err := run(t, "--broker", f.addr, "journeys",
		"--from", "stop_point:A", "--to", "2.35;48.85",
		"--at", "2024-03-04T08:00:00Z", "--at", "2024-03-04T09:00:00Z",
		"--arrival", "--max-transfers", "2", "--timeframe", "1h")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, "2024-03-04 08:11") {
		t.Errorf("output:\n%s", out)
	}

	req := f.last(t)
	if req.API != domain.APIJourneys || req.Journeys == nil {
		t.Fatalf("request = %+v", req)
	}
	j := req.Journeys
	if j.Origin[0].Place != "stop_point:A" || j.Destination[0].Place != "2.35;48.85" {
		t.Errorf("places = %+v %+v", j.Origin, j.Destination)
	}
	if len(j.DateTimes) != 2 || j.DateTimeRepresents != "arrival" {
		t.Errorf("datetimes = %v %q", j.DateTimes, j.DateTimeRepresents)
	}
	if j.MaxTransfers == nil || *j.MaxTransfers != 2 {
		t.Errorf("max transfers = %v", j.MaxTransfers)
	}
	if j.MinNbJourneys != nil {
		t.Errorf("min journeys = %v, want unset", *j.MinNbJourneys)
	}
	if j.TimeframeDuration == nil || *j.TimeframeDuration != 3600 {
		t.Errorf("timeframe = %v", j.TimeframeDuration)
	}
	if req.Deadline == "" {
		t.Error("deadline not propagated")
	}
}

func TestQuery_ResponseError(t *testing.T) {
	f := newFakeKraken(t, func(domain.Request) domain.Response {
		resp := domain.Response{PublicationDate: domain.PublicationDateUnknown}
		resp.SetError(domain.ErrUnknownPlace.WithDetails("stop_point:Z"))
		return resp
	})

	out, err := run(t, "--broker", f.addr, "journeys", "--from", "stop_point:Z", "--to", "stop_point:B")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(out, "invalid_request") {
		t.Errorf("error not rendered:\n%s", out)
	}
}

func TestStatusAndMetadata_JSON(t *testing.T) {
	f := newFakeKraken(t, func(req domain.Request) domain.Response {
		resp := domain.Response{API: req.API, PublicationDate: "2024-03-04T06:00:00Z"}
		switch req.API {
		case domain.APIStatus:
			resp.Status = &domain.Status{SnapshotID: 5, Loaded: true, Worker: 0}
		case domain.APIMetadata:
			resp.Metadata = &domain.Metadata{Timezone: "Europe/Paris"}
		}
		return resp
	})

	out, err := run(t, "--broker", f.addr, "-o", "json", "status")
	if err != nil {
		t.Fatal(err)
	}
	var resp domain.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if resp.Status == nil || resp.Status.SnapshotID != 5 {
		t.Errorf("status = %+v", resp.Status)
	}

	out, err = run(t, "--broker", f.addr, "-o", "yaml", "metadata")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "timezone: Europe/Paris") {
		t.Errorf("output:\n%s", out)
	}
}

func TestNearbyAndIsochrone(t *testing.T) {
	f := newFakeKraken(t, func(req domain.Request) domain.Response {
		return domain.Response{API: req.API}
	})

	if _, err := run(t, "--broker", f.addr, "nearby", "--lon", "2.35", "--lat", "48.85", "--count", "3"); err != nil {
		t.Fatal(err)
	}
	req := f.last(t)
	if req.PlacesNearby == nil || req.PlacesNearby.Distance != 500 || req.PlacesNearby.Count != 3 {
		t.Errorf("request = %+v", req.PlacesNearby)
	}

	if _, err := run(t, "--broker", f.addr, "isochrone", "--from", "stop_point:A", "--at", "2024-03-04T08:00:00Z", "--max-duration", "30m"); err != nil {
		t.Fatal(err)
	}
	req = f.last(t)
	if req.Isochrone == nil || req.Isochrone.MaxDuration != 1800 || req.Isochrone.MaxTransfers != nil {
		t.Errorf("request = %+v", req.Isochrone)
	}
}

func TestQuery_BrokerUnreachable(t *testing.T) {
	_, err := run(t, "--broker", "127.0.0.1:1", "status")
	if err == nil || !strings.Contains(err.Error(), "connect to broker") {
		t.Errorf("err = %v", err)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := run(t, "-o", "xml", "status")
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("err = %v", err)
	}
}

// fakeAdmin serves /status and /admin/reload; a reload publishes a new
// snapshot after two status polls.
func fakeAdmin(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var snapshotID, polls atomic.Int32
	var reloadKind atomic.Value
	reloadKind.Store("")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		write := func(status int, data any) {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{"code": "OK", "data": data})
		}
		switch r.URL.Path {
		case "/health":
			write(http.StatusOK, map[string]string{"status": "healthy"})
		case "/status":
			if reloadKind.Load() != "" && polls.Add(1) > 2 {
				snapshotID.Store(2)
			}
			write(http.StatusOK, map[string]any{"snapshot_id": snapshotID.Load(), "loading": false, "loaded": true})
		case "/admin/reload":
			reloadKind.Store(r.URL.Query().Get("kind"))
			write(http.StatusAccepted, map[string]string{"kind": r.URL.Query().Get("kind")})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	snapshotID.Store(1)
	return srv, &snapshotID
}

func TestAdmin(t *testing.T) {
	srv, _ := fakeAdmin(t)

	out, err := run(t, "--admin", srv.URL, "admin", "health")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "healthy") {
		t.Errorf("output:\n%s", out)
	}

	out, err = run(t, "--admin", srv.URL, "admin", "reload", "--kind", "realtime")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "realtime") {
		t.Errorf("output:\n%s", out)
	}
}

func TestAdmin_ReloadWait(t *testing.T) {
	reloadPollInterval = 10 * time.Millisecond
	defer func() { reloadPollInterval = 500 * time.Millisecond }()
	srv, snapshotID := fakeAdmin(t)

	out, err := run(t, "--admin", srv.URL, "-o", "json", "admin", "reload", "--wait")
	if err != nil {
		t.Fatal(err)
	}
	if snapshotID.Load() != 2 {
		t.Errorf("snapshot id = %d", snapshotID.Load())
	}
	var status map[string]any
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if status["snapshot_id"] != float64(2) {
		t.Errorf("status = %v", status)
	}
}

func TestConfigSaveAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	app := App()
	var out bytes.Buffer
	app.Writer = &out
	err := app.Run([]string{"kraken-cli", "--config", path, "--broker", "kraken:6000", "--timeout", "5s", "config", "save"})
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Broker != "kraken:6000" || cfg.Timeout != 5*time.Second {
		t.Errorf("saved = %+v", cfg)
	}

	out.Reset()
	app = App()
	app.Writer = &out
	if err := app.Run([]string{"kraken-cli", "--config", path, "-o", "json", "config", "show"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"broker": "kraken:6000"`) {
		t.Errorf("output:\n%s", out.String())
	}
}
