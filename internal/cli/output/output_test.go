package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
)

func at(h, m int) time.Time {
	return time.Date(2024, 3, 4, h, m, 0, 0, time.UTC)
}

func sampleJourneys() *domain.Response {
	return &domain.Response{
		PublicationDate: "2024-03-04T06:00:00Z",
		Journeys: []domain.Journey{
			{
				Departure:   at(8, 11),
				Arrival:     at(8, 20),
				NbTransfers: 0,
				Sections: []domain.Section{
					{Type: domain.SectionStreetNetwork, From: domain.Place{ID: "origin"}, To: domain.Place{ID: "stop_point:A"}},
					{Type: domain.SectionPublicTransport, Route: "L1", From: domain.Place{ID: "stop_point:A"}, To: domain.Place{ID: "stop_point:B"}},
					{Type: domain.SectionStreetNetwork, From: domain.Place{ID: "stop_point:B"}, To: domain.Place{ID: "destination"}},
				},
				RequestedDateTime: at(8, 0),
			},
			{Empty: true, RequestedDateTime: at(23, 0)},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "json", "yaml"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", s, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("json formatter expected")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("yaml formatter expected")
	}
	if f, ok := NewFormatter(FormatTable, true).(*TableFormatter); !ok || !f.Wide {
		t.Error("wide table formatter expected")
	}
}

func TestTableFormatter_Journeys(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, sampleJourneys()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	for _, want := range []string{"DEPARTURE", "2024-03-04 08:11", "9m0s", "street_network > public_transport:L1 > street_network", "no journey"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "REQUESTED") {
		t.Error("REQUESTED column shown without wide")
	}

	buf.Reset()
	(&TableFormatter{Wide: true}).Format(&buf, sampleJourneys())
	if !strings.Contains(buf.String(), "REQUESTED") || !strings.Contains(buf.String(), "(stop_point:A-stop_point:B)") {
		t.Errorf("wide output:\n%s", buf.String())
	}
}

func TestTableFormatter_Error(t *testing.T) {
	resp := &domain.Response{PublicationDate: domain.PublicationDateUnknown}
	resp.SetError(domain.ErrUnknownPlace.WithDetails("stop_point:Z"))

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "invalid_request") || !strings.Contains(buf.String(), "stop_point:Z") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestTableFormatter_OtherResponses(t *testing.T) {
	tests := []struct {
		name string
		resp *domain.Response
		want []string
	}{
		{
			"labels",
			&domain.Response{Labels: []domain.StopLabel{{StopPoint: "stop_point:B", DateTime: at(8, 20), Round: 1}}},
			[]string{"STOP_POINT", "stop_point:B", "2024-03-04 08:20"},
		},
		{
			"places",
			&domain.Response{Places: []domain.PlaceNearby{{Place: domain.Place{ID: "stop_point:A", Coord: domain.Coord{Lon: 2.35, Lat: 48.85}}, Distance: 42.4}}},
			[]string{"stop_point:A", "42m", "2.350000", "48.850000"},
		},
		{
			"metadata",
			&domain.Response{PublicationDate: "2024-03-04T06:00:00Z", Metadata: &domain.Metadata{Timezone: "Europe/Paris", Contributors: []string{"agency:1"}, NbStopPoints: 3}},
			[]string{"Europe/Paris", "agency:1", "stop_points", "2024-03-04T06:00:00Z"},
		},
		{
			"status",
			&domain.Response{Status: &domain.Status{SnapshotID: 4, Loaded: true, Worker: 2, PublicationDate: "unknown"}},
			[]string{"snapshot_id", "4", "worker", "unknown"},
		},
		{
			"empty",
			&domain.Response{},
			[]string{"no result"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&TableFormatter{}).Format(&buf, tt.resp); err != nil {
				t.Fatal(err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output does not contain %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestTableFormatter_Map(t *testing.T) {
	var buf bytes.Buffer
	err := (&TableFormatter{NoHeaders: true}).Format(&buf, map[string]any{
		"stop_points": float64(12),
		"loaded":      true,
		"factor":      1.5,
		"name":        "",
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "factor") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	for _, want := range []string{"12", "1.50", "true", "-"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}

func TestTableFormatter_FallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, []int{1, 2}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "[\n  1,\n  2\n]") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, sampleJourneys()); err != nil {
		t.Fatal(err)
	}
	var back map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if back["publication_date"] != "2024-03-04T06:00:00Z" {
		t.Errorf("publication_date = %v", back["publication_date"])
	}
	if js, ok := back["journeys"].([]any); !ok || len(js) != 2 {
		t.Errorf("journeys = %v", back["journeys"])
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, map[string]string{"status": "ready"}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"status\": \"ready\"\n}\n" {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	if err := (&JSONFormatter{}).Format(&buf, map[string]string{"to": "Gare <Nord> & Est"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Gare <Nord> & Est") {
		t.Errorf("output = %q, want unescaped names", buf.String())
	}
}

func TestSpinner(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "reloading")
	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Success("reloaded")
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "reloading") {
		t.Errorf("spinner message missing: %q", out)
	}
	if !strings.HasSuffix(out, "✓ reloaded\n") {
		t.Errorf("output = %q", out)
	}
}

func TestSpinner_SetMessage(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "waiting")
	s.tick = 5 * time.Millisecond
	s.Start()
	s.SetMessage("loading a snapshot newer than 3")
	time.Sleep(50 * time.Millisecond)
	s.Fail("reload not observed")
	s.Success("ignored after Fail")

	out := buf.String()
	if !strings.Contains(out, "loading a snapshot newer than 3 (0s)") {
		t.Errorf("updated message missing: %q", out)
	}
	if !strings.HasSuffix(out, "✗ reload not observed\n") {
		t.Errorf("output = %q", out)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
