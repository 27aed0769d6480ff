package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
)

// TableFormatter renders kraken responses as aligned text tables. Data it
// has no table for is written as JSON.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format formats data as a table.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	var tables []*Table
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		tables = []*Table{v}
	case *domain.Response:
		tables = f.response(v)
	case map[string]any:
		tables = []*Table{mapTable(v)}
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		tables = []*Table{mapTable(m)}
	default:
		return (&JSONFormatter{}).Format(w, data)
	}

	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := t.RenderWithOptions(w, f.NoHeaders); err != nil {
			return err
		}
	}
	return nil
}

func (f *TableFormatter) response(r *domain.Response) []*Table {
	var tables []*Table
	if r.Error != nil {
		t := &Table{Headers: []string{"ERROR", "MESSAGE"}}
		t.AddRow(string(r.Error.Kind), r.Error.Message)
		tables = append(tables, t)
	}
	switch {
	case len(r.Journeys) > 0:
		tables = append(tables, f.journeys(r.Journeys))
	case len(r.Labels) > 0:
		tables = append(tables, labels(r.Labels))
	case len(r.Places) > 0:
		tables = append(tables, places(r.Places))
	case r.Metadata != nil:
		tables = append(tables, metadata(r.Metadata, r.PublicationDate))
	case r.Status != nil:
		tables = append(tables, status(r.Status))
	case r.Error == nil:
		tables = append(tables, &Table{Headers: []string{"RESULT"}, Rows: [][]string{{"no result"}}})
	}
	return tables
}

func (f *TableFormatter) journeys(js []domain.Journey) *Table {
	t := &Table{Headers: []string{"#", "DEPARTURE", "ARRIVAL", "DURATION", "TRANSFERS", "SECTIONS"}}
	if f.Wide {
		t.Headers = append(t.Headers, "REQUESTED")
	}
	for i, j := range js {
		if j.Empty {
			row := []string{fmt.Sprint(i + 1), "-", "-", "-", "-", "no journey"}
			if f.Wide {
				row = append(row, formatTime(j.RequestedDateTime))
			}
			t.AddRow(row...)
			continue
		}
		row := []string{
			fmt.Sprint(i + 1),
			formatTime(j.Departure),
			formatTime(j.Arrival),
			j.Duration().String(),
			fmt.Sprint(j.NbTransfers),
			sections(j.Sections, f.Wide),
		}
		if f.Wide {
			row = append(row, formatTime(j.RequestedDateTime))
		}
		t.AddRow(row...)
	}
	return t
}

// sections summarizes the legs of a journey: "walking > bus:L1 > walking".
func sections(ss []domain.Section, wide bool) string {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		p := string(s.Type)
		if s.Route != "" {
			p += ":" + s.Route
		}
		if wide {
			p += fmt.Sprintf("(%s-%s)", s.From.ID, s.To.ID)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " > ")
}

func labels(ls []domain.StopLabel) *Table {
	t := &Table{Headers: []string{"STOP_POINT", "DATETIME", "ROUND"}}
	for _, l := range ls {
		t.AddRow(l.StopPoint, formatTime(l.DateTime), fmt.Sprint(l.Round))
	}
	return t
}

func places(ps []domain.PlaceNearby) *Table {
	t := &Table{Headers: []string{"ID", "NAME", "DISTANCE", "LON", "LAT"}}
	for _, p := range ps {
		t.AddRow(p.Place.ID, orDash(p.Place.Name), fmt.Sprintf("%.0fm", p.Distance),
			fmt.Sprintf("%.6f", p.Place.Coord.Lon), fmt.Sprintf("%.6f", p.Place.Coord.Lat))
	}
	return t
}

func metadata(m *domain.Metadata, publication string) *Table {
	t := &Table{Headers: []string{"FIELD", "VALUE"}}
	t.AddRow("publication_date", publication)
	t.AddRow("start_production_date", m.StartProductionDate)
	t.AddRow("end_production_date", m.EndProductionDate)
	t.AddRow("timezone", orDash(m.Timezone))
	t.AddRow("contributors", orDash(strings.Join(m.Contributors, ",")))
	t.AddRow("stop_points", fmt.Sprint(m.NbStopPoints))
	t.AddRow("vehicle_journeys", fmt.Sprint(m.NbVehicleJourneys))
	return t
}

func status(s *domain.Status) *Table {
	t := &Table{Headers: []string{"FIELD", "VALUE"}}
	t.AddRow("snapshot_id", fmt.Sprint(s.SnapshotID))
	t.AddRow("loaded", fmt.Sprint(s.Loaded))
	t.AddRow("loading", fmt.Sprint(s.Loading))
	t.AddRow("realtime_connected", fmt.Sprint(s.RealtimeConnected))
	t.AddRow("publication_date", s.PublicationDate)
	t.AddRow("version", s.Version)
	t.AddRow("worker", fmt.Sprint(s.Worker))
	return t
}

func mapTable(m map[string]any) *Table {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := &Table{Headers: []string{"KEY", "VALUE"}}
	for _, k := range keys {
		t.AddRow(k, formatAny(m[k]))
	}
	return t
}

func formatAny(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return orDash(x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.2f", x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatAny(e)
		}
		return orDash(strings.Join(parts, ","))
	default:
		return fmt.Sprint(x)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
