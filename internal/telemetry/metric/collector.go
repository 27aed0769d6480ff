package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SnapshotState is what the collector reports about the published snapshot.
type SnapshotState struct {
	Loaded            bool
	RealtimeConnected bool
	PublicationDate   time.Time
	StopPoints        int
	VehicleJourneys   int
}

// Collector reports the published snapshot on every scrape.
type Collector struct {
	state func() SnapshotState

	loaded      *prometheus.Desc
	realtime    *prometheus.Desc
	publication *prometheus.Desc
	entities    *prometheus.Desc
}

// NewCollector creates a collector reading state on scrape.
func NewCollector(state func() SnapshotState) *Collector {
	return &Collector{
		state: state,
		loaded: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "snapshot", "loaded"),
			"Whether the published snapshot holds data.", nil, nil),
		realtime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "snapshot", "realtime_connected"),
			"Whether the last realtime fetch succeeded.", nil, nil),
		publication: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "snapshot", "publication_timestamp_seconds"),
			"Publication date of the snapshot.", nil, nil),
		entities: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "snapshot", "entities"),
			"Entities in the snapshot, by kind.", []string{"kind"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.loaded
	ch <- c.realtime
	ch <- c.publication
	ch <- c.entities
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.state()
	ch <- prometheus.MustNewConstMetric(c.loaded, prometheus.GaugeValue, boolValue(s.Loaded))
	ch <- prometheus.MustNewConstMetric(c.realtime, prometheus.GaugeValue, boolValue(s.RealtimeConnected))
	var ts float64
	if !s.PublicationDate.IsZero() {
		ts = float64(s.PublicationDate.Unix())
	}
	ch <- prometheus.MustNewConstMetric(c.publication, prometheus.GaugeValue, ts)
	ch <- prometheus.MustNewConstMetric(c.entities, prometheus.GaugeValue, float64(s.StopPoints), "stop_point")
	ch <- prometheus.MustNewConstMetric(c.entities, prometheus.GaugeValue, float64(s.VehicleJourneys), "vehicle_journey")
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
