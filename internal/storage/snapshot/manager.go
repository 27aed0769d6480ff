package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/timetable"
	"github.com/hove-io/navitia-sub004/internal/routing/raptor"
	"github.com/hove-io/navitia-sub004/internal/storage/gtfs"
	"github.com/hove-io/navitia-sub004/internal/storage/realtime"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
	"github.com/hove-io/navitia-sub004/internal/telemetry/metric"
	"github.com/hove-io/navitia-sub004/internal/telemetry/tracer"
)

// Reload outcomes, used as the result label of kraken_snapshot_reloads_total.
// Failures map from the code of their reload error.
const (
	ResultOK        = "ok"
	ResultUnchanged = "unchanged"
	ResultRetained  = "retained"
	ResultFatal     = "fatal"
	ResultRealtime  = "realtime"
)

// BaseLoader builds a timetable from a base extract.
type BaseLoader interface {
	Load(path string) (*timetable.Data, error)
}

// BaseLoaderFunc adapts a function to BaseLoader.
type BaseLoaderFunc func(path string) (*timetable.Data, error)

// Load implements BaseLoader.
func (f BaseLoaderFunc) Load(path string) (*timetable.Data, error) { return f(path) }

// Config configures a Manager. Zero fields take defaults.
type Config struct {
	Loader      BaseLoader
	Fingerprint func(path string) (uint64, error)
	Index       raptor.IndexConfig
	Logger      logger.Logger
	Metrics     *metric.Registry
	Tracer      *tracer.Provider
	Now         func() time.Time
}

// LoadOptions are the inputs of one Load.
type LoadOptions struct {
	BasePath string
	// Realtime is merged into the new snapshot when set.
	Realtime     realtime.Source
	Contributors []string
	CacheSize    int
	// Force rebuilds even when the extract did not change.
	Force bool
}

// Manager publishes snapshots. Get is safe for any number of concurrent
// callers; loads are serialized.
type Manager struct {
	current atomic.Pointer[Snapshot]
	ids     atomic.Uint64
	loading atomic.Bool
	loadMu  sync.Mutex
	lastErr atomic.Pointer[domain.Error]

	loader      BaseLoader
	fingerprint func(string) (uint64, error)
	indexCfg    raptor.IndexConfig
	log         logger.Logger
	metrics     *metric.Registry
	tracer      *tracer.Provider
	now         func() time.Time
}

// NewManager returns a manager serving the empty placeholder snapshot.
func NewManager(cfg Config) *Manager {
	if cfg.Loader == nil {
		cfg.Loader = BaseLoaderFunc(gtfs.Load)
	}
	if cfg.Fingerprint == nil {
		cfg.Fingerprint = gtfs.Fingerprint
	}
	if cfg.Index == (raptor.IndexConfig{}) {
		cfg.Index = raptor.DefaultIndexConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracer.Noop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Manager{
		loader:      cfg.Loader,
		fingerprint: cfg.Fingerprint,
		indexCfg:    cfg.Index,
		log:         cfg.Logger.With("component", "snapshot"),
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
		now:         cfg.Now,
	}
	m.current.Store(Empty(0))
	return m
}

// Get returns the current snapshot. It never blocks and never returns nil.
func (m *Manager) Get() *Snapshot {
	return m.current.Load()
}

// Loading reports whether a load is in progress.
func (m *Manager) Loading() bool {
	return m.loading.Load()
}

// CloneCurrent returns a private deep copy of the current snapshot with a
// fresh, strictly larger id. The copy is marked Loading until published.
func (m *Manager) CloneCurrent() *Snapshot {
	cur := m.Get()
	cp := &Snapshot{
		ID:              m.ids.Add(1),
		Loading:         true,
		Loaded:          cur.Loaded,
		PublicationDate: cur.PublicationDate,
		Fingerprint:     cur.Fingerprint,
		Contributors:    append([]string(nil), cur.Contributors...),
		CacheSize:       cur.CacheSize,
		Data:            cur.Data.Clone(),
	}
	cp.buildIndices(m.indexCfg)
	return cp
}

// Publish makes s the current snapshot. A snapshot that has not established
// its own realtime status inherits the outgoing one. Publish waits for a
// running Load or ApplyRealtime to finish.
func (m *Manager) Publish(s *Snapshot) {
	if s == nil {
		panic("snapshot: publish of a nil snapshot")
	}
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.publish(s)
}

// publish swaps s in. The caller holds loadMu.
func (m *Manager) publish(s *Snapshot) {
	s.Loading = false
	old := m.current.Load()
	if s.Realtime == RealtimeUnknown {
		s.Realtime = old.Realtime
	}
	m.current.Store(s)
	m.log.Info("snapshot published",
		"snapshot_id", s.ID,
		"previous_id", old.ID,
		"realtime", s.Realtime.String(),
		"stop_points", len(s.Data.StopPoints),
		"vehicle_journeys", len(s.Data.VehicleJourneys))
}

// Load builds a snapshot from opts and publishes it. It returns false when
// the current snapshot was kept.
func (m *Manager) Load(ctx context.Context, opts LoadOptions) bool {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.loading.Store(true)
	defer m.loading.Store(false)

	ctx, span := m.tracer.StartSpan(ctx, "snapshot.load", attribute.String("base_path", opts.BasePath))
	defer span.End()
	log := m.log.With("base_path", opts.BasePath)

	fp, err := m.fingerprint(opts.BasePath)
	if err != nil {
		log.Warn("extract fingerprint unavailable", "error", err)
		fp = 0
	}
	if cur := m.Get(); !opts.Force && opts.Realtime == nil && cur.Loaded && fp != 0 && fp == cur.Fingerprint {
		log.Info("extract unchanged, keeping snapshot", "snapshot_id", cur.ID)
		m.record(ResultUnchanged, 0)
		return true
	}

	id := m.ids.Add(1)
	start := m.now()
	s, err := m.build(id, opts, fp)
	if err != nil {
		m.fail(log, span, domain.ErrReloadRetained.WithDetailsf("base build of snapshot %d", id).WithCause(err))
		return false
	}

	if opts.Realtime != nil {
		err := m.merge(ctx, s.Data, opts.Realtime, opts.Contributors)
		switch {
		case err == nil:
			s.Realtime = RealtimeConnected
		case errors.Is(err, realtime.ErrConnectivity):
			log.Warn("realtime source unreachable, publishing without realtime",
				"source", opts.Realtime.String(), "error", err)
			s.Realtime = RealtimeDisconnected
		default:
			log.Error("realtime data rejected, rebuilding without realtime",
				"source", opts.Realtime.String(), "error", err)
			s, err = m.build(id, opts, fp)
			if err != nil {
				m.fail(log, span, domain.ErrReloadFatal.WithDetailsf("rebuild of snapshot %d without realtime", id).WithCause(err))
				return false
			}
		}
	}

	s.buildIndices(m.indexCfg)
	s.Loaded = true
	m.publish(s)
	m.lastErr.Store(nil)
	m.record(ResultOK, s.ID)
	log.Info("snapshot loaded", "snapshot_id", s.ID, "duration", m.now().Sub(start).String())
	return true
}

// ApplyRealtime merges a fresh realtime feed into a copy of the current
// snapshot and publishes it.
func (m *Manager) ApplyRealtime(ctx context.Context, source realtime.Source, contributors []string) bool {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	ctx, span := m.tracer.StartSpan(ctx, "snapshot.realtime", attribute.String("source", source.String()))
	defer span.End()

	if !m.Get().Loaded {
		m.log.Warn("no data loaded, realtime update ignored")
		return false
	}
	s := m.CloneCurrent()
	if contributors == nil {
		contributors = s.Contributors
	}
	if err := m.merge(ctx, s.Data, source, contributors); err != nil {
		m.fail(m.log.With("source", source.String()), span,
			domain.ErrReloadRetained.WithDetails("realtime update").WithCause(err))
		return false
	}
	s.Realtime = RealtimeConnected
	s.buildIndices(m.indexCfg)
	m.publish(s)
	m.lastErr.Store(nil)
	m.record(ResultRealtime, s.ID)
	return true
}

// State reports the current snapshot to the metrics collector.
func (m *Manager) State() metric.SnapshotState {
	s := m.Get()
	return metric.SnapshotState{
		Loaded:            s.Loaded,
		RealtimeConnected: s.RealtimeConnected(),
		PublicationDate:   s.PublicationDate,
		StopPoints:        len(s.Data.StopPoints),
		VehicleJourneys:   len(s.Data.VehicleJourneys),
	}
}

func (m *Manager) build(id uint64, opts LoadOptions, fp uint64) (*Snapshot, error) {
	data, err := m.loader.Load(opts.BasePath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("snapshot: loader returned no data for %s", opts.BasePath)
	}
	return &Snapshot{
		ID:              id,
		Loading:         true,
		PublicationDate: m.now(),
		Fingerprint:     fp,
		Contributors:    append([]string(nil), opts.Contributors...),
		CacheSize:       opts.CacheSize,
		Data:            data,
	}, nil
}

func (m *Manager) merge(ctx context.Context, data *timetable.Data, source realtime.Source, contributors []string) error {
	payload, err := source.Fetch(ctx)
	if err != nil {
		return err
	}
	updates, err := realtime.Decode(payload, data, contributors)
	if err != nil {
		return err
	}
	applied, skipped, err := data.ApplyTripUpdates(updates)
	if err != nil {
		return fmt.Errorf("%w: %v", realtime.ErrData, err)
	}
	m.log.Info("realtime merged", "source", source.String(), "applied", applied, "skipped", skipped)
	return nil
}

// LastReloadError returns the failure of the latest reload, nil when it
// succeeded or none ran yet. The error is a domain.KindDataReload error.
func (m *Manager) LastReloadError() error {
	if e := m.lastErr.Load(); e != nil {
		return e
	}
	return nil
}

// fail reports a reload that kept the current snapshot.
func (m *Manager) fail(log logger.Logger, span trace.Span, err *domain.Error) {
	log.Error("snapshot reload failed, keeping current snapshot",
		"error", err,
		"code", err.Code,
		"snapshot_id", m.Get().ID)
	tracer.RecordError(span, err)
	m.lastErr.Store(err)
	m.record(reloadResult(err), 0)
}

func reloadResult(err *domain.Error) string {
	if err.Code == domain.ErrReloadFatal.Code {
		return ResultFatal
	}
	return ResultRetained
}

func (m *Manager) record(result string, id uint64) {
	if m.metrics != nil {
		m.metrics.RecordReload(result, id)
	}
}
