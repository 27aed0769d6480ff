// Package maintenance runs the background snapshot reloads.
//
// A Loop reloads on a ticker and on triggers. Triggers come from a file
// watcher on the base extract, from a NATS subject, or from callers such
// as the admin HTTP server. Reloads never overlap: triggers that arrive
// while one runs are merged into a single pending reload, and reloads are
// spaced by at least the configured gap.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hove-io/navitia-sub004/internal/infra/confloader"
	"github.com/hove-io/navitia-sub004/internal/storage/realtime"
	"github.com/hove-io/navitia-sub004/internal/storage/snapshot"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
)

// Kind is what a trigger asks to reload.
type Kind int

const (
	// KindBase rebuilds from the base extract, merging realtime when a
	// source is configured.
	KindBase Kind = iota + 1
	// KindRealtime merges a fresh realtime feed into the current data.
	KindRealtime
)

// ErrUnknownKind is returned by ParseKind.
var ErrUnknownKind = errors.New("maintenance: unknown reload kind")

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindRealtime:
		return "realtime"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses "base" or "realtime".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base":
		return KindBase, nil
	case "realtime":
		return KindRealtime, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Reloader is the write side of the snapshot manager.
type Reloader interface {
	Load(ctx context.Context, opts snapshot.LoadOptions) bool
	ApplyRealtime(ctx context.Context, source realtime.Source, contributors []string) bool
}

// Config configures a Loop.
type Config struct {
	BasePath     string
	Contributors []string
	CacheSize    int
	// Realtime is the realtime feed; nil disables realtime reloads.
	Realtime realtime.Source
	// Interval between periodic reloads; zero disables them.
	Interval time.Duration
	// MinReloadGap is the minimum time between two reloads.
	MinReloadGap time.Duration
	// Watch reloads the base extract when it changes on disk.
	Watch bool
}

// Loop serializes snapshot reloads.
type Loop struct {
	cfg      Config
	reloader Reloader
	log      logger.Logger
	limiter  *rate.Limiter

	mu      sync.Mutex
	pending map[Kind]bool
	wake    chan struct{}
}

// New returns a loop reloading through r.
func New(cfg Config, r Reloader, log logger.Logger) *Loop {
	if log == nil {
		log = logger.Discard()
	}
	limit := rate.Inf
	if cfg.MinReloadGap > 0 {
		limit = rate.Every(cfg.MinReloadGap)
	}
	return &Loop{
		cfg:      cfg,
		reloader: r,
		log:      log.With("component", "maintenance"),
		limiter:  rate.NewLimiter(limit, 1),
		pending:  make(map[Kind]bool),
		wake:     make(chan struct{}, 1),
	}
}

// Trigger asks for a reload. It never blocks; a trigger already pending
// absorbs the new one.
func (l *Loop) Trigger(k Kind) {
	l.mu.Lock()
	l.pending[k] = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// TriggerBase signals a new base extract.
func (l *Loop) TriggerBase() { l.Trigger(KindBase) }

// TriggerRealtime signals new realtime data.
func (l *Loop) TriggerRealtime() { l.Trigger(KindRealtime) }

// Run loads the base extract, then serves triggers and the periodic
// reload until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if l.cfg.Watch && l.cfg.BasePath != "" {
		w, err := confloader.NewWatcher(confloader.WithWatcherLogger(l.log))
		if err != nil {
			return fmt.Errorf("create extract watcher: %w", err)
		}
		if err := w.Watch(l.cfg.BasePath); err != nil {
			_ = w.Stop()
			return fmt.Errorf("watch %s: %w", l.cfg.BasePath, err)
		}
		w.OnChange(func(string) { l.TriggerBase() })
		w.StartAsync()
		defer w.Stop()
	}

	var tick <-chan time.Time
	if l.cfg.Interval > 0 {
		t := time.NewTicker(l.cfg.Interval)
		defer t.Stop()
		tick = t.C
	}

	l.log.Info("maintenance loop started", "base_path", l.cfg.BasePath, "interval", l.cfg.Interval.String())
	l.Trigger(KindBase)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("maintenance loop stopped")
			return nil
		case <-tick:
			l.Trigger(l.periodicKind())
		case <-l.wake:
			if !l.hasPending() {
				continue
			}
			if err := l.limiter.Wait(ctx); err != nil {
				continue
			}
			l.reload(ctx, l.takePending())
		}
	}
}

// periodicKind refreshes realtime when a feed is configured, the base
// extract otherwise; an unchanged extract is not rebuilt.
func (l *Loop) periodicKind() Kind {
	if l.cfg.Realtime != nil {
		return KindRealtime
	}
	return KindBase
}

func (l *Loop) hasPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) > 0
}

func (l *Loop) takePending() map[Kind]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.pending
	l.pending = make(map[Kind]bool)
	return p
}

func (l *Loop) reload(ctx context.Context, pending map[Kind]bool) {
	start := time.Now()
	switch {
	case pending[KindBase]:
		ok := l.reloader.Load(ctx, snapshot.LoadOptions{
			BasePath:     l.cfg.BasePath,
			Realtime:     l.cfg.Realtime,
			Contributors: l.cfg.Contributors,
			CacheSize:    l.cfg.CacheSize,
		})
		l.log.Info("base reload done", "ok", ok, "duration", time.Since(start).String())
	case pending[KindRealtime]:
		if l.cfg.Realtime == nil {
			l.log.Warn("realtime reload requested without a realtime source")
			return
		}
		ok := l.reloader.ApplyRealtime(ctx, l.cfg.Realtime, l.cfg.Contributors)
		l.log.Info("realtime reload done", "ok", ok, "duration", time.Since(start).String())
	}
}
