package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hove-io/navitia-sub004/internal/infra/buildinfo"
	"github.com/hove-io/navitia-sub004/internal/infra/shutdown"
	"github.com/hove-io/navitia-sub004/internal/infra/tlsroots"
	"github.com/hove-io/navitia-sub004/internal/maintenance"
	"github.com/hove-io/navitia-sub004/internal/server/broker"
	"github.com/hove-io/navitia-sub004/internal/server/config"
	"github.com/hove-io/navitia-sub004/internal/server/httpserver"
	"github.com/hove-io/navitia-sub004/internal/server/worker"
	"github.com/hove-io/navitia-sub004/internal/storage/gtfs"
	"github.com/hove-io/navitia-sub004/internal/storage/realtime"
	"github.com/hove-io/navitia-sub004/internal/storage/snapshot"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
	"github.com/hove-io/navitia-sub004/internal/telemetry/metric"
	"github.com/hove-io/navitia-sub004/internal/telemetry/tracer"
)

func serve(c *cli.Context) error {
	cfg, src, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	log.Info("starting kraken", buildinfo.Get().LogFields()...)
	log.Debug("configuration loaded", "config", config.Sanitize(cfg), "origins", src.Origins())

	tp, err := tracer.New("kraken", cfg.TracerConfig())
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}

	reg := metric.NewRegistry()
	snaps := snapshot.NewManager(snapshot.Config{
		Loader:      snapshot.BaseLoaderFunc(gtfs.Load),
		Fingerprint: gtfs.Fingerprint,
		Index:       cfg.IndexConfig(),
		Logger:      log,
		Metrics:     reg,
		Tracer:      tp,
		Now:         time.Now,
	})
	reg.MustRegister(metric.NewCollector(snaps.State))

	workers := worker.Pool(cfg.Broker.Workers, worker.Deps{
		Snapshots: snaps,
		Logger:    log,
		Metrics:   reg,
		Tracer:    tp,
		Now:       time.Now,
	}, cfg.SearchConfig())
	brk := broker.New(cfg.BrokerConfig(), workers, log, reg)
	mcfg := cfg.MaintenanceConfig()
	if src, ok := mcfg.Realtime.(*realtime.HTTPSource); ok && cfg.RealtimeTLS().Enabled() {
		tc, err := tlsroots.NewClient(cfg.RealtimeTLS(), log)
		if err != nil {
			return fmt.Errorf("realtime tls: %w", err)
		}
		if err := tc.Start(); err != nil {
			return fmt.Errorf("realtime tls: %w", err)
		}
		defer tc.Close()
		src.UseTLS(tc.TLSConfig())
	}
	loop := maintenance.New(mcfg, snaps, log)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	sh := shutdown.NewHandler(shutdownTimeout, log)

	// Hooks run in reverse order: admin, nats, serving loops, tracer.
	sh.OnShutdown("tracer", tp.Shutdown)

	g.Go(func() error { return brk.Serve(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	sh.OnShutdown("broker", func(ctx context.Context) error {
		stop()
		done := make(chan error, 1)
		go func() { done <- g.Wait() }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if cfg.NATS.URL != "" {
		nc, err := maintenance.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			stop()
			return err
		}
		if _, err := loop.Subscribe(nc, cfg.NATS.Subject); err != nil {
			nc.Close()
			stop()
			return err
		}
		sh.OnShutdown("nats", func(context.Context) error { return nc.Drain() })
		log.Info("listening for reload triggers", "url", config.Sanitize(cfg).NATS.URL, "subject", cfg.NATS.Subject)
	}

	if cfg.Admin.Address != "" {
		ln, err := net.Listen("tcp", cfg.Admin.Address)
		if err != nil {
			stop()
			return fmt.Errorf("listen admin %s: %w", cfg.Admin.Address, err)
		}
		router := httpserver.DefaultRouterConfig()
		router.Snapshots = snaps
		router.Reloader = loop
		router.Metrics = reg.Handler()
		router.Logger = log
		admin := httpserver.New(cfg.Admin.Address, httpserver.NewRouter(router))
		g.Go(func() error {
			log.Info("admin server listening", "addr", ln.Addr().String())
			if err := admin.Serve(ln); err != nil {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		sh.OnShutdown("admin", admin.Shutdown)
	}

	go func() {
		select {
		case <-brk.Bound():
			log.Info("broker listening", "addr", brk.Addr().String(), "workers", cfg.Broker.Workers)
		case <-gctx.Done():
		}
	}()

	// A failing component cancels gctx and starts the shutdown.
	if err := sh.Wait(gctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("kraken stopped")
	return nil
}
