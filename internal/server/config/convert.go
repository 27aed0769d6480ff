package config

import (
	"github.com/hove-io/navitia-sub004/internal/core/service"
	"github.com/hove-io/navitia-sub004/internal/infra/tlsroots"
	"github.com/hove-io/navitia-sub004/internal/maintenance"
	"github.com/hove-io/navitia-sub004/internal/routing/raptor"
	"github.com/hove-io/navitia-sub004/internal/server/broker"
	"github.com/hove-io/navitia-sub004/internal/storage/realtime"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
	"github.com/hove-io/navitia-sub004/internal/telemetry/tracer"
)

// BrokerConfig returns the request broker configuration.
func (c *ServerConfig) BrokerConfig() broker.Config {
	return broker.Config{
		Address:      c.Broker.Address,
		WriteTimeout: c.Broker.WriteTimeout,
		IdleTimeout:  c.Broker.IdleTimeout,
	}
}

// SearchConfig returns the journey search settings.
func (c *ServerConfig) SearchConfig() service.Config {
	return service.Config{
		MaxDuration:        c.Search.MaxDuration,
		MaxTransfers:       c.Search.MaxTransfers,
		NightBusMaxFactor:  c.Search.NightBusMaxFactor,
		NightBusBaseFactor: c.Search.NightBusBaseFactor,
		WalkingSpeed:       c.Search.WalkingSpeed,
		MaxWalkingDuration: c.Search.MaxWalkingDuration,
	}
}

// IndexConfig returns the routing precomputation settings.
func (c *ServerConfig) IndexConfig() raptor.IndexConfig {
	idx := raptor.DefaultIndexConfig()
	idx.TransferRadius = c.Search.TransferRadius
	idx.WalkingSpeed = c.Search.WalkingSpeed
	return idx
}

// LoggerConfig returns the logger configuration.
func (c *ServerConfig) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return lc
}

// TracerConfig returns the tracing configuration.
func (c *ServerConfig) TracerConfig() tracer.Config {
	if c.Telemetry.Tracing == "" || c.Telemetry.Tracing == "none" {
		return tracer.Config{}
	}
	return tracer.Config{Enabled: true, Exporter: c.Telemetry.Tracing}
}

// RealtimeSource returns the configured realtime feed, or nil.
func (c *ServerConfig) RealtimeSource() realtime.Source {
	switch {
	case c.Realtime.URL != "":
		return realtime.NewHTTPSource(c.Realtime.URL, c.Realtime.Timeout)
	case c.Realtime.File != "":
		return realtime.FileSource{Path: c.Realtime.File}
	default:
		return nil
	}
}

// RealtimeTLS returns the TLS files of the realtime feed.
func (c *ServerConfig) RealtimeTLS() tlsroots.Config {
	return tlsroots.Config{
		CAFile:   c.Realtime.CAFile,
		CertFile: c.Realtime.CertFile,
		KeyFile:  c.Realtime.KeyFile,
	}
}

// MaintenanceConfig returns the reload loop configuration.
func (c *ServerConfig) MaintenanceConfig() maintenance.Config {
	return maintenance.Config{
		BasePath:     c.Data.BasePath,
		Contributors: c.Data.Contributors,
		CacheSize:    c.Data.CacheSize,
		Realtime:     c.RealtimeSource(),
		Interval:     c.Maintenance.Interval,
		MinReloadGap: c.Maintenance.MinReloadGap,
		Watch:        c.Maintenance.Watch,
	}
}
