package config

import (
	"runtime"
	"time"

	"github.com/hove-io/navitia-sub004/internal/core/service"
	"github.com/hove-io/navitia-sub004/internal/maintenance"
	"github.com/hove-io/navitia-sub004/internal/routing/raptor"
	"github.com/hove-io/navitia-sub004/internal/server/broker"
)

// Default configuration values.
const (
	DefaultBrokerAddress = "127.0.0.1:5555"
	DefaultAdminAddress  = "127.0.0.1:9090"
	DefaultBasePath      = "/var/lib/kraken/data.zip"
	DefaultCacheSize     = 1024

	DefaultRealtimeTimeout = 10 * time.Second
	DefaultInterval        = time.Minute
	DefaultMinReloadGap    = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultTracing   = "none"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	b := broker.DefaultConfig()
	s := service.DefaultConfig()
	return &ServerConfig{
		Broker: BrokerSection{
			Address:      DefaultBrokerAddress,
			Workers:      runtime.NumCPU(),
			WriteTimeout: b.WriteTimeout,
			IdleTimeout:  b.IdleTimeout,
		},
		Data: DataSection{
			BasePath:  DefaultBasePath,
			CacheSize: DefaultCacheSize,
		},
		Realtime: RealtimeSection{
			Timeout: DefaultRealtimeTimeout,
		},
		Maintenance: MaintenanceSection{
			Interval:     DefaultInterval,
			MinReloadGap: DefaultMinReloadGap,
		},
		NATS: NATSSection{
			Subject: maintenance.DefaultSubject,
		},
		Admin: AdminSection{
			Address: DefaultAdminAddress,
		},
		Search: SearchSection{
			MaxDuration:        s.MaxDuration,
			MaxTransfers:       s.MaxTransfers,
			NightBusMaxFactor:  s.NightBusMaxFactor,
			NightBusBaseFactor: s.NightBusBaseFactor,
			WalkingSpeed:       s.WalkingSpeed,
			MaxWalkingDuration: s.MaxWalkingDuration,
			TransferRadius:     raptor.DefaultIndexConfig().TransferRadius,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Telemetry: TelemetrySection{
			Tracing: DefaultTracing,
		},
	}
}
