package config

import "time"

// ServerConfig is the root configuration of the kraken server.
type ServerConfig struct {
	Broker      BrokerSection      `koanf:"broker" yaml:"broker"`
	Data        DataSection        `koanf:"data" yaml:"data"`
	Realtime    RealtimeSection    `koanf:"realtime" yaml:"realtime"`
	Maintenance MaintenanceSection `koanf:"maintenance" yaml:"maintenance"`
	NATS        NATSSection        `koanf:"nats" yaml:"nats"`
	Admin       AdminSection       `koanf:"admin" yaml:"admin"`
	Search      SearchSection      `koanf:"search" yaml:"search"`
	Log         LogSection         `koanf:"log" yaml:"log"`
	Telemetry   TelemetrySection   `koanf:"telemetry" yaml:"telemetry"`
}

// BrokerSection configures the request broker and its workers.
type BrokerSection struct {
	Address      string        `koanf:"address" yaml:"address" validate:"required,hostname_port"`
	Workers      int           `koanf:"workers" yaml:"workers" validate:"gte=1,lte=1024"`
	WriteTimeout time.Duration `koanf:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`
}

// DataSection locates the base extract.
type DataSection struct {
	// BasePath is a GTFS zip file or directory.
	BasePath string `koanf:"base_path" yaml:"base_path" validate:"required"`

	// Contributors restricts realtime updates to these agency ids.
	// Empty accepts every agency.
	Contributors []string `koanf:"contributors" yaml:"contributors"`

	// CacheSize sizes the per-worker street fallback cache.
	CacheSize int `koanf:"cache_size" yaml:"cache_size" validate:"gte=0"`
}

// RealtimeSection configures the GTFS-RT feed. At most one of URL and
// File is set.
type RealtimeSection struct {
	URL     string        `koanf:"url" yaml:"url" validate:"omitempty,url"`
	File    string        `koanf:"file" yaml:"file"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout" validate:"gte=0"`

	// CAFile, CertFile and KeyFile secure an HTTPS feed. CAFile is trusted
	// in addition to the system roots; the key pair is reloaded on change.
	CAFile   string `koanf:"ca_file" yaml:"ca_file"`
	CertFile string `koanf:"cert_file" yaml:"cert_file" validate:"required_with=KeyFile"`
	KeyFile  string `koanf:"key_file" yaml:"key_file" validate:"required_with=CertFile"`
}

// MaintenanceSection configures background reloads.
type MaintenanceSection struct {
	// Interval between periodic reloads; zero disables them.
	Interval     time.Duration `koanf:"interval" yaml:"interval" validate:"gte=0"`
	MinReloadGap time.Duration `koanf:"min_reload_gap" yaml:"min_reload_gap" validate:"gte=0"`
	// Watch reloads the base extract when the file changes.
	Watch bool `koanf:"watch" yaml:"watch"`
}

// NATSSection configures the reload trigger subscription. An empty URL
// disables it.
type NATSSection struct {
	URL     string `koanf:"url" yaml:"url" validate:"omitempty,url"`
	Subject string `koanf:"subject" yaml:"subject"`
}

// AdminSection configures the admin HTTP server. An empty address
// disables it.
type AdminSection struct {
	Address string `koanf:"address" yaml:"address" validate:"omitempty,hostname_port"`
}

// SearchSection holds the journey search defaults.
type SearchSection struct {
	MaxDuration        time.Duration `koanf:"max_duration" yaml:"max_duration" validate:"gt=0"`
	MaxTransfers       int           `koanf:"max_transfers" yaml:"max_transfers" validate:"gte=0"`
	NightBusMaxFactor  float64       `koanf:"night_bus_max_factor" yaml:"night_bus_max_factor" validate:"gte=1"`
	NightBusBaseFactor time.Duration `koanf:"night_bus_base_factor" yaml:"night_bus_base_factor" validate:"gte=0"`
	WalkingSpeed       float64       `koanf:"walking_speed" yaml:"walking_speed" validate:"gt=0"`
	MaxWalkingDuration time.Duration `koanf:"max_walking_duration" yaml:"max_walking_duration" validate:"gte=0"`
	// TransferRadius bounds walking transfers between stops, in meters.
	TransferRadius float64 `koanf:"transfer_radius" yaml:"transfer_radius" validate:"gte=0"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=json text"`
}

// TelemetrySection configures tracing.
type TelemetrySection struct {
	// Tracing is "none" or "stdout".
	Tracing string `koanf:"tracing" yaml:"tracing" validate:"oneof=none stdout"`
}
