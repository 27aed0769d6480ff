package config

import "time"

// CLIConfig is the configuration for kraken-cli.
type CLIConfig struct {
	// Broker is the request broker address (host:port).
	Broker string `yaml:"broker"`
	// Admin is the admin HTTP server URL.
	Admin string `yaml:"admin"`
	// Output is table, json or yaml.
	Output  string        `yaml:"output"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Broker:  "127.0.0.1:5555",
		Admin:   "http://127.0.0.1:9090",
		Output:  "table",
		Timeout: 30 * time.Second,
	}
}
