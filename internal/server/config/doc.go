// Package config defines the kraken server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation (struct tags, then cross-field and filesystem rules)
//   - sanitize.go: masking credentials before logging
//   - convert.go: the component configurations derived from ServerConfig
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// KRAKEN_ environment variables and command line flags.
package config
