package confloader

import (
	"fmt"
	"maps"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "KRAKEN_"

// Origins of a configuration value, from lowest to highest precedence.
const (
	OriginDefault  = "default"
	OriginFile     = "file"
	OriginEnv      = "env"
	OriginOverride = "override"
)

// Loader merges configuration layers and remembers which layer set each
// key last.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
	origins   map[string]string
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverrides sets values applied after every other source. Keys are
// dotted paths ("broker.workers").
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		origins:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file, the environment and the overrides, in that order,
// and unmarshals the result into target. Fields of target that no source
// sets keep their value, so callers pass a struct filled with defaults.
func (l *Loader) Load(target any) error {
	if err := l.LoadFile(l.filePath); err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if len(l.overrides) > 0 {
		if err := l.LoadMap(l.overrides); err != nil {
			return err
		}
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML file. An empty path is skipped.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.layer(OriginFile, file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// EnvKey maps an environment variable to a configuration key. The first
// underscore after the prefix separates the section from the key:
// KRAKEN_MAINTENANCE_MIN_RELOAD_GAP -> maintenance.min_reload_gap.
func EnvKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	return strings.Replace(s, "_", ".", 1)
}

// LoadEnv merges the environment variables carrying the prefix.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		return EnvKey(l.envPrefix, s)
	}
	if err := l.layer(OriginEnv, env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap merges a map of dotted keys, such as command line flags.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.layer(OriginOverride, mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

func (l *Loader) layer(origin string, p koanf.Provider, parser koanf.Parser) error {
	layer := koanf.New(".")
	if err := layer.Load(p, parser); err != nil {
		return err
	}
	for _, key := range layer.Keys() {
		l.origins[key] = origin
	}
	return l.k.Merge(layer)
}

// Origin returns the layer that set key last, OriginDefault if none did.
func (l *Loader) Origin(key string) string {
	if o, ok := l.origins[key]; ok {
		return o
	}
	return OriginDefault
}

// Origins returns the keys set by a source other than the defaults.
func (l *Loader) Origins() map[string]string {
	return maps.Clone(l.origins)
}

// Keys returns every key set by a source.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
