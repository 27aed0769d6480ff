package config

import "net/url"

// Sanitize returns a copy of the config with credentials embedded in URLs
// masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Data.Contributors = append([]string(nil), cfg.Data.Contributors...)
	sanitized.Realtime.URL = redact(cfg.Realtime.URL)
	sanitized.NATS.URL = redact(cfg.NATS.URL)
	return &sanitized
}

func redact(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "****"
	}
	return u.Redacted()
}
