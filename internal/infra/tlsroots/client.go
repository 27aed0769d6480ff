package tlsroots

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
)

// Config locates the files of a TLS client.
type Config struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string
	// CertFile and KeyFile are the client key pair. Both or neither are set.
	CertFile string
	KeyFile  string
}

// Enabled reports whether any file is configured.
func (c Config) Enabled() bool {
	return c.CAFile != "" || c.CertFile != "" || c.KeyFile != ""
}

// Client owns a TLS client configuration and the watcher keeping its
// certificate current.
type Client struct {
	tls   *tls.Config
	certs *Watcher
}

// NewClient loads the files of cfg. Call Start to follow certificate
// rotations and Close to stop.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, errors.New("tlsroots: cert_file and key_file must be set together")
	}

	pool := NewPool()
	if cfg.CAFile != "" {
		if err := pool.AddCertFile(cfg.CAFile); err != nil {
			return nil, err
		}
	}
	c := &Client{tls: &tls.Config{
		RootCAs:    pool.Pool(),
		MinVersion: tls.VersionTLS12,
	}}

	if cfg.CertFile != "" {
		w, err := NewWatcher(cfg.CertFile, cfg.KeyFile, WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("tlsroots: client certificate: %w", err)
		}
		c.certs = w
		c.tls.GetClientCertificate = w.GetClientCertificate
	}
	return c, nil
}

// TLSConfig returns the client configuration.
func (c *Client) TLSConfig() *tls.Config {
	return c.tls
}

// Start follows changes of the client key pair.
func (c *Client) Start() error {
	if c.certs == nil {
		return nil
	}
	return c.certs.Start()
}

// Close stops following changes.
func (c *Client) Close() error {
	if c.certs == nil {
		return nil
	}
	return c.certs.Stop()
}
