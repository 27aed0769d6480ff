// Package realtime fetches and decodes GTFS-realtime trip update feeds.
package realtime

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var (
	// ErrConnectivity reports that the realtime provider could not be reached.
	// The snapshot is then published without realtime data.
	ErrConnectivity = errors.New("realtime: provider unreachable")
	// ErrData reports a feed that was fetched but could not be used.
	ErrData = errors.New("realtime: invalid feed")
)

// Source yields raw GTFS-realtime payloads.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads the feed from a local file.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return b, nil
}

func (s FileSource) String() string { return "file://" + s.Path }

// HTTPSource downloads the feed from an HTTP endpoint.
type HTTPSource struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewHTTPSource returns an HTTP source with its own client.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{URL: url, Timeout: timeout, Client: &http.Client{}}
}

// UseTLS makes the source fetch through a client configured with cfg.
func (s *HTTPSource) UseTLS(cfg *tls.Config) {
	s.Client = &http.Client{Transport: &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: cfg,
	}}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	req.Header.Set("Accept", "application/x-protobuf")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrConnectivity, s.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrConnectivity, resp.StatusCode, s.URL)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConnectivity, s.URL, err)
	}
	return b, nil
}

func (s *HTTPSource) String() string { return s.URL }
