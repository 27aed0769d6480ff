package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/hove-io/navitia-sub004/internal/maintenance"
	"github.com/hove-io/navitia-sub004/internal/server/httpserver/handler"
	"github.com/hove-io/navitia-sub004/internal/storage/snapshot"
)

type staticSnapshots struct{ snap *snapshot.Snapshot }

func (s staticSnapshots) Get() *snapshot.Snapshot { return s.snap }
func (s staticSnapshots) Loading() bool           { return false }
func (s staticSnapshots) LastReloadError() error  { return nil }

type countingReloader struct{ kinds chan maintenance.Kind }

func (c countingReloader) Trigger(k maintenance.Kind) { c.kinds <- k }

func TestNew(t *testing.T) {
	s := New(":8080", okHandler())
	if s == nil {
		t.Fatal("New returned nil")
	}
	if s.httpServer == nil {
		t.Error("httpServer is nil")
	}
	if s.httpServer.ReadHeaderTimeout == 0 {
		t.Error("ReadHeaderTimeout not set")
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	reloads := countingReloader{kinds: make(chan maintenance.Kind, 1)}
	router := NewRouter(&RouterConfig{
		Snapshots:      staticSnapshots{snap: snapshot.Empty(0)},
		Reloader:       reloads,
		AdminRateLimit: 10,
	})
	s := New("127.0.0.1:0", router)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errChan := make(chan error, 1)
	go func() { errChan <- s.Serve(ln) }()
	base := "http://" + ln.Addr().String()

	resp, err := http.Get(base + "/ready")
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/ready = %d, want 503", resp.StatusCode)
	}
	if resp.Header.Get(handler.RequestIDHeader) == "" {
		t.Error("X-Request-ID missing")
	}

	resp, err = http.Post(base+"/admin/reload?kind=realtime", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	var body handler.Response
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || body.RequestID == "" {
		t.Errorf("/admin/reload = %d %+v", resp.StatusCode, body)
	}
	select {
	case k := <-reloads.kinds:
		if k != maintenance.KindRealtime {
			t.Errorf("kind = %v", k)
		}
	case <-time.After(time.Second):
		t.Error("reload not triggered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}

func TestNewRouter_Routes(t *testing.T) {
	router := NewRouter(&RouterConfig{Snapshots: staticSnapshots{snap: snapshot.Empty(0)}})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/status", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusNotFound},
		{http.MethodPost, "/admin/reload", http.StatusServiceUnavailable},
		{http.MethodGet, "/admin/reload", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rec := httpRecorder(router, tt.method, tt.path)
		if rec != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec, tt.want)
		}
	}
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()
	if cfg.AdminRateLimit <= 0 {
		t.Error("AdminRateLimit should be positive")
	}
}
