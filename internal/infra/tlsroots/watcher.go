package tlsroots

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/hove-io/navitia-sub004/internal/infra/confloader"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
)

// Watcher holds a key pair and reloads it when either file changes.
type Watcher struct {
	certFile string
	keyFile  string
	log      logger.Logger
	debounce time.Duration

	mu   sync.RWMutex
	cert *tls.Certificate

	reloadMu   sync.Mutex
	lastReload time.Time

	files *confloader.Watcher
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithDebounce sets the minimum time between two reloads.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher loads the key pair. It fails when the initial load does.
func NewWatcher(certFile, keyFile string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		certFile: certFile,
		keyFile:  keyFile,
		log:      logger.Discard(),
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With("component", "tlsroots")

	if err := w.reload(); err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}
	return w, nil
}

// Start watches both files in the background until Stop.
func (w *Watcher) Start() error {
	files, err := confloader.NewWatcher(confloader.WithWatcherLogger(w.log))
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	for _, path := range []string{w.certFile, w.keyFile} {
		if err := files.Watch(path); err != nil {
			_ = files.Stop()
			return fmt.Errorf("tlsroots: watch %s: %w", path, err)
		}
	}
	files.OnChange(func(path string) {
		if err := w.debouncedReload(); err != nil {
			w.log.Error("client certificate reload failed", "path", path, "error", err)
		}
	})
	files.StartAsync()

	w.mu.Lock()
	w.files = files
	w.mu.Unlock()
	w.log.Info("watching client certificate", "cert_file", w.certFile, "key_file", w.keyFile)
	return nil
}

// Stop stops watching. It is a no-op when Start was not called.
func (w *Watcher) Stop() error {
	w.mu.RLock()
	files := w.files
	w.mu.RUnlock()
	if files == nil {
		return nil
	}
	return files.Stop()
}

// GetClientCertificate implements tls.Config.GetClientCertificate.
func (w *Watcher) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return w.Certificate(), nil
}

// Certificate returns the current key pair.
func (w *Watcher) Certificate() *tls.Certificate {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cert
}

// debouncedReload skips reloads closer than the debounce to the previous
// successful one. A failed load, such as a new certificate seen before its
// key, does not count.
func (w *Watcher) debouncedReload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	now := time.Now()
	if now.Sub(w.lastReload) < w.debounce {
		return nil
	}
	if err := w.reload(); err != nil {
		return err
	}
	w.lastReload = now
	return nil
}

func (w *Watcher) reload() error {
	cert, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	w.mu.Lock()
	w.cert = &cert
	w.mu.Unlock()
	w.log.Debug("client certificate loaded", "cert_file", w.certFile)
	return nil
}
