package connection

import (
	"context"
	"sync"
	"time"

	"github.com/hove-io/navitia-sub004/pkg/client"
)

// Manager opens the server connections lazily and reuses them.
type Manager struct {
	brokerAddr string
	adminURL   string
	timeout    time.Duration

	mu     sync.Mutex
	broker *client.Client
	admin  *HTTPClient
}

// NewManager creates a manager for the given broker address and admin URL.
func NewManager(brokerAddr, adminURL string, timeout time.Duration) *Manager {
	return &Manager{brokerAddr: brokerAddr, adminURL: adminURL, timeout: timeout}
}

// Broker returns the broker client, dialing on first use.
func (m *Manager) Broker(ctx context.Context) (*client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broker != nil {
		return m.broker, nil
	}
	c, err := client.Dial(ctx, m.brokerAddr, client.WithTimeout(m.timeout), client.WithDeadlinePropagation())
	if err != nil {
		return nil, err
	}
	m.broker = c
	return c, nil
}

// Admin returns the admin HTTP client.
func (m *Manager) Admin() *HTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.admin == nil {
		m.admin = NewHTTPClient(m.adminURL, m.timeout)
	}
	return m.admin
}

// BrokerAddr returns the broker address.
func (m *Manager) BrokerAddr() string {
	return m.brokerAddr
}

// Close closes the broker connection if one is open.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broker == nil {
		return nil
	}
	err := m.broker.Close()
	m.broker = nil
	return err
}
