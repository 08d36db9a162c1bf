// internal/presence/monitor.go
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitor tracks per-connection last-active timestamps and expires
// connections that stay silent past the timeout. It runs independently of
// the game engine: expiry just drives the same disconnect transition a
// closed socket would.
type Monitor struct {
	mu         sync.Mutex
	lastActive map[string]time.Time

	timeout  time.Duration
	interval time.Duration
	logger   *logrus.Logger

	// OnExpire is invoked outside the monitor lock for every expired
	// connection id. Assigned once during wiring, before Run.
	OnExpire func(id string)
}

// NewMonitor returns a monitor sweeping every interval for connections idle
// longer than timeout.
func NewMonitor(logger *logrus.Logger, timeout, interval time.Duration) *Monitor {
	return &Monitor{
		lastActive: make(map[string]time.Time),
		timeout:    timeout,
		interval:   interval,
		logger:     logger,
	}
}

// Touch records activity for a connection, creating the entry on first use.
func (m *Monitor) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActive[id] = time.Now()
}

// Forget drops a connection from tracking, typically after a clean
// disconnect already ran.
func (m *Monitor) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastActive, id)
}

// Run sweeps until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range m.sweep(time.Now()) {
				m.logger.Infof("Presence: connection %s expired after %s of inactivity", id, m.timeout)
				if m.OnExpire != nil {
					m.OnExpire(id)
				}
			}
		}
	}
}

// sweep removes and returns every id idle longer than the timeout.
func (m *Monitor) sweep(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for id, last := range m.lastActive {
		if now.Sub(last) > m.timeout {
			expired = append(expired, id)
			delete(m.lastActive, id)
		}
	}
	return expired
}
