// internal/presence/monitor_test.go
package presence

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestMonitor(timeout time.Duration) *Monitor {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewMonitor(logger, timeout, time.Minute)
}

func TestSweepExpiresIdleConnections(t *testing.T) {
	m := newTestMonitor(30 * time.Second)

	m.Touch("stale")
	m.Touch("fresh")
	m.lastActive["stale"] = time.Now().Add(-time.Minute)

	expired := m.sweep(time.Now())
	assert.Equal(t, []string{"stale"}, expired)

	// The expired entry is gone; the fresh one survives the next sweep.
	assert.Empty(t, m.sweep(time.Now()))
	_, tracked := m.lastActive["fresh"]
	assert.True(t, tracked)
}

func TestTouchResetsTheClock(t *testing.T) {
	m := newTestMonitor(30 * time.Second)

	m.Touch("c1")
	m.lastActive["c1"] = time.Now().Add(-time.Minute)
	m.Touch("c1")

	assert.Empty(t, m.sweep(time.Now()))
}

func TestForget(t *testing.T) {
	m := newTestMonitor(time.Millisecond)

	m.Touch("c1")
	m.Forget("c1")

	assert.Empty(t, m.sweep(time.Now().Add(time.Hour)))
}

func TestSweepBoundaryIsStrict(t *testing.T) {
	m := newTestMonitor(30 * time.Second)

	now := time.Now()
	m.lastActive["edge"] = now.Add(-30 * time.Second)

	// Idle for exactly the timeout is not expired yet.
	assert.Empty(t, m.sweep(now))
	assert.Equal(t, []string{"edge"}, m.sweep(now.Add(time.Second)))
}
