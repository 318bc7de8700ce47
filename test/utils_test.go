package test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openlot/parkd/core/allocation"
	"github.com/openlot/parkd/core/lot"
	coremetrics "github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/model"
	"github.com/openlot/parkd/infra/logger"
	"github.com/openlot/parkd/infra/mqtt"
	"github.com/openlot/parkd/internal/eventbus"
)

// captureLogger collects log lines so tests can assert on warning paths.
type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureLogger) Debugf(format string, args ...any)        {}
func (c *captureLogger) Debugw(msg string, fields map[string]any) {}
func (c *captureLogger) Infof(format string, args ...any) {
	c.mu.Lock()
	c.msgs = append(c.msgs, fmt.Sprintf(format, args...))
	c.mu.Unlock()
}
func (c *captureLogger) Warnf(format string, args ...any)  { c.Infof(format, args...) }
func (c *captureLogger) Errorf(format string, args ...any) { c.Infof(format, args...) }

func (c *captureLogger) contains(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// newTestManager wires a manager over the given spaces with a mock
// notifier and the default engine profile. The manager is closed with the
// test.
func newTestManager(t *testing.T, spaces []model.ParkingSpace, sink coremetrics.Sink, log logger.Logger) (*allocation.Manager, *lot.MemoryStore, *mqtt.MockNotifier) {
	t.Helper()
	store, err := lot.NewMemoryStore(spaces)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	pub := mqtt.NewMockNotifier()
	bus := eventbus.New(16)
	mgr, err := allocation.NewManager(store, allocation.NewEngine(allocation.Config{}), pub, sink, bus, log, 0)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr, store, pub
}

// waitUntil polls fn until it reports true or the timeout expires.
func waitUntil(timeout time.Duration, fn func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("condition not met within %s", timeout)
}
