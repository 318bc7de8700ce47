package mqtt

import (
	"fmt"
	"sync"

	coremqtt "github.com/openlot/parkd/core/mqtt"
)

// Notifier mirrors the core mqtt.Notifier interface.
type Notifier = coremqtt.Notifier

// NopNotifier drops every notice. Used by commands that run without a
// broker.
type NopNotifier struct{}

func (NopNotifier) PublishDecision(coremqtt.Decision) error { return nil }

// MockNotifier is a simple notifier used in tests.
type MockNotifier struct {
	Notices []coremqtt.Decision
	FailIDs map[string]bool
	mu      sync.Mutex
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{FailIDs: make(map[string]bool)}
}

// PublishDecision records the notice or returns an error if configured to
// fail for the vehicle.
func (m *MockNotifier) PublishDecision(d coremqtt.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[d.VehicleID] {
		return fmt.Errorf("publish failed")
	}
	m.Notices = append(m.Notices, d)
	return nil
}

// Published returns a copy of the recorded notices.
func (m *MockNotifier) Published() []coremqtt.Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.Decision(nil), m.Notices...)
}
