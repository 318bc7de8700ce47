package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/openlot/parkd/core/events"
	"github.com/openlot/parkd/core/lot"
	"github.com/openlot/parkd/infra/logger"
	"github.com/openlot/parkd/internal/eventbus"
)

// spaceStateMessage is the payload occupancy sensors publish on
// <prefix>/space/<id>/state. TS is unix milliseconds; zero means the
// broker delivered no timestamp and the receive time is used instead.
type spaceStateMessage struct {
	SpaceID   string `json:"space_id"`
	Occupied  bool   `json:"occupied"`
	VehicleID string `json:"vehicle_id,omitempty"`
	TS        int64  `json:"ts,omitempty"`
}

// SpaceStateFeed applies sensor-observed occupancy transitions to the lot
// store and republishes them on the event bus. Sensors are authoritative:
// a transition is applied even when it contradicts an allocation, and the
// manager's next snapshot sees the corrected state.
type SpaceStateFeed struct {
	store  lot.Store
	bus    eventbus.EventBus
	logger logger.Logger
}

// NewSpaceStateFeed creates a feed writing into store. bus may be nil when
// nothing downstream consumes state change events.
func NewSpaceStateFeed(store lot.Store, bus eventbus.EventBus) (*SpaceStateFeed, error) {
	if store == nil {
		return nil, fmt.Errorf("mqtt: nil store provided to NewSpaceStateFeed")
	}
	return &SpaceStateFeed{store: store, bus: bus, logger: logger.New("space_state_feed")}, nil
}

// Attach subscribes the feed to the client's sensor topic.
func (f *SpaceStateFeed) Attach(cli *PahoClient) error {
	if cli == nil {
		return fmt.Errorf("mqtt: nil client provided to Attach")
	}
	return cli.HandleSpaceState(f.handle)
}

func (f *SpaceStateFeed) handle(_ paho.Client, msg paho.Message) {
	var m spaceStateMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		f.logger.Errorf("failed to decode space state: %v", err)
		return
	}
	if m.SpaceID == "" {
		m.SpaceID = spaceIDFromTopic(msg.Topic())
	}
	if m.SpaceID == "" {
		f.logger.Warnf("space state without space id dropped (topic %s)", msg.Topic())
		return
	}
	if m.Occupied && m.VehicleID == "" {
		f.logger.Warnf("occupied state for %s without vehicle id dropped", m.SpaceID)
		return
	}
	at := time.Now()
	if m.TS > 0 {
		at = time.UnixMilli(m.TS)
	}

	changed, err := f.store.SetState(m.SpaceID, m.Occupied, m.VehicleID, at)
	if err != nil {
		f.logger.Warnf("space state for %s rejected: %v", m.SpaceID, err)
		return
	}
	if !changed {
		return
	}
	f.logger.Debugw("space state applied", map[string]any{
		"space_id": m.SpaceID,
		"occupied": m.Occupied,
		"vehicle":  m.VehicleID,
	})
	if f.bus != nil {
		f.bus.Publish(events.StateChangeEvent{
			SpaceID:   m.SpaceID,
			Occupied:  m.Occupied,
			VehicleID: m.VehicleID,
			Source:    "sensor",
			Time:      at,
		})
	}
}

// spaceIDFromTopic extracts the space id from <prefix>/space/<id>/state.
func spaceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[len(parts)-1] != "state" {
		return ""
	}
	return parts[len(parts)-2]
}
