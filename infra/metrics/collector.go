package metrics

import (
	"context"

	"github.com/openlot/parkd/core/events"
	coremetrics "github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// events the manager does not record itself, currently the sensor-observed
// state transitions published by the space feed. It stops when the context
// is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.Sink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, isChange := ev.(events.StateChangeEvent); isChange {
					if r, ok := sink.(coremetrics.StateChangeRecorder); ok {
						_ = r.RecordStateChange(coremetrics.StateChangeEvent{
							SpaceID:  e.SpaceID,
							Occupied: e.Occupied,
							Source:   e.Source,
							Time:     e.Time,
						})
					}
				}
			}
		}
	}()
}
