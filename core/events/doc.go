// Package events defines the allocation related events emitted on the event bus.
//
// Available event types:
//   - RequestEvent: new allocation request accepted for processing
//   - DecisionEvent: allocation outcome, successful or not
//   - ReleaseEvent: vehicle left its space or group
//   - StateChangeEvent: sensor-observed occupancy transition
//   - ResetEvent: lot occupancy cleared
package events
