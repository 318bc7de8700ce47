package metrics

// Package metrics defines interfaces and implementations for collecting
// allocation metrics. Sinks like PromSink and InfluxSink record events
// such as space assignments, releases or occupancy snapshots and can be
// combined with NewMultiSink. The factory helpers return a MultiSink
// automatically when multiple sinks are configured.
