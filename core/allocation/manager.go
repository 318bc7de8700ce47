package allocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openlot/parkd/core/allocation/logging"
	"github.com/openlot/parkd/core/events"
	"github.com/openlot/parkd/core/logger"
	"github.com/openlot/parkd/core/lot"
	"github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/model"
	coremon "github.com/openlot/parkd/core/monitoring"
	"github.com/openlot/parkd/core/mqtt"
	"github.com/openlot/parkd/internal/eventbus"
)

// Manager owns the read-decide-commit cycle around the engine. Its mutex
// serializes snapshot, decision and commit, so concurrent requests cannot
// double-book a space. Sensor updates write to the store directly; a
// commit that lost against one surfaces as an error.
type Manager struct {
	store      lot.Store
	engine     Engine
	batch      BatchAllocator
	notifier   mqtt.Notifier
	logger     logger.Logger
	metrics    metrics.Sink
	bus        eventbus.EventBus
	logStore   logging.LogStore
	maxHistory int
	history    []Result
	mu         sync.Mutex
}

// NewManager creates a new manager. The batch allocator shares the engine
// weights. maxHistory bounds the in-memory decision history; zero or
// negative keeps the default of 1000 decisions.
func NewManager(store lot.Store, engine Engine, notifier mqtt.Notifier, sink metrics.Sink, bus eventbus.EventBus, log logger.Logger, maxHistory int) (*Manager, error) {
	if store == nil || notifier == nil || log == nil {
		return nil, fmt.Errorf("allocation: nil parameter provided to NewManager")
	}
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &Manager{
		store:      store,
		engine:     engine,
		batch:      BatchAllocator{Engine: engine},
		notifier:   notifier,
		logger:     log,
		metrics:    sink,
		bus:        bus,
		maxHistory: maxHistory,
	}, nil
}

// SetLogStore configures the store used to persist allocation logs.
func (m *Manager) SetLogStore(store logging.LogStore) {
	m.mu.Lock()
	m.logStore = store
	m.mu.Unlock()
}

// Allocate runs one read-decide-commit cycle for the request. A lot that
// cannot take the vehicle is reported through Result.Reason, not as an
// error; errors mean invalid input or a commit that lost against a
// concurrent sensor update.
func (m *Manager) Allocate(ctx context.Context, req model.AllocationRequest) (Result, error) {
	start := time.Now()
	if m.bus != nil {
		m.bus.Publish(events.RequestEvent{Request: req})
	}

	m.mu.Lock()
	res, err := m.engine.Allocate(m.store.Snapshot(), req)
	if err == nil {
		res.DecidedAt = start
		if res.Allocated() {
			if cerr := m.store.Occupy(res.SpaceID, req.VehicleID, start); cerr != nil {
				commitConflicts.Inc()
				err = cerr
			}
		}
	}
	if err == nil {
		m.appendHistory(res)
	}
	m.mu.Unlock()
	if err != nil {
		m.logger.Warnf("allocation for %s failed: %v", req.VehicleID, err)
		return Result{}, err
	}

	m.logger.Infof("allocation for %s: %s space=%s score=%.3f", req.VehicleID, res.Reason, res.SpaceID, res.Score)
	m.emitDecision(ctx, logging.KindAllocation, req.Size, req.PreferredSection, res, time.Since(start))
	return res, nil
}

// AllocateGroup runs the same cycle over group records for a vehicle too
// large for a single space.
func (m *Manager) AllocateGroup(ctx context.Context, req model.GroupRequest) (Result, error) {
	start := time.Now()

	m.mu.Lock()
	res, err := m.engine.AllocateGroup(m.store.Snapshot(), req)
	if err == nil {
		res.DecidedAt = start
		if res.Allocated() {
			if cerr := m.store.Occupy(res.SpaceID, req.VehicleID, start); cerr != nil {
				commitConflicts.Inc()
				err = cerr
			}
		}
	}
	if err == nil {
		m.appendHistory(res)
	}
	m.mu.Unlock()
	if err != nil {
		m.logger.Warnf("group allocation for %s failed: %v", req.VehicleID, err)
		return Result{}, err
	}

	m.logger.Infof("group allocation for %s: %s space=%s score=%.3f", req.VehicleID, res.Reason, res.SpaceID, res.Score)
	m.emitDecision(ctx, logging.KindGroup, req.Size, "", res, time.Since(start))
	return res, nil
}

// AllocateBatch places several requests at once through the assignment
// solver, committing every placement under a single lock acquisition. A
// placement that lost its space to a sensor update between snapshot and
// commit is downgraded to a no-capacity result instead of failing the
// whole batch.
func (m *Manager) AllocateBatch(ctx context.Context, reqs []model.AllocationRequest) (map[string]Result, error) {
	start := time.Now()

	m.mu.Lock()
	results, err := m.batch.AllocateBatch(m.store.Snapshot(), reqs)
	if err != nil {
		m.mu.Unlock()
		m.logger.Warnf("batch allocation failed: %v", err)
		return nil, err
	}
	for _, req := range reqs {
		res := results[req.VehicleID]
		res.DecidedAt = start
		if res.Allocated() {
			if cerr := m.store.Occupy(res.SpaceID, req.VehicleID, start); cerr != nil {
				commitConflicts.Inc()
				m.logger.Warnf("batch commit for %s lost space %s: %v", req.VehicleID, res.SpaceID, cerr)
				res = Result{VehicleID: req.VehicleID, Reason: ReasonNoCapacity, DecidedAt: start}
			}
		}
		results[req.VehicleID] = res
		m.appendHistory(res)
	}
	m.mu.Unlock()

	elapsed := time.Since(start)
	for _, req := range reqs {
		m.emitDecision(ctx, logging.KindAllocation, req.Size, req.PreferredSection, results[req.VehicleID], elapsed)
	}
	m.logger.Infof("batch allocation placed %d of %d vehicles", countAllocated(results), len(reqs))
	return results, nil
}

func countAllocated(results map[string]Result) int {
	n := 0
	for _, res := range results {
		if res.Allocated() {
			n++
		}
	}
	return n
}

// Release frees the space or group held by the vehicle and returns the
// freed space ids in ascending order.
func (m *Manager) Release(ctx context.Context, vehicleID string) ([]string, error) {
	if vehicleID == "" {
		return nil, fmt.Errorf("allocation: vehicle id must not be empty")
	}
	now := time.Now()

	m.mu.Lock()
	freed, err := m.store.ReleaseVehicle(vehicleID, now)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	eventID := uuid.NewString()
	if perr := m.notifier.PublishDecision(mqtt.Decision{
		EventID:   eventID,
		Kind:      logging.KindRelease,
		VehicleID: vehicleID,
		SpaceIDs:  freed,
		Time:      now,
	}); perr != nil {
		m.logger.Errorf("release publish failed: %v", perr)
		coremon.CaptureException(perr, map[string]string{"module": "allocation_manager", "vehicle_id": vehicleID})
	}
	if m.bus != nil {
		m.bus.Publish(events.ReleaseEvent{VehicleID: vehicleID, SpaceIDs: freed, Time: now})
	}
	if rr, ok := m.metrics.(metrics.ReleaseRecorder); ok {
		if rerr := rr.RecordRelease(metrics.ReleaseEvent{VehicleID: vehicleID, SpaceIDs: freed, Time: now}); rerr != nil {
			m.logger.Errorf("release metrics error: %v", rerr)
		}
	}
	m.recordOccupancy()
	if m.logStore != nil {
		stats := m.store.Stats()
		if lerr := m.logStore.Append(ctx, logging.LogRecord{
			Timestamp: now,
			EventID:   eventID,
			Kind:      logging.KindRelease,
			VehicleID: vehicleID,
			SpaceIDs:  freed,
			Stats:     &stats,
		}); lerr != nil {
			m.logger.Errorf("allocation log append failed: %v", lerr)
		}
	}
	m.logger.Infof("released %s from %d space(s)", vehicleID, len(freed))
	return freed, nil
}

// Reset frees every space, typically between simulation runs. The decision
// history is kept; it records what was decided, not what is occupied.
func (m *Manager) Reset(ctx context.Context) error {
	now := time.Now()

	m.mu.Lock()
	m.store.Reset(now)
	m.mu.Unlock()

	eventID := uuid.NewString()
	if perr := m.notifier.PublishDecision(mqtt.Decision{
		EventID: eventID,
		Kind:    logging.KindReset,
		Time:    now,
	}); perr != nil {
		m.logger.Errorf("reset publish failed: %v", perr)
		coremon.CaptureException(perr, map[string]string{"module": "allocation_manager"})
	}
	if m.bus != nil {
		m.bus.Publish(events.ResetEvent{Time: now})
	}
	m.recordOccupancy()
	if m.logStore != nil {
		stats := m.store.Stats()
		if lerr := m.logStore.Append(ctx, logging.LogRecord{
			Timestamp: now,
			EventID:   eventID,
			Kind:      logging.KindReset,
			Stats:     &stats,
		}); lerr != nil {
			m.logger.Errorf("allocation log append failed: %v", lerr)
		}
	}
	m.logger.Infof("lot occupancy cleared")
	return nil
}

// Run processes incoming allocation requests until the context is
// canceled. Failed requests are logged and do not stop the loop.
func (m *Manager) Run(ctx context.Context, requests <-chan model.AllocationRequest) {
	for {
		select {
		case req := <-requests:
			if _, err := m.Allocate(ctx, req); err != nil {
				m.logger.Errorf("queued allocation for %s failed: %v", req.VehicleID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// History returns a copy of the most recent decisions, oldest first.
func (m *Manager) History() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Result(nil), m.history...)
}

// Close releases resources held by the manager.
func (m *Manager) Close() error {
	if m.bus != nil {
		m.bus.Close()
	}
	if m.logStore != nil {
		_ = m.logStore.Close()
	}
	return nil
}

// appendHistory must be called with the mutex held.
func (m *Manager) appendHistory(res Result) {
	m.history = append(m.history, res)
	if len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}
}

// emitDecision publishes one committed decision to the notifier, the event
// bus, the metrics sink and the allocation log. It runs outside the
// critical section; observers tolerate slight reordering under load.
func (m *Manager) emitDecision(ctx context.Context, kind string, size model.VehicleSize, pref string, res Result, elapsed time.Duration) {
	now := time.Now()
	eventID := uuid.NewString()
	requestsTotal.WithLabelValues(kind, string(res.Reason)).Inc()
	decisionLatency.WithLabelValues(kind).Observe(elapsed.Seconds())

	if res.Allocated() {
		if perr := m.notifier.PublishDecision(mqtt.Decision{
			EventID:   eventID,
			Kind:      kind,
			VehicleID: res.VehicleID,
			SpaceIDs:  []string{res.SpaceID},
			Section:   res.Section,
			Score:     res.Score,
			Reason:    string(res.Reason),
			Time:      now,
		}); perr != nil {
			m.logger.Errorf("decision publish failed: %v", perr)
			coremon.CaptureException(perr, map[string]string{"module": "allocation_manager", "vehicle_id": res.VehicleID})
		}
	}
	if m.bus != nil {
		m.bus.Publish(events.DecisionEvent{
			EventID:   eventID,
			VehicleID: res.VehicleID,
			SpaceID:   res.SpaceID,
			Score:     res.Score,
			Outcome:   string(res.Reason),
			Group:     kind == logging.KindGroup,
			Time:      now,
		})
	}
	m.recordAllocation(size, pref, kind == logging.KindGroup, res, now, elapsed)
	if m.logStore != nil {
		stats := m.store.Stats()
		rec := logging.LogRecord{
			Timestamp:        now,
			EventID:          eventID,
			Kind:             kind,
			VehicleID:        res.VehicleID,
			VehicleSize:      int(size),
			PreferredSection: pref,
			Outcome: logging.Outcome{
				SpaceID:     res.SpaceID,
				VehicleID:   res.VehicleID,
				Score:       res.Score,
				Reason:      string(res.Reason),
				Section:     res.Section,
				MemberCount: res.MemberCount,
			},
			Stats: &stats,
		}
		if res.Allocated() {
			rec.SpaceIDs = []string{res.SpaceID}
		}
		if lerr := m.logStore.Append(ctx, rec); lerr != nil {
			m.logger.Errorf("allocation log append failed: %v", lerr)
		}
	}
}

// recordAllocation persists decision metrics if a sink is configured.
func (m *Manager) recordAllocation(size model.VehicleSize, pref string, group bool, res Result, now time.Time, elapsed time.Duration) {
	if m.metrics == nil {
		return
	}
	evs := []metrics.AllocationEvent{{
		VehicleID:        res.VehicleID,
		SpaceID:          res.SpaceID,
		Section:          res.Section,
		Size:             size,
		PreferredSection: pref,
		Score:            res.Score,
		Outcome:          string(res.Reason),
		Group:            group,
		Time:             now,
	}}
	if err := m.metrics.RecordAllocation(evs); err != nil {
		m.logger.Errorf("allocation metrics error: %v", err)
	}
	if lr, ok := m.metrics.(metrics.LatencyRecorder); ok {
		lat := []metrics.AllocationLatency{{VehicleID: res.VehicleID, Outcome: string(res.Reason), Latency: elapsed}}
		if err := lr.RecordAllocationLatency(lat); err != nil {
			m.logger.Errorf("latency metrics error: %v", err)
		}
	}
	m.recordOccupancy()
}

// recordOccupancy pushes a fresh occupancy snapshot to sinks able to take
// one.
func (m *Manager) recordOccupancy() {
	or, ok := m.metrics.(metrics.OccupancyRecorder)
	if !ok {
		return
	}
	if err := or.RecordOccupancy(m.store.Stats()); err != nil {
		m.logger.Errorf("occupancy metrics error: %v", err)
	}
}
