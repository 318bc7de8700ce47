package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/model"
	"github.com/openlot/parkd/infra/logger"
)

// InfluxSink writes allocation events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAllocation writes allocation decisions as line protocol events.
func (s *InfluxSink) RecordAllocation(events []coremetrics.AllocationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range events {
		p := write.NewPointWithMeasurement("allocation_event").
			AddTag("vehicle_id", ev.VehicleID).
			AddTag("outcome", ev.Outcome).
			AddTag("group", strconv.FormatBool(ev.Group)).
			AddTag("component", "allocation_manager")
		if ev.SpaceID != "" {
			p = p.AddTag("space_id", ev.SpaceID).
				AddTag("section", ev.Section)
		}
		if ev.PreferredSection != "" {
			p = p.AddTag("preferred_section", ev.PreferredSection)
		}
		p = p.AddField("score", round3(ev.Score)).
			AddField("vehicle_size", int(ev.Size)).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordRelease persists a vehicle departure.
func (s *InfluxSink) RecordRelease(ev coremetrics.ReleaseEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("release_event").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("component", "allocation_manager").
		AddField("spaces_freed", len(ev.SpaceIDs)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOccupancy writes an occupancy snapshot, one point for the lot plus
// one per section.
func (s *InfluxSink) RecordOccupancy(stats model.LotStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts := stats.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	p := write.NewPointWithMeasurement("occupancy_snapshot").
		AddTag("section", "all").
		AddTag("component", "lot_store").
		AddField("total", stats.TotalSpaces).
		AddField("free", stats.FreeSpaces).
		AddField("occupied", stats.OccupiedSpaces).
		AddField("ratio", round3(stats.OccupancyRate)).
		AddField("active_vehicles", stats.ActiveVehicles).
		SetTime(ts)
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		return err
	}
	for name, sec := range stats.Sections {
		if sec.Total == 0 {
			continue
		}
		sp := write.NewPointWithMeasurement("occupancy_snapshot").
			AddTag("section", name).
			AddTag("component", "lot_store").
			AddField("total", sec.Total).
			AddField("free", sec.Total-sec.Occupied).
			AddField("occupied", sec.Occupied).
			AddField("ratio", round3(float64(sec.Occupied)/float64(sec.Total))).
			SetTime(ts)
		if err := s.writeAPI.WritePoint(ctx, sp); err != nil {
			return err
		}
	}
	return nil
}

// RecordAllocationLatency writes decision latencies.
func (s *InfluxSink) RecordAllocationLatency(recs []coremetrics.AllocationLatency) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("allocation_latency").
			AddTag("vehicle_id", r.VehicleID).
			AddTag("outcome", r.Outcome).
			AddTag("component", "allocation_manager").
			AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
			SetTime(time.Now())
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordStateChange writes a sensor transition.
func (s *InfluxSink) RecordStateChange(ev coremetrics.StateChangeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("space_state_change").
		AddTag("space_id", ev.SpaceID).
		AddTag("occupied", strconv.FormatBool(ev.Occupied)).
		AddTag("component", ev.Source).
		AddField("value", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
