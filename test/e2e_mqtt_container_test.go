package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openlot/parkd/api"
	"github.com/openlot/parkd/core/allocation"
	"github.com/openlot/parkd/core/lot"
	coremetrics "github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/model"
	coremqtt "github.com/openlot/parkd/core/mqtt"
	"github.com/openlot/parkd/infra/logger"
	"github.com/openlot/parkd/infra/metrics"
	"github.com/openlot/parkd/infra/mqtt"
	"github.com/openlot/parkd/internal/eventbus"
	"github.com/openlot/parkd/test/util"
)

// TestAllocationRoundTripWithMQTTContainer wires the whole service against
// a real broker: API request in, decision notice out, sensor state back in,
// metrics observable over HTTP.
func TestAllocationRoundTripWithMQTTContainer(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()

	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Fatalf("mosquitto: %v", err)
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	cli, err := mqtt.NewPahoClient(mqtt.Config{Broker: broker, ClientID: "parkd-service"})
	if err != nil {
		t.Fatalf("mqtt client: %v", err)
	}
	defer cli.Disconnect()

	store, err := lot.NewMemoryStore(util.SampleLot())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	bus := eventbus.New(16)

	feed, err := mqtt.NewSpaceStateFeed(store, bus)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if err := feed.Attach(cli); err != nil {
		t.Fatalf("attach: %v", err)
	}

	collectCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	metrics.StartEventCollector(collectCtx, bus, sink)

	mgr, err := allocation.NewManager(store, allocation.NewEngine(allocation.Config{}), cli, sink, bus, logger.NopLogger{}, 0)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	h, err := api.NewHandler(mgr, store, nil, "", logger.NopLogger{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	apiSrv := httptest.NewServer(h.Routes())
	defer apiSrv.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsTS := httptest.NewServer(mux)
	defer metricsTS.Close()

	// A lot display subscribing to decision notices.
	display := startSensorClient(t, broker)
	defer display.Disconnect(100)
	notices := make(chan coremqtt.Decision, 4)
	if token := display.Subscribe("parkd/allocations", 0, func(_ paho.Client, m paho.Message) {
		var d coremqtt.Decision
		if err := json.Unmarshal(m.Payload(), &d); err == nil {
			notices <- d
		}
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	// Allocate over the API and expect the notice on the broker.
	payload, _ := json.Marshal(model.AllocationRequest{VehicleID: "veh-1", Size: model.SizeMedium})
	resp, err := http.Post(apiSrv.URL+"/api/allocations", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var res allocation.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || res.Reason != allocation.ReasonAllocated {
		t.Fatalf("allocation failed: status %d result %+v", resp.StatusCode, res)
	}

	select {
	case d := <-notices:
		if d.VehicleID != "veh-1" || d.Kind != "allocation" {
			t.Fatalf("unexpected notice: %+v", d)
		}
	case <-time.After(util.MosquittoReadyTimeout):
		t.Fatal("no decision notice on broker")
	}

	// A sensor transition flows broker -> feed -> store -> metrics.
	display.Publish("parkd/space/B1-03/state", 0, false, []byte(`{"occupied":true,"vehicle_id":"walkin-9"}`))

	metricCtx, metricCancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer metricCancel()
	if err := util.WaitForMetric(metricCtx, metricsTS.URL+"/metrics", `space_state_changes_total{occupied="true"} 1`); err != nil {
		t.Fatalf("metric wait: %v", err)
	}
	if sp, ok := store.Get("B1-03"); !ok || !sp.Occupied || sp.VehicleID != "walkin-9" {
		t.Fatalf("sensor state not applied: %+v", sp)
	}

	metricsResp, err := http.Get(metricsTS.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(metricsResp.Body)
	_ = metricsResp.Body.Close()
	out := string(body)
	expected := `allocations_total{group="false",outcome="allocated",section="A1"} 1`
	if !strings.Contains(out, expected) {
		t.Errorf("metric missing: %s", expected)
	}
	if !strings.Contains(out, `lot_occupancy_ratio{section="all"}`) {
		t.Errorf("occupancy gauge missing: %s", out)
	}
}
