// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/relabs-tech/airquality_monitor/internal/env"
)

func TestSetOverwrites(t *testing.T) {
	r := NewRegistry()
	id := env.CO2Identity("office")

	for _, v := range []float64{410, 415} {
		if err := r.Set(MetricCO2, id, v); err != nil {
			t.Fatalf("Set(%v): %v", v, err)
		}
	}

	if got := testutil.ToFloat64(r.gauges[MetricCO2].WithLabelValues(id.LabelValues()...)); got != 415 {
		t.Errorf("co2_ppm = %v, want 415", got)
	}
	if n := testutil.CollectAndCount(r.gauges[MetricCO2]); n != 1 {
		t.Errorf("series = %d, want 1", n)
	}
}

func TestSetKeepsRoomsApart(t *testing.T) {
	r := NewRegistry()
	if err := r.Set(MetricTemperature, env.ClimateIdentity("office"), 21); err != nil {
		t.Fatal(err)
	}
	if err := r.Set(MetricTemperature, env.ClimateIdentity("kitchen"), 24); err != nil {
		t.Fatal(err)
	}

	if n := testutil.CollectAndCount(r.gauges[MetricTemperature]); n != 2 {
		t.Errorf("series = %d, want 2", n)
	}
	if got := testutil.ToFloat64(r.gauges[MetricTemperature].WithLabelValues("office", env.DeviceSMB180, env.DeviceSMB180)); got != 21 {
		t.Errorf("office = %v, want 21", got)
	}
}

func TestSetUnknownMetric(t *testing.T) {
	r := NewRegistry()
	err := r.Set("humidity_percent", env.ClimateIdentity("office"), 40)

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if pubErr.Metric != "humidity_percent" {
		t.Errorf("Metric = %q", pubErr.Metric)
	}
}

func TestCycleSeries(t *testing.T) {
	r := NewRegistry()
	ts := time.Unix(1700000000, 500000000)

	r.MarkSuccess("office", ts)
	r.IncFailure("office", "sensor_read")
	r.IncFailure("office", "sensor_read")
	r.IncFailure("office", "publish")

	if got := testutil.ToFloat64(r.lastOK.WithLabelValues("office")); got != 1700000000.5 {
		t.Errorf("last sample = %v, want 1700000000.5", got)
	}
	if got := testutil.ToFloat64(r.failures.WithLabelValues("office", "sensor_read")); got != 2 {
		t.Errorf("sensor_read failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.failures.WithLabelValues("office", "publish")); got != 1 {
		t.Errorf("publish failures = %v, want 1", got)
	}
}

func TestHandlerServesTextExposition(t *testing.T) {
	r := NewRegistry()
	if err := r.Set(MetricPressure, env.ClimateIdentity("office"), 101.325); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	want := `pressure_kpa{device_name="SMB180",device_type="SMB180",room="office"} 101.325`
	if !strings.Contains(string(body), want) {
		t.Errorf("body missing %q:\n%s", want, body)
	}
}
