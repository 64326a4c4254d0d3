// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics holds the process gauges and exposes them for scraping.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/airquality_monitor/internal/env"
)

// Gauge names exposed on /metrics.
const (
	MetricCO2         = "co2_ppm"
	MetricTemperature = "temperature_c"
	MetricPressure    = "pressure_kpa"

	MetricLastSample = "last_sample_timestamp_seconds"
	MetricFailures   = "sample_failures_total"
)

var sensorLabels = []string{"room", "device_name", "device_type"}

// PublishError reports a rejected gauge update.
type PublishError struct {
	Metric string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Metric, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Publisher is what the sensor station writes readings into.
type Publisher interface {
	Set(metric string, id env.SensorIdentity, value float64) error
}

// Registry owns a prometheus registry with the sensor gauges. It is safe for
// one writer and concurrent scrapes.
type Registry struct {
	reg      *prometheus.Registry
	gauges   map[string]*prometheus.GaugeVec
	lastOK   *prometheus.GaugeVec
	failures *prometheus.CounterVec
}

// NewRegistry builds and registers all series.
func NewRegistry() *Registry {
	r := &Registry{
		reg:    prometheus.NewRegistry(),
		gauges: make(map[string]*prometheus.GaugeVec),
	}

	r.gauges[MetricCO2] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: MetricCO2,
		Help: "MH-Z19 CO2 concentration in ppm",
	}, sensorLabels)
	r.gauges[MetricTemperature] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: MetricTemperature,
		Help: "SMB180 temperature in degrees Celsius, offset applied",
	}, sensorLabels)
	r.gauges[MetricPressure] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: MetricPressure,
		Help: "SMB180 air pressure in kPa",
	}, sensorLabels)

	r.lastOK = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: MetricLastSample,
		Help: "Unix time of the last fully successful sampling cycle",
	}, []string{"room"})
	r.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricFailures,
		Help: "Sampling cycles that failed, by error kind",
	}, []string{"room", "kind"})

	for _, g := range r.gauges {
		r.reg.MustRegister(g)
	}
	r.reg.MustRegister(r.lastOK, r.failures)
	return r
}

// Set overwrites the current value of metric for the given identity.
func (r *Registry) Set(metric string, id env.SensorIdentity, value float64) error {
	g, ok := r.gauges[metric]
	if !ok {
		return &PublishError{Metric: metric, Err: fmt.Errorf("unknown metric")}
	}
	gauge, err := g.GetMetricWithLabelValues(id.LabelValues()...)
	if err != nil {
		return &PublishError{Metric: metric, Err: err}
	}
	gauge.Set(value)
	return nil
}

// MarkSuccess records the time of a successful cycle.
func (r *Registry) MarkSuccess(room string, t time.Time) {
	r.lastOK.WithLabelValues(room).Set(float64(t.UnixNano()) / 1e9)
}

// IncFailure counts one failed cycle.
func (r *Registry) IncFailure(room, kind string) {
	r.failures.WithLabelValues(room, kind).Inc()
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
