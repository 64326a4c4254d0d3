// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/airquality_monitor/internal/env"
	"github.com/relabs-tech/airquality_monitor/internal/metrics"
	"github.com/relabs-tech/airquality_monitor/internal/sensors"
)

// Error kinds reported in cycle logs and the failure counter.
const (
	KindSensorRead = "sensor_read"
	KindPublish    = "publish"
	KindUnknown    = "unknown"
)

// Sampler produces one validated, published reading per call.
type Sampler interface {
	Sample() (env.Reading, error)
	Room() string
}

// ReadingSink receives every successful reading after it has been published
// to the registry. Sink errors never fail a cycle.
type ReadingSink interface {
	Publish(r env.Reading) error
}

// CycleRecorder tracks cycle outcomes next to the sensor gauges.
type CycleRecorder interface {
	MarkSuccess(room string, t time.Time)
	IncFailure(room, kind string)
}

// Loop calls Sample, waits the interval after each cycle and repeats until
// its context is cancelled. A failed cycle is logged and the loop goes on.
type Loop struct {
	sampler  Sampler
	interval time.Duration
	log      *zap.Logger
	recorder CycleRecorder
	sinks    []ReadingSink
}

// NewLoop builds a sampling loop. recorder may be nil.
func NewLoop(sampler Sampler, interval time.Duration, log *zap.Logger, recorder CycleRecorder, sinks ...ReadingSink) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		sampler:  sampler,
		interval: interval,
		log:      log,
		recorder: recorder,
		sinks:    sinks,
	}
}

// Run blocks until ctx is done. The first cycle starts immediately.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("sampling loop started",
		zap.String("room", l.sampler.Room()),
		zap.Duration("interval", l.interval),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("sampling loop stopped", zap.String("room", l.sampler.Room()))
			return nil
		case <-timer.C:
		}

		l.Cycle()
		timer.Reset(l.interval)
	}
}

// Cycle runs one sample and logs exactly one entry for it.
func (l *Loop) Cycle() (env.Reading, error) {
	room := l.sampler.Room()

	r, err := l.sample()
	if err != nil {
		kind, fields := classify(err)
		fields = append([]zap.Field{zap.String("room", room), zap.String("error_kind", kind)}, fields...)
		fields = append(fields, zap.Error(err))
		l.log.Error("sample failed", fields...)

		if l.recorder != nil {
			l.recorder.IncFailure(room, kind)
		}
		return env.Reading{}, err
	}

	l.log.Info("sample",
		zap.String("room", room),
		zap.Int("co2_ppm", r.CO2PPM),
		zap.Float64("temperature_c", r.TemperatureC),
		zap.Float64("pressure_kpa", r.PressureKPa),
		zap.Time("timestamp", r.Timestamp),
	)
	if l.recorder != nil {
		l.recorder.MarkSuccess(room, r.Timestamp)
	}

	for _, s := range l.sinks {
		if err := s.Publish(r); err != nil {
			l.log.Warn("reading sink failed", zap.String("room", room), zap.Error(err))
		}
	}
	return r, nil
}

// PanicError is a panic raised inside Sample, recovered by the loop.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("sample panicked: %v", e.Value)
}

func (l *Loop) sample() (r env.Reading, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = env.Reading{}
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return l.sampler.Sample()
}

func classify(err error) (string, []zap.Field) {
	var readErr *sensors.SensorReadError
	if errors.As(err, &readErr) {
		device := env.DeviceSMB180
		if readErr.Sensor == sensors.SensorCO2 {
			device = env.DeviceMHZ19
		}
		return KindSensorRead, []zap.Field{
			zap.String("sensor", string(readErr.Sensor)),
			zap.String("device_name", device),
		}
	}
	var pubErr *metrics.PublishError
	if errors.As(err, &pubErr) {
		return KindPublish, []zap.Field{zap.String("metric", pubErr.Metric)}
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return KindUnknown, []zap.Field{zap.ByteString("stack", panicErr.Stack)}
	}
	return KindUnknown, nil
}
