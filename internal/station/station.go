// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package station reads the physical sensors of one room, corrects the
// values and publishes them as gauges.
package station

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/airquality_monitor/internal/env"
	"github.com/relabs-tech/airquality_monitor/internal/metrics"
	"github.com/relabs-tech/airquality_monitor/internal/sensors"
)

// Station owns the sensor handles for the lifetime of the process. Sample
// must only be called from one goroutine at a time.
type Station struct {
	room              string
	temperatureOffset float64

	co2     sensors.CO2Sensor
	climate sensors.ClimateSensor
	pub     metrics.Publisher
	log     *zap.Logger

	now func() time.Time
}

// New builds a station and switches off automatic baseline correction on
// the CO2 sensor.
func New(room string, temperatureOffset float64, co2 sensors.CO2Sensor, climate sensors.ClimateSensor, pub metrics.Publisher, log *zap.Logger) (*Station, error) {
	if room == "" {
		return nil, errors.New("station: room is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := co2.DisableABC(); err != nil {
		return nil, &sensors.InitializationError{Subsystem: sensors.SubsystemCO2, Err: err}
	}
	log.Info("co2 auto baseline correction disabled", zap.String("device", env.DeviceMHZ19))

	return &Station{
		room:              room,
		temperatureOffset: temperatureOffset,
		co2:               co2,
		climate:           climate,
		pub:               pub,
		log:               log,
		now:               time.Now,
	}, nil
}

// Room returns the location label.
func (s *Station) Room() string { return s.room }

// Sample reads all three quantities and publishes them. Nothing is
// published unless every read succeeded.
func (s *Station) Sample() (env.Reading, error) {
	co2, err := s.co2.ReadCO2()
	if err != nil {
		return env.Reading{}, &sensors.SensorReadError{Sensor: sensors.SensorCO2, Err: err}
	}
	if err := checkRange(float64(co2), env.CO2MinPPM, env.CO2MaxPPM); err != nil {
		return env.Reading{}, &sensors.SensorReadError{Sensor: sensors.SensorCO2, Err: err}
	}

	tempC, err := s.climate.ReadTemperature()
	if err != nil {
		return env.Reading{}, &sensors.SensorReadError{Sensor: sensors.SensorTemperature, Err: err}
	}
	if err := checkRange(tempC, env.TemperatureMinC, env.TemperatureMaxC); err != nil {
		return env.Reading{}, &sensors.SensorReadError{Sensor: sensors.SensorTemperature, Err: err}
	}

	pressurePa, err := s.climate.ReadPressure()
	if err != nil {
		return env.Reading{}, &sensors.SensorReadError{Sensor: sensors.SensorPressure, Err: err}
	}
	if err := checkRange(pressurePa, env.PressureMinPa, env.PressureMaxPa); err != nil {
		return env.Reading{}, &sensors.SensorReadError{Sensor: sensors.SensorPressure, Err: err}
	}

	s.log.Debug("raw values",
		zap.Int("co2_ppm", co2),
		zap.Float64("temperature_c", tempC),
		zap.Float64("pressure_pa", pressurePa),
	)

	r := env.Reading{
		Room:         s.room,
		CO2PPM:       co2,
		TemperatureC: tempC + s.temperatureOffset,
		PressureKPa:  pressurePa / 1000,
		Timestamp:    s.now(),
	}

	if err := s.publish(r); err != nil {
		return env.Reading{}, err
	}
	return r, nil
}

func (s *Station) publish(r env.Reading) error {
	co2ID := env.CO2Identity(s.room)
	climateID := env.ClimateIdentity(s.room)

	if err := s.set(metrics.MetricCO2, co2ID, float64(r.CO2PPM)); err != nil {
		return err
	}
	if err := s.set(metrics.MetricTemperature, climateID, r.TemperatureC); err != nil {
		return err
	}
	return s.set(metrics.MetricPressure, climateID, r.PressureKPa)
}

func (s *Station) set(metric string, id env.SensorIdentity, v float64) error {
	err := s.pub.Set(metric, id, v)
	if err == nil {
		return nil
	}
	var pe *metrics.PublishError
	if errors.As(err, &pe) {
		return err
	}
	return &metrics.PublishError{Metric: metric, Err: err}
}

// Close releases both sensors.
func (s *Station) Close() error {
	return errors.Join(s.co2.Close(), s.climate.Close())
}

func checkRange(v, lo, hi float64) error {
	if v < lo || v > hi {
		return &sensors.OutOfRangeError{Value: v, Min: lo, Max: hi}
	}
	return nil
}

// String is used in startup logs.
func (s *Station) String() string {
	return fmt.Sprintf("station(room=%s, temperature_offset=%g)", s.room, s.temperatureOffset)
}
