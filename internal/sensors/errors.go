// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "fmt"

// Sensor names a physical quantity source in error reports and log fields.
type Sensor string

const (
	SensorCO2         Sensor = "co2"
	SensorTemperature Sensor = "temperature"
	SensorPressure    Sensor = "pressure"
)

// Subsystems reported by InitializationError.
const (
	SubsystemHost = "host"
	SubsystemCO2  = "co2"
	SubsystemBMP  = "bmp"
)

// InitializationError reports hardware that could not be brought up at
// startup. It is fatal.
type InitializationError struct {
	Subsystem string
	Err       error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Subsystem, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// SensorReadError reports a failed or implausible read during one cycle.
type SensorReadError struct {
	Sensor Sensor
	Err    error
}

func (e *SensorReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Sensor, e.Err)
}

func (e *SensorReadError) Unwrap() error { return e.Err }

// OutOfRangeError is wrapped by SensorReadError when a driver returned a
// value outside the physically plausible range.
type OutOfRangeError struct {
	Value    float64
	Min, Max float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("value %g outside [%g, %g]", e.Value, e.Min, e.Max)
}
