// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// CO2Sensor is the capability of the MH-Z19.
type CO2Sensor interface {
	// ReadCO2 returns the concentration in ppm.
	ReadCO2() (int, error)
	// DisableABC turns off on-device automatic baseline correction.
	DisableABC() error
	Close() error
}

// ClimateSensor is the capability of the combined temperature/pressure part.
type ClimateSensor interface {
	// ReadTemperature returns degrees Celsius.
	ReadTemperature() (float64, error)
	// ReadPressure returns pascals.
	ReadPressure() (float64, error)
	Close() error
}
