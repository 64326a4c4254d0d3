// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import "time"

// Device identities as exposed in the device_name/device_type labels.
const (
	DeviceMHZ19  = "MH-Z19"
	DeviceSMB180 = "SMB180"
)

// Physical plausibility limits for raw driver values.
const (
	CO2MinPPM = 0
	CO2MaxPPM = 10000

	TemperatureMinC = -40.0
	TemperatureMaxC = 85.0

	PressureMinPa = 30000.0
	PressureMaxPa = 110000.0
)

// Reading is one complete sampling cycle. It is only built once all three
// quantities have been read.
type Reading struct {
	Room string `json:"room"`

	CO2PPM       int     `json:"co2_ppm"`
	TemperatureC float64 `json:"temperature_c"` // offset already applied
	PressureKPa  float64 `json:"pressure_kpa"`

	Timestamp time.Time `json:"timestamp"`
}

// SensorIdentity is the label set attached to every gauge sample.
type SensorIdentity struct {
	Room       string
	DeviceName string
	DeviceType string
}

// CO2Identity returns the labels for the MH-Z19 series in room.
func CO2Identity(room string) SensorIdentity {
	return SensorIdentity{Room: room, DeviceName: DeviceMHZ19, DeviceType: DeviceMHZ19}
}

// ClimateIdentity returns the labels shared by temperature and pressure,
// both of which come from the same physical part.
func ClimateIdentity(room string) SensorIdentity {
	return SensorIdentity{Room: room, DeviceName: DeviceSMB180, DeviceType: DeviceSMB180}
}

// LabelValues returns the labels in room, device_name, device_type order.
func (id SensorIdentity) LabelValues() []string {
	return []string{id.Room, id.DeviceName, id.DeviceType}
}
