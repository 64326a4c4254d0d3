// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// DefaultBMP180Addr is the fixed I2C address of the BMP180.
const DefaultBMP180Addr uint16 = 0x77

var (
	hostOnce    sync.Once
	hostInitErr error
)

// InitHost initializes the periph host drivers once per process.
func InitHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = &InitializationError{Subsystem: SubsystemHost, Err: fmt.Errorf("periph host init: %w", err)}
		}
	})
	return hostInitErr
}

// BMP180Opts selects the I2C bus and address of the sensor.
type BMP180Opts struct {
	Bus  string // "" picks the first registered bus
	Addr uint16
}

// bmpDevice is the part of *bmxx80.Dev the sensor uses.
type bmpDevice interface {
	Sense(e *physic.Env) error
	Halt() error
}

// BMP180 reads temperature and pressure from a Bosch BMP180 through the
// periph bmxx80 driver. ReadTemperature takes a measurement and the next
// ReadPressure reuses it, so one cycle costs one conversion and both values
// come from the same sample.
type BMP180 struct {
	bus io.Closer
	dev bmpDevice

	mu      sync.Mutex
	pending *physic.Env
}

// OpenBMP180 opens the bus and probes the device.
func OpenBMP180(opts BMP180Opts) (*BMP180, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}

	bus, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, &InitializationError{Subsystem: SubsystemBMP, Err: fmt.Errorf("i2c open %q: %w", opts.Bus, err)}
	}

	addr := opts.Addr
	if addr == 0 {
		addr = DefaultBMP180Addr
	}

	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.Opts{Temperature: bmxx80.O1x, Pressure: bmxx80.O4x})
	if err != nil {
		bus.Close()
		return nil, &InitializationError{Subsystem: SubsystemBMP, Err: fmt.Errorf("bmp180 at 0x%02X: %w", addr, err)}
	}

	return &BMP180{bus: bus, dev: dev}, nil
}

func (b *BMP180) sense() (physic.Env, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return physic.Env{}, fmt.Errorf("bmp180 sense: %w", err)
	}
	return e, nil
}

// ReadTemperature takes a new measurement and returns degrees Celsius.
func (b *BMP180) ReadTemperature() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = nil
	e, err := b.sense()
	if err != nil {
		return 0, err
	}
	b.pending = &e
	return e.Temperature.Celsius(), nil
}

// ReadPressure returns pascals from the measurement taken by the preceding
// ReadTemperature, or from a new one if there is none.
func (b *BMP180) ReadPressure() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.pending
	b.pending = nil
	if e == nil {
		fresh, err := b.sense()
		if err != nil {
			return 0, err
		}
		e = &fresh
	}
	return float64(e.Pressure) / float64(physic.Pascal), nil
}

func (b *BMP180) Close() error {
	haltErr := b.dev.Halt()
	if err := b.bus.Close(); err != nil {
		return err
	}
	return haltErr
}
