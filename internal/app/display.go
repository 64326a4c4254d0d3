// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/airquality_monitor/internal/env"
	"github.com/relabs-tech/airquality_monitor/internal/sensors"
)

const (
	displayW = 128
	displayH = 64
)

// Drawer is the part of an SSD1306 the display loop needs.
type Drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// Display renders the latest reading on a 128x64 OLED.
type Display struct {
	dev      Drawer
	latest   *LatestReading
	interval time.Duration
	log      *zap.Logger
}

// NewDisplay builds a display loop over dev.
func NewDisplay(dev Drawer, latest *LatestReading, interval time.Duration, log *zap.Logger) *Display {
	return &Display{dev: dev, latest: latest, interval: interval, log: log}
}

// ssd1306Device keeps the bus open for as long as the display is used.
type ssd1306Device struct {
	*ssd1306.Dev
	bus i2c.BusCloser
}

func (d *ssd1306Device) Halt() error {
	haltErr := d.Dev.Halt()
	if err := d.bus.Close(); err != nil {
		return err
	}
	return haltErr
}

// OpenSSD1306 opens an SSD1306 at its default address on busName.
func OpenSSD1306(busName string) (Drawer, error) {
	if err := sensors.InitHost(); err != nil {
		return nil, err
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	return &ssd1306Device{Dev: dev, bus: bus}, nil
}

// Run redraws on every tick until ctx is done, then blanks the panel.
func (d *Display) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("display update loop started", zap.Duration("interval", d.interval))

	for {
		reading, ok := d.latest.Get()
		if err := d.dev.Draw(d.dev.Bounds(), renderReading(reading, ok), image.Point{}); err != nil {
			d.log.Warn("display update error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			if err := d.dev.Halt(); err != nil {
				d.log.Warn("display halt error", zap.Error(err))
			}
			return nil
		case <-ticker.C:
		}
	}
}

func renderReading(r env.Reading, have bool) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !have {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawString("Air quality")
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting...")
		return img
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString(r.Room)

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawString(fmt.Sprintf("CO2: %5d ppm", r.CO2PPM))

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawString(fmt.Sprintf("T:  %6.1f C", r.TemperatureC))

	drawer.Dot = fixed.P(0, 52)
	drawer.DrawString(fmt.Sprintf("P: %7.2f kPa", r.PressureKPa))

	return img
}
