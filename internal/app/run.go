// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/airquality_monitor/internal/config"
	"github.com/relabs-tech/airquality_monitor/internal/metrics"
	"github.com/relabs-tech/airquality_monitor/internal/sensors"
	"github.com/relabs-tech/airquality_monitor/internal/station"
)

// Hardware opens the external collaborators. Tests replace any of them.
type Hardware struct {
	OpenCO2     func(cfg *config.Config) (sensors.CO2Sensor, error)
	OpenClimate func(cfg *config.Config) (sensors.ClimateSensor, error)
	OpenDisplay func(cfg *config.Config) (Drawer, error)
	ConnectMQTT func(cfg *config.Config, log *zap.Logger) (MQTTPublishClient, func(), error)
	Listen      func(network, address string) (net.Listener, error)
}

// DefaultHardware uses the real serial port, I2C bus, MQTT broker and TCP
// listener.
func DefaultHardware() Hardware {
	return Hardware{
		OpenCO2: func(cfg *config.Config) (sensors.CO2Sensor, error) {
			return sensors.OpenMHZ19(sensors.MHZ19Opts{PortName: cfg.CO2SerialPort, BaudRate: cfg.CO2BaudRate})
		},
		OpenClimate: func(cfg *config.Config) (sensors.ClimateSensor, error) {
			return sensors.OpenBMP180(sensors.BMP180Opts{Bus: cfg.BMPI2CBus, Addr: cfg.BMPI2CAddr})
		},
		OpenDisplay: func(cfg *config.Config) (Drawer, error) {
			return OpenSSD1306(cfg.DisplayI2CBus)
		},
		ConnectMQTT: func(cfg *config.Config, log *zap.Logger) (MQTTPublishClient, func(), error) {
			client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, log)
			if err != nil {
				return nil, nil, err
			}
			return client, func() { client.Disconnect(250) }, nil
		},
		Listen: net.Listen,
	}
}

// Run brings up the sensors, then the metrics endpoint, then samples until
// ctx is cancelled. Sensor initialization failures are returned before
// anything listens.
func Run(ctx context.Context, cfg *config.Config, hw Hardware, log *zap.Logger) error {
	co2, err := hw.OpenCO2(cfg)
	if err != nil {
		return asInitError(sensors.SubsystemCO2, err)
	}

	climate, err := hw.OpenClimate(cfg)
	if err != nil {
		co2.Close()
		return asInitError(sensors.SubsystemBMP, err)
	}

	registry := metrics.NewRegistry()

	st, err := station.New(cfg.Room, cfg.TemperatureOffset, co2, climate, registry, log.Named("station"))
	if err != nil {
		co2.Close()
		climate.Close()
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("sensor close error", zap.Error(err))
		}
	}()
	log.Info("sensor station ready", zap.Stringer("station", st))

	addr := net.JoinHostPort("", strconv.Itoa(cfg.Port))
	ln, err := hw.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	latest := &LatestReading{}
	hub := NewHub(latest, log.Named("http"))
	sinks := []ReadingSink{latest, hub}

	if cfg.MQTTBroker != "" {
		client, disconnect, err := hw.ConnectMQTT(cfg, log.Named("mqtt"))
		if err != nil {
			ln.Close()
			return err
		}
		defer disconnect()
		sinks = append(sinks, NewMQTTPublisher(client, cfg.MQTTTopic, log.Named("mqtt")))
	}

	var display *Display
	if cfg.DisplayEnabled {
		dev, err := hw.OpenDisplay(cfg)
		if err != nil {
			log.Warn("display disabled", zap.Error(err))
		} else {
			interval := time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond
			display = NewDisplay(dev, latest, interval, log.Named("display"))
		}
	}

	loop := NewLoop(st, cfg.SampleInterval, log.Named("loop"), registry, sinks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer hub.Close()
		return Serve(gctx, ln, NewRouter(registry.Handler(), latest, hub, log.Named("http")), log.Named("http"))
	})
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if display != nil {
		g.Go(func() error {
			return display.Run(gctx)
		})
	}

	return g.Wait()
}

func asInitError(subsystem string, err error) error {
	var initErr *sensors.InitializationError
	if errors.As(err, &initErr) {
		return err
	}
	return &sensors.InitializationError{Subsystem: subsystem, Err: err}
}
