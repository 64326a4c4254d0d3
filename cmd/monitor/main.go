// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/airquality_monitor/internal/app"
	"github.com/relabs-tech/airquality_monitor/internal/config"
	"github.com/relabs-tech/airquality_monitor/internal/logging"
	"github.com/relabs-tech/airquality_monitor/internal/sensors"
)

func main() {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitor: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting air quality monitor",
		zap.String("room", cfg.Room),
		zap.Int("port", cfg.Port),
		zap.Duration("interval", cfg.SampleInterval),
		zap.Float64("temperature_offset", cfg.TemperatureOffset),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, app.DefaultHardware(), log); err != nil {
		var initErr *sensors.InitializationError
		if errors.As(err, &initErr) {
			log.Error("sensor initialization failed", zap.String("subsystem", initErr.Subsystem), zap.Error(initErr.Err))
		} else {
			log.Error("fatal", zap.Error(err))
		}
		_ = log.Sync()
		stop()
		os.Exit(1)
	}

	log.Info("shutdown complete")
}
