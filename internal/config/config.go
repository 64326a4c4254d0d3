// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultSampleInterval        = 10 * time.Second
	DefaultCO2SerialPort         = "/dev/serial0"
	DefaultCO2BaudRate           = 9600
	DefaultBMPI2CAddr            = 0x77
	DefaultMQTTClientID          = "airquality-monitor"
	DefaultDisplayUpdateInterval = 1000 // milliseconds
	DefaultLogLevel              = "info"
)

// Config holds all application configuration values. It is built once at
// startup and not modified afterwards.
type Config struct {
	// Location and exposition
	Room              string
	Port              int
	SampleInterval    time.Duration
	TemperatureOffset float64 // °C, added to every raw temperature

	// CO2 sensor (MH-Z19, UART)
	CO2SerialPort string
	CO2BaudRate   uint

	// Temperature/pressure sensor (BMP180, I2C)
	BMPI2CBus  string
	BMPI2CAddr uint16

	// MQTT fan-out, disabled when MQTTBroker is empty
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	// Display
	DisplayEnabled        bool
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds

	LogLevel string
}

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		SampleInterval:        DefaultSampleInterval,
		CO2SerialPort:         DefaultCO2SerialPort,
		CO2BaudRate:           DefaultCO2BaudRate,
		BMPI2CAddr:            DefaultBMPI2CAddr,
		MQTTClientID:          DefaultMQTTClientID,
		DisplayUpdateInterval: DefaultDisplayUpdateInterval,
		LogLevel:              DefaultLogLevel,
	}
}

// Parse builds the configuration from command line arguments:
//
//	monitor [flags] ROOM PORT
//
// Flags may appear before, between or after the positional arguments.
// Everything after "--" is positional.
// A file given with -config is applied before the flags.
func Parse(args []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(output, "usage: monitor [flags] ROOM PORT")
		fmt.Fprintln(output, "Reads CO2 concentration, temperature and air pressure in ROOM and exposes them on PORT.")
		fs.PrintDefaults()
	}

	var (
		waitSec    int
		tempOffset float64
		configPath string
		logLevel   string
	)
	fs.IntVar(&waitSec, "wait", int(DefaultSampleInterval/time.Second), "waiting time between sensor reads in seconds")
	fs.IntVar(&waitSec, "w", int(DefaultSampleInterval/time.Second), "shorthand for -wait")
	fs.Float64Var(&tempOffset, "temp_offset", 0, "temperature offset in °C added to every reading")
	fs.Float64Var(&tempOffset, "t", 0, "shorthand for -temp_offset")
	fs.StringVar(&configPath, "config", "", "optional hardware configuration file (KEY=VALUE or YAML)")
	fs.StringVar(&logLevel, "log_level", "", "log level (debug, info, warn, error)")

	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		remaining := fs.Args()
		if n := len(rest) - len(remaining); n > 0 && rest[n-1] == "--" {
			positional = append(positional, remaining...)
			break
		}
		rest = remaining
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	if len(positional) != 2 {
		fs.Usage()
		return nil, fmt.Errorf("expected ROOM and PORT, got %d positional arguments", len(positional))
	}

	cfg := Default()
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return nil, err
		}
	}

	cfg.Room = positional[0]
	port, err := strconv.Atoi(positional[1])
	if err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", positional[1], err)
	}
	cfg.Port = port
	cfg.SampleInterval = time.Duration(waitSec) * time.Second
	cfg.TemperatureOffset = tempOffset
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cfg.MQTTTopic == "" {
		cfg.MQTTTopic = "airquality/" + cfg.Room
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile applies a configuration file on top of c. Files ending in
// .yaml or .yml hold a mapping of the same keys as the KEY=VALUE format.
func (c *Config) LoadFile(configPath string) error {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return c.loadYAML(configPath)
	}

	file, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.setValue(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func (c *Config) loadYAML(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := c.setValue(k, values[k]); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// CO2 sensor
	case "CO2_SERIAL_PORT":
		c.CO2SerialPort = value
	case "CO2_BAUD_RATE":
		rate, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid CO2_BAUD_RATE %q: %w", value, err)
		}
		c.CO2BaudRate = uint(rate)

	// BMP180
	case "BMP_I2C_BUS":
		c.BMPI2CBus = value
	case "BMP_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid BMP_I2C_ADDR %q: %w", value, err)
		}
		c.BMPI2CAddr = uint16(addr)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC":
		c.MQTTTopic = value

	// Display
	case "DISPLAY_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
		c.DisplayEnabled = enabled
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	case "LOG_LEVEL":
		c.LogLevel = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set and in range.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Room) == "" {
		return errors.New("ROOM is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be 1-65535, got %d", c.Port)
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("wait must be > 0 seconds, got %s", c.SampleInterval)
	}
	if c.CO2SerialPort == "" {
		return errors.New("CO2_SERIAL_PORT is required")
	}
	if c.CO2BaudRate == 0 {
		return errors.New("CO2_BAUD_RATE must be > 0")
	}
	if c.DisplayEnabled && c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be > 0, got %d", c.DisplayUpdateInterval)
	}
	return nil
}
