// go-uwb
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-uwb.
//
// go-uwb is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-uwb is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-uwb; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package config loads the node's boot configuration from an optional YAML
// file and UWB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZaparooProject/go-uwb"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. UWB_NODE_ROLE
const EnvPrefix = "UWB"

// Config is the complete boot configuration
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Control ControlConfig `mapstructure:"control"`
	Radio   RadioConfig   `mapstructure:"radio"`
	Node    NodeConfig    `mapstructure:"node"`
}

// NodeConfig seeds the ranging settings
type NodeConfig struct {
	Role            string        `mapstructure:"role"`
	MeasurementType string        `mapstructure:"measurement_type"`
	Interval        time.Duration `mapstructure:"interval"`
	MinMeasurement  uint32        `mapstructure:"min_measurement"`
	MaxMeasurement  uint32        `mapstructure:"max_measurement"`
	DeviceID        uint8         `mapstructure:"device_id"`
	ResponderCount  uint8         `mapstructure:"responder_count"`
	AutoStart       bool          `mapstructure:"auto_start"`
	Diagnostic      bool          `mapstructure:"diagnostic"`
}

// RadioConfig describes the radio and its bus. An empty SPI port scans the
// host's ports, skipping IgnorePorts.
type RadioConfig struct {
	SPIPort        string        `mapstructure:"spi_port"`
	IgnorePorts    []string      `mapstructure:"ignore_ports"`
	ResetPin       string        `mapstructure:"reset_pin"`
	ClockHz        int64         `mapstructure:"clock_hz"`
	WaitTimeout    time.Duration `mapstructure:"wait_timeout"`
	RxAntennaDelay uint16        `mapstructure:"rx_ant_delay"`
	TxAntennaDelay uint16        `mapstructure:"tx_ant_delay"`
	Channel        uint8         `mapstructure:"channel"`
	PreambleCode   uint8         `mapstructure:"preamble_code"`
}

// ControlConfig describes the serial control link. An empty port writes
// telemetry to stdout and accepts no commands.
type ControlConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// LogConfig selects the log level and format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Debug  bool   `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.role", uwb.RoleNone.String())
	v.SetDefault("node.measurement_type", uwb.MeasurementSSTWR.String())
	v.SetDefault("node.interval", 100*time.Millisecond)
	v.SetDefault("node.min_measurement", 0)
	v.SetDefault("node.max_measurement", 0)
	v.SetDefault("node.device_id", uwb.DefaultDeviceID)
	v.SetDefault("node.responder_count", uwb.DefaultResponderCount)
	v.SetDefault("node.auto_start", false)
	v.SetDefault("node.diagnostic", false)

	v.SetDefault("radio.spi_port", "")
	v.SetDefault("radio.reset_pin", "")
	v.SetDefault("radio.clock_hz", 7_000_000)
	v.SetDefault("radio.wait_timeout", 50*time.Millisecond)
	v.SetDefault("radio.rx_ant_delay", uwb.DefaultAntennaDelay)
	v.SetDefault("radio.tx_ant_delay", uwb.DefaultAntennaDelay)
	v.SetDefault("radio.channel", uint8(uwb.Channel9))
	v.SetDefault("radio.preamble_code", 9)

	v.SetDefault("control.port", "")
	v.SetDefault("control.baud", 115200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.debug", false)
}

// Load reads path, if given, and applies environment overrides on top
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var errs []error
	if _, err := uwb.ParseRole(c.Node.Role); err != nil {
		errs = append(errs, err)
	}
	if _, err := uwb.ParseMeasurementType(c.Node.MeasurementType); err != nil {
		errs = append(errs, err)
	}
	if err := uwb.Channel(c.Radio.Channel).Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Node.MaxMeasurement != 0 && c.Node.MinMeasurement >= c.Node.MaxMeasurement {
		errs = append(errs, fmt.Errorf("%w: min_measurement %d not below max_measurement %d",
			uwb.ErrInvalidParameter, c.Node.MinMeasurement, c.Node.MaxMeasurement))
	}
	if c.Node.ResponderCount == 0 {
		errs = append(errs, fmt.Errorf("%w: responder_count must be positive", uwb.ErrInvalidParameter))
	}
	if c.Node.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: interval %v", uwb.ErrInvalidParameter, c.Node.Interval))
	}
	if c.Radio.WaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: wait_timeout %v", uwb.ErrInvalidParameter, c.Radio.WaitTimeout))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("%w: log format %q", uwb.ErrInvalidParameter, c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Apply seeds settings from the node section
func (c *Config) Apply(s *uwb.Settings) error {
	role, err := uwb.ParseRole(c.Node.Role)
	if err != nil {
		return err
	}
	mt, err := uwb.ParseMeasurementType(c.Node.MeasurementType)
	if err != nil {
		return err
	}
	if err := s.SetRole(role); err != nil {
		return err
	}
	if err := s.SetMeasurementType(mt); err != nil {
		return err
	}
	if err := s.SetResponderCount(c.Node.ResponderCount); err != nil {
		return err
	}
	if err := s.SetMeasurementBounds(c.Node.MinMeasurement, c.Node.MaxMeasurement); err != nil {
		return err
	}
	s.SetDeviceID(c.Node.DeviceID)
	s.SetAntennaDelays(c.Radio.RxAntennaDelay, c.Radio.TxAntennaDelay)
	s.SetDiagnostic(c.Node.Diagnostic)
	if c.Node.AutoStart {
		s.Start()
	}
	return nil
}

// SlogLevel parses the configured level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", uwb.ErrInvalidParameter, l.Level)
	}
	return level, nil
}
