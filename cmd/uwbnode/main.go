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

// Command uwbnode runs one ranging node: it brings up the radio, applies the
// boot configuration and ranges until interrupted. Results are written as
// JSON lines to the control link, or to stdout when none is configured.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/go-uwb"
	"github.com/ZaparooProject/go-uwb/control"
	"github.com/ZaparooProject/go-uwb/detection"
	"github.com/ZaparooProject/go-uwb/internal/config"
	"github.com/ZaparooProject/go-uwb/ranging"
	"github.com/ZaparooProject/go-uwb/transport/spi"
	"periph.io/x/conn/v3/physic"
)

type flags struct {
	configPath *string
	spiPort    *string
	control    *string
	debug      *bool
	start      *bool
}

func parseFlags() *flags {
	f := &flags{
		configPath: flag.String("config", "", "Path to a YAML config file (UWB_* environment variables override it)"),
		spiPort:    flag.String("spi", "", "SPI port of the radio (e.g. SPI0.0); empty scans for one"),
		control:    flag.String("control", "", "Serial port of the control link; overrides control.port"),
		debug:      flag.Bool("debug", false, "Enable radio debug output"),
		start:      flag.Bool("start", false, "Start measuring without waiting for a start command"),
	}
	flag.Parse()
	return f
}

func newLogger(c config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	if c.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.Load(*f.configPath)
	if err != nil {
		return nil, err
	}
	if *f.spiPort != "" {
		cfg.Radio.SPIPort = *f.spiPort
	}
	if *f.control != "" {
		cfg.Control.Port = *f.control
	}
	if *f.debug {
		cfg.Log.Debug = true
	}
	if *f.start {
		cfg.Node.AutoStart = true
	}
	return cfg, nil
}

// findPort scans the host's SPI ports for the first radio
func findPort(ctx context.Context, cfg *config.Config, spiOpts []spi.Option) (string, error) {
	ports, err := spi.Ports()
	if err != nil {
		return "", err
	}
	opts := detection.DefaultOptions()
	opts.IgnorePaths = cfg.Radio.IgnorePorts
	opts.StopOnFirst = true

	devices, err := detection.Detect(ctx, ports, func(_ context.Context, port string) (uint64, error) {
		return spi.Probe(port, spiOpts...)
	}, opts)
	if err != nil {
		return "", fmt.Errorf("no SPI port configured and detection failed: %w", err)
	}
	slog.Info("radio detected",
		slog.String("port", devices[0].Port),
		slog.String("hardware_id", devices[0].HardwareID))
	return devices[0].Port, nil
}

// openDevice brings up the radio. Failing here is fatal: the engine must not
// run on a radio that did not probe and configure.
func openDevice(ctx context.Context, cfg *config.Config, settings *uwb.Settings) (*uwb.Device, error) {
	spiOpts := []spi.Option{
		spi.WithChannel(uwb.Channel(cfg.Radio.Channel)),
		spi.WithPreambleCode(cfg.Radio.PreambleCode),
		spi.WithClock(physic.Frequency(cfg.Radio.ClockHz) * physic.Hertz),
	}
	if cfg.Radio.ResetPin != "" {
		spiOpts = append(spiOpts, spi.WithResetPin(cfg.Radio.ResetPin))
	}
	port := cfg.Radio.SPIPort
	if port == "" {
		var err error
		if port, err = findPort(ctx, cfg, spiOpts); err != nil {
			return nil, err
		}
	}

	transport, err := spi.New(port, spiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open radio: %w", err)
	}

	device, err := uwb.New(transport,
		uwb.WithChannel(uwb.Channel(cfg.Radio.Channel)),
		uwb.WithPRF64(uwb.PRF64(cfg.Radio.PreambleCode)),
		uwb.WithWaitTimeout(cfg.Radio.WaitTimeout),
		uwb.WithSettings(settings))
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	if id, err := device.HardwareID(); err == nil {
		settings.SetHardwareID(id)
	} else {
		slog.Warn("hardware id unavailable", slog.String("error", err.Error()))
	}
	return device, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	settings := uwb.NewSettings()
	if err := cfg.Apply(settings); err != nil {
		return err
	}

	device, err := openDevice(ctx, cfg, settings)
	if err != nil {
		return err
	}
	defer func() { _ = device.Close() }()

	var sink uwb.Sink = control.NewEncoder(os.Stdout)
	if cfg.Control.Port != "" {
		link, err := control.Open(cfg.Control.Port, cfg.Control.Baud, settings, control.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() { _ = link.Close() }()
		go func() {
			if err := link.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("control link stopped", slog.String("error", err.Error()))
			}
		}()
		_ = link.WriteStatus(settings.Snapshot())
		sink = link
	}

	runner, err := ranging.NewRunner(device, sink,
		ranging.WithConfig(&ranging.Config{RoundInterval: cfg.Node.Interval}),
		ranging.WithLogger(logger))
	if err != nil {
		return err
	}

	snap := settings.Snapshot()
	logger.Info("node ready",
		slog.String("hardware_id", snap.HardwareID),
		slog.Int("device_id", int(snap.DeviceID)),
		slog.String("role", snap.Role.String()),
		slog.String("measurement", snap.MeasurementType.String()),
		slog.String("state", snap.State.String()))

	err = runner.Run(ctx)
	m := runner.GetMetrics()
	logger.Info("ranging stopped",
		slog.Int64("rounds", m.Rounds),
		slog.Int64("failures", m.Failures),
		slog.Int64("notifications", m.Notifications))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	f := parseFlags()

	cfg, err := loadConfig(f)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	uwb.SetLogger(logger)
	uwb.SetDebugEnabled(cfg.Log.Debug)

	if err := lockMemory(); err != nil {
		logger.Warn("could not lock memory, exchanges may miss their deadlines", slog.String("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("node failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
