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

package ranging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-uwb"
)

// Runner errors
var (
	ErrRunnerRunning = errors.New("runner is already running")
	ErrNilDevice     = errors.New("device cannot be nil")
)

// Config holds configuration options for the Runner
type Config struct {
	// RoundInterval paces ranging rounds; a round that overruns it starts the next at once
	RoundInterval time.Duration
}

// DefaultConfig returns the pacing used by the firmware loops
func DefaultConfig() *Config {
	return &Config{
		RoundInterval: 100 * time.Millisecond,
	}
}

// Metrics tracks operational metrics of a Runner
type Metrics struct {
	Rounds           int64         // rounds run while measuring
	Failures         int64         // exchanges abandoned after a recoverable error
	Notifications    int64         // records delivered to the sink
	Dropped          int64         // negative distances discarded
	LastRoundLatency time.Duration // duration of the last round
}

// Option configures a Runner
type Option func(*Runner)

// WithConfig replaces the runner configuration
func WithConfig(config *Config) Option {
	return func(r *Runner) {
		if config != nil {
			r.config = config
		}
	}
}

// WithLogger sets the logger for recovered failures and results
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner drives the role state machines. Once per tick it takes a snapshot
// of the device settings and, while measuring, runs one round of the
// configured role to completion. Stop requests are therefore observed at the
// top of the next round, never inside an exchange.
type Runner struct {
	device     *uwb.Device
	settings   *uwb.Settings
	sink       uwb.Sink
	config     *Config
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	done       chan struct{}
	stopMutex  sync.Mutex
	running    atomic.Bool

	rounds           atomic.Int64
	failures         atomic.Int64
	notifications    atomic.Int64
	dropped          atomic.Int64
	lastRoundLatency atomic.Int64 // in nanoseconds

	// owned by the loop
	lastRole  uwb.Role
	lastType  uwb.MeasurementType
	appliedRx uint16
	appliedTx uint16
	delaysSet bool
}

// NewRunner creates a runner for device. Records go to sink; a nil sink
// discards them.
func NewRunner(device *uwb.Device, sink uwb.Sink, opts ...Option) (*Runner, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if sink == nil {
		sink = discardSink{}
	}
	r := &Runner{
		device:   device,
		settings: device.Settings(),
		sink:     sink,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.config.RoundInterval <= 0 {
		return nil, fmt.Errorf("%w: round interval %v", uwb.ErrInvalidParameter, r.config.RoundInterval)
	}
	return r, nil
}

// Run runs rounds until ctx is done or a non-recoverable error occurs. It
// returns ctx.Err() on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunnerRunning
	}
	defer r.running.Store(false)

	ticker := time.NewTicker(r.config.RoundInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.Step(); err != nil {
			r.logger.Error("ranging stopped", slog.String("error", err.Error()))
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Start runs the loop in the background (non-blocking)
func (r *Runner) Start(ctx context.Context) error {
	if r.IsRunning() {
		return ErrRunnerRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.stopMutex.Lock()
	r.cancelFunc = cancel
	r.done = done
	r.stopMutex.Unlock()

	go func() {
		defer close(done)
		if err := r.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("runner exited", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Stop cancels a loop started with Start and waits for the current round to finish
func (r *Runner) Stop() {
	r.stopMutex.Lock()
	cancel, done := r.cancelFunc, r.done
	r.cancelFunc, r.done = nil, nil
	r.stopMutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// IsRunning returns whether the loop is active
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// GetMetrics returns current operational metrics
func (r *Runner) GetMetrics() Metrics {
	return Metrics{
		Rounds:           r.rounds.Load(),
		Failures:         r.failures.Load(),
		Notifications:    r.notifications.Load(),
		Dropped:          r.dropped.Load(),
		LastRoundLatency: time.Duration(r.lastRoundLatency.Load()),
	}
}

// Step runs one tick: it reads the settings once and, while measuring, runs
// one round of the configured role. Recoverable radio failures are counted
// and logged; only transport failures are returned.
func (r *Runner) Step() error {
	snap := r.settings.Snapshot()
	if snap.State != uwb.StateMeasuring || snap.Role == uwb.RoleNone {
		return nil
	}

	round, err := roundFor(snap.Role, snap.MeasurementType)
	if err != nil {
		if snap.Role != r.lastRole || snap.MeasurementType != r.lastType {
			r.logger.Warn("no ranging round for settings",
				slog.String("role", snap.Role.String()),
				slog.String("measurement_type", snap.MeasurementType.String()))
		}
		r.lastRole, r.lastType = snap.Role, snap.MeasurementType
		return nil
	}
	r.lastRole, r.lastType = snap.Role, snap.MeasurementType

	if err := r.applyAntennaDelay(snap); err != nil {
		return err
	}

	start := time.Now()
	err = round(r, snap)
	r.lastRoundLatency.Store(time.Since(start).Nanoseconds())
	r.rounds.Add(1)
	r.settings.AdvanceSequence()

	if err != nil && !uwb.IsRecoverable(err) {
		return err
	}
	return nil
}

func (r *Runner) applyAntennaDelay(snap uwb.SettingsSnapshot) error {
	if r.delaysSet && r.appliedRx == snap.RxAntennaDelay && r.appliedTx == snap.TxAntennaDelay {
		return nil
	}
	if err := r.device.ApplyAntennaDelay(snap.RxAntennaDelay, snap.TxAntennaDelay); err != nil {
		return fmt.Errorf("apply antenna delay: %w", err)
	}
	r.appliedRx, r.appliedTx, r.delaysSet = snap.RxAntennaDelay, snap.TxAntennaDelay, true
	return nil
}

// exchangeFailed records a recoverable failure and passes other errors through
func (r *Runner) exchangeFailed(err error, peer uint8) error {
	if !uwb.IsRecoverable(err) {
		return err
	}
	r.failures.Add(1)
	r.logger.Debug("exchange abandoned",
		slog.Int("peer", int(peer)),
		slog.String("error_type", uwb.GetErrorType(err).String()),
		slog.String("error", err.Error()))
	return nil
}

// emitDistance forwards a non-negative distance past the warm-up to the sink
func (r *Runner) emitDistance(
	snap uwb.SettingsSnapshot, peer uint8, distance float64, round, reply uint64,
) {
	if distance < 0 {
		r.dropped.Add(1)
		r.logger.Debug("negative distance dropped",
			slog.Int("peer", int(peer)),
			slog.Float64("distance", distance))
		return
	}

	count, notify := r.settings.RecordMeasurement()
	if !notify {
		return
	}
	n := uwb.NewDistanceNotification(snap, peer, count, distance, round, reply, r.device.Diagnostic())
	n.State = r.settings.State()
	if err := r.sink.NotifyDistance(n); err != nil {
		r.logger.Warn("distance notification failed", slog.String("error", err.Error()))
		return
	}
	r.notifications.Add(1)
}

// emitCalibration is emitDistance for the calibration observer
func (r *Runner) emitCalibration(snap uwb.SettingsSnapshot, intervals uwb.CalibrationIntervals) {
	distance := uwb.DSDistance(intervals.DSIntervals)
	if distance < 0 {
		r.dropped.Add(1)
		r.logger.Debug("negative calibration distance dropped", slog.Float64("distance", distance))
		return
	}

	count, notify := r.settings.RecordMeasurement()
	if !notify {
		return
	}
	n := uwb.CalibrationNotification{
		Sequence:     snap.Sequence,
		Measurement:  count,
		Distance:     distance,
		TimeOfFlight: intervals.TimeOfFlightDTU(),
		Intervals:    intervals,
		Diagnostic:   r.device.Diagnostic(),
	}
	if err := r.sink.NotifyCalibration(n); err != nil {
		r.logger.Warn("calibration notification failed", slog.String("error", err.Error()))
		return
	}
	r.notifications.Add(1)
}

type discardSink struct{}

func (discardSink) NotifyDistance(uwb.DistanceNotification) error { return nil }
func (discardSink) NotifyCalibration(uwb.CalibrationNotification) error { return nil }
