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

package uwb

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZaparooProject/go-uwb/internal/frame"
	"github.com/ZaparooProject/go-uwb/internal/transport"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// WaitTimeout bounds a single status wait
	WaitTimeout time.Duration
	// PollInterval is the pause between status reads, zero spins
	PollInterval time.Duration
	// Channel selects the Hz to ppm factor of the carrier offset correction
	Channel Channel
	// PRF64 selects the 64 MHz PRF diagnostic constants
	PRF64 bool
	// Diagnostics computes CIR diagnostics on every frame even when settings disable them
	Diagnostics bool
}

// DefaultDeviceConfig returns default device configuration: channel 9,
// preamble code 9 (64 MHz PRF) and a 100 ms wait bound.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		WaitTimeout: 100 * time.Millisecond,
		Channel:     Channel9,
		PRF64:       PRF64(9),
	}
}

// Device is the distance engine. It drives one exchange step at a time on
// top of a Transport: sending polls and scheduled replies, waiting for and
// validating frames, and reading the timestamps the ranging math needs.
//
// Thread Safety: Device is NOT thread-safe. A single ranging loop owns it.
// Only the Settings it holds may be shared with other goroutines.
type Device struct {
	transport  Transport
	config     *DeviceConfig
	settings   *Settings
	diagnostic DiagnosticInfo
	rxBuf      [frame.MaxFrameLength]byte
	// preamblePACs is the preamble timeout last programmed, 0 when off
	preamblePACs uint16
}

// New creates a distance engine on the given transport
func New(t Transport, opts ...Option) (*Device, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}
	device := &Device{
		transport: t,
		config:    DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	if device.settings == nil {
		device.settings = NewSettings()
	}
	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Settings returns the settings the engine reads
func (d *Device) Settings() *Settings {
	return d.settings
}

// Config returns a copy of the engine configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Diagnostic returns the diagnostics of the last good frame. It is reset on
// every CheckMessage and stays zero while diagnostics are disabled.
func (d *Device) Diagnostic() DiagnosticInfo {
	return d.diagnostic
}

func (d *Device) diagnosticsEnabled() bool {
	return d.config.Diagnostics || d.settings.Diagnostic()
}

// StartPoll clears the TX done flag and sends f immediately with the receiver
// armed to switch on after the configured RX-after-TX delay.
func (d *Device) StartPoll(f Frame) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return fmt.Errorf("start poll: %w", err)
	}
	if err := d.transport.ClearStatus(StatusTXFRS); err != nil {
		return fmt.Errorf("start poll: clear status: %w", err)
	}
	if err := d.transport.TransmitImmediate(data, true); err != nil {
		return fmt.Errorf("start poll: %w", err)
	}
	debugf("poll sent: %v seq=%d dest=%d", f.FrameHeader().Kind, f.FrameHeader().Sequence, f.FrameHeader().Dest)
	return nil
}

// SendAt transmits f at the delayed TX time txTime (DTU >> 8) and waits for
// the frame to leave. A missed deadline runs RecoverTxErrors and returns a
// late error; the frame was not sent.
func (d *Device) SendAt(f Frame, txTime uint32) error {
	return d.sendAt(f, txTime, false)
}

// SendAtWithResponse is SendAt with the receiver armed after transmission
func (d *Device) SendAtWithResponse(f Frame, txTime uint32) error {
	return d.sendAt(f, txTime, true)
}

func (d *Device) sendAt(f Frame, txTime uint32, responseExpected bool) error {
	const op = "send at"

	data, err := f.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := d.transport.TransmitDelayed(data, txTime, responseExpected); err != nil {
		if !errors.Is(err, ErrTxLate) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if recErr := d.RecoverTxErrors(); recErr != nil {
			debugf("recover after late tx failed: %v", recErr)
		}
		status, _ := d.transport.ReadStatus()
		Logger().Warn("delayed transmit late",
			slog.String("kind", f.FrameHeader().Kind.String()),
			slog.Uint64("tx_time", uint64(txTime)),
			slog.String("status", status.String()))
		return NewRadioError(op, ErrTxLate, status)
	}

	if _, err := d.waitStatus(StatusTXFRS); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := d.transport.ClearStatus(StatusTXFRS); err != nil {
		return fmt.Errorf("%s: clear status: %w", op, err)
	}
	debugf("sent %v at %#08x", f.FrameHeader().Kind, txTime)
	return nil
}

// ReceiveNow enables the receiver immediately; a timeout of 0 waits forever.
// A preamble timeout left by a bounded exchange leg is switched off first so
// only timeoutUUS ends the reception.
func (d *Device) ReceiveNow(timeoutUUS uint32) error {
	if d.preamblePACs != 0 {
		if err := d.SetPreambleTimeout(0); err != nil {
			return fmt.Errorf("receive now: %w", err)
		}
	}
	if err := d.transport.ArmReceive(timeoutUUS); err != nil {
		return fmt.Errorf("receive now: %w", err)
	}
	return nil
}

// SetRxAfterTxDelay sets the delay between TX end and RX enable and the RX timeout
func (d *Device) SetRxAfterTxDelay(delayUUS, timeoutUUS uint32) error {
	if err := d.transport.SetRxAfterTx(delayUUS, timeoutUUS); err != nil {
		return fmt.Errorf("set rx after tx delay: %w", err)
	}
	return nil
}

// waitStatus busy-waits until any bit of mask is set
func (d *Device) waitStatus(mask StatusBits) (StatusBits, error) {
	status, err := transport.PollUntil(d.config.WaitTimeout, d.config.PollInterval,
		func() (StatusBits, bool, error) {
			s, err := d.transport.ReadStatus()
			if err != nil {
				return 0, false, err
			}
			return s, !s.Has(mask), nil
		})
	if errors.Is(err, transport.ErrPollTimeout) {
		last, _ := d.transport.ReadStatus()
		return last, NewRadioError("wait status", ErrWaitTimeout, last)
	}
	return status, err
}

// CheckMessage blocks until the radio reports a good frame, a timeout or an
// error, then validates the frame against kind. Any failure clears the RX
// timeout and error status bits once and returns no frame. On success with
// diagnostics enabled the signal levels of the frame are recomputed.
func (d *Device) CheckMessage(kind MessageKind) (Frame, error) {
	const op = "check message"

	d.diagnostic = DiagnosticInfo{}

	status, err := d.waitStatus(StatusRXFCG | StatusAllRxTimeout | StatusAllRxError)
	if err != nil {
		if GetErrorType(err) == ErrorTypeTransport || GetErrorType(err) == ErrorTypeFatal {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, d.failReceive(op, err, status)
	}

	if !status.Has(StatusRXFCG) {
		cause := ErrRxError
		if status.Has(StatusAllRxTimeout) {
			cause = ErrRxTimeout
		}
		return nil, d.failReceive(op, cause, status)
	}

	if err := d.transport.ClearStatus(StatusRXFCG); err != nil {
		return nil, fmt.Errorf("%s: clear status: %w", op, err)
	}

	length, err := d.transport.FrameLength()
	if err != nil {
		return nil, fmt.Errorf("%s: frame length: %w", op, err)
	}
	if int(length) != kind.Size() {
		Logger().Warn("rx size mismatch",
			slog.String("kind", kind.String()),
			slog.Int("size", int(length)),
			slog.Int("expected_size", kind.Size()))
		return nil, d.failReceive(op, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, length, kind.Size()), status)
	}

	buf := d.rxBuf[:length]
	if err := d.transport.ReadFrame(buf); err != nil {
		return nil, fmt.Errorf("%s: read frame: %w", op, err)
	}

	f, err := Decode(kind, buf)
	if err != nil {
		return nil, d.failReceive(op, err, status)
	}

	if d.diagnosticsEnabled() {
		d.updateDiagnostic()
	}
	return f, nil
}

// failReceive clears the latched RX status and wraps the cause
func (d *Device) failReceive(op string, cause error, status StatusBits) error {
	debugAttrs("receive failed",
		slog.String("cause", cause.Error()),
		slog.String("status", status.String()))
	if err := d.ClearRxStatus(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return NewRadioError(op, cause, status)
}

func (d *Device) updateDiagnostic() {
	cir, err := d.transport.ReadDiagnostics()
	if err != nil {
		debugf("read diagnostics: %v", err)
		return
	}
	info, err := ComputeDiagnostic(cir, d.config.PRF64)
	if err != nil {
		debugf("compute diagnostic: %v", err)
		return
	}
	d.diagnostic = info
}

// ClearRxStatus clears every RX timeout and RX error bit
func (d *Device) ClearRxStatus() error {
	if err := d.transport.ClearStatus(StatusAllRxTimeout | StatusAllRxError); err != nil {
		return fmt.Errorf("clear rx status: %w", err)
	}
	return nil
}

// RecoverTxErrors clears the RX timeout and error bits when a frame checksum
// error is latched. It is the only recovery action.
func (d *Device) RecoverTxErrors() error {
	status, err := d.transport.ReadStatus()
	if err != nil {
		return fmt.Errorf("recover tx errors: %w", err)
	}
	if !status.Has(StatusRXFCE) {
		return nil
	}
	debugf("recovering tx errors, status %s", status)
	return d.ClearRxStatus()
}

// TxTimestamp returns the 40-bit timestamp of the last transmission
func (d *Device) TxTimestamp() (Timestamp, error) {
	ts, err := d.transport.ReadTxTimestamp()
	if err != nil {
		return 0, fmt.Errorf("read tx timestamp: %w", err)
	}
	return ts & TimestampMask, nil
}

// RxTimestamp returns the 40-bit timestamp of the last reception
func (d *Device) RxTimestamp() (Timestamp, error) {
	ts, err := d.transport.ReadRxTimestamp()
	if err != nil {
		return 0, fmt.Errorf("read rx timestamp: %w", err)
	}
	return ts & TimestampMask, nil
}

// ClockOffsetRatio reads the carrier integrator of the last frame and converts it
func (d *Device) ClockOffsetRatio() (float64, error) {
	integrator, err := d.transport.ReadCarrierIntegrator()
	if err != nil {
		return 0, fmt.Errorf("read carrier integrator: %w", err)
	}
	return ClockOffsetRatio(integrator, d.config.Channel), nil
}

// ScheduleReply returns the delayed TX time delayUUS after rxTs together with
// the TX timestamp the radio will report for it, as embedded in reply frames.
func (d *Device) ScheduleReply(rxTs Timestamp, delayUUS uint32) (txTime uint32, txTs Timestamp) {
	_, txDelay := d.settings.AntennaDelays()
	txTime = ScheduleAfter(rxTs, delayUUS)
	return txTime, ScheduledTimestamp(txTime, txDelay)
}

// ApplyAntennaDelay programs the antenna delays when they differ from the radio's
func (d *Device) ApplyAntennaDelay(rx, tx uint16) error {
	curRx, curTx, err := d.transport.AntennaDelay()
	if err == nil && curRx == rx && curTx == tx {
		return nil
	}
	if err := d.transport.SetAntennaDelay(rx, tx); err != nil {
		return fmt.Errorf("set antenna delay: %w", err)
	}
	debugf("antenna delay rx=%d tx=%d", rx, tx)
	return nil
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}

// Receive waits for a frame of kind and returns it as its concrete type
func Receive[T Frame](d *Device, kind MessageKind) (T, error) {
	var zero T
	f, err := d.CheckMessage(kind)
	if err != nil {
		return zero, err
	}
	typed, ok := f.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %v decoded as %T", ErrFrameKind, kind, f)
	}
	return typed, nil
}
