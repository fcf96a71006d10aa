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

// Package spi provides the SPI register transport for DW3000 family radios
package spi

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-uwb"
	"github.com/ZaparooProject/go-uwb/internal/transport"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// The chip accepts at most 7 MHz until its PLL is locked.
const defaultClock = 7 * physic.MegaHertz

type options struct {
	resetPin     string
	clock        physic.Frequency
	resetPulse   time.Duration
	bootTimeout  time.Duration
	probeDelay   time.Duration
	probeRetries int
	channel      uwb.Channel
	preambleCode uint8
}

func defaultOptions() options {
	return options{
		clock:        defaultClock,
		resetPulse:   time.Millisecond,
		bootTimeout:  10 * time.Millisecond,
		probeDelay:   time.Millisecond,
		probeRetries: 3,
		channel:      uwb.Channel9,
		preambleCode: 9,
	}
}

// Option configures the SPI transport
type Option func(*options)

// WithResetPin names the GPIO wired to the radio's RSTn line
func WithResetPin(name string) Option {
	return func(o *options) {
		o.resetPin = name
	}
}

// WithClock sets the SPI clock
func WithClock(f physic.Frequency) Option {
	return func(o *options) {
		if f > 0 {
			o.clock = f
		}
	}
}

// WithChannel selects channel 5 or 9
func WithChannel(ch uwb.Channel) Option {
	return func(o *options) {
		o.channel = ch
	}
}

// WithPreambleCode sets the TX and RX preamble code. Codes above 8 use the
// 64 MHz PRF.
func WithPreambleCode(code uint8) Option {
	return func(o *options) {
		o.preambleCode = code
	}
}

// Transport implements uwb.Transport over an SPI bus
type Transport struct {
	conn     spi.Conn
	port     spi.PortCloser
	reset    gpio.PinIO
	portName string
	opts     options
	mu       sync.Mutex
	closed   bool
}

// New opens the SPI port, resets and probes the radio and selects the channel.
// Any error here means the radio cannot be used.
func New(portName string, opts ...Option) (*Transport, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.channel.Validate(); err != nil {
		return nil, err
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	conn, err := port.Connect(o.clock, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI port %s: %w", portName, err)
	}

	var reset gpio.PinIO
	if o.resetPin != "" {
		reset = gpioreg.ByName(o.resetPin)
		if reset == nil {
			_ = port.Close()
			return nil, fmt.Errorf("reset pin %s not found", o.resetPin)
		}
	}

	t, err := newTransport(conn, reset, o)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	t.port = port
	t.portName = portName
	return t, nil
}

// newTransport brings up a radio on an already connected bus
func newTransport(conn spi.Conn, reset gpio.PinIO, o options) (*Transport, error) {
	t := &Transport{conn: conn, reset: reset, opts: o, portName: conn.String()}

	if err := t.hardReset(); err != nil {
		return nil, err
	}
	if err := t.probe(); err != nil {
		return nil, err
	}
	if err := t.waitIdle(); err != nil {
		return nil, err
	}
	if err := t.configure(); err != nil {
		return nil, err
	}
	return t, nil
}

// hardReset pulses RSTn low and releases it; the line must never be driven high
func (t *Transport) hardReset() error {
	if t.reset == nil {
		return nil
	}
	if err := t.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("reset pin: %w", err)
	}
	time.Sleep(t.opts.resetPulse)
	if err := t.reset.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("reset pin: %w", err)
	}
	time.Sleep(2 * t.opts.resetPulse)
	return nil
}

func (t *Transport) probe() error {
	id, err := transport.WithRetry(transport.RetryConfig{
		MaxRetries:  t.opts.probeRetries,
		RetryDelay:  t.opts.probeDelay,
		Description: "probe",
	}, func() (uint32, bool, error) {
		id, err := t.read32(regDevID)
		if err != nil {
			return 0, false, err
		}
		return id, id&devIDMask != devIDDW3000, nil
	})
	if err != nil {
		return fmt.Errorf("probe %s: %w: %w", t.portName, uwb.ErrDeviceNotFound, err)
	}
	uwb.Logger().Debug("radio found", "port", t.portName, "dev_id", fmt.Sprintf("%08X", id))
	return nil
}

// waitIdle waits for the chip to reach IDLE_RC after reset
func (t *Transport) waitIdle() error {
	_, err := transport.PollUntil(t.opts.bootTimeout, 100*time.Microsecond, func() (uint32, bool, error) {
		status, err := t.read32(regSysStatus)
		if err != nil {
			return 0, false, err
		}
		return status, status&statusRCInit == 0, nil
	})
	if err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	return nil
}

// configure selects the channel and preamble codes and clears stale status
func (t *Transport) configure() error {
	ctrl, err := t.read32(regChanCtrl)
	if err != nil {
		return err
	}
	ctrl &^= chanCtrlCh9 | chanCtrlPcodeMsk<<chanCtrlTxPcode | chanCtrlPcodeMsk<<chanCtrlRxPcode
	if t.opts.channel == uwb.Channel9 {
		ctrl |= chanCtrlCh9
	}
	code := uint32(t.opts.preambleCode) & chanCtrlPcodeMsk
	ctrl |= code<<chanCtrlTxPcode | code<<chanCtrlRxPcode
	if err := t.write32(regChanCtrl, ctrl); err != nil {
		return err
	}
	return t.write32(regSysStatus, 0xFFFF_FFFF)
}

func (t *Transport) xfer(w, r []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return uwb.ErrTransportClosed
	}
	return t.conn.Tx(w, r)
}

func (t *Transport) read(reg uint32, n int) ([]byte, error) {
	h := header(reg, false)
	w := make([]byte, len(h)+n)
	copy(w, h)
	r := make([]byte, len(w))
	if err := t.xfer(w, r); err != nil {
		return nil, fmt.Errorf("spi read %#06x: %w", reg, err)
	}
	return r[len(h):], nil
}

func (t *Transport) write(reg uint32, data []byte) error {
	h := header(reg, true)
	w := make([]byte, 0, len(h)+len(data))
	w = append(w, h...)
	w = append(w, data...)
	if err := t.xfer(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("spi write %#06x: %w", reg, err)
	}
	return nil
}

func (t *Transport) read16(reg uint32) (uint16, error) {
	b, err := t.read(reg, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (t *Transport) read32(reg uint32) (uint32, error) {
	b, err := t.read(reg, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (t *Transport) write16(reg uint32, v uint16) error {
	return t.write(reg, binary.LittleEndian.AppendUint16(nil, v))
}

func (t *Transport) write32(reg, v uint32) error {
	return t.write(reg, binary.LittleEndian.AppendUint32(nil, v))
}

func (t *Transport) command(cmd byte) error {
	if err := t.xfer([]byte{fastCommand(cmd)}, make([]byte, 1)); err != nil {
		return fmt.Errorf("spi command %#02x: %w", cmd, err)
	}
	return nil
}

// Close releases the SPI port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.port != nil {
		if err := t.port.Close(); err != nil {
			return fmt.Errorf("close %s: %w", t.portName, err)
		}
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() uwb.TransportType {
	return uwb.TransportSPI
}

// HasCapability implements uwb.TransportCapabilityChecker
func (*Transport) HasCapability(capability uwb.TransportCapability) bool {
	switch capability {
	case uwb.CapabilityHardwareID, uwb.CapabilityPreambleTimeout:
		return true
	default:
		return false
	}
}
