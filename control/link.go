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

package control

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ZaparooProject/go-uwb"
	"go.bug.st/serial"
)

// DefaultBaudRate is used when Open is given zero
const DefaultBaudRate = 115200

// Link carries control messages in and telemetry out over one serial line.
// Every applied message is answered with a status_msg, every rejected one
// with an error_msg.
type Link struct {
	*Encoder
	rw       io.ReadWriteCloser
	settings *uwb.Settings
	logger   *slog.Logger
	name     string

	closeOnce sync.Once
	closeErr  error
}

// LinkOption configures a Link
type LinkOption func(*Link)

// WithLogger sets the link's logger
func WithLogger(logger *slog.Logger) LinkOption {
	return func(l *Link) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Open opens a serial port as a control link
func Open(portName string, baudRate int, settings *uwb.Settings, opts ...LinkOption) (*Link, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", portName, err)
	}
	l := NewLink(port, settings, opts...)
	l.name = portName
	l.logger.Info("control link open", slog.String("port", portName), slog.Int("baud", baudRate))
	return l, nil
}

// NewLink wraps an already open line
func NewLink(rw io.ReadWriteCloser, settings *uwb.Settings, opts ...LinkOption) *Link {
	l := &Link{
		Encoder:  NewEncoder(rw),
		rw:       rw,
		settings: settings,
		logger:   slog.Default(),
		name:     "stream",
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(slog.String("component", "control"))
	return l
}

// Serve handles control messages until ctx is done or the line closes. A
// closed line ends Serve without error. Cancelling ctx closes the line so the
// pending read returns; Serve waits for the reader before returning.
func (l *Link) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		scanner := bufio.NewScanner(l.rw)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = l.Close()
			<-readDone
			return ctx.Err()
		case err := <-readErr:
			if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("control link %s: %w", l.name, err)
		case line := <-lines:
			l.handle(line)
		}
	}
}

func (l *Link) handle(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	msg, err := Decode(line)
	if err == nil {
		err = Apply(msg, l.settings)
	}
	if err != nil {
		l.logger.Warn("control message rejected", slog.String("error", err.Error()))
		if werr := l.WriteError(err); werr != nil {
			l.logger.Error("control reply failed", slog.String("error", werr.Error()))
		}
		return
	}

	l.logger.Info("control message applied",
		slog.String("type", msg.Type), slog.String("command", msg.Command))
	if werr := l.WriteStatus(l.settings.Snapshot()); werr != nil {
		l.logger.Error("control reply failed", slog.String("error", werr.Error()))
	}
}

// Close closes the line; later calls return the first result
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		if err := l.rw.Close(); err != nil {
			l.closeErr = fmt.Errorf("close control link %s: %w", l.name, err)
		}
	})
	return l.closeErr
}
