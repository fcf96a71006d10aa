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
	"fmt"
	"time"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithDiagnostics forces CIR diagnostics on every received frame regardless of settings
func WithDiagnostics(enabled bool) Option {
	return func(d *Device) error {
		d.config.Diagnostics = enabled
		return nil
	}
}

// WithChannel sets the UWB channel used for the carrier offset correction
func WithChannel(ch Channel) Option {
	return func(d *Device) error {
		if err := ch.Validate(); err != nil {
			return err
		}
		d.config.Channel = ch
		return nil
	}
}

// WithPRF64 selects the 64 MHz PRF constants for diagnostics
func WithPRF64(prf64 bool) Option {
	return func(d *Device) error {
		d.config.PRF64 = prf64
		return nil
	}
}

// WithWaitTimeout bounds every status wait. The radio's own RX timeout
// normally ends a wait first; this only guards against a wedged chip.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: wait timeout %v", ErrInvalidParameter, timeout)
		}
		d.config.WaitTimeout = timeout
		return nil
	}
}

// WithPollInterval sets the pause between status register reads; zero spins
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) error {
		if interval < 0 {
			return fmt.Errorf("%w: poll interval %v", ErrInvalidParameter, interval)
		}
		d.config.PollInterval = interval
		return nil
	}
}

// WithSettings shares settings with a control channel
func WithSettings(s *Settings) Option {
	return func(d *Device) error {
		if s == nil {
			return fmt.Errorf("%w: nil settings", ErrInvalidParameter)
		}
		d.settings = s
		return nil
	}
}
