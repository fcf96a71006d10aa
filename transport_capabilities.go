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

import "fmt"

// TransportCapability names an optional radio feature
type TransportCapability string

const (
	// CapabilityHardwareID means the transport can read the chip's unique id
	CapabilityHardwareID TransportCapability = "hardware_id"
	// CapabilityPreambleTimeout means the transport can bound preamble detection
	CapabilityPreambleTimeout TransportCapability = "preamble_timeout"
)

// TransportCapabilityChecker is implemented by transports that advertise optional features
type TransportCapabilityChecker interface {
	HasCapability(capability TransportCapability) bool
}

// HardwareIdentifier reads the radio's 64-bit unique id (lot id and part id)
type HardwareIdentifier interface {
	HardwareID() (uint64, error)
}

// PreambleTimeoutSetter bounds preamble detection in units of PAC size
type PreambleTimeoutSetter interface {
	SetPreambleTimeout(pacs uint16) error
}

// hasCapability checks if the transport has the specified capability
func (d *Device) hasCapability(capability TransportCapability) bool {
	if checker, ok := d.transport.(TransportCapabilityChecker); ok {
		return checker.HasCapability(capability)
	}
	return false
}

// HardwareID returns the radio's unique id as 16 hex digits
func (d *Device) HardwareID() (string, error) {
	hw, ok := d.transport.(HardwareIdentifier)
	if !ok || !d.hasCapability(CapabilityHardwareID) {
		return "", fmt.Errorf("hardware id: %w", ErrNotSupported)
	}
	id, err := hw.HardwareID()
	if err != nil {
		return "", fmt.Errorf("hardware id: %w", err)
	}
	return fmt.Sprintf("%016X", id), nil
}

// SetPreambleTimeout bounds preamble detection when the transport supports
// it. Without support the frame wait timeout alone ends the reception.
func (d *Device) SetPreambleTimeout(pacs uint16) error {
	setter, ok := d.transport.(PreambleTimeoutSetter)
	if !ok || !d.hasCapability(CapabilityPreambleTimeout) {
		debugf("preamble timeout %d not supported by %s transport", pacs, d.transport.Type())
		return nil
	}
	if err := setter.SetPreambleTimeout(pacs); err != nil {
		return fmt.Errorf("set preamble timeout: %w", err)
	}
	d.preamblePACs = pacs
	return nil
}
