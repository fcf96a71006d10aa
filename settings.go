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
	"strings"
	"sync"
	"sync/atomic"
)

// Role is the part a node plays in an exchange
type Role int32

// Roles
const (
	RoleNone Role = iota
	RoleInitiator
	RoleResponder
	RoleCalibA
	RoleCalibB
	RoleCalibC
)

var roleNames = map[Role]string{
	RoleNone:      "none",
	RoleInitiator: "initiator",
	RoleResponder: "responder",
	RoleCalibA:    "calib_a",
	RoleCalibB:    "calib_b",
	RoleCalibC:    "calib_c",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int32(r))
}

// ParseRole parses a role name as produced by Role.String
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("%w: unknown role %q", ErrInvalidParameter, s)
}

// MeasurementType selects the ranging protocol
type MeasurementType int32

// Measurement types
const (
	MeasurementSSTWR MeasurementType = iota
	MeasurementDS3TWR
	MeasurementCalibration
)

var measurementNames = map[MeasurementType]string{
	MeasurementSSTWR:       "ss_twr",
	MeasurementDS3TWR:      "ds_3_twr",
	MeasurementCalibration: "two_device_calibration",
}

func (m MeasurementType) String() string {
	if name, ok := measurementNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MeasurementType(%d)", int32(m))
}

// ParseMeasurementType parses a measurement type name
func ParseMeasurementType(s string) (MeasurementType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range measurementNames {
		if name == s {
			return m, nil
		}
	}
	return MeasurementSSTWR, fmt.Errorf("%w: unknown measurement type %q", ErrInvalidParameter, s)
}

// RunState is whether the ranging loop is active
type RunState int32

// Run states
const (
	StateSleeping RunState = iota
	StateMeasuring
)

func (s RunState) String() string {
	switch s {
	case StateSleeping:
		return "sleeping"
	case StateMeasuring:
		return "measuring"
	default:
		return fmt.Sprintf("RunState(%d)", int32(s))
	}
}

// Settings defaults
const (
	DefaultDeviceID       uint8 = 1
	DefaultResponderCount uint8 = 1
)

// Settings is the node configuration shared between the control channel and
// the ranging loop. The control channel writes it at any time; the loop reads
// a consistent view once per round. All methods are safe for concurrent use.
type Settings struct {
	hardwareID      string
	mu              sync.RWMutex
	minMeasurement  uint32
	maxMeasurement  uint32
	measurementType MeasurementType
	rxAntennaDelay  uint16
	txAntennaDelay  uint16
	deviceID        uint8
	responderCount  uint8
	diagnostic      bool

	role         atomic.Int32
	state        atomic.Int32
	sequence     atomic.Uint32
	measurements atomic.Uint32
}

// SettingsSnapshot is a point in time copy of Settings
type SettingsSnapshot struct {
	HardwareID      string
	Sequence        uint32
	Measurements    uint32
	MinMeasurement  uint32
	MaxMeasurement  uint32
	Role            Role
	State           RunState
	MeasurementType MeasurementType
	RxAntennaDelay  uint16
	TxAntennaDelay  uint16
	DeviceID        uint8
	ResponderCount  uint8
	Diagnostic      bool
}

// NewSettings returns settings initialized to the boot defaults
func NewSettings() *Settings {
	s := &Settings{
		deviceID:        DefaultDeviceID,
		responderCount:  DefaultResponderCount,
		measurementType: MeasurementSSTWR,
		rxAntennaDelay:  DefaultAntennaDelay,
		txAntennaDelay:  DefaultAntennaDelay,
	}
	s.role.Store(int32(RoleNone))
	s.state.Store(int32(StateSleeping))
	return s
}

// Snapshot returns a consistent copy of all fields
func (s *Settings) Snapshot() SettingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SettingsSnapshot{
		HardwareID:      s.hardwareID,
		Sequence:        s.sequence.Load(),
		Measurements:    s.measurements.Load(),
		MinMeasurement:  s.minMeasurement,
		MaxMeasurement:  s.maxMeasurement,
		Role:            Role(s.role.Load()),
		State:           RunState(s.state.Load()),
		MeasurementType: s.measurementType,
		RxAntennaDelay:  s.rxAntennaDelay,
		TxAntennaDelay:  s.txAntennaDelay,
		DeviceID:        s.deviceID,
		ResponderCount:  s.responderCount,
		Diagnostic:      s.diagnostic,
	}
}

// Role returns the current role
func (s *Settings) Role() Role {
	return Role(s.role.Load())
}

// SetRole changes the role; the loop picks it up at its next round
func (s *Settings) SetRole(r Role) error {
	if _, ok := roleNames[r]; !ok {
		return fmt.Errorf("%w: role %d", ErrInvalidParameter, int32(r))
	}
	s.role.Store(int32(r))
	return nil
}

// State returns the run state
func (s *Settings) State() RunState {
	return RunState(s.state.Load())
}

// Measuring reports whether the run state is StateMeasuring
func (s *Settings) Measuring() bool {
	return s.State() == StateMeasuring
}

// Start resets the sequence and measurement counters and enters StateMeasuring
func (s *Settings) Start() {
	s.mu.Lock()
	s.sequence.Store(0)
	s.measurements.Store(0)
	s.state.Store(int32(StateMeasuring))
	s.mu.Unlock()
}

// Stop enters StateSleeping; an exchange in flight still completes
func (s *Settings) Stop() {
	s.state.Store(int32(StateSleeping))
}

// DeviceID returns the node's own address
func (s *Settings) DeviceID() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// SetDeviceID sets the node's own address
func (s *Settings) SetDeviceID(id uint8) {
	s.mu.Lock()
	s.deviceID = id
	s.mu.Unlock()
}

// HardwareID returns the radio's unique id as 16 hex digits
func (s *Settings) HardwareID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hardwareID
}

// SetHardwareID records the radio's unique id
func (s *Settings) SetHardwareID(id string) {
	s.mu.Lock()
	s.hardwareID = id
	s.mu.Unlock()
}

// ValidateResponderCount checks that n responder addresses fit above ResponderIDBase
func ValidateResponderCount(n uint8) error {
	if n == 0 || int(n)+ResponderIDBase > 0xFF {
		return fmt.Errorf("%w: responder count %d", ErrInvalidParameter, n)
	}
	return nil
}

// ValidateMeasurementBounds checks that the warm-up ends before the stop count
func ValidateMeasurementBounds(minCount, maxCount uint32) error {
	if maxCount != 0 && minCount >= maxCount {
		return fmt.Errorf("%w: min measurement %d not below max %d", ErrInvalidParameter, minCount, maxCount)
	}
	return nil
}

// SetResponderCount sets how many responders an initiator sweeps per round
func (s *Settings) SetResponderCount(n uint8) error {
	if err := ValidateResponderCount(n); err != nil {
		return err
	}
	s.mu.Lock()
	s.responderCount = n
	s.mu.Unlock()
	return nil
}

// SetMeasurementType selects the ranging protocol
func (s *Settings) SetMeasurementType(m MeasurementType) error {
	if _, ok := measurementNames[m]; !ok {
		return fmt.Errorf("%w: measurement type %d", ErrInvalidParameter, int32(m))
	}
	s.mu.Lock()
	s.measurementType = m
	s.mu.Unlock()
	return nil
}

// SetMeasurementBounds sets the warm-up count and the stop count.
// A max of zero measures until stopped.
func (s *Settings) SetMeasurementBounds(minCount, maxCount uint32) error {
	if err := ValidateMeasurementBounds(minCount, maxCount); err != nil {
		return err
	}
	s.mu.Lock()
	s.minMeasurement = minCount
	s.maxMeasurement = maxCount
	s.mu.Unlock()
	return nil
}

// AntennaDelays returns the configured RX and TX antenna delays
func (s *Settings) AntennaDelays() (rx, tx uint16) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rxAntennaDelay, s.txAntennaDelay
}

// SetAntennaDelays sets the RX and TX antenna delays in DTU
func (s *Settings) SetAntennaDelays(rx, tx uint16) {
	s.mu.Lock()
	s.rxAntennaDelay = rx
	s.txAntennaDelay = tx
	s.mu.Unlock()
}

// Diagnostic reports whether CIR diagnostics are computed per frame
func (s *Settings) Diagnostic() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diagnostic
}

// SetDiagnostic enables or disables per frame diagnostics
func (s *Settings) SetDiagnostic(enabled bool) {
	s.mu.Lock()
	s.diagnostic = enabled
	s.mu.Unlock()
}

// Sequence returns the current exchange counter
func (s *Settings) Sequence() uint32 {
	return s.sequence.Load()
}

// AdvanceSequence increments the exchange counter once per round
func (s *Settings) AdvanceSequence() uint32 {
	return s.sequence.Add(1)
}

// Measurements returns the number of successful distance computations since start
func (s *Settings) Measurements() uint32 {
	return s.measurements.Load()
}

// RecordMeasurement counts one successful distance computation. It returns
// the new count and whether the result is past the warm-up and should be
// notified. Reaching a nonzero max measurement puts the node to sleep.
// Results arriving after the stop are neither counted nor notified.
func (s *Settings) RecordMeasurement() (count uint32, notify bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if RunState(s.state.Load()) != StateMeasuring {
		return s.measurements.Load(), false
	}
	count = s.measurements.Add(1)
	if s.maxMeasurement != 0 && count >= s.maxMeasurement {
		s.state.Store(int32(StateSleeping))
	}
	return count, count > s.minMeasurement
}
