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

import "sync"

// DistanceNotification is the result record of one completed exchange
type DistanceNotification struct {
	Role        Role
	State       RunState
	Responder   uint8
	Sequence    uint32
	Measurement uint32
	Distance    float64
	Round       uint64
	Reply       uint64
	Diagnostic  DiagnosticInfo
}

// CalibrationIntervals are the six intervals role C derives from a calibration handshake
type CalibrationIntervals struct {
	DSIntervals
	// C1 is c2 - c1, the span between sensing_1 and sensing_2 as observed by C
	C1 uint32
	// C2 is c3 - c2, the span between sensing_2 and sensing_3 as observed by C
	C2 uint32
}

// CalibrationNotification is the result record of one calibration handshake
type CalibrationNotification struct {
	Sequence     uint32
	Measurement  uint32
	Distance     float64
	TimeOfFlight int64 // DTU
	Intervals    CalibrationIntervals
	Diagnostic   DiagnosticInfo
}

// Sink receives result records. Only non-negative distances are delivered.
type Sink interface {
	NotifyDistance(n DistanceNotification) error
	NotifyCalibration(n CalibrationNotification) error
}

// NewDistanceNotification assembles a record from a settings snapshot and an exchange result
func NewDistanceNotification(
	snap SettingsSnapshot, responder uint8, measurement uint32,
	distance float64, round, reply uint64, diag DiagnosticInfo,
) DistanceNotification {
	return DistanceNotification{
		Role:        snap.Role,
		State:       snap.State,
		Responder:   responder,
		Sequence:    snap.Sequence,
		Measurement: measurement,
		Distance:    distance,
		Round:       round,
		Reply:       reply,
		Diagnostic:  diag,
	}
}

// RecordingSink keeps every record it receives
type RecordingSink struct {
	distances    []DistanceNotification
	calibrations []CalibrationNotification
	mu           sync.Mutex
}

// NotifyDistance implements Sink
func (r *RecordingSink) NotifyDistance(n DistanceNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distances = append(r.distances, n)
	return nil
}

// NotifyCalibration implements Sink
func (r *RecordingSink) NotifyCalibration(n CalibrationNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calibrations = append(r.calibrations, n)
	return nil
}

// Distances returns a copy of the distance records received so far
func (r *RecordingSink) Distances() []DistanceNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DistanceNotification(nil), r.distances...)
}

// Calibrations returns a copy of the calibration records received so far
func (r *RecordingSink) Calibrations() []CalibrationNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CalibrationNotification(nil), r.calibrations...)
}
