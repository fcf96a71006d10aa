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
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ZaparooProject/go-uwb"
)

// Envelope wraps every telemetry line
type Envelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// DistanceData is the payload of a distance_msg
type DistanceData struct {
	State       string  `json:"state"`
	Role        string  `json:"role"`
	Sequence    uint32  `json:"sequence"`
	Measurement uint32  `json:"measurement"`
	Responder   uint8   `json:"responder"`
	Distance    float64 `json:"distance"`
	Round       uint64  `json:"round"`
	Reply       uint64  `json:"reply"`
	NLOSPercent uint8   `json:"nlos_percent"`
	RSSI        float32 `json:"rssi_index_resp"`
	FPI         float32 `json:"fp_index_resp"`
}

// NewDistanceData converts a distance record to its wire form
func NewDistanceData(n uwb.DistanceNotification) DistanceData {
	return DistanceData{
		State:       n.State.String(),
		Role:        n.Role.String(),
		Sequence:    n.Sequence,
		Measurement: n.Measurement,
		Responder:   n.Responder,
		Distance:    n.Distance,
		Round:       n.Round,
		Reply:       n.Reply,
		NLOSPercent: n.Diagnostic.NLOS,
		RSSI:        n.Diagnostic.RSSI,
		FPI:         n.Diagnostic.FPI,
	}
}

// CalibrationData is the payload of a calibration_msg
type CalibrationData struct {
	Sequence     uint32  `json:"sequence"`
	Measurement  uint32  `json:"measurement"`
	Distance     float64 `json:"distance"`
	TimeOfFlight int64   `json:"tof"`
	Ra           uint32  `json:"ra"`
	Rb           uint32  `json:"rb"`
	Da           uint32  `json:"da"`
	Db           uint32  `json:"db"`
	C1           uint32  `json:"c1"`
	C2           uint32  `json:"c2"`
	NLOSPercent  uint8   `json:"nlos_percent"`
	RSSI         float32 `json:"rssi_index_resp"`
	FPI          float32 `json:"fp_index_resp"`
}

// NewCalibrationData converts a calibration record to its wire form
func NewCalibrationData(n uwb.CalibrationNotification) CalibrationData {
	return CalibrationData{
		Sequence:     n.Sequence,
		Measurement:  n.Measurement,
		Distance:     n.Distance,
		TimeOfFlight: n.TimeOfFlight,
		Ra:           n.Intervals.Ra,
		Rb:           n.Intervals.Rb,
		Da:           n.Intervals.Da,
		Db:           n.Intervals.Db,
		C1:           n.Intervals.C1,
		C2:           n.Intervals.C2,
		NLOSPercent:  n.Diagnostic.NLOS,
		RSSI:         n.Diagnostic.RSSI,
		FPI:          n.Diagnostic.FPI,
	}
}

// StatusData is the payload of a status_msg
type StatusData struct {
	HardwareID      string `json:"hardware_id"`
	Role            string `json:"role"`
	MeasurementType string `json:"measurement_type"`
	State           string `json:"state"`
	Sequence        uint32 `json:"sequence"`
	Measurements    uint32 `json:"measurements"`
	MinMeasurement  uint32 `json:"min_measurement"`
	MaxMeasurement  uint32 `json:"max_measurement"`
	RxAntennaDelay  uint16 `json:"rx_ant_delay"`
	TxAntennaDelay  uint16 `json:"tx_ant_delay"`
	DeviceID        uint8  `json:"device_id"`
	ResponderCount  uint8  `json:"responder_count"`
	Diagnostic      bool   `json:"diagnostic"`
}

// NewStatusData converts a settings snapshot to its wire form
func NewStatusData(s uwb.SettingsSnapshot) StatusData {
	return StatusData{
		HardwareID:      s.HardwareID,
		Role:            s.Role.String(),
		MeasurementType: s.MeasurementType.String(),
		State:           s.State.String(),
		Sequence:        s.Sequence,
		Measurements:    s.Measurements,
		MinMeasurement:  s.MinMeasurement,
		MaxMeasurement:  s.MaxMeasurement,
		RxAntennaDelay:  s.RxAntennaDelay,
		TxAntennaDelay:  s.TxAntennaDelay,
		DeviceID:        s.DeviceID,
		ResponderCount:  s.ResponderCount,
		Diagnostic:      s.Diagnostic,
	}
}

// Encoder writes telemetry as one JSON object per line. It implements
// uwb.Sink and is safe for concurrent use.
type Encoder struct {
	w  io.Writer
	mu sync.Mutex
}

var _ uwb.Sink = (*Encoder)(nil)

// NewEncoder returns an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// NotifyDistance implements uwb.Sink
func (e *Encoder) NotifyDistance(n uwb.DistanceNotification) error {
	return e.write(Envelope{Type: TypeDistance, Data: NewDistanceData(n)})
}

// NotifyCalibration implements uwb.Sink
func (e *Encoder) NotifyCalibration(n uwb.CalibrationNotification) error {
	return e.write(Envelope{Type: TypeCalibration, Data: NewCalibrationData(n)})
}

// WriteStatus reports the current settings
func (e *Encoder) WriteStatus(s uwb.SettingsSnapshot) error {
	return e.write(Envelope{Type: TypeStatus, Data: NewStatusData(s)})
}

// WriteError reports a rejected control message
func (e *Encoder) WriteError(cause error) error {
	return e.write(Envelope{Type: TypeError, Error: cause.Error()})
}

func (e *Encoder) write(env Envelope) error {
	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}
	line = append(line, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", env.Type, err)
	}
	return nil
}
