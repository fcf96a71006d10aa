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

// Package control implements the node's control channel: JSON commands that
// change the ranging settings, and JSON telemetry for every result.
package control

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-uwb"
)

// Message types
const (
	TypeMeasurement = "measurement_msg"
	TypeSetup       = "setup_msg"
	TypeStatus      = "status_msg"
	TypeDistance    = "distance_msg"
	TypeCalibration = "calibration_msg"
	TypeError       = "error_msg"
)

// Commands carried by a measurement_msg
const (
	CommandStart = "start"
	CommandStop  = "stop"
)

// Control errors
var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrUnknownCommand = errors.New("unknown command")
)

// Message is one control message:
//
//	{"type":"measurement_msg","command":"start"}
//	{"type":"setup_msg","data":{"role":"responder","device_id":101}}
//	{"type":"status_msg"}
type Message struct {
	Setup   *Setup `json:"data,omitempty"`
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
}

// Setup changes settings fields; absent fields keep their value
type Setup struct {
	DeviceID        *uint8  `json:"device_id,omitempty"`
	Role            *string `json:"role,omitempty"`
	MeasurementType *string `json:"measurement_type,omitempty"`
	ResponderCount  *uint8  `json:"responder_count,omitempty"`
	MinMeasurement  *uint32 `json:"min_measurement,omitempty"`
	MaxMeasurement  *uint32 `json:"max_measurement,omitempty"`
	RxAntennaDelay  *uint16 `json:"rx_ant_delay,omitempty"`
	TxAntennaDelay  *uint16 `json:"tx_ant_delay,omitempty"`
	Diagnostic      *bool   `json:"diagnostic,omitempty"`
}

// Decode parses one control message
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode control message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decode control message: %w: missing type", ErrUnknownType)
	}
	return m, nil
}

// Apply executes m against s. A status_msg changes nothing.
func Apply(m Message, s *uwb.Settings) error {
	switch m.Type {
	case TypeMeasurement:
		switch m.Command {
		case CommandStart:
			s.Start()
		case CommandStop:
			s.Stop()
		default:
			return fmt.Errorf("%w: %q", ErrUnknownCommand, m.Command)
		}
		return nil
	case TypeSetup:
		if m.Setup == nil {
			return fmt.Errorf("%w: setup_msg without data", uwb.ErrInvalidParameter)
		}
		return m.Setup.apply(s)
	case TypeStatus:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}

// apply checks every field against the current settings and writes only
// when all of them pass, so a rejected setup changes nothing.
func (u *Setup) apply(s *uwb.Settings) error {
	snap := s.Snapshot()

	role := snap.Role
	if u.Role != nil {
		r, err := uwb.ParseRole(*u.Role)
		if err != nil {
			return err
		}
		role = r
	}
	mt := snap.MeasurementType
	if u.MeasurementType != nil {
		m, err := uwb.ParseMeasurementType(*u.MeasurementType)
		if err != nil {
			return err
		}
		mt = m
	}
	count := snap.ResponderCount
	if u.ResponderCount != nil {
		count = *u.ResponderCount
		if err := uwb.ValidateResponderCount(count); err != nil {
			return err
		}
	}
	minCount, maxCount := snap.MinMeasurement, snap.MaxMeasurement
	if u.MinMeasurement != nil {
		minCount = *u.MinMeasurement
	}
	if u.MaxMeasurement != nil {
		maxCount = *u.MaxMeasurement
	}
	if err := uwb.ValidateMeasurementBounds(minCount, maxCount); err != nil {
		return err
	}

	if err := s.SetResponderCount(count); err != nil {
		return err
	}
	if err := s.SetMeasurementBounds(minCount, maxCount); err != nil {
		return err
	}
	if err := s.SetRole(role); err != nil {
		return err
	}
	if err := s.SetMeasurementType(mt); err != nil {
		return err
	}
	if u.DeviceID != nil {
		s.SetDeviceID(*u.DeviceID)
	}
	if u.RxAntennaDelay != nil || u.TxAntennaDelay != nil {
		rx, tx := snap.RxAntennaDelay, snap.TxAntennaDelay
		if u.RxAntennaDelay != nil {
			rx = *u.RxAntennaDelay
		}
		if u.TxAntennaDelay != nil {
			tx = *u.TxAntennaDelay
		}
		s.SetAntennaDelays(rx, tx)
	}
	if u.Diagnostic != nil {
		s.SetDiagnostic(*u.Diagnostic)
	}
	return nil
}
