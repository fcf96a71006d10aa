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
)

// Framing errors
var (
	ErrFrameLength = errors.New("unexpected frame length")
	ErrFrameKind   = errors.New("unexpected message kind")
	ErrFrameDest   = errors.New("frame addressed to another device")
)

// Radio errors
var (
	ErrRxTimeout   = errors.New("receive timeout")
	ErrRxError     = errors.New("receive error")
	ErrTxLate      = errors.New("delayed transmit too late")
	ErrWaitTimeout = errors.New("status wait timeout")
)

// Transport and usage errors
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrTransportClosed  = errors.New("transport closed")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrNotSupported     = errors.New("not supported by transport")
)

// ErrorType classifies a failure for the recovery policy
type ErrorType int

const (
	// ErrorTypeFraming is a wrong kind, length or destination on receive
	ErrorTypeFraming ErrorType = iota
	// ErrorTypeRadio is a hardware reported RX timeout or RX error
	ErrorTypeRadio
	// ErrorTypeLate is a delayed transmission that missed its deadline
	ErrorTypeLate
	// ErrorTypeTransport is a bus level failure talking to the radio
	ErrorTypeTransport
	// ErrorTypeFatal is a failure the ranging loop cannot recover from
	ErrorTypeFatal
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeFraming:
		return "framing"
	case ErrorTypeRadio:
		return "radio"
	case ErrorTypeLate:
		return "late"
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// RadioError carries the operation and status register snapshot of a failed exchange step
type RadioError struct {
	Err    error
	Op     string
	Type   ErrorType
	Status StatusBits
}

func (e *RadioError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %v (status %s)", e.Op, e.Err, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RadioError) Unwrap() error {
	return e.Err
}

// NewRadioError creates a RadioError, deriving its type from err
func NewRadioError(op string, err error, status StatusBits) *RadioError {
	return &RadioError{
		Op:     op,
		Err:    err,
		Type:   GetErrorType(err),
		Status: status,
	}
}

// IsRecoverable reports whether the ranging loop should abandon the round and
// carry on with the next attempt. Framing, radio and late errors are
// recoverable; transport and fatal errors are not.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	switch GetErrorType(err) {
	case ErrorTypeFraming, ErrorTypeRadio, ErrorTypeLate:
		return true
	default:
		return false
	}
}

// GetErrorType returns the classification of err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypeFatal
	}

	var re *RadioError
	if errors.As(err, &re) {
		return re.Type
	}

	switch {
	case errors.Is(err, ErrFrameLength), errors.Is(err, ErrFrameKind), errors.Is(err, ErrFrameDest):
		return ErrorTypeFraming
	case errors.Is(err, ErrRxTimeout), errors.Is(err, ErrRxError), errors.Is(err, ErrWaitTimeout):
		return ErrorTypeRadio
	case errors.Is(err, ErrTxLate):
		return ErrorTypeLate
	case errors.Is(err, ErrTransportClosed):
		return ErrorTypeTransport
	default:
		return ErrorTypeFatal
	}
}
