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
)

// Transport defines the radio operations the ranging engine consumes.
// It is implemented by the SPI register backend and by test doubles.
//
// All timing arguments are in the radio's own units: delays and timeouts in
// UWB microseconds (UUS) and scheduled transmit times as the upper 32 bits of
// a 40-bit DTU value, matching the delayed TX/RX register.
type Transport interface {
	// TransmitImmediate writes data to the TX buffer and starts sending at once.
	// When responseExpected is set the receiver is enabled after the
	// configured RX-after-TX delay.
	TransmitImmediate(data []byte, responseExpected bool) error

	// TransmitDelayed schedules data for transmission at the given DTU>>8 time.
	// It returns ErrTxLate when the radio reports the deadline already passed.
	TransmitDelayed(data []byte, at uint32, responseExpected bool) error

	// ArmReceive enables the receiver now; timeout of 0 disables the timeout
	ArmReceive(timeoutUUS uint32) error

	// SetRxAfterTx configures the delay between TX end and RX enable and the RX timeout
	SetRxAfterTx(delayUUS, timeoutUUS uint32) error

	// ReadTxTimestamp returns the 40-bit timestamp of the last transmitted frame
	ReadTxTimestamp() (Timestamp, error)

	// ReadRxTimestamp returns the 40-bit timestamp of the last received frame
	ReadRxTimestamp() (Timestamp, error)

	// ReadStatus returns the low 32 bits of the system status register
	ReadStatus() (StatusBits, error)

	// ClearStatus clears the given status bits (write-one-to-clear)
	ClearStatus(bits StatusBits) error

	// FrameLength returns the length in bytes of the last received frame including FCS
	FrameLength() (uint16, error)

	// ReadFrame copies the last received frame into buf
	ReadFrame(buf []byte) error

	// ReadCarrierIntegrator returns the signed carrier recovery integrator
	ReadCarrierIntegrator() (int32, error)

	// SetAntennaDelay programs the RX and TX antenna delays in DTU
	SetAntennaDelay(rx, tx uint16) error

	// AntennaDelay returns the programmed RX and TX antenna delays
	AntennaDelay() (rx, tx uint16, err error)

	// ReadDiagnostics returns the channel impulse response statistics of the last frame
	ReadDiagnostics() (CIRDiagnostics, error)

	// Close releases the bus
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSPI represents a radio attached over an SPI bus.
	TransportSPI TransportType = "spi"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// StatusBits mirrors the low word of the radio system status register
type StatusBits uint32

// System status bits
const (
	StatusIRQ     StatusBits = 1 << 0  // interrupt request
	StatusTXFRS   StatusBits = 1 << 7  // transmit frame sent
	StatusRXPHE   StatusBits = 1 << 12 // PHY header error
	StatusRXFR    StatusBits = 1 << 13 // frame ready
	StatusRXFCG   StatusBits = 1 << 14 // frame checksum good
	StatusRXFCE   StatusBits = 1 << 15 // frame checksum error
	StatusRXFSL   StatusBits = 1 << 16 // Reed-Solomon sync loss
	StatusRXFTO   StatusBits = 1 << 17 // frame wait timeout
	StatusCIAERR  StatusBits = 1 << 18 // CIA error
	StatusRXPTO   StatusBits = 1 << 21 // preamble detection timeout
	StatusSPIRDY  StatusBits = 1 << 23 // SPI ready
	StatusRCINIT  StatusBits = 1 << 24 // idle RC reached
	StatusRXSTO   StatusBits = 1 << 26 // SFD timeout
	StatusHPDWARN StatusBits = 1 << 27 // half period delay warning, delayed TX late
	StatusCPERR   StatusBits = 1 << 28 // STS error
	StatusARFE    StatusBits = 1 << 29 // frame filter rejection
)

// Grouped status masks
const (
	StatusAllRxTimeout = StatusRXFTO | StatusRXPTO | StatusCPERR
	StatusAllRxError   = StatusRXPHE | StatusRXFCE | StatusRXFSL | StatusRXSTO | StatusARFE | StatusCIAERR
	StatusAllRxDone    = StatusRXFCG | StatusAllRxTimeout | StatusAllRxError
)

// Has reports whether any of mask is set
func (s StatusBits) Has(mask StatusBits) bool {
	return s&mask != 0
}

var statusNames = []struct {
	name string
	bit  StatusBits
}{
	{"TXFRS", StatusTXFRS},
	{"RXPHE", StatusRXPHE},
	{"RXFR", StatusRXFR},
	{"RXFCG", StatusRXFCG},
	{"RXFCE", StatusRXFCE},
	{"RXFSL", StatusRXFSL},
	{"RXFTO", StatusRXFTO},
	{"CIAERR", StatusCIAERR},
	{"RXPTO", StatusRXPTO},
	{"RXSTO", StatusRXSTO},
	{"HPDWARN", StatusHPDWARN},
	{"CPERR", StatusCPERR},
	{"ARFE", StatusARFE},
}

// String renders the register value with the names of the interesting bits set
func (s StatusBits) String() string {
	var names []string
	for _, n := range statusNames {
		if s&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("0x%08x", uint32(s))
	}
	return fmt.Sprintf("0x%08x(%s)", uint32(s), strings.Join(names, "|"))
}
