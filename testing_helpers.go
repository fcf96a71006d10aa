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
	"sync"

	"github.com/ZaparooProject/go-uwb/internal/frame"
)

// MockRx is a frame the mock radio will receive
type MockRx struct {
	Data []byte
	// Timestamp is the local RX timestamp reported for the frame
	Timestamp Timestamp
	// Status, when nonzero, replaces the reception with these status bits
	// (e.g. StatusRXFTO or StatusRXPHE) and no frame is delivered
	Status StatusBits
	// CarrierIntegrator is reported by ReadCarrierIntegrator after this frame
	CarrierIntegrator int32
	// Diagnostics are reported by ReadDiagnostics after this frame
	Diagnostics CIRDiagnostics
}

// MockTx is a frame the engine transmitted through the mock
type MockTx struct {
	Data             []byte
	Timestamp        Timestamp
	At               uint32
	Delayed          bool
	ResponseExpected bool
}

// MockTransport is a scripted radio for tests. Received frames are queued
// with Enqueue and delivered one per armed reception; an armed reception with
// nothing queued ends in a frame wait timeout. Transmitted frames get the
// FCS the radio would append and are logged. OnTransmit lets a test play the
// peer by enqueueing its answer.
type MockTransport struct {
	OnTransmit   func(m *MockTransport, tx MockTx)
	rxQueue      []MockRx
	txLog        []MockTx
	clears       []StatusBits
	current      MockRx
	now          Timestamp
	txTimestamp  Timestamp
	lateCount    int
	rxAfterTx    uint32
	rxTimeout    uint32
	status       StatusBits
	armPreambles []uint16
	rxAntDelay   uint16
	txAntDelay   uint16
	preamble     uint16
	mu           sync.Mutex
	armed        bool
	closed       bool
	noAutoTxDone bool
	preambleCap  bool
}

// NewMockTransport creates a mock radio with default antenna delays
func NewMockTransport() *MockTransport {
	return &MockTransport{
		rxAntDelay: DefaultAntennaDelay,
		txAntDelay: DefaultAntennaDelay,
	}
}

// Enqueue appends frames to the reception queue
func (m *MockTransport) Enqueue(rx ...MockRx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxQueue = append(m.rxQueue, rx...)
}

// SetNow sets the local clock used as TX timestamp of immediate transmissions
func (m *MockTransport) SetNow(ts Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = ts & TimestampMask
}

// FailNextDelayed makes the next n delayed transmissions report late
func (m *MockTransport) FailNextDelayed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lateCount = n
}

// LatchStatus sets status bits as if the radio raised them
func (m *MockTransport) LatchStatus(bits StatusBits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status |= bits
}

// HoldTxDone stops transmissions from raising TXFRS
func (m *MockTransport) HoldTxDone(hold bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noAutoTxDone = hold
}

// Transmitted returns a copy of the transmission log
func (m *MockTransport) Transmitted() []MockTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockTx(nil), m.txLog...)
}

// Clears returns the masks passed to ClearStatus, in order
func (m *MockTransport) Clears() []StatusBits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusBits(nil), m.clears...)
}

// ClearCount counts ClearStatus calls whose mask equals bits
func (m *MockTransport) ClearCount(bits StatusBits) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.clears {
		if c == bits {
			n++
		}
	}
	return n
}

// Pending returns the number of queued receptions
func (m *MockTransport) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rxQueue)
}

// EnablePreambleTimeout makes the mock advertise CapabilityPreambleTimeout
func (m *MockTransport) EnablePreambleTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preambleCap = true
}

// ArmedPreambleTimeouts returns the preamble timeout in force at each
// ArmReceive, in order
func (m *MockTransport) ArmedPreambleTimeouts() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint16(nil), m.armPreambles...)
}

// RxSettings returns the last RX-after-TX delay and RX timeout
func (m *MockTransport) RxSettings() (delayUUS, timeoutUUS uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rxAfterTx, m.rxTimeout
}

func (m *MockTransport) transmit(data []byte, tx MockTx) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrTransportClosed
	}
	buf := append([]byte(nil), data...)
	if err := frame.Seal(buf); err != nil {
		m.mu.Unlock()
		return err
	}
	tx.Data = buf
	m.txTimestamp = tx.Timestamp
	m.txLog = append(m.txLog, tx)
	if !m.noAutoTxDone {
		m.status |= StatusTXFRS
	}
	if tx.ResponseExpected {
		m.armed = true
	}
	hook := m.OnTransmit
	m.mu.Unlock()

	if hook != nil {
		hook(m, tx)
	}
	return nil
}

// TransmitImmediate implements Transport
func (m *MockTransport) TransmitImmediate(data []byte, responseExpected bool) error {
	m.mu.Lock()
	now := m.now
	m.mu.Unlock()
	return m.transmit(data, MockTx{Timestamp: now, ResponseExpected: responseExpected})
}

// TransmitDelayed implements Transport
func (m *MockTransport) TransmitDelayed(data []byte, at uint32, responseExpected bool) error {
	m.mu.Lock()
	if m.lateCount > 0 {
		m.lateCount--
		m.status |= StatusHPDWARN
		m.mu.Unlock()
		return ErrTxLate
	}
	txTs := ScheduledTimestamp(at, m.txAntDelay)
	m.mu.Unlock()
	return m.transmit(data, MockTx{
		Timestamp:        txTs,
		At:               at,
		Delayed:          true,
		ResponseExpected: responseExpected,
	})
}

// ArmReceive implements Transport
func (m *MockTransport) ArmReceive(timeoutUUS uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrTransportClosed
	}
	m.rxTimeout = timeoutUUS
	m.armPreambles = append(m.armPreambles, m.preamble)
	m.armed = true
	return nil
}

// SetRxAfterTx implements Transport
func (m *MockTransport) SetRxAfterTx(delayUUS, timeoutUUS uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxAfterTx = delayUUS
	m.rxTimeout = timeoutUUS
	return nil
}

// deliver completes an armed reception; the caller holds the lock
func (m *MockTransport) deliver() {
	if !m.armed {
		return
	}
	m.armed = false
	if len(m.rxQueue) == 0 {
		m.status |= StatusRXFTO
		return
	}
	rx := m.rxQueue[0]
	m.rxQueue = m.rxQueue[1:]
	if rx.Status != 0 {
		m.status |= rx.Status
		return
	}
	m.current = rx
	if !frame.Verify(rx.Data) {
		m.status |= StatusRXFCE
		return
	}
	m.status |= StatusRXFR | StatusRXFCG
}

// ReadStatus implements Transport
func (m *MockTransport) ReadStatus() (StatusBits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrTransportClosed
	}
	m.deliver()
	return m.status, nil
}

// ClearStatus implements Transport
func (m *MockTransport) ClearStatus(bits StatusBits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears = append(m.clears, bits)
	m.status &^= bits
	return nil
}

// ReadTxTimestamp implements Transport
func (m *MockTransport) ReadTxTimestamp() (Timestamp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txTimestamp, nil
}

// ReadRxTimestamp implements Transport
func (m *MockTransport) ReadRxTimestamp() (Timestamp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Timestamp, nil
}

// FrameLength implements Transport
func (m *MockTransport) FrameLength() (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint16(len(m.current.Data)), nil
}

// ReadFrame implements Transport
func (m *MockTransport) ReadFrame(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(buf, m.current.Data)
	return nil
}

// ReadCarrierIntegrator implements Transport
func (m *MockTransport) ReadCarrierIntegrator() (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.CarrierIntegrator, nil
}

// SetAntennaDelay implements Transport
func (m *MockTransport) SetAntennaDelay(rx, tx uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxAntDelay = rx
	m.txAntDelay = tx
	return nil
}

// AntennaDelay implements Transport
func (m *MockTransport) AntennaDelay() (rx, tx uint16, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rxAntDelay, m.txAntDelay, nil
}

// ReadDiagnostics implements Transport
func (m *MockTransport) ReadDiagnostics() (CIRDiagnostics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Diagnostics, nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetPreambleTimeout implements PreambleTimeoutSetter
func (m *MockTransport) SetPreambleTimeout(pacs uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrTransportClosed
	}
	m.preamble = pacs
	return nil
}

// HasCapability implements TransportCapabilityChecker
func (m *MockTransport) HasCapability(capability TransportCapability) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return capability == CapabilityPreambleTimeout && m.preambleCap
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}
