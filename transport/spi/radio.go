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

package spi

import (
	"fmt"

	"github.com/ZaparooProject/go-uwb"
)

// TransmitImmediate implements uwb.Transport
func (t *Transport) TransmitImmediate(data []byte, responseExpected bool) error {
	if err := t.loadFrame(data); err != nil {
		return err
	}
	cmd := byte(cmdTx)
	if responseExpected {
		cmd = cmdTxW4R
	}
	return t.command(cmd)
}

// TransmitDelayed implements uwb.Transport. The radio raises HPDWARN when
// the requested time is already more than half a clock period away, in
// which case the transmission is aborted.
func (t *Transport) TransmitDelayed(data []byte, at uint32, responseExpected bool) error {
	if err := t.loadFrame(data); err != nil {
		return err
	}
	if err := t.write32(regDxTime, at); err != nil {
		return err
	}
	cmd := byte(cmdDTx)
	if responseExpected {
		cmd = cmdDTxW4R
	}
	if err := t.command(cmd); err != nil {
		return err
	}

	hi, err := t.read(regSysStatus+3, 1)
	if err != nil {
		return err
	}
	if hi[0]&statusHPDWarnHi == 0 {
		return nil
	}
	if err := t.command(cmdTxRxOff); err != nil {
		return err
	}
	return uwb.ErrTxLate
}

// loadFrame copies the frame without its checksum into the TX buffer; the
// radio appends the FCS itself.
func (t *Transport) loadFrame(data []byte) error {
	if len(data) <= fcsSize || len(data) > txFctrlLenMask {
		return fmt.Errorf("%w: frame length %d", uwb.ErrInvalidParameter, len(data))
	}
	if err := t.write(regTxBuffer, data[:len(data)-fcsSize]); err != nil {
		return err
	}
	return t.write32(regTxFctrl, uint32(len(data))|txFctrlRanging)
}

// ArmReceive implements uwb.Transport
func (t *Transport) ArmReceive(timeoutUUS uint32) error {
	if err := t.setFrameWaitTimeout(timeoutUUS); err != nil {
		return err
	}
	return t.command(cmdRx)
}

// SetRxAfterTx implements uwb.Transport
func (t *Transport) SetRxAfterTx(delayUUS, timeoutUUS uint32) error {
	ack, err := t.read32(regAckResp)
	if err != nil {
		return err
	}
	ack = ack&^ackRespW4RMask | delayUUS&ackRespW4RMask
	if err := t.write32(regAckResp, ack); err != nil {
		return err
	}
	return t.setFrameWaitTimeout(timeoutUUS)
}

func (t *Transport) setFrameWaitTimeout(timeoutUUS uint32) error {
	cfg, err := t.read32(regSysCfg)
	if err != nil {
		return err
	}
	if timeoutUUS == 0 {
		return t.write32(regSysCfg, cfg&^sysCfgRxWTOE)
	}
	if err := t.write32(regRxFwto, timeoutUUS&rxFwtoMask); err != nil {
		return err
	}
	return t.write32(regSysCfg, cfg|sysCfgRxWTOE)
}

// ReadTxTimestamp implements uwb.Transport
func (t *Transport) ReadTxTimestamp() (uwb.Timestamp, error) {
	b, err := t.read(regTxTime, timestampSz)
	if err != nil {
		return 0, err
	}
	return uwb.TimestampFromBytes(b), nil
}

// ReadRxTimestamp implements uwb.Transport
func (t *Transport) ReadRxTimestamp() (uwb.Timestamp, error) {
	b, err := t.read(regRxTime, timestampSz)
	if err != nil {
		return 0, err
	}
	return uwb.TimestampFromBytes(b), nil
}

// ReadStatus implements uwb.Transport
func (t *Transport) ReadStatus() (uwb.StatusBits, error) {
	s, err := t.read32(regSysStatus)
	return uwb.StatusBits(s), err
}

// ClearStatus implements uwb.Transport
func (t *Transport) ClearStatus(bits uwb.StatusBits) error {
	return t.write32(regSysStatus, uint32(bits))
}

// FrameLength implements uwb.Transport
func (t *Transport) FrameLength() (uint16, error) {
	info, err := t.read32(regRxFinfo)
	if err != nil {
		return 0, err
	}
	return uint16(info & rxFinfoLenMask), nil
}

// ReadFrame implements uwb.Transport
func (t *Transport) ReadFrame(buf []byte) error {
	b, err := t.read(regRxBuffer, len(buf))
	if err != nil {
		return err
	}
	copy(buf, b)
	return nil
}

// ReadCarrierIntegrator implements uwb.Transport
func (t *Transport) ReadCarrierIntegrator() (int32, error) {
	b, err := t.read(regCarInt, 3)
	if err != nil {
		return 0, err
	}
	v := (uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16) & carIntMask
	if v&carIntSign != 0 {
		v |= ^uint32(carIntMask)
	}
	return int32(v), nil
}

// SetAntennaDelay implements uwb.Transport
func (t *Transport) SetAntennaDelay(rx, tx uint16) error {
	if err := t.write16(regCIAConf, rx); err != nil {
		return err
	}
	return t.write16(regTxAntd, tx)
}

// AntennaDelay implements uwb.Transport
func (t *Transport) AntennaDelay() (rx, tx uint16, err error) {
	if rx, err = t.read16(regCIAConf); err != nil {
		return 0, 0, err
	}
	if tx, err = t.read16(regTxAntd); err != nil {
		return 0, 0, err
	}
	return rx, tx, nil
}

// ReadDiagnostics implements uwb.Transport
func (t *Transport) ReadDiagnostics() (uwb.CIRDiagnostics, error) {
	var cir uwb.CIRDiagnostics
	regs := []struct {
		dst  *uint32
		reg  uint32
		mask uint32
	}{
		{&cir.CIRPower, regIPDiag1, cirPowerMask},
		{&cir.F1, regIPDiag2, firstPathMask},
		{&cir.F2, regIPDiag3, firstPathMask},
		{&cir.F3, regIPDiag4, firstPathMask},
	}
	for _, r := range regs {
		v, err := t.read32(r.reg)
		if err != nil {
			return uwb.CIRDiagnostics{}, err
		}
		*r.dst = v & r.mask
	}

	accum, err := t.read32(regIPDiag12)
	if err != nil {
		return uwb.CIRDiagnostics{}, err
	}
	cir.AccumCount = uint16(accum & accumCountMask)

	dgc, err := t.read32(regDgcDbg)
	if err != nil {
		return uwb.CIRDiagnostics{}, err
	}
	cir.D = uint8((dgc >> dgcDecisionShift) & dgcDecisionMask)
	return cir, nil
}

// HardwareID implements uwb.HardwareIdentifier with the lot and part ids
// programmed into OTP at production.
func (t *Transport) HardwareID() (uint64, error) {
	lot, err := t.otpRead(otpLotID)
	if err != nil {
		return 0, err
	}
	part, err := t.otpRead(otpPartID)
	if err != nil {
		return 0, err
	}
	return uint64(lot)<<32 | uint64(part), nil
}

func (t *Transport) otpRead(addr uint16) (uint32, error) {
	if err := t.write16(regOtpCfg, otpManual); err != nil {
		return 0, err
	}
	if err := t.write16(regOtpAddr, addr); err != nil {
		return 0, err
	}
	if err := t.write16(regOtpCfg, otpRead); err != nil {
		return 0, err
	}
	v, err := t.read32(regOtpRdata)
	if err != nil {
		return 0, fmt.Errorf("otp read %#02x: %w", addr, err)
	}
	return v, nil
}

// SetPreambleTimeout implements uwb.PreambleTimeoutSetter
func (t *Transport) SetPreambleTimeout(pacs uint16) error {
	return t.write16(regPreToc, pacs)
}
