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

// Register addresses carry the register file id in bits 16-20 and the byte
// offset inside the file in bits 0-6.
const (
	regDevID     = 0x00000
	regSysCfg    = 0x00010
	regTxFctrl   = 0x00024
	regDxTime    = 0x0002C
	regRxFwto    = 0x00034
	regSysStatus = 0x00044
	regRxFinfo   = 0x0004C
	regTxTime    = 0x00074
	regTxAntd    = 0x10004
	regAckResp   = 0x10008
	regChanCtrl  = 0x10014
	regDgcDbg    = 0x30060
	regPreToc    = 0x60004
	regCarInt    = 0x60029
	regOtpAddr   = 0xB0004
	regOtpCfg    = 0xB0008
	regOtpRdata  = 0xB0010
	regRxTime    = 0xC0000
	regIPDiag1   = 0xC002C // CIR power
	regIPDiag2   = 0xC0030 // F1
	regIPDiag3   = 0xC0034 // F2
	regIPDiag4   = 0xC0038 // F3
	regIPDiag12  = 0xC0058 // accumulated preamble symbols
	regCIAConf   = 0xE0000 // low 16 bits hold the RX antenna delay
	regRxBuffer  = 0x120000
	regTxBuffer  = 0x140000
)

// Fast commands
const (
	cmdTxRxOff = 0x00
	cmdTx      = 0x01
	cmdRx      = 0x02
	cmdDTx     = 0x03
	cmdTxW4R   = 0x0C
	cmdDTxW4R  = 0x0D
)

// SPI header bits
const (
	hdrWrite    = 0x80
	hdrExtended = 0x40
	hdrFastCmd  = 0x01
)

const (
	devIDMask   = 0xFFFF_FF00
	devIDDW3000 = 0xDECA_0300

	sysCfgRxWTOE     = 1 << 9
	txFctrlRanging   = 1 << 11
	txFctrlLenMask   = 0x3FF
	rxFinfoLenMask   = 0x3FF
	ackRespW4RMask   = 0xF_FFFF
	rxFwtoMask       = 0xF_FFFF
	carIntMask       = 0x1F_FFFF
	carIntSign       = 0x10_0000
	statusHPDWarnHi  = 0x08 // HPDWARN in the status register's fourth byte
	statusRCInit     = 1 << 24
	chanCtrlCh9      = 1 << 0
	chanCtrlTxPcode  = 3
	chanCtrlRxPcode  = 8
	chanCtrlPcodeMsk = 0x1F
	dgcDecisionShift = 28
	dgcDecisionMask  = 0x7
	cirPowerMask     = 0x1_FFFF
	firstPathMask    = 0x3F_FFFF
	accumCountMask   = 0xFFF

	otpManual   = 0x0001
	otpRead     = 0x0002
	otpPartID   = 0x06
	otpLotID    = 0x07
	fcsSize     = 2
	timestampSz = 5
)

// header encodes the transaction header for a register access. Offset zero
// uses the one byte short form, anything else the two byte extended form.
func header(reg uint32, write bool) []byte {
	file := byte(reg>>16) & 0x1F
	offset := byte(reg) & 0x7F
	var rw byte
	if write {
		rw = hdrWrite
	}
	if offset == 0 {
		return []byte{rw | file<<1}
	}
	return []byte{rw | hdrExtended | file<<1 | offset>>6, offset << 2}
}

// fastCommand encodes a single byte fast command
func fastCommand(cmd byte) byte {
	return hdrWrite | (cmd&0x1F)<<1 | hdrFastCmd
}
