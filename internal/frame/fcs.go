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

package frame

import (
	"encoding/binary"
	"errors"

	"github.com/sigurn/crc16"
)

// ErrShortFrame is returned when a buffer cannot hold a header and FCS
var ErrShortFrame = errors.New("frame shorter than header and FCS")

// IEEE 802.15.4 uses the CRC-16/KERMIT polynomial for its 2 byte FCS
var fcsTable = crc16.MakeTable(crc16.CRC16_KERMIT)

// CalculateFCS computes the frame check sequence over data
func CalculateFCS(data []byte) uint16 {
	return crc16.Checksum(data, fcsTable)
}

// Seal writes the FCS of buf[:len(buf)-FCSSize] into the trailing FCS field.
// The radio normally appends the FCS itself; Seal is for host-side frames.
func Seal(buf []byte) error {
	if len(buf) < HeaderSize+FCSSize {
		return ErrShortFrame
	}
	body := len(buf) - FCSSize
	binary.LittleEndian.PutUint16(buf[body:], CalculateFCS(buf[:body]))
	return nil
}

// Verify reports whether the trailing FCS field matches the frame body
func Verify(buf []byte) bool {
	if len(buf) < HeaderSize+FCSSize {
		return false
	}
	body := len(buf) - FCSSize
	return binary.LittleEndian.Uint16(buf[body:]) == CalculateFCS(buf[:body])
}

// PutTimestamp stores a 32-bit timestamp at the given payload slot
func PutTimestamp(buf []byte, slot int, ts uint32) {
	off := OffsetPayload + slot*TimestampSize
	binary.LittleEndian.PutUint32(buf[off:off+TimestampSize], ts)
}

// Timestamp reads the 32-bit timestamp at the given payload slot
func Timestamp(buf []byte, slot int) uint32 {
	off := OffsetPayload + slot*TimestampSize
	return binary.LittleEndian.Uint32(buf[off : off+TimestampSize])
}

// FCS returns the raw trailing FCS field
func FCS(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf[len(buf)-FCSSize:])
}

// PutFCS stores a raw value in the trailing FCS field
func PutFCS(buf []byte, fcs uint16) {
	binary.LittleEndian.PutUint16(buf[len(buf)-FCSSize:], fcs)
}
