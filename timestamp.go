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

// Timing constants of the DW3000 family
const (
	// DTUSeconds is the length of one device time unit (1 / (499.2 MHz * 128)), about 15.65 ps
	DTUSeconds = 1.0 / 499.2e6 / 128.0

	// SpeedOfLight is the propagation speed used for distance conversion in m/s
	SpeedOfLight = 299702547.0

	// UUSToDTU converts UWB microseconds to device time units
	UUSToDTU = 65536

	// DefaultAntennaDelay is the factory antenna delay for 64 MHz PRF in DTU
	DefaultAntennaDelay uint16 = 16385

	// TimestampBits is the width of radio timestamps
	TimestampBits = 40

	// TimestampMask keeps the 40 significant bits of a timestamp
	TimestampMask Timestamp = 1<<TimestampBits - 1

	// txTimeAlignMask clears the lowest bit of a delayed TX time, which the radio cannot program
	txTimeAlignMask uint32 = 0xFFFFFFFE
)

// Timestamp is a 40-bit radio timestamp in device time units held in 64 bits
type Timestamp uint64

// TimestampFromBytes assembles a 40-bit little endian register value
func TimestampFromBytes(b []byte) Timestamp {
	var ts Timestamp
	for i := len(b) - 1; i >= 0; i-- {
		ts <<= 8
		ts |= Timestamp(b[i])
	}
	return ts & TimestampMask
}

// Truncate returns the low 32 bits as carried in ranging frames
func (t Timestamp) Truncate() uint32 {
	return uint32(t)
}

// Sub returns t - earlier modulo 2^40, the elapsed DTU between two local timestamps
func (t Timestamp) Sub(earlier Timestamp) uint64 {
	return uint64((t - earlier) & TimestampMask)
}

// Seconds converts the timestamp to seconds of device time
func (t Timestamp) Seconds() float64 {
	return float64(t) * DTUSeconds
}

// ScheduleAfter returns the delayed TX register value (DTU >> 8) for a
// transmission delayUUS after ts.
func ScheduleAfter(ts Timestamp, delayUUS uint32) uint32 {
	return uint32((uint64(ts) + uint64(delayUUS)*UUSToDTU) >> 8)
}

// ScheduledTimestamp predicts the TX timestamp the radio will report for a
// frame sent at the delayed TX register value txTime. The unprogrammable LSB
// is cleared and the TX antenna delay is added.
func ScheduledTimestamp(txTime uint32, antennaDelay uint16) Timestamp {
	return (Timestamp(txTime&txTimeAlignMask)<<8 + Timestamp(antennaDelay)) & TimestampMask
}

// Interval returns later - earlier on 32-bit truncated timestamps.
// The subtraction wraps, which is correct for any interval below 2^32 DTU.
func Interval(later, earlier uint32) uint32 {
	return later - earlier
}
