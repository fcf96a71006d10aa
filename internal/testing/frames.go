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

// Package testing builds raw peer frames and simulated peer clocks for tests
package testing

import "github.com/ZaparooProject/go-uwb/internal/frame"

// Message kind bytes for reference
const (
	KindPoll        = 0x00
	KindSsResponse  = 0x01
	KindDsResponse  = 0x02
	KindDsFinal     = 0x03
	KindSensing1    = 0x04
	KindSensing2    = 0x05
	KindSensing3    = 0x06
	KindSensingInfo = 0x07
)

// BuildFrame creates a sealed frame of the given length with the header set
// and timestamps stored in consecutive payload slots. Slots that do not fit
// are dropped, which makes it handy for wrong length frames.
func BuildFrame(length int, kind, seq, src, dst byte, timestamps ...uint32) []byte {
	if length < frame.HeaderSize+frame.FCSSize {
		length = frame.HeaderSize + frame.FCSSize
	}
	buf := make([]byte, length)
	buf[frame.OffsetKind] = kind
	buf[frame.OffsetSequence] = seq
	buf[frame.OffsetSource] = src
	buf[frame.OffsetDest] = dst
	for i, ts := range timestamps {
		if frame.OffsetPayload+(i+1)*frame.TimestampSize > length-frame.FCSSize {
			break
		}
		frame.PutTimestamp(buf, i, ts)
	}
	_ = frame.Seal(buf)
	return buf
}

// BuildSimple creates a header-only frame (poll, ds-response, sensing_1, sensing_2)
func BuildSimple(kind, seq, src, dst byte) []byte {
	return BuildFrame(frame.SimpleSize, kind, seq, src, dst)
}

// BuildSsResponse creates a single sided response carrying the responder's timestamps
func BuildSsResponse(seq, src, dst byte, pollRx, respTx uint32) []byte {
	return BuildFrame(frame.SsFinalSize, KindSsResponse, seq, src, dst, pollRx, respTx)
}

// BuildDsFinal creates a double sided final carrying the initiator's timestamps
func BuildDsFinal(seq, src, dst byte, pollTx, respRx, finalTx uint32) []byte {
	return BuildFrame(frame.DsFinalSize, KindDsFinal, seq, src, dst, pollTx, respRx, finalTx)
}

// BuildSensing creates a sensing_3 or sensing_info frame
func BuildSensing(kind, seq, src, dst byte, t1, t2, t3 uint32) []byte {
	return BuildFrame(frame.SensingSize, kind, seq, src, dst, t1, t2, t3)
}

// Corrupt flips a payload bit so the FCS no longer matches
func Corrupt(buf []byte) []byte {
	out := append([]byte(nil), buf...)
	out[frame.OffsetSequence] ^= 0x01
	return out
}
