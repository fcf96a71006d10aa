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

// Package frame provides the wire layout and frame check sequence for ranging frames
package frame

// Field sizes in bytes
const (
	HeaderSize    = 4 // kind + sequence + source + dest
	TimestampSize = 4 // 32-bit truncated DTU timestamp
	FCSSize       = 2 // trailing frame check sequence
)

// Frame sizes - every ranging frame has a fixed length
const (
	SimpleSize  = HeaderSize + FCSSize                   // poll, ds-response, sensing 1/2
	SsFinalSize = HeaderSize + 2*TimestampSize + FCSSize // ss-response
	DsFinalSize = HeaderSize + 3*TimestampSize + FCSSize // ds-final
	SensingSize = HeaderSize + 3*TimestampSize + FCSSize // sensing 3 and sensing info
)

// Header field offsets
const (
	OffsetKind     = 0
	OffsetSequence = 1
	OffsetSource   = 2
	OffsetDest     = 3
	OffsetPayload  = HeaderSize
)

// MaxFrameLength is the largest PSDU a standard PHY header can describe
const MaxFrameLength = 127
