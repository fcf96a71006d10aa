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
	"math"
)

// Signal level constants from the DW3000 user manual
const (
	alphaPRF16 = 113.8
	alphaPRF64 = 120.7
	// logConstantC0 is 10*log10(2^21)
	logConstantC0 = 63.2
	// NLOSThresholdDB is the received minus first path level above which a frame is NLOS
	NLOSThresholdDB = 12
	// rxCodeThreshold is the highest preamble code of the 16 MHz PRF set
	rxCodeThreshold = 8
)

// NLOS percentages reported in DiagnosticInfo
const (
	LineOfSight    uint8 = 0
	NonLineOfSight uint8 = 100
)

// CIRDiagnostics are the raw Ipatov channel impulse response statistics of one frame
type CIRDiagnostics struct {
	AccumCount uint16 // preamble symbols accumulated
	F1         uint32 // first path amplitude point 1, 2 fractional bits
	F2         uint32 // first path amplitude point 2, 2 fractional bits
	F3         uint32 // first path amplitude point 3, 2 fractional bits
	CIRPower   uint32
	D          uint8 // DGC decision
}

// DiagnosticInfo is the signal quality summary of the last received frame
type DiagnosticInfo struct {
	NLOS uint8   // 0 or 100
	RSSI float32 // received signal level in dBm
	FPI  float32 // first path signal level in dBm
}

// PRF64 reports whether a preamble code belongs to the 64 MHz PRF set
func PRF64(rxCode uint8) bool {
	return rxCode > rxCodeThreshold
}

// ComputeDiagnostic converts raw CIR statistics into received and first path
// signal levels and classifies the frame.
func ComputeDiagnostic(cir CIRDiagnostics, prf64 bool) (DiagnosticInfo, error) {
	if cir.AccumCount == 0 {
		return DiagnosticInfo{}, fmt.Errorf("compute diagnostic: %w: zero accumulation count", ErrInvalidParameter)
	}

	alpha := -alphaPRF16
	if prf64 {
		alpha = -(alphaPRF64 + 1)
	}

	// the amplitudes are truncated to integers before squaring
	f1 := float64(cir.F1 / 4)
	f2 := float64(cir.F2 / 4)
	f3 := float64(cir.F3 / 4)
	n := float64(cir.AccumCount)
	// DGC correction is carried in a byte
	d := float64(cir.D * 6)

	n *= n
	f1 *= f1
	f2 *= f2
	f3 *= f3

	rsl := 10*math.Log10(float64(cir.CIRPower)/n) + alpha + logConstantC0 + d
	fsl := 10*math.Log10((f1+f2+f3)/n) + alpha + d

	rssi := float32(rsl)
	fpi := float32(fsl)
	info := DiagnosticInfo{
		NLOS: ClassifyNLOS(rssi, fpi),
		RSSI: rssi,
		FPI:  fpi,
	}
	debugf("diagnostic rssi=%.2f fpi=%.2f nlos=%d", info.RSSI, info.FPI, info.NLOS)
	return info, nil
}

// ClassifyNLOS returns NonLineOfSight when rssi exceeds fpi by strictly more than
// NLOSThresholdDB and LineOfSight otherwise.
func ClassifyNLOS(rssi, fpi float32) uint8 {
	if rssi-fpi > NLOSThresholdDB {
		return NonLineOfSight
	}
	return LineOfSight
}
