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

import "fmt"

// Channel is a UWB channel number
type Channel uint8

// Supported channels
const (
	Channel5 Channel = 5
	Channel9 Channel = 9
)

// Carrier integrator scaling
const (
	// FreqOffsetMultiplier converts the carrier integrator to Hz at 6.8 Mbps
	FreqOffsetMultiplier = 998.4e6 / 2.0 / 1024.0 / 131072.0

	hertzToPPMChannel5 = -1.0e6 / 6489.6e6
	hertzToPPMChannel9 = -1.0e6 / 7987.2e6
)

// HertzToPPM returns the Hz to ppm multiplier of the channel's carrier frequency
func (c Channel) HertzToPPM() float64 {
	if c == Channel5 {
		return hertzToPPMChannel5
	}
	return hertzToPPMChannel9
}

// Validate checks that c is a supported channel
func (c Channel) Validate() error {
	if c != Channel5 && c != Channel9 {
		return fmt.Errorf("%w: channel %d", ErrInvalidParameter, c)
	}
	return nil
}

// ClockOffsetRatio converts a carrier integrator reading to the ratio between
// the remote and local clock rates.
func ClockOffsetRatio(integrator int32, ch Channel) float64 {
	return float64(integrator) * (FreqOffsetMultiplier * ch.HertzToPPM() / 1.0e6)
}

// SSTimestamps holds the four timestamps of a single sided exchange. The
// local ones are full 40-bit values; the remote ones come from the response
// frame and are truncated to 32 bits.
type SSTimestamps struct {
	PollTx Timestamp
	RespRx Timestamp
	PollRx uint32
	RespTx uint32
}

// Round is the initiator round trip in DTU
func (s SSTimestamps) Round() uint64 {
	return s.RespRx.Sub(s.PollTx)
}

// Reply is the responder turnaround in DTU
func (s SSTimestamps) Reply() uint32 {
	return Interval(s.RespTx, s.PollRx)
}

// SSTimeOfFlight returns the single sided time of flight in seconds:
// ((round - reply*(1-clockOffsetRatio)) / 2) * DTU.
func SSTimeOfFlight(round uint64, reply uint32, clockOffsetRatio float64) float64 {
	return ((float64(round) - float64(reply)*(1-clockOffsetRatio)) / 2.0) * DTUSeconds
}

// DSIntervals are the four intervals of a three message double sided exchange
type DSIntervals struct {
	Ra uint32 // initiator round: resp_rx - poll_tx
	Rb uint32 // responder round: final_rx - resp_tx
	Da uint32 // initiator reply: final_tx - resp_rx
	Db uint32 // responder reply: resp_tx - poll_rx
}

// DSTimestamps holds the six timestamps of a double sided exchange truncated to 32 bits
type DSTimestamps struct {
	PollTx  uint32
	PollRx  uint32
	RespTx  uint32
	RespRx  uint32
	FinalTx uint32
	FinalRx uint32
}

// Intervals derives the DS-TWR intervals with wrapping 32-bit subtraction
func (d DSTimestamps) Intervals() DSIntervals {
	return DSIntervals{
		Ra: Interval(d.RespRx, d.PollTx),
		Rb: Interval(d.FinalRx, d.RespTx),
		Da: Interval(d.FinalTx, d.RespRx),
		Db: Interval(d.RespTx, d.PollRx),
	}
}

// TimeOfFlightDTU returns (Ra*Rb - Da*Db) / (Ra+Rb+Da+Db) truncated toward zero
func (i DSIntervals) TimeOfFlightDTU() int64 {
	ra, rb := float64(i.Ra), float64(i.Rb)
	da, db := float64(i.Da), float64(i.Db)
	sum := ra + rb + da + db
	if sum == 0 {
		return 0
	}
	return int64((ra*rb - da*db) / sum)
}

// TimeOfFlight returns the double sided time of flight in seconds
func (i DSIntervals) TimeOfFlight() float64 {
	return float64(i.TimeOfFlightDTU()) * DTUSeconds
}

// Distance converts a time of flight in seconds to meters
func Distance(tof float64) float64 {
	return tof * SpeedOfLight
}

// SSDistance computes the single sided distance in meters
func SSDistance(ts SSTimestamps, clockOffsetRatio float64) float64 {
	return Distance(SSTimeOfFlight(ts.Round(), ts.Reply(), clockOffsetRatio))
}

// DSDistance computes the double sided distance in meters
func DSDistance(i DSIntervals) float64 {
	return Distance(i.TimeOfFlight())
}
