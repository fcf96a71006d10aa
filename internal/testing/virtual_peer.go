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

package testing

import "math"

const (
	timestampMask = 1<<40 - 1
	// DTUPerMeter is how many device time units light needs for one meter
	DTUPerMeter = 499.2e6 * 128.0 / 299702547.0
)

// VirtualPeer is a simulated remote radio. Its clock runs at (1+Drift) times
// the local rate and is shifted by Offset; both wrap at 40 bits. A signal
// takes TofDTU local ticks to travel between the two radios.
type VirtualPeer struct {
	Offset uint64
	Drift  float64
	TofDTU uint64
	ID     byte
}

// NewVirtualPeer creates a peer at the given distance in meters
func NewVirtualPeer(id byte, meters float64) *VirtualPeer {
	return &VirtualPeer{
		ID:     id,
		TofDTU: uint64(math.Round(meters * DTUPerMeter)),
		Offset: 0x12_3456_7800,
	}
}

// Remote converts a local clock reading to the peer's clock
func (p *VirtualPeer) Remote(local uint64) uint64 {
	scaled := uint64(math.Round(float64(local) * (1 + p.Drift)))
	return (scaled + p.Offset) & timestampMask
}

// Local converts a span of the peer's clock to local ticks
func (p *VirtualPeer) Local(remoteSpan uint64) uint64 {
	return uint64(math.Round(float64(remoteSpan) / (1 + p.Drift)))
}

// Receive returns the peer's RX timestamp for a frame sent locally at localTx
func (p *VirtualPeer) Receive(localTx uint64) uint64 {
	return p.Remote(localTx + p.TofDTU)
}

// Reply returns the local RX timestamp of a frame the peer sends replyDTU
// peer ticks after it received a frame sent locally at localTx. Local values
// are not wrapped so the peer clock stays continuous; callers truncate.
func (p *VirtualPeer) Reply(localTx, replyDTU uint64) uint64 {
	return localTx + 2*p.TofDTU + p.Local(replyDTU)
}
