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

package ranging

// Exchange timing in UWB microseconds (1 uus = 512/499.2 us). The RX-after-TX
// delays open the receiver shortly before the peer's scheduled reply; the
// reply delays leave the host time to build and load the frame.
const (
	// single sided
	SSPollTxToRespRxUUS = 240
	SSPollRxToRespTxUUS = 1200
	SSRespRxTimeoutUUS  = 1200

	// double sided, initiator
	DSPollTxToRespRxUUS  = 750
	DSRespRxToFinalTxUUS = 750
	DSRespRxTimeoutUUS   = 1150

	// double sided, responder
	DSPollRxToRespTxUUS  = 900
	DSRespTxToFinalRxUUS = 600
	DSFinalRxTimeoutUUS  = 1200

	// calibration handshake
	CalibReplyUUS          = 900
	CalibTxToRxUUS         = 600
	CalibRxTimeoutUUS      = 1200
	CalibObserveTimeoutUUS = 5000
)

// PreambleTimeoutPACs bounds preamble detection on the double sided legs
const PreambleTimeoutPACs = 5
