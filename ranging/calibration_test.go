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

import (
	"testing"

	"github.com/ZaparooProject/go-uwb"
	"github.com/ZaparooProject/go-uwb/internal/frame"
	testutil "github.com/ZaparooProject/go-uwb/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A handshake between A (id 1) and B (id 100) whose double sided intervals
// give a time of flight of 1000 DTU.
var (
	// a1 a2 a3: Ra 52000, Da 60000
	handshakeA = [3]uint32{1_000, 53_000, 113_000}
	// b1 b2 b3: Db 50000, Rb 62000
	handshakeB = [3]uint32{500_000, 550_000, 612_000}
	handshakeC = [4]uwb.Timestamp{10_000, 70_000, 130_000, 200_000}
)

func handshakeFrames(seq byte) []uwb.MockRx {
	return []uwb.MockRx{
		{Data: testutil.BuildSimple(testutil.KindSensing1, seq, 1, 100), Timestamp: handshakeC[0]},
		{Data: testutil.BuildSimple(testutil.KindSensing2, seq, 100, 1), Timestamp: handshakeC[1]},
		{
			Data: testutil.BuildSensing(testutil.KindSensing3, seq, 1, 100,
				handshakeA[0], handshakeA[1], handshakeA[2]),
			Timestamp: handshakeC[2],
		},
		{
			Data: testutil.BuildSensing(testutil.KindSensingInfo, seq, 100, 1,
				handshakeB[0], handshakeB[1], handshakeB[2]),
			Timestamp: handshakeC[3],
		},
	}
}

func TestCalibC(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleCalibC, uwb.MeasurementCalibration, 7)
	node.mock.Enqueue(handshakeFrames(0)...)
	node.settings.Start()

	require.NoError(t, node.runner.Step())

	assert.Empty(t, node.mock.Transmitted(), "the observer never transmits")
	got := node.sink.Calibrations()
	require.Len(t, got, 1)
	n := got[0]
	assert.Equal(t, uwb.DSIntervals{Ra: 52_000, Rb: 62_000, Da: 60_000, Db: 50_000}, n.Intervals.DSIntervals)
	assert.Equal(t, uint32(60_000), n.Intervals.C1)
	assert.Equal(t, uint32(60_000), n.Intervals.C2)
	assert.Equal(t, int64(1000), n.TimeOfFlight)
	assert.InDelta(t, 1000*uwb.DTUSeconds*uwb.SpeedOfLight, n.Distance, 1e-9)
	assert.Equal(t, uint32(1), n.Measurement)
	assert.Empty(t, node.sink.Distances())
}

func TestCalibC_Incomplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		edit func([]uwb.MockRx) []uwb.MockRx
		name string
	}{
		{
			name: "sensing_info missing",
			edit: func(rx []uwb.MockRx) []uwb.MockRx { return rx[:3] },
		},
		{
			name: "sensing_3 from another handshake",
			edit: func(rx []uwb.MockRx) []uwb.MockRx {
				rx[2].Data = testutil.BuildSensing(testutil.KindSensing3, 9, 1, 100, 1, 2, 3)
				return rx
			},
		},
		{
			name: "sensing_2 out of order",
			edit: func(rx []uwb.MockRx) []uwb.MockRx {
				return []uwb.MockRx{rx[0], rx[2], rx[1], rx[3]}
			},
		},
		{
			name: "corrupted sensing_info",
			edit: func(rx []uwb.MockRx) []uwb.MockRx {
				rx[3].Data = testutil.Corrupt(rx[3].Data)
				return rx
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node := newTestNode(t, uwb.RoleCalibC, uwb.MeasurementCalibration, 7)
			node.mock.Enqueue(tt.edit(handshakeFrames(0))...)
			node.settings.Start()

			require.NoError(t, node.runner.Step())
			assert.Empty(t, node.sink.Calibrations())
			assert.Equal(t, int64(1), node.runner.GetMetrics().Failures)
			assert.Equal(t, 1, node.mock.ClearCount(uwb.StatusAllRxTimeout|uwb.StatusAllRxError))
		})
	}
}

func TestCalibA(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleCalibA, uwb.MeasurementCalibration, 1)
	a1 := uwb.Timestamp(0x02_0000_0000)
	a2 := a1 + 3_000_000
	node.mock.SetNow(a1)
	node.mock.OnTransmit = func(m *uwb.MockTransport, tx uwb.MockTx) {
		if tx.Data[frame.OffsetKind] != testutil.KindSensing1 {
			return
		}
		m.Enqueue(uwb.MockRx{
			Data:      testutil.BuildSimple(testutil.KindSensing2, tx.Data[1], 100, 1),
			Timestamp: a2,
		})
	}
	node.settings.Start()

	require.NoError(t, node.runner.Step())

	sent := node.mock.Transmitted()
	require.Len(t, sent, 2)
	assert.Equal(t, byte(testutil.KindSensing1), sent[0].Data[frame.OffsetKind])
	assert.Equal(t, byte(100), sent[0].Data[frame.OffsetDest])
	assert.True(t, sent[0].ResponseExpected)

	f, err := uwb.Decode(uwb.KindSensing3, sent[1].Data)
	require.NoError(t, err)
	s3, ok := f.(*uwb.SensingFrame)
	require.True(t, ok)
	assert.Equal(t, uint32(a1), s3.T1)
	assert.Equal(t, uint32(a2), s3.T2)
	assert.Equal(t, uint32(sent[1].Timestamp), s3.T3)
	assert.Equal(t, uwb.ScheduleAfter(a2, CalibReplyUUS), sent[1].At)

	assert.Equal(t, uint32(1), node.settings.Measurements())
	assert.Empty(t, node.sink.Calibrations(), "only the observer reports")
}

func TestCalibB(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleCalibB, uwb.MeasurementCalibration, 100)
	b1 := uwb.Timestamp(0x07_1000_0000)
	b3 := b1 + 5_000_000
	node.mock.Enqueue(uwb.MockRx{
		Data:      testutil.BuildSimple(testutil.KindSensing1, 3, 1, 100),
		Timestamp: b1,
	})
	node.mock.OnTransmit = func(m *uwb.MockTransport, tx uwb.MockTx) {
		if tx.Data[frame.OffsetKind] != testutil.KindSensing2 {
			return
		}
		m.Enqueue(uwb.MockRx{
			Data:      testutil.BuildSensing(testutil.KindSensing3, tx.Data[1], 1, 100, 11, 22, 33),
			Timestamp: b3,
		})
	}
	node.settings.Start()

	require.NoError(t, node.runner.Step())

	sent := node.mock.Transmitted()
	require.Len(t, sent, 2)
	assert.True(t, sent[0].Delayed)
	assert.True(t, sent[0].ResponseExpected)
	assert.Equal(t, uwb.ScheduleAfter(b1, CalibReplyUUS), sent[0].At)

	f, err := uwb.Decode(uwb.KindSensingInfo, sent[1].Data)
	require.NoError(t, err)
	info, ok := f.(*uwb.SensingFrame)
	require.True(t, ok)
	assert.Equal(t, uwb.Header{Kind: uwb.KindSensingInfo, Sequence: 3, Source: 100, Dest: 1}, info.Header)
	assert.Equal(t, uint32(b1), info.T1)
	assert.Equal(t, uint32(sent[0].Timestamp), info.T2)
	assert.Equal(t, uint32(b3), info.T3)
	assert.Equal(t, uint32(1), node.settings.Measurements())
}

func TestCalibB_IgnoresOtherNodes(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleCalibB, uwb.MeasurementCalibration, 100)
	node.mock.Enqueue(uwb.MockRx{Data: testutil.BuildSimple(testutil.KindSensing1, 3, 1, 101)})
	node.settings.Start()

	require.NoError(t, node.runner.Step())
	assert.Empty(t, node.mock.Transmitted())
	assert.Zero(t, node.settings.Measurements())
}
