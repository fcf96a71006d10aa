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

func TestSSInitiator_Sweep(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleInitiator, uwb.MeasurementSSTWR, 1)
	node.mock.SetNow(0x20_0000_0000)
	peers := map[uint8]*testutil.VirtualPeer{
		100: testutil.NewVirtualPeer(100, 5),
		101: testutil.NewVirtualPeer(101, 12.5),
	}
	node.mock.OnTransmit = answerPolls(peers, nil)
	require.NoError(t, node.settings.SetResponderCount(2))
	node.settings.Start()

	require.NoError(t, node.runner.Step())

	sent := node.mock.Transmitted()
	require.Len(t, sent, 2)
	for i, tx := range sent {
		assert.Equal(t, byte(uwb.KindPoll), tx.Data[frame.OffsetKind])
		assert.Equal(t, byte(0), tx.Data[frame.OffsetSequence])
		assert.Equal(t, byte(1), tx.Data[frame.OffsetSource])
		assert.Equal(t, byte(100+i), tx.Data[frame.OffsetDest])
		assert.True(t, tx.ResponseExpected)
	}

	got := node.sink.Distances()
	require.Len(t, got, 2)
	assert.Equal(t, uint8(100), got[0].Responder)
	assert.InDelta(t, 5, got[0].Distance, 0.01)
	assert.Equal(t, uint8(101), got[1].Responder)
	assert.InDelta(t, 12.5, got[1].Distance, 0.01)
	assert.Equal(t, uint64(replyDTU), got[0].Reply)
	assert.Greater(t, got[0].Round, got[0].Reply)
	assert.Equal(t, uwb.RoleInitiator, got[0].Role)

	assert.Equal(t, uint32(1), node.settings.Sequence(), "one increment per sweep")
	delay, timeout := node.mock.RxSettings()
	assert.Equal(t, uint32(SSPollTxToRespRxUUS), delay)
	assert.Equal(t, uint32(SSRespRxTimeoutUUS), timeout)
}

func TestSSInitiator_CarrierOffset(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleInitiator, uwb.MeasurementSSTWR, 1)
	peer := testutil.NewVirtualPeer(100, 8)
	peer.Drift = 10e-6
	// the integrator reading whose correction matches the drift
	integrator := int32(peer.Drift / (uwb.FreqOffsetMultiplier * uwb.Channel9.HertzToPPM() / 1e6))
	node.mock.OnTransmit = func(m *uwb.MockTransport, tx uwb.MockTx) {
		pollTx := uint64(tx.Timestamp)
		pollRx := peer.Receive(pollTx)
		respTx := pollRx + replyDTU
		m.Enqueue(uwb.MockRx{
			Data: testutil.BuildSsResponse(tx.Data[1], tx.Data[3], tx.Data[2],
				uint32(pollRx), uint32(respTx)),
			Timestamp:         uwb.Timestamp(peer.Reply(pollTx, replyDTU)) & uwb.TimestampMask,
			CarrierIntegrator: integrator,
		})
	}
	node.settings.Start()

	require.NoError(t, node.runner.Step())

	got := node.sink.Distances()
	require.Len(t, got, 1)
	// uncorrected, 10 ppm over the reply is almost 2 m of error
	assert.InDelta(t, 8, got[0].Distance, 0.1)
}

func TestSSInitiator_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate     func([]byte) []byte
		name       string
		wantClears int
	}{
		{
			name: "wrong sequence",
			mutate: func(b []byte) []byte {
				return testutil.BuildSsResponse(b[1]+1, b[2], b[3], 0, 0)
			},
			wantClears: 1,
		},
		{
			name: "reply from another responder",
			mutate: func(b []byte) []byte {
				return testutil.BuildSsResponse(b[1], 150, b[3], 0, 0)
			},
			wantClears: 1,
		},
		{
			name:       "bad checksum",
			mutate:     testutil.Corrupt,
			wantClears: 1,
		},
		{
			name: "truncated response",
			mutate: func(b []byte) []byte {
				return testutil.BuildFrame(frame.SimpleSize, testutil.KindSsResponse, b[1], b[2], b[3])
			},
			wantClears: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node := newTestNode(t, uwb.RoleInitiator, uwb.MeasurementSSTWR, 1)
			node.mock.OnTransmit = answerPolls(
				map[uint8]*testutil.VirtualPeer{100: testutil.NewVirtualPeer(100, 5)}, tt.mutate)
			node.settings.Start()

			require.NoError(t, node.runner.Step())
			assert.Empty(t, node.sink.Distances())
			assert.Equal(t, int64(1), node.runner.GetMetrics().Failures)
			assert.Equal(t, tt.wantClears,
				node.mock.ClearCount(uwb.StatusAllRxTimeout|uwb.StatusAllRxError))
			assert.Zero(t, node.settings.Measurements())
		})
	}
}

func TestSSInitiator_SilentResponderSkipped(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleInitiator, uwb.MeasurementSSTWR, 1)
	node.mock.OnTransmit = answerPolls(
		map[uint8]*testutil.VirtualPeer{101: testutil.NewVirtualPeer(101, 3)}, nil)
	require.NoError(t, node.settings.SetResponderCount(2))
	node.settings.Start()

	require.NoError(t, node.runner.Step())

	got := node.sink.Distances()
	require.Len(t, got, 1)
	assert.Equal(t, uint8(101), got[0].Responder)
	assert.Equal(t, int64(1), node.runner.GetMetrics().Failures)
	assert.Equal(t, 1, node.mock.ClearCount(uwb.StatusAllRxTimeout|uwb.StatusAllRxError))
}

func TestSSInitiator_NegativeDistanceDropped(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleInitiator, uwb.MeasurementSSTWR, 1)
	node.mock.SetNow(1000)
	node.mock.OnTransmit = func(m *uwb.MockTransport, tx uwb.MockTx) {
		// the responder claims a turnaround longer than the round trip
		m.Enqueue(uwb.MockRx{
			Data:      testutil.BuildSsResponse(tx.Data[1], tx.Data[3], tx.Data[2], 0, 5000),
			Timestamp: 1000 + 4000,
		})
	}
	node.settings.Start()

	for range 3 {
		require.NoError(t, node.runner.Step())
	}

	assert.Empty(t, node.sink.Distances())
	m := node.runner.GetMetrics()
	assert.Equal(t, int64(3), m.Dropped)
	assert.Zero(t, m.Failures)
	assert.Zero(t, node.settings.Measurements(), "dropped results are not counted")
}

func TestSSResponder(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleResponder, uwb.MeasurementSSTWR, 100)
	pollRx := uwb.Timestamp(0x31_2345_6789)
	node.mock.Enqueue(uwb.MockRx{
		Data:      testutil.BuildSimple(testutil.KindPoll, 7, 1, 100),
		Timestamp: pollRx,
	})
	node.settings.Start()

	require.NoError(t, node.runner.Step())

	sent := node.mock.Transmitted()
	require.Len(t, sent, 1)
	tx := sent[0]
	assert.True(t, tx.Delayed)
	assert.Equal(t, uwb.ScheduleAfter(pollRx, SSPollRxToRespTxUUS), tx.At)

	f, err := uwb.Decode(uwb.KindSsResponse, tx.Data)
	require.NoError(t, err)
	resp, ok := f.(*uwb.SsFinalFrame)
	require.True(t, ok)
	assert.Equal(t, uwb.Header{Kind: uwb.KindSsResponse, Sequence: 7, Source: 100, Dest: 1}, resp.Header)
	assert.Equal(t, uint32(pollRx), resp.PollRx)
	// the embedded TX time is the one the radio reports after sending
	assert.Equal(t, uint32(tx.Timestamp), resp.RespTx)
	assert.Equal(t, uint32(uwb.ScheduledTimestamp(tx.At, uwb.DefaultAntennaDelay)), resp.RespTx)
	assert.Empty(t, node.sink.Distances())
}

func TestSSResponder_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rx   []uwb.MockRx
	}{
		{name: "poll for another responder", rx: []uwb.MockRx{{Data: testutil.BuildSimple(testutil.KindPoll, 1, 1, 101)}}},
		{name: "not a poll", rx: []uwb.MockRx{{Data: testutil.BuildSimple(testutil.KindDsResponse, 1, 1, 100)}}},
		{name: "nothing heard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node := newTestNode(t, uwb.RoleResponder, uwb.MeasurementSSTWR, 100)
			node.mock.Enqueue(tt.rx...)
			node.settings.Start()

			require.NoError(t, node.runner.Step())
			assert.Empty(t, node.mock.Transmitted())
			assert.Equal(t, int64(1), node.runner.GetMetrics().Failures)
			assert.Equal(t, 1, node.mock.ClearCount(uwb.StatusAllRxTimeout|uwb.StatusAllRxError))
		})
	}
}

func TestSSResponder_Late(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleResponder, uwb.MeasurementSSTWR, 100)
	node.mock.Enqueue(uwb.MockRx{Data: testutil.BuildSimple(testutil.KindPoll, 1, 1, 100)})
	node.mock.FailNextDelayed(1)
	node.settings.Start()

	require.NoError(t, node.runner.Step())
	assert.Empty(t, node.mock.Transmitted())
	assert.Equal(t, int64(1), node.runner.GetMetrics().Failures)
}

func TestDSInitiator(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleInitiator, uwb.MeasurementDS3TWR, 1)
	pollTx := uwb.Timestamp(0x05_0000_0000)
	respRx := pollTx + 2_000_000
	node.mock.SetNow(pollTx)
	node.mock.OnTransmit = func(m *uwb.MockTransport, tx uwb.MockTx) {
		if tx.Data[frame.OffsetKind] != testutil.KindPoll {
			return
		}
		m.Enqueue(uwb.MockRx{
			Data:      testutil.BuildSimple(testutil.KindDsResponse, tx.Data[1], tx.Data[3], tx.Data[2]),
			Timestamp: respRx,
		})
	}
	node.settings.Start()

	require.NoError(t, node.runner.Step())

	sent := node.mock.Transmitted()
	require.Len(t, sent, 2)
	final := sent[1]
	assert.True(t, final.Delayed)
	assert.False(t, final.ResponseExpected)
	assert.Equal(t, uwb.ScheduleAfter(respRx, DSRespRxToFinalTxUUS), final.At)

	f, err := uwb.Decode(uwb.KindDsFinal, final.Data)
	require.NoError(t, err)
	df, ok := f.(*uwb.DsFinalFrame)
	require.True(t, ok)
	assert.Equal(t, uwb.Header{Kind: uwb.KindDsFinal, Sequence: 0, Source: 1, Dest: 100}, df.Header)
	assert.Equal(t, uint32(pollTx), df.PollTx)
	assert.Equal(t, uint32(respRx), df.RespRx)
	assert.Equal(t, uint32(final.Timestamp), df.FinalTx)

	delay, timeout := node.mock.RxSettings()
	assert.Equal(t, uint32(DSPollTxToRespRxUUS), delay)
	assert.Equal(t, uint32(DSRespRxTimeoutUUS), timeout)
	assert.Empty(t, node.sink.Distances(), "the responder reports double sided distances")
}

func TestDSInitiator_StopsAtMaxMeasurement(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleInitiator, uwb.MeasurementDS3TWR, 1)
	node.mock.SetNow(0x05_0000_0000)
	node.mock.OnTransmit = func(m *uwb.MockTransport, tx uwb.MockTx) {
		if tx.Data[frame.OffsetKind] != testutil.KindPoll {
			return
		}
		m.Enqueue(uwb.MockRx{
			Data:      testutil.BuildSimple(testutil.KindDsResponse, tx.Data[1], tx.Data[3], tx.Data[2]),
			Timestamp: 0x05_0200_0000,
		})
	}
	require.NoError(t, node.settings.SetMeasurementBounds(0, 2))
	node.settings.Start()

	for range 4 {
		require.NoError(t, node.runner.Step())
	}

	assert.Equal(t, uwb.StateSleeping, node.settings.State())
	assert.Equal(t, uint32(2), node.settings.Measurements())
	assert.Len(t, node.mock.Transmitted(), 4, "two polls and two finals")
	assert.Equal(t, int64(2), node.runner.GetMetrics().Rounds)
}

func TestDSInitiator_LateFinalIsNotCounted(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleInitiator, uwb.MeasurementDS3TWR, 1)
	node.mock.OnTransmit = func(m *uwb.MockTransport, tx uwb.MockTx) {
		if tx.Data[frame.OffsetKind] != testutil.KindPoll {
			return
		}
		m.Enqueue(uwb.MockRx{
			Data: testutil.BuildSimple(testutil.KindDsResponse, tx.Data[1], tx.Data[3], tx.Data[2]),
		})
	}
	node.mock.FailNextDelayed(1)
	node.settings.Start()

	require.NoError(t, node.runner.Step())
	assert.Zero(t, node.settings.Measurements())
	assert.Equal(t, int64(1), node.runner.GetMetrics().Failures)
}

// answerDSResponse makes the mock play a double sided initiator that polled
// at local time pollRx-tof and answers the response with a final.
func answerDSResponse(peer *testutil.VirtualPeer, pollRx uint64, finalDest byte) func(*uwb.MockTransport, uwb.MockTx) {
	const reply = DSRespRxToFinalTxUUS * uwb.UUSToDTU
	return func(m *uwb.MockTransport, tx uwb.MockTx) {
		if tx.Data[frame.OffsetKind] != testutil.KindDsResponse {
			return
		}
		respTx := uint64(tx.Timestamp)
		pollTxR := peer.Remote(pollRx - peer.TofDTU)
		respRxR := peer.Receive(respTx)
		finalTxR := respRxR + reply
		finalRx := peer.Reply(respTx, reply)
		m.Enqueue(uwb.MockRx{
			Data: testutil.BuildDsFinal(tx.Data[1], peer.ID, finalDest,
				uint32(pollTxR), uint32(respRxR), uint32(finalTxR)),
			Timestamp: uwb.Timestamp(finalRx) & uwb.TimestampMask,
		})
	}
}

func TestDSResponder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		meters float64
		drift  float64
	}{
		{name: "no drift", meters: 7, drift: 0},
		{name: "fast initiator", meters: 20, drift: 20e-6},
		{name: "slow initiator", meters: 2.5, drift: -12e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node := newTestNode(t, uwb.RoleResponder, uwb.MeasurementDS3TWR, 100)
			peer := testutil.NewVirtualPeer(1, tt.meters)
			peer.Drift = tt.drift

			pollRx := uint64(0xFF_F000_0000) // the local clock wraps during the exchange
			node.mock.Enqueue(uwb.MockRx{
				Data:      testutil.BuildSimple(testutil.KindPoll, 4, 1, 100),
				Timestamp: uwb.Timestamp(pollRx),
			})
			node.mock.OnTransmit = answerDSResponse(peer, pollRx, 100)
			node.settings.Start()

			require.NoError(t, node.runner.Step())

			sent := node.mock.Transmitted()
			require.Len(t, sent, 1)
			assert.True(t, sent[0].Delayed, "the response goes out at a scheduled time")
			assert.True(t, sent[0].ResponseExpected)
			assert.Equal(t, uwb.ScheduleAfter(uwb.Timestamp(pollRx), DSPollRxToRespTxUUS), sent[0].At)

			got := node.sink.Distances()
			require.Len(t, got, 1)
			assert.InDelta(t, tt.meters, got[0].Distance, 0.05)
			assert.Equal(t, uint8(1), got[0].Responder)
			assert.Equal(t, uwb.RoleResponder, got[0].Role)

			delay, timeout := node.mock.RxSettings()
			assert.Equal(t, uint32(DSRespTxToFinalRxUUS), delay)
			assert.Equal(t, uint32(DSFinalRxTimeoutUUS), timeout)
		})
	}
}

func TestDSResponder_FinalForAnotherNode(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleResponder, uwb.MeasurementDS3TWR, 100)
	peer := testutil.NewVirtualPeer(1, 5)
	node.mock.Enqueue(uwb.MockRx{
		Data:      testutil.BuildSimple(testutil.KindPoll, 4, 1, 100),
		Timestamp: 0x10_0000_0000,
	})
	node.mock.OnTransmit = answerDSResponse(peer, 0x10_0000_0000, 102)
	node.settings.Start()

	require.NoError(t, node.runner.Step())
	assert.Empty(t, node.sink.Distances())
	assert.Equal(t, int64(1), node.runner.GetMetrics().Failures)
	assert.Equal(t, 1, node.mock.ClearCount(uwb.StatusAllRxTimeout|uwb.StatusAllRxError))
}

func TestDSResponder_FinalMissing(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleResponder, uwb.MeasurementDS3TWR, 100)
	node.mock.Enqueue(uwb.MockRx{Data: testutil.BuildSimple(testutil.KindPoll, 4, 1, 100)})
	node.settings.Start()

	require.NoError(t, node.runner.Step())
	assert.Len(t, node.mock.Transmitted(), 1)
	assert.Empty(t, node.sink.Distances())
	assert.Equal(t, int64(1), node.runner.GetMetrics().Failures)
}

func TestDSResponder_NextPollWaitIsUnbounded(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, uwb.RoleResponder, uwb.MeasurementDS3TWR, 100)
	node.mock.EnablePreambleTimeout()
	peer := testutil.NewVirtualPeer(1, 5)
	node.mock.Enqueue(uwb.MockRx{
		Data:      testutil.BuildSimple(testutil.KindPoll, 4, 1, 100),
		Timestamp: 0x10_0000_0000,
	})
	node.mock.OnTransmit = answerDSResponse(peer, 0x10_0000_0000, 100)
	node.settings.Start()

	require.NoError(t, node.runner.Step())
	require.Len(t, node.sink.Distances(), 1)

	// the final leg bounded preamble detection; the next poll wait must not be
	require.NoError(t, node.runner.Step())
	assert.Equal(t, []uint16{0, 0}, node.mock.ArmedPreambleTimeouts())
}
