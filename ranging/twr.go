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

import "github.com/ZaparooProject/go-uwb"

// ssInitiatorRound polls every responder once and computes single sided
// distances. The sweep goes on after a failed exchange.
func (r *Runner) ssInitiatorRound(snap uwb.SettingsSnapshot) error {
	for _, peer := range responders(snap.ResponderCount) {
		if err := r.ssInitiatorExchange(snap, peer); err != nil {
			if err = r.exchangeFailed(err, peer); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) ssInitiatorExchange(snap uwb.SettingsSnapshot, peer uint8) error {
	d := r.device
	seq := uint8(snap.Sequence)

	if err := d.SetRxAfterTxDelay(SSPollTxToRespRxUUS, SSRespRxTimeoutUUS); err != nil {
		return err
	}
	poll := &uwb.SimpleFrame{Header: uwb.Header{
		Kind: uwb.KindPoll, Sequence: seq, Source: snap.DeviceID, Dest: peer,
	}}
	if err := d.StartPoll(poll); err != nil {
		return err
	}

	resp, err := uwb.Receive[*uwb.SsFinalFrame](d, uwb.KindSsResponse)
	if err != nil {
		return err
	}
	if err := r.matchReply(resp.Header, seq, snap.DeviceID, peer); err != nil {
		return err
	}

	pollTx, err := d.TxTimestamp()
	if err != nil {
		return err
	}
	respRx, err := d.RxTimestamp()
	if err != nil {
		return err
	}
	ratio, err := d.ClockOffsetRatio()
	if err != nil {
		return err
	}

	ts := uwb.SSTimestamps{
		PollTx: pollTx,
		RespRx: respRx,
		PollRx: resp.PollRx,
		RespTx: resp.RespTx,
	}
	r.emitDistance(snap, peer, uwb.SSDistance(ts, ratio), ts.Round(), uint64(ts.Reply()))
	return nil
}

// ssResponderRound answers one poll with its RX time and the exact time the
// response will leave the antenna.
func (r *Runner) ssResponderRound(snap uwb.SettingsSnapshot) error {
	d := r.device

	if err := d.ReceiveNow(0); err != nil {
		return err
	}
	poll, err := uwb.Receive[*uwb.SimpleFrame](d, uwb.KindPoll)
	if err != nil {
		return r.exchangeFailed(err, 0)
	}
	if err := r.matchDest(poll.Header, snap.DeviceID); err != nil {
		return r.exchangeFailed(err, poll.Source)
	}

	pollRx, err := d.RxTimestamp()
	if err != nil {
		return err
	}
	txTime, respTx := d.ScheduleReply(pollRx, SSPollRxToRespTxUUS)
	resp := &uwb.SsFinalFrame{
		Header: uwb.Header{
			Kind:     uwb.KindSsResponse,
			Sequence: poll.Sequence,
			Source:   poll.Dest,
			Dest:     poll.Source,
		},
		PollRx: pollRx.Truncate(),
		RespTx: respTx.Truncate(),
	}
	if err := d.SendAt(resp, txTime); err != nil {
		return r.exchangeFailed(err, poll.Source)
	}
	return nil
}

// dsInitiatorRound runs the three message exchange with every responder.
// The responder computes the distance; the initiator only counts the
// exchanges it completed.
func (r *Runner) dsInitiatorRound(snap uwb.SettingsSnapshot) error {
	for _, peer := range responders(snap.ResponderCount) {
		if err := r.dsInitiatorExchange(snap, peer); err != nil {
			if err = r.exchangeFailed(err, peer); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) dsInitiatorExchange(snap uwb.SettingsSnapshot, peer uint8) error {
	d := r.device
	seq := uint8(snap.Sequence)

	if err := d.SetRxAfterTxDelay(DSPollTxToRespRxUUS, DSRespRxTimeoutUUS); err != nil {
		return err
	}
	if err := d.SetPreambleTimeout(PreambleTimeoutPACs); err != nil {
		return err
	}
	poll := &uwb.SimpleFrame{Header: uwb.Header{
		Kind: uwb.KindPoll, Sequence: seq, Source: snap.DeviceID, Dest: peer,
	}}
	if err := d.StartPoll(poll); err != nil {
		return err
	}

	resp, err := uwb.Receive[*uwb.SimpleFrame](d, uwb.KindDsResponse)
	if err != nil {
		return err
	}
	if err := r.matchReply(resp.Header, seq, snap.DeviceID, peer); err != nil {
		return err
	}

	pollTx, err := d.TxTimestamp()
	if err != nil {
		return err
	}
	respRx, err := d.RxTimestamp()
	if err != nil {
		return err
	}
	txTime, finalTx := d.ScheduleReply(respRx, DSRespRxToFinalTxUUS)
	final := &uwb.DsFinalFrame{
		Header: uwb.Header{
			Kind:     uwb.KindDsFinal,
			Sequence: resp.Sequence,
			Source:   resp.Dest,
			Dest:     resp.Source,
		},
		PollTx:  pollTx.Truncate(),
		RespRx:  respRx.Truncate(),
		FinalTx: finalTx.Truncate(),
	}
	if err := d.SendAt(final, txTime); err != nil {
		return err
	}
	// a sent final completes the initiator's side and counts toward the stop
	r.settings.RecordMeasurement()
	return nil
}

// dsResponderRound answers a poll at a scheduled time, waits for the final
// and computes the double sided distance.
func (r *Runner) dsResponderRound(snap uwb.SettingsSnapshot) error {
	d := r.device

	if err := d.ReceiveNow(0); err != nil {
		return err
	}
	poll, err := uwb.Receive[*uwb.SimpleFrame](d, uwb.KindPoll)
	if err != nil {
		return r.exchangeFailed(err, 0)
	}
	if err := r.matchDest(poll.Header, snap.DeviceID); err != nil {
		return r.exchangeFailed(err, poll.Source)
	}
	peer := poll.Source

	pollRx, err := d.RxTimestamp()
	if err != nil {
		return err
	}
	txTime, _ := d.ScheduleReply(pollRx, DSPollRxToRespTxUUS)
	resp := &uwb.SimpleFrame{Header: uwb.Header{
		Kind:     uwb.KindDsResponse,
		Sequence: poll.Sequence,
		Source:   poll.Dest,
		Dest:     poll.Source,
	}}

	if err := d.SetRxAfterTxDelay(DSRespTxToFinalRxUUS, DSFinalRxTimeoutUUS); err != nil {
		return err
	}
	if err := d.SetPreambleTimeout(PreambleTimeoutPACs); err != nil {
		return err
	}
	if err := d.SendAtWithResponse(resp, txTime); err != nil {
		return r.exchangeFailed(err, peer)
	}

	final, err := uwb.Receive[*uwb.DsFinalFrame](d, uwb.KindDsFinal)
	if err != nil {
		return r.exchangeFailed(err, peer)
	}
	if err := r.matchReply(final.Header, poll.Sequence, snap.DeviceID, peer); err != nil {
		return r.exchangeFailed(err, peer)
	}

	respTx, err := d.TxTimestamp()
	if err != nil {
		return err
	}
	finalRx, err := d.RxTimestamp()
	if err != nil {
		return err
	}

	ts := uwb.DSTimestamps{
		PollTx:  final.PollTx,
		PollRx:  pollRx.Truncate(),
		RespTx:  respTx.Truncate(),
		RespRx:  final.RespRx,
		FinalTx: final.FinalTx,
		FinalRx: finalRx.Truncate(),
	}
	intervals := ts.Intervals()
	r.emitDistance(snap, peer, uwb.DSDistance(intervals), uint64(intervals.Rb), uint64(intervals.Db))
	return nil
}
