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

// Calibration handshake between three nodes:
//
//	A --sensing_1--> B      a1 tx, b1 rx, c1 rx
//	A <--sensing_2-- B      b2 tx, a2 rx, c2 rx
//	A --sensing_3--> B      a3 tx, b3 rx, c3 rx  carries a1 a2 a3
//	A <-sensing_info- B     carries b1 b2 b3
//
// A and B run a double sided exchange; C overhears all four frames and
// computes the distance from both nodes' timestamps together with its own
// view of the two legs. B is addressed as the first responder.

// calibARound opens the handshake and sends its three timestamps
func (r *Runner) calibARound(snap uwb.SettingsSnapshot) error {
	d := r.device
	seq := uint8(snap.Sequence)
	peer := uint8(uwb.ResponderIDBase)

	if err := d.SetRxAfterTxDelay(CalibTxToRxUUS, CalibRxTimeoutUUS); err != nil {
		return err
	}
	s1 := &uwb.SimpleFrame{Header: uwb.Header{
		Kind: uwb.KindSensing1, Sequence: seq, Source: snap.DeviceID, Dest: peer,
	}}
	if err := d.StartPoll(s1); err != nil {
		return err
	}

	s2, err := uwb.Receive[*uwb.SimpleFrame](d, uwb.KindSensing2)
	if err != nil {
		return r.exchangeFailed(err, peer)
	}
	if err := r.matchReply(s2.Header, seq, snap.DeviceID, peer); err != nil {
		return r.exchangeFailed(err, peer)
	}

	a1, err := d.TxTimestamp()
	if err != nil {
		return err
	}
	a2, err := d.RxTimestamp()
	if err != nil {
		return err
	}
	txTime, a3 := d.ScheduleReply(a2, CalibReplyUUS)
	s3 := &uwb.SensingFrame{
		Header: uwb.Header{Kind: uwb.KindSensing3, Sequence: seq, Source: snap.DeviceID, Dest: peer},
		T1:     a1.Truncate(),
		T2:     a2.Truncate(),
		T3:     a3.Truncate(),
	}
	if err := d.SendAt(s3, txTime); err != nil {
		return r.exchangeFailed(err, peer)
	}
	r.settings.RecordMeasurement()
	return nil
}

// calibBRound answers sensing_1, waits for sensing_3 and reports its own
// three timestamps in sensing_info.
func (r *Runner) calibBRound(snap uwb.SettingsSnapshot) error {
	d := r.device

	if err := d.ReceiveNow(0); err != nil {
		return err
	}
	s1, err := uwb.Receive[*uwb.SimpleFrame](d, uwb.KindSensing1)
	if err != nil {
		return r.exchangeFailed(err, 0)
	}
	if err := r.matchDest(s1.Header, snap.DeviceID); err != nil {
		return r.exchangeFailed(err, s1.Source)
	}
	peer, seq := s1.Source, s1.Sequence

	b1, err := d.RxTimestamp()
	if err != nil {
		return err
	}
	txTime, _ := d.ScheduleReply(b1, CalibReplyUUS)
	s2 := &uwb.SimpleFrame{Header: uwb.Header{
		Kind: uwb.KindSensing2, Sequence: seq, Source: snap.DeviceID, Dest: peer,
	}}
	if err := d.SetRxAfterTxDelay(CalibTxToRxUUS, CalibRxTimeoutUUS); err != nil {
		return err
	}
	if err := d.SendAtWithResponse(s2, txTime); err != nil {
		return r.exchangeFailed(err, peer)
	}

	s3, err := uwb.Receive[*uwb.SensingFrame](d, uwb.KindSensing3)
	if err != nil {
		return r.exchangeFailed(err, peer)
	}
	if err := r.matchReply(s3.Header, seq, snap.DeviceID, peer); err != nil {
		return r.exchangeFailed(err, peer)
	}

	b2, err := d.TxTimestamp()
	if err != nil {
		return err
	}
	b3, err := d.RxTimestamp()
	if err != nil {
		return err
	}
	txTime, _ = d.ScheduleReply(b3, CalibReplyUUS)
	info := &uwb.SensingFrame{
		Header: uwb.Header{Kind: uwb.KindSensingInfo, Sequence: seq, Source: snap.DeviceID, Dest: peer},
		T1:     b1.Truncate(),
		T2:     b2.Truncate(),
		T3:     b3.Truncate(),
	}
	if err := d.SendAt(info, txTime); err != nil {
		return r.exchangeFailed(err, peer)
	}
	r.settings.RecordMeasurement()
	return nil
}

// calibCRound overhears one handshake and emits a calibration record
func (r *Runner) calibCRound(snap uwb.SettingsSnapshot) error {
	d := r.device

	if err := d.ReceiveNow(0); err != nil {
		return err
	}
	s1, err := uwb.Receive[*uwb.SimpleFrame](d, uwb.KindSensing1)
	if err != nil {
		return r.exchangeFailed(err, 0)
	}
	a, b, seq := s1.Source, s1.Dest, s1.Sequence
	c1, err := d.RxTimestamp()
	if err != nil {
		return err
	}

	_, c2, err := overhear[*uwb.SimpleFrame](r, uwb.KindSensing2, seq, b, a)
	if err != nil {
		return r.exchangeFailed(err, b)
	}
	s3, c3, err := overhear[*uwb.SensingFrame](r, uwb.KindSensing3, seq, a, b)
	if err != nil {
		return r.exchangeFailed(err, a)
	}
	info, _, err := overhear[*uwb.SensingFrame](r, uwb.KindSensingInfo, seq, b, a)
	if err != nil {
		return r.exchangeFailed(err, b)
	}

	intervals := uwb.CalibrationIntervals{
		DSIntervals: uwb.DSIntervals{
			Ra: uwb.Interval(s3.T2, s3.T1),
			Rb: uwb.Interval(info.T3, info.T2),
			Da: uwb.Interval(s3.T3, s3.T2),
			Db: uwb.Interval(info.T2, info.T1),
		},
		C1: uwb.Interval(c2.Truncate(), c1.Truncate()),
		C2: uwb.Interval(c3.Truncate(), c2.Truncate()),
	}
	r.emitCalibration(snap, intervals)
	return nil
}

// overhear receives the next handshake frame sent from src to dst and
// returns it with its local RX timestamp.
func overhear[T uwb.Frame](r *Runner, kind uwb.MessageKind, seq, src, dst uint8) (T, uwb.Timestamp, error) {
	var zero T
	d := r.device

	if err := d.ReceiveNow(CalibObserveTimeoutUUS); err != nil {
		return zero, 0, err
	}
	f, err := uwb.Receive[T](d, kind)
	if err != nil {
		return zero, 0, err
	}
	if err := r.matchReply(f.FrameHeader(), seq, dst, src); err != nil {
		return zero, 0, err
	}
	ts, err := d.RxTimestamp()
	if err != nil {
		return zero, 0, err
	}
	return f, ts, nil
}
