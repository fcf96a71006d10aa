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
	"encoding"
	"fmt"

	"github.com/ZaparooProject/go-uwb/internal/frame"
)

// MessageKind identifies a ranging message and its wire layout
type MessageKind uint8

// Message kinds
const (
	KindPoll MessageKind = iota
	KindSsResponse
	KindDsResponse
	KindDsFinal
	KindSensing1
	KindSensing2
	KindSensing3
	KindSensingInfo
)

// Frame sizes in bytes including the trailing checksum
const (
	SimpleFrameSize  = frame.SimpleSize
	SsFinalFrameSize = frame.SsFinalSize
	DsFinalFrameSize = frame.DsFinalSize
	SensingFrameSize = frame.SensingSize
)

// ResponderIDBase is added to a device number to form a responder address
const ResponderIDBase = 100

func (k MessageKind) String() string {
	switch k {
	case KindPoll:
		return "poll"
	case KindSsResponse:
		return "ss-response"
	case KindDsResponse:
		return "ds-response"
	case KindDsFinal:
		return "ds-final"
	case KindSensing1:
		return "sensing_1"
	case KindSensing2:
		return "sensing_2"
	case KindSensing3:
		return "sensing_3"
	case KindSensingInfo:
		return "sensing_info"
	default:
		return fmt.Sprintf("MessageKind(%d)", uint8(k))
	}
}

// Size returns the wire size of the layout k maps to, or 0 for unknown kinds
func (k MessageKind) Size() int {
	switch k {
	case KindPoll, KindDsResponse, KindSensing1, KindSensing2:
		return SimpleFrameSize
	case KindSsResponse:
		return SsFinalFrameSize
	case KindDsFinal:
		return DsFinalFrameSize
	case KindSensing3, KindSensingInfo:
		return SensingFrameSize
	default:
		return 0
	}
}

// Header starts every ranging frame
type Header struct {
	Kind     MessageKind
	Sequence uint8
	Source   uint8
	Dest     uint8
}

func (h Header) put(buf []byte) {
	buf[frame.OffsetKind] = byte(h.Kind)
	buf[frame.OffsetSequence] = h.Sequence
	buf[frame.OffsetSource] = h.Source
	buf[frame.OffsetDest] = h.Dest
}

func readHeader(buf []byte) Header {
	return Header{
		Kind:     MessageKind(buf[frame.OffsetKind]),
		Sequence: buf[frame.OffsetSequence],
		Source:   buf[frame.OffsetSource],
		Dest:     buf[frame.OffsetDest],
	}
}

// Frame is implemented by every ranging frame variant
type Frame interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	FrameHeader() Header
}

// SimpleFrame is a header-only frame (poll, ds-response, sensing_1, sensing_2)
type SimpleFrame struct {
	Header
	Checksum uint16
}

// SsFinalFrame is the single-sided responder report
type SsFinalFrame struct {
	Header
	PollRx   uint32
	RespTx   uint32
	Checksum uint16
}

// DsFinalFrame is the double-sided initiator report
type DsFinalFrame struct {
	Header
	PollTx   uint32
	RespRx   uint32
	FinalTx  uint32
	Checksum uint16
}

// SensingFrame carries three timestamps of the calibration handshake
// (sensing_3 and sensing_info).
type SensingFrame struct {
	Header
	T1       uint32
	T2       uint32
	T3       uint32
	Checksum uint16
}

// NewFrame returns an empty frame of the variant kind maps to
func NewFrame(kind MessageKind) (Frame, error) {
	switch kind.Size() {
	case SimpleFrameSize:
		return &SimpleFrame{Header: Header{Kind: kind}}, nil
	case SsFinalFrameSize:
		return &SsFinalFrame{Header: Header{Kind: kind}}, nil
	case DsFinalFrameSize:
		if kind == KindDsFinal {
			return &DsFinalFrame{Header: Header{Kind: kind}}, nil
		}
		return &SensingFrame{Header: Header{Kind: kind}}, nil
	default:
		return nil, fmt.Errorf("new frame: %w: %v", ErrFrameKind, kind)
	}
}

// Decode parses buf as a frame of the expected kind. The buffer length must
// equal the variant size exactly and the kind byte must match; on any
// mismatch nothing is returned.
func Decode(kind MessageKind, buf []byte) (Frame, error) {
	f, err := NewFrame(kind)
	if err != nil {
		return nil, err
	}
	if err := f.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return f, nil
}

// checkLayout validates size and kind of buf against the wanted variant
func checkLayout(buf []byte, want MessageKind, size int, allowed ...MessageKind) error {
	if len(buf) != size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, len(buf), size)
	}
	got := MessageKind(buf[frame.OffsetKind])
	if got != want {
		return fmt.Errorf("%w: got %v, want %v", ErrFrameKind, got, want)
	}
	for _, k := range allowed {
		if got == k {
			return nil
		}
	}
	return fmt.Errorf("%w: %v does not use this layout", ErrFrameKind, got)
}

// FrameHeader returns the frame header
func (f *SimpleFrame) FrameHeader() Header { return f.Header }

// MarshalBinary encodes the frame including its checksum field as stored
func (f *SimpleFrame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SimpleFrameSize)
	f.put(buf)
	frame.PutFCS(buf, f.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes buf, which must hold a frame of f.Kind
func (f *SimpleFrame) UnmarshalBinary(buf []byte) error {
	if err := checkLayout(buf, f.Kind, SimpleFrameSize,
		KindPoll, KindDsResponse, KindSensing1, KindSensing2); err != nil {
		return err
	}
	*f = SimpleFrame{
		Header:   readHeader(buf),
		Checksum: frame.FCS(buf),
	}
	return nil
}

// FrameHeader returns the frame header
func (f *SsFinalFrame) FrameHeader() Header { return f.Header }

// MarshalBinary encodes the frame including its checksum field as stored
func (f *SsFinalFrame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SsFinalFrameSize)
	f.put(buf)
	frame.PutTimestamp(buf, 0, f.PollRx)
	frame.PutTimestamp(buf, 1, f.RespTx)
	frame.PutFCS(buf, f.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes buf, which must hold a frame of f.Kind
func (f *SsFinalFrame) UnmarshalBinary(buf []byte) error {
	if err := checkLayout(buf, f.Kind, SsFinalFrameSize, KindSsResponse); err != nil {
		return err
	}
	*f = SsFinalFrame{
		Header:   readHeader(buf),
		PollRx:   frame.Timestamp(buf, 0),
		RespTx:   frame.Timestamp(buf, 1),
		Checksum: frame.FCS(buf),
	}
	return nil
}

// FrameHeader returns the frame header
func (f *DsFinalFrame) FrameHeader() Header { return f.Header }

// MarshalBinary encodes the frame including its checksum field as stored
func (f *DsFinalFrame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, DsFinalFrameSize)
	f.put(buf)
	frame.PutTimestamp(buf, 0, f.PollTx)
	frame.PutTimestamp(buf, 1, f.RespRx)
	frame.PutTimestamp(buf, 2, f.FinalTx)
	frame.PutFCS(buf, f.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes buf, which must hold a frame of f.Kind
func (f *DsFinalFrame) UnmarshalBinary(buf []byte) error {
	if err := checkLayout(buf, f.Kind, DsFinalFrameSize, KindDsFinal); err != nil {
		return err
	}
	*f = DsFinalFrame{
		Header:   readHeader(buf),
		PollTx:   frame.Timestamp(buf, 0),
		RespRx:   frame.Timestamp(buf, 1),
		FinalTx:  frame.Timestamp(buf, 2),
		Checksum: frame.FCS(buf),
	}
	return nil
}

// FrameHeader returns the frame header
func (f *SensingFrame) FrameHeader() Header { return f.Header }

// MarshalBinary encodes the frame including its checksum field as stored
func (f *SensingFrame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SensingFrameSize)
	f.put(buf)
	frame.PutTimestamp(buf, 0, f.T1)
	frame.PutTimestamp(buf, 1, f.T2)
	frame.PutTimestamp(buf, 2, f.T3)
	frame.PutFCS(buf, f.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes buf, which must hold a frame of f.Kind
func (f *SensingFrame) UnmarshalBinary(buf []byte) error {
	if err := checkLayout(buf, f.Kind, SensingFrameSize, KindSensing3, KindSensingInfo); err != nil {
		return err
	}
	*f = SensingFrame{
		Header:   readHeader(buf),
		T1:       frame.Timestamp(buf, 0),
		T2:       frame.Timestamp(buf, 1),
		T3:       frame.Timestamp(buf, 2),
		Checksum: frame.FCS(buf),
	}
	return nil
}

// SealFrame encodes f and fills the checksum field with the IEEE 802.15.4
// FCS, as the radio does on air.
func SealFrame(f Frame) ([]byte, error) {
	buf, err := f.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := frame.Seal(buf); err != nil {
		return nil, fmt.Errorf("seal %v: %w", f.FrameHeader().Kind, err)
	}
	return buf, nil
}

// VerifyChecksum reports whether a raw frame carries a valid FCS
func VerifyChecksum(buf []byte) bool {
	return frame.Verify(buf)
}
