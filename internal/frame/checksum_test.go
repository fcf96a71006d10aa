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

package frame

import "testing"

func TestCalculateFCS(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0x0000,
		},
		{
			name: "kermit check value",
			data: []byte("123456789"),
			want: 0x2189,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CalculateFCS(tt.data); got != tt.want {
				t.Errorf("CalculateFCS() = %#04x, want %#04x", got, tt.want)
			}
		})
	}
}

func TestSealVerify(t *testing.T) {
	t.Parallel()

	buf := make([]byte, SsFinalSize)
	buf[OffsetKind] = 0x01
	buf[OffsetSequence] = 7
	PutTimestamp(buf, 0, 0xDEADBEEF)
	PutTimestamp(buf, 1, 0x01020304)

	if err := Seal(buf); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !Verify(buf) {
		t.Fatal("Verify() = false after Seal()")
	}

	buf[OffsetSequence] = 8
	if Verify(buf) {
		t.Error("Verify() = true after payload corruption")
	}
}

func TestSealShortFrame(t *testing.T) {
	t.Parallel()

	if err := Seal(make([]byte, FCSSize)); err == nil {
		t.Error("Seal() on short frame should fail")
	}
	if Verify(make([]byte, 3)) {
		t.Error("Verify() on short frame should be false")
	}
}

func TestTimestampSlots(t *testing.T) {
	t.Parallel()

	buf := make([]byte, DsFinalSize)
	PutTimestamp(buf, 0, 1)
	PutTimestamp(buf, 1, 0x11223344)
	PutTimestamp(buf, 2, 0xFFFFFFFF)

	if got := Timestamp(buf, 1); got != 0x11223344 {
		t.Errorf("Timestamp(1) = %#x", got)
	}
	// little endian on the wire
	if buf[OffsetPayload+TimestampSize] != 0x44 {
		t.Errorf("slot 1 first byte = %#x, want 0x44", buf[OffsetPayload+TimestampSize])
	}
	if got := Timestamp(buf, 2); got != 0xFFFFFFFF {
		t.Errorf("Timestamp(2) = %#x", got)
	}
}
