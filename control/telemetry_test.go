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

package control

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ZaparooProject/go-uwb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &m), line)
	return m
}

func TestEncoder_NotifyDistance(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := NewEncoder(&buf)
	require.NoError(t, e.NotifyDistance(uwb.DistanceNotification{
		Role:        uwb.RoleInitiator,
		State:       uwb.StateMeasuring,
		Responder:   101,
		Sequence:    7,
		Measurement: 3,
		Distance:    4.25,
		Round:       1000,
		Reply:       600,
		Diagnostic:  uwb.DiagnosticInfo{NLOS: uwb.NonLineOfSight, RSSI: -80.5, FPI: -95.25},
	}))

	require.True(t, strings.HasSuffix(buf.String(), "\n"))
	m := decodeLine(t, buf.String())
	assert.Equal(t, TypeDistance, m["type"])
	data, ok := m["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"state":           "measuring",
		"role":            "initiator",
		"sequence":        7.0,
		"measurement":     3.0,
		"responder":       101.0,
		"distance":        4.25,
		"round":           1000.0,
		"reply":           600.0,
		"nlos_percent":    100.0,
		"rssi_index_resp": -80.5,
		"fp_index_resp":   -95.25,
	}, data)
}

func TestEncoder_NotifyCalibration(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := NewEncoder(&buf)
	require.NoError(t, e.NotifyCalibration(uwb.CalibrationNotification{
		Sequence:     1,
		Measurement:  1,
		Distance:     4.69,
		TimeOfFlight: 1000,
		Intervals: uwb.CalibrationIntervals{
			DSIntervals: uwb.DSIntervals{Ra: 52_000, Rb: 62_000, Da: 60_000, Db: 50_000},
			C1:          60_000,
			C2:          60_000,
		},
	}))

	m := decodeLine(t, buf.String())
	assert.Equal(t, TypeCalibration, m["type"])
	data, ok := m["data"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 1000.0, data["tof"], 0)
	assert.InDelta(t, 52_000.0, data["ra"], 0)
	assert.InDelta(t, 50_000.0, data["db"], 0)
	assert.InDelta(t, 60_000.0, data["c2"], 0)
}

func TestEncoder_StatusAndError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := NewEncoder(&buf)

	s := uwb.NewSettings()
	s.SetHardwareID("0123456789ABCDEF")
	require.NoError(t, s.SetRole(uwb.RoleCalibB))
	require.NoError(t, e.WriteStatus(s.Snapshot()))
	require.NoError(t, e.WriteError(ErrUnknownType))

	scanner := bufio.NewScanner(&buf)
	require.True(t, scanner.Scan())
	status := decodeLine(t, scanner.Text())
	assert.Equal(t, TypeStatus, status["type"])
	data, ok := status["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0123456789ABCDEF", data["hardware_id"])
	assert.Equal(t, "calib_b", data["role"])
	assert.Equal(t, "sleeping", data["state"])
	assert.Equal(t, "ss_twr", data["measurement_type"])

	require.True(t, scanner.Scan())
	failure := decodeLine(t, scanner.Text())
	assert.Equal(t, TypeError, failure["type"])
	assert.Equal(t, ErrUnknownType.Error(), failure["error"])
	assert.NotContains(t, failure, "data")
	assert.False(t, scanner.Scan())
}

func TestEncoder_ConcurrentLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := NewEncoder(&buf)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = e.NotifyDistance(uwb.DistanceNotification{Responder: uint8(i)})
			}
		}()
	}
	wg.Wait()

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		decodeLine(t, scanner.Text())
		lines++
	}
	assert.Equal(t, 400, lines)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("line down") }

func TestEncoder_WriteFailure(t *testing.T) {
	t.Parallel()

	err := NewEncoder(failingWriter{}).NotifyDistance(uwb.DistanceNotification{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line down")
}
