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

package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	errBus := errors.New("bus fault")

	tests := []struct {
		wantErr   error
		name      string
		succeedAt int
		failAt    int
		maxRetry  int
		wantCalls int
	}{
		{name: "first attempt", succeedAt: 1, maxRetry: 3, wantCalls: 1},
		{name: "after retries", succeedAt: 3, maxRetry: 3, wantCalls: 3},
		{name: "exhausted", succeedAt: 10, maxRetry: 2, wantCalls: 3, wantErr: ErrRetriesExhausted},
		{name: "no retries", succeedAt: 2, maxRetry: 0, wantCalls: 1, wantErr: ErrRetriesExhausted},
		{name: "hard error stops", succeedAt: 5, failAt: 2, maxRetry: 5, wantCalls: 2, wantErr: errBus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			got, err := WithRetry(RetryConfig{Description: "probe", MaxRetries: tt.maxRetry},
				func() (int, bool, error) {
					calls++
					if calls == tt.failAt {
						return 0, false, errBus
					}
					return calls, calls < tt.succeedAt, nil
				})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.succeedAt, got)
		})
	}
}

func TestWithRetry_DescribesExhaustion(t *testing.T) {
	t.Parallel()

	_, err := WithRetry(RetryConfig{Description: "probe", MaxRetries: 1}, func() (int, bool, error) {
		return 0, true, nil
	})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, "probe: retries exhausted after 2 attempts", err.Error())
}

func TestPollUntil(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := PollUntil(time.Second, 0, func() (string, bool, error) {
		calls++
		return "ready", calls < 5, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ready", got)
	assert.Equal(t, 5, calls)
}

func TestPollUntil_Timeout(t *testing.T) {
	t.Parallel()

	start := time.Now()
	_, err := PollUntil(5*time.Millisecond, time.Millisecond, func() (int, bool, error) {
		return 0, true, nil
	})
	require.ErrorIs(t, err, ErrPollTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestPollUntil_ZeroTimeoutTriesOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := PollUntil(0, 0, func() (int, bool, error) {
		calls++
		return 0, true, nil
	})
	require.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 1, calls)
}

func TestPollUntil_Error(t *testing.T) {
	t.Parallel()

	errRead := errors.New("read failed")
	_, err := PollUntil(time.Second, 0, func() (int, bool, error) {
		return 0, false, errRead
	})
	require.ErrorIs(t, err, errRead)
}
