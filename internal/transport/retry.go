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

// Package transport holds the retry and status polling loops shared by the
// radio transports
package transport

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Errors returned when a helper gives up
var (
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrPollTimeout      = errors.New("poll timeout")
)

// RetryOperation is one attempt. It returns the result, whether another
// attempt is wanted, and an error that ends the loop at once.
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig bounds WithRetry
type RetryConfig struct {
	Description string
	MaxRetries  int
	RetryDelay  time.Duration
}

// WithRetry runs operation up to MaxRetries+1 times, sleeping RetryDelay
// between attempts
func WithRetry[T any](config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T
	attempts := config.MaxRetries + 1

	for attempt := 1; ; attempt++ {
		result, again, err := operation()
		switch {
		case err != nil:
			return zero, err
		case !again:
			return result, nil
		case attempt >= attempts:
			return zero, fmt.Errorf("%s: %w after %d attempts", config.Description, ErrRetriesExhausted, attempt)
		}
		if config.RetryDelay > 0 {
			time.Sleep(config.RetryDelay)
		}
	}
}

// PollUntil calls operation until it stops asking to retry or timeout has
// passed. An interval of zero spins and yields the processor between calls,
// which keeps status waits well under a millisecond.
func PollUntil[T any](timeout, interval time.Duration, operation RetryOperation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for {
		result, again, err := operation()
		if err != nil {
			return zero, err
		}
		if !again {
			return result, nil
		}
		if !time.Now().Before(deadline) {
			return zero, ErrPollTimeout
		}
		if interval > 0 {
			time.Sleep(interval)
		} else {
			runtime.Gosched()
		}
	}
}
