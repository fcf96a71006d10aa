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

// Package detection finds ranging radios attached to the host
package detection

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNoDevicesFound is returned when no port answered as a radio
	ErrNoDevicesFound = errors.New("no radios found")

	// ErrDetectionTimeout is returned when the deadline passed mid-scan
	ErrDetectionTimeout = errors.New("radio detection timed out")
)

// DeviceInfo describes a detected radio
type DeviceInfo struct {
	Port       string
	HardwareID string
}

// Prober brings up the radio on port and returns its hardware id
type Prober func(ctx context.Context, port string) (uint64, error)

// Options controls a scan
type Options struct {
	// IgnorePaths lists ports that must not be touched
	IgnorePaths []string
	// Timeout bounds the whole scan
	Timeout time.Duration
	// StopOnFirst ends the scan at the first radio found
	StopOnFirst bool
}

// DefaultOptions returns options for an unrestricted scan
func DefaultOptions() Options {
	return Options{Timeout: 5 * time.Second}
}

// Detect probes each port in order and returns the ones holding a radio.
// Ports that fail to probe are skipped; if none succeeds the probe errors are
// returned alongside ErrNoDevicesFound.
func Detect(ctx context.Context, ports []string, probe Prober, opts Options) ([]DeviceInfo, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		devices []DeviceInfo
		errs    []error
	)
	for _, port := range ports {
		if IsPathIgnored(port, opts.IgnorePaths) {
			continue
		}
		if ctx.Err() != nil {
			if len(devices) > 0 {
				return devices, nil
			}
			return nil, ErrDetectionTimeout
		}

		id, err := probe(ctx, port)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", port, err))
			continue
		}
		devices = append(devices, DeviceInfo{Port: port, HardwareID: fmt.Sprintf("%016X", id)})
		if opts.StopOnFirst {
			break
		}
	}

	if len(devices) == 0 {
		if len(errs) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrNoDevicesFound, errors.Join(errs...))
		}
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

// IsPathIgnored reports whether port matches an entry of ignorePaths. Both
// periph names (SPI0.0) and device paths (/dev/spidev0.0) compare case
// insensitively after cleaning.
func IsPathIgnored(port string, ignorePaths []string) bool {
	if port == "" || len(ignorePaths) == 0 {
		return false
	}

	normalized := normalizedPath(port)
	for _, ignore := range ignorePaths {
		if ignore == "" {
			continue
		}
		if port == ignore || normalized == normalizedPath(ignore) {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
