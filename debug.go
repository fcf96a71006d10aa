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
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var (
	debugEnabled atomic.Bool
	debugLogger  atomic.Pointer[slog.Logger]
)

// SetDebugEnabled turns engine debug output on or off
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// SetLogger routes debug output to logger. A nil logger restores slog.Default().
func SetLogger(logger *slog.Logger) {
	debugLogger.Store(logger)
}

// Logger returns the logger used for debug output
func Logger() *slog.Logger {
	if l := debugLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	Logger().Debug(fmt.Sprintf(format, args...), slog.String("component", "uwb"))
}

// debugAttrs logs a structured record when debug output is on
func debugAttrs(msg string, attrs ...slog.Attr) {
	if !debugEnabled.Load() {
		return
	}
	Logger().LogAttrs(context.Background(), slog.LevelDebug, msg,
		append(attrs, slog.String("component", "uwb"))...)
}
