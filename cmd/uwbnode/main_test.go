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

package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/ZaparooProject/go-uwb/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestLoadConfig_FlagsOverride(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(&flags{
		configPath: strPtr(""),
		spiPort:    strPtr("SPI1.0"),
		control:    strPtr("/dev/ttyACM0"),
		debug:      boolPtr(true),
		start:      boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "SPI1.0", cfg.Radio.SPIPort)
	assert.Equal(t, "/dev/ttyACM0", cfg.Control.Port)
	assert.True(t, cfg.Log.Debug)
	assert.True(t, cfg.Node.AutoStart)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(&flags{
		configPath: strPtr("/nonexistent/uwbnode.yaml"),
		spiPort:    strPtr(""),
		control:    strPtr(""),
		debug:      boolPtr(false),
		start:      boolPtr(false),
	})
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantDebug bool
		wantJSON  bool
	}{
		{name: "text info", cfg: config.LogConfig{Level: "info", Format: "text"}},
		{name: "json warn", cfg: config.LogConfig{Level: "warn", Format: "json"}, wantJSON: true},
		{name: "debug flag lowers level", cfg: config.LogConfig{Level: "error", Format: "text", Debug: true}, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger, err := newLogger(tt.cfg, &buf)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDebug, logger.Enabled(context.Background(), slog.LevelDebug))

			logger.Error("boom")
			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"boom"`)
			} else {
				assert.Contains(t, buf.String(), "msg=boom")
			}
		})
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	t.Parallel()

	_, err := newLogger(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)
}
