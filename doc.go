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

/*
Package uwb provides a pure Go distance engine for DW3000 class ultra-wideband
radios using two-way ranging.

Two devices exchange a handful of short frames and timestamp every
transmission and reception with the radio's 40-bit clock (one tick is
1/(128*499.2 MHz), about 15.65 ps). The timestamps give the time of flight and
so the distance, with no clock synchronization between the devices.

Features:
  - Single sided two-way ranging with carrier offset correction
  - Double sided three message ranging (drift cancelling)
  - Two device antenna delay calibration observed by a third device
  - Optional CIR diagnostics with line of sight classification
  - Transport abstraction with a SPI implementation and a scripted mock
  - Settings shared safely between a control channel and the ranging loop

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-uwb"
	    "github.com/ZaparooProject/go-uwb/ranging"
	    "github.com/ZaparooProject/go-uwb/transport/spi"
	)

	transport, err := spi.New("SPI0.0", spi.WithResetPin("GPIO25"))
	if err != nil {
	    log.Fatal(err)
	}

	device, err := uwb.New(transport, uwb.WithChannel(uwb.Channel9))
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	settings := device.Settings()
	_ = settings.SetRole(uwb.RoleInitiator)
	_ = settings.SetMeasurementType(uwb.MeasurementDS3TWR)
	settings.Start()

	runner, err := ranging.NewRunner(device, sink)
	if err != nil {
	    log.Fatal(err)
	}
	err = runner.Run(ctx)

Frames:

Every frame starts with a four byte header (kind, sequence, source,
destination) followed by zero to three little endian 32-bit timestamps and a
two byte checksum. Decode rejects a frame whose length or kind does not match
the expected variant, and CheckMessage clears the receive status once on
every failure so the next attempt starts clean.

Error Handling:

Errors wrap sentinels that can be inspected with errors.Is. IsRecoverable
tells the ranging loop whether to abandon the round and carry on:

	if uwb.IsRecoverable(err) {
	    // timeout, bad frame or late transmit, try the next round
	}

Thread Safety:

Device is not thread-safe; one ranging loop owns it. Settings is safe for
concurrent use and is the only state shared with other goroutines.
*/
package uwb
