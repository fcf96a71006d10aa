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

import (
	"fmt"

	"github.com/ZaparooProject/go-uwb"
)

// roundFunc runs one ranging round for a role
type roundFunc func(r *Runner, snap uwb.SettingsSnapshot) error

// roundFor selects the round a role runs for a measurement type. The three
// calibration roles ignore the measurement type.
func roundFor(role uwb.Role, mt uwb.MeasurementType) (roundFunc, error) {
	switch role {
	case uwb.RoleCalibA:
		return (*Runner).calibARound, nil
	case uwb.RoleCalibB:
		return (*Runner).calibBRound, nil
	case uwb.RoleCalibC:
		return (*Runner).calibCRound, nil
	case uwb.RoleInitiator:
		switch mt {
		case uwb.MeasurementSSTWR:
			return (*Runner).ssInitiatorRound, nil
		case uwb.MeasurementDS3TWR:
			return (*Runner).dsInitiatorRound, nil
		}
	case uwb.RoleResponder:
		switch mt {
		case uwb.MeasurementSSTWR:
			return (*Runner).ssResponderRound, nil
		case uwb.MeasurementDS3TWR:
			return (*Runner).dsResponderRound, nil
		}
	}
	return nil, fmt.Errorf("%w: role %v with %v", uwb.ErrInvalidParameter, role, mt)
}

// responders returns the addresses an initiator sweeps
func responders(count uint8) []uint8 {
	ids := make([]uint8, 0, count)
	for i := 0; i < int(count); i++ {
		ids = append(ids, uint8(uwb.ResponderIDBase+i))
	}
	return ids
}

// matchReply verifies that h answers the frame this node sent to peer with
// sequence seq. A stray frame leaves the receiver as a failed reception
// would, so its status is cleared before the next attempt.
func (r *Runner) matchReply(h uwb.Header, seq, own, peer uint8) error {
	if h.Sequence == seq && h.Source == peer && h.Dest == own {
		return nil
	}
	return r.rejectFrame(h, fmt.Errorf("%w: %v seq=%d %d->%d, want seq=%d %d->%d",
		uwb.ErrFrameDest, h.Kind, h.Sequence, h.Source, h.Dest, seq, peer, own))
}

// matchDest verifies that an unsolicited frame is addressed to this node
func (r *Runner) matchDest(h uwb.Header, own uint8) error {
	if h.Dest == own {
		return nil
	}
	return r.rejectFrame(h, fmt.Errorf("%w: %v for %d, own id %d",
		uwb.ErrFrameDest, h.Kind, h.Dest, own))
}

func (r *Runner) rejectFrame(h uwb.Header, cause error) error {
	if err := r.device.ClearRxStatus(); err != nil {
		return err
	}
	return uwb.NewRadioError("match "+h.Kind.String(), cause, 0)
}
