// AtomTile Core
// Copyright (c) 2026 The AtomTile Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of AtomTile Core.
//
// AtomTile Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// AtomTile Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with AtomTile Core.  If not, see <http://www.gnu.org/licenses/>.

package panel

import (
	"fmt"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// Port is the subset of a serial port the session uses (for mocking in
// tests). The DTR line doubles as the panel's link reset control.
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
	SetDTR(dtr bool) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// PortFactory creates a serial port connection.
type PortFactory func(path string, mode *serial.Mode) (Port, error)

// DefaultPortFactory is the default factory that opens real serial ports.
func DefaultPortFactory(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// OpenPort opens and configures the panel's serial port per config. The
// receive buffers are flushed so a reboot mid-poll doesn't leave half a
// frame queued; flush failures are logged and ignored, matching how
// little the panel cares.
func OpenPort(cfg *config.Instance, factory PortFactory) (Port, error) {
	if factory == nil {
		factory = DefaultPortFactory
	}

	mode := &serial.Mode{
		BaudRate: cfg.PanelBaudRate(),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
		InitialStatusBits: &serial.ModemOutputBits{
			RTS: cfg.PanelRTSCTS(),
			DTR: cfg.PanelDSRDTR(),
		},
	}

	port, err := factory(cfg.PanelDevice(), mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open panel port %s: %w", cfg.PanelDevice(), err)
	}

	if err := port.SetReadTimeout(cfg.ReadTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		log.Debug().Err(err).Msg("failed to reset input buffer")
	}
	if err := port.ResetOutputBuffer(); err != nil {
		log.Debug().Err(err).Msg("failed to reset output buffer")
	}

	return port, nil
}
