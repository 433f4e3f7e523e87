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

package service

import (
	"errors"
	"testing"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/AtomTileProject/atomtile-core/pkg/panel"
	"github.com/AtomTileProject/atomtile-core/pkg/panel/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// testConfig returns a config tuned so a full unlock cycle resolves in
// tens of milliseconds on the wall clock.
func testConfig(t *testing.T) *config.Instance {
	t.Helper()
	defaults := config.BaseDefaults
	defaults.Panel.StartDelaySecs = 0
	defaults.Panel.WriteSettleMs = 0
	defaults.Unlock.Attempts = 1
	defaults.Unlock.WindowSecs = 0.05
	cfg, err := config.NewConfig(t.TempDir(), defaults)
	require.NoError(t, err)
	return cfg
}

func mockFactory(port *testutils.MockPort) panel.PortFactory {
	return func(_ string, _ *serial.Mode) (panel.Port, error) {
		return port, nil
	}
}

func TestServiceStartsAndStops(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.Script = []testutils.ReadStep{
		testutils.FrameStep([]byte{0xAA, 0x05, byte(panel.TileCPU), 0xCC, 0x33, 0xC3, 0x3C}),
	}

	svc, err := Start(testConfig(t), Options{PortFactory: mockFactory(port)})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.Phase() == panel.PhaseSteady
	}, 2*time.Second, 5*time.Millisecond, "session never reached steady state")

	require.NoError(t, svc.Stop())

	assert.True(t, port.IsClosed())
	assert.NotEmpty(t, port.WrittenFrames(), "scripted poll should have been answered")
	select {
	case err := <-svc.Fatal():
		t.Fatalf("unexpected fatal error: %v", err)
	default:
	}
}

func TestServiceFatalOnTransportError(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	port.ReadErr = errors.New("device unplugged")

	svc, err := Start(testConfig(t), Options{PortFactory: mockFactory(port)})
	require.NoError(t, err)

	select {
	case err := <-svc.Fatal():
		require.ErrorContains(t, err, "device unplugged")
	case <-time.After(2 * time.Second):
		t.Fatal("transport error never surfaced as fatal")
	}

	require.NoError(t, svc.Stop())
	assert.True(t, port.IsClosed())
}

func TestServicePortOpenFailure(t *testing.T) {
	t.Parallel()

	factory := func(_ string, _ *serial.Mode) (panel.Port, error) {
		return nil, errors.New("no such device")
	}

	svc, err := Start(testConfig(t), Options{PortFactory: factory})
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.ErrorContains(t, err, "no such device")
}
