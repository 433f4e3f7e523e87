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
	"context"
	"testing"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/panel/testutils"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionUnlocksThenServes(t *testing.T) {
	t.Parallel()

	// Five boot frames to activate, then eight steady-state polls.
	steps := make([]testutils.ReadStep, 0, 13)
	for _, marker := range []byte{'1', '2', '3', '4', '5'} {
		steps = append(steps, testutils.FrameStep(pollFrame(marker)))
	}
	for i := 0; i < 8; i++ {
		steps = append(steps, testutils.FrameStep(pollFrame(byte(TileCPU))))
	}
	port := testutils.NewMockPort(steps...)
	clock := clockwork.NewFakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reads := 0
	port.AfterRead = func() {
		reads++
		clock.Advance(50 * time.Millisecond)
		if reads >= 13*PollFrameLen {
			cancel()
		}
	}

	session := NewSession(port, testRegistry(), clock, SessionConfig{
		Unlock: testUnlockConfig(),
	})
	assert.Equal(t, PhaseUnlocking, session.Phase())

	var replies int
	session.OnReply = func(TileID) { replies++ }

	err := session.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseSteady, session.Phase())

	frames := port.WrittenFrames()
	require.Len(t, frames, 13)
	assert.Equal(t, 13, replies)

	// Unlock replies echo the boot marker; steady replies switch to the
	// fixed per-tile seq chars restarting from the head of the rotation.
	assert.Equal(t, byte('1'), frames[0][3])
	assert.Equal(t, byte('5'), frames[4][3])
	assert.Equal(t, byte(TileCPU), frames[5][1])
	assert.Equal(t, byte('2'), frames[5][3])
	assert.Equal(t, byte(TileBattery), frames[12][1])
	assert.Equal(t, byte('2'), frames[12][3])
}

func TestSessionEntersSteadyAfterGiveUp(t *testing.T) {
	t.Parallel()

	// A panel that never activates still gets steady-state service:
	// silence through both unlock attempts (three timed-out reads per
	// 500ms window at 200ms a read), then one valid poll.
	steps := make([]testutils.ReadStep, 0, 7)
	for i := 0; i < 6; i++ {
		steps = append(steps, testutils.TimeoutStep())
	}
	steps = append(steps, testutils.FrameStep(pollFrame(byte(TileCPU))))
	port := testutils.NewMockPort(steps...)
	clock := clockwork.NewFakeClock()

	cfg := testUnlockConfig()
	cfg.Attempts = 2
	cfg.Window = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reads := 0
	session := NewSession(port, testRegistry(), clock, SessionConfig{Unlock: cfg})
	port.AfterRead = func() {
		reads++
		clock.Advance(200 * time.Millisecond)
		if reads >= 6+PollFrameLen {
			cancel()
		}
	}

	err := session.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseSteady, session.Phase())
	require.Len(t, port.WrittenFrames(), 1)
	assert.Equal(t, byte(TileCPU), port.WrittenFrames()[0][1])
}
