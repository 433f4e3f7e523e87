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
	"errors"
	"testing"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/panel/testutils"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testUnlockConfig has zero sleep durations so a fake clock can drive
// every loop without blocking.
func testUnlockConfig() UnlockConfig {
	return UnlockConfig{
		Attempts:    3,
		Window:      5 * time.Second,
		BootMarkers: 3,
		PollCount:   5,
		PollWindow:  2 * time.Second,
	}
}

// advancePerRead wires the mock port to a fake clock so each read moves
// simulated time forward by step.
func advancePerRead(port *testutils.MockPort, clock *clockwork.FakeClock, step time.Duration) {
	port.AfterRead = func() { clock.Advance(step) }
}

func TestUnlockActivates(t *testing.T) {
	t.Parallel()

	// Five boot-marker frames arriving briskly: enough markers and
	// enough arrivals inside the trailing window.
	port := testutils.NewMockPort(
		testutils.FrameStep(pollFrame('1')),
		testutils.FrameStep(pollFrame('2')),
		testutils.FrameStep(pollFrame('3')),
		testutils.FrameStep(pollFrame('4')),
		testutils.FrameStep(pollFrame('<')),
	)
	clock := clockwork.NewFakeClock()
	advancePerRead(port, clock, 50*time.Millisecond)

	session := NewUnlockSession(port, testRegistry(), clock, testUnlockConfig())
	var replied []TileID
	session.OnReply = func(id TileID) { replied = append(replied, id) }

	result, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Activated, result)

	// Replies cycle cpu, gpu, memory and echo the received marker as
	// their seq byte.
	frames := port.WrittenFrames()
	require.Len(t, frames, 5)
	assert.Equal(t,
		[]TileID{TileCPU, TileGPU, TileMemory, TileCPU, TileGPU},
		replied)
	wantMarkers := []byte{'1', '2', '3', '4', '<'}
	for i, frame := range frames {
		assert.Equal(t, byte(replied[i]), frame[1], "frame %d tile", i)
		assert.Equal(t, wantMarkers[i], frame[3], "frame %d seq echo", i)
	}

	// Activation on the first attempt means no reset pulse was needed.
	assert.Empty(t, port.DTRTransitions())
}

func TestUnlockGivesUpOnSilentPanel(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort() // nothing but timeouts
	clock := clockwork.NewFakeClock()
	advancePerRead(port, clock, 500*time.Millisecond)

	session := NewUnlockSession(port, testRegistry(), clock, testUnlockConfig())
	result, err := session.Run(context.Background())
	require.NoError(t, err, "giving up is not an error")
	assert.Equal(t, GaveUp, result)
	assert.Empty(t, port.WrittenFrames())

	// A reset pulse between attempts, but none after the last: two
	// pulses of drop-then-reassert.
	assert.Equal(t, []bool{false, true, false, true}, port.DTRTransitions())
}

func TestUnlockNeedsBootMarkers(t *testing.T) {
	t.Parallel()

	// Plenty of polls, but every marker is a steady-state tile echo, so
	// boot identity is never confirmed.
	steps := make([]testutils.ReadStep, 0, 8)
	for i := 0; i < 8; i++ {
		steps = append(steps, testutils.FrameStep(pollFrame(byte(TileCPU))))
	}
	port := testutils.NewMockPort(steps...)
	clock := clockwork.NewFakeClock()
	advancePerRead(port, clock, 50*time.Millisecond)

	cfg := testUnlockConfig()
	cfg.Attempts = 1
	session := NewUnlockSession(port, testRegistry(), clock, cfg)

	result, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, GaveUp, result)

	// The polls were still answered while waiting for activation.
	assert.Len(t, port.WrittenFrames(), 8)
}

func TestUnlockNeedsPollRate(t *testing.T) {
	t.Parallel()

	// Boot markers arrive, but so slowly that the trailing arrival
	// window never holds enough of them.
	steps := make([]testutils.ReadStep, 0, 6)
	for i := 0; i < 6; i++ {
		steps = append(steps, testutils.FrameStep(pollFrame('1')))
	}
	port := testutils.NewMockPort(steps...)
	clock := clockwork.NewFakeClock()
	// 7 reads per frame puts 2.1s between arrivals, past the 2s window.
	advancePerRead(port, clock, 300*time.Millisecond)

	cfg := testUnlockConfig()
	cfg.Attempts = 1
	cfg.Window = 60 * time.Second
	session := NewUnlockSession(port, testRegistry(), clock, cfg)

	result, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, GaveUp, result)
}

func TestUnlockTransportErrorIsFatal(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("input/output error")
	port := testutils.NewMockPort(
		testutils.FrameStep(pollFrame('1')),
		testutils.ReadStep{Err: wantErr},
	)
	clock := clockwork.NewFakeClock()
	advancePerRead(port, clock, 50*time.Millisecond)

	session := NewUnlockSession(port, testRegistry(), clock, testUnlockConfig())
	_, err := session.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestUnlockStopsOnCancel(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockPort()
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	reads := 0
	port.AfterRead = func() {
		reads++
		if reads > 3 {
			cancel()
		}
		clock.Advance(100 * time.Millisecond)
	}

	session := NewUnlockSession(port, testRegistry(), clock, testUnlockConfig())
	result, err := session.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, GaveUp, result)
}
