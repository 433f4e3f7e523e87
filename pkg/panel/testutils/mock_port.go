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

package testutils

import (
	"errors"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/helpers/syncutil"
)

// ReadStep is a single scripted outcome for MockPort.Read.
type ReadStep struct {
	// Err, if set, is returned as a transport failure.
	Err error
	// Data is drained byte by byte before the next step begins. An empty
	// Data with a nil Err models a read timeout, which serial ports
	// report as (0, nil).
	Data []byte
}

// MockPort is a script-driven serial port for testing the panel link.
// Reads consume the script in order; writes and DTR transitions are
// recorded for assertions.
type MockPort struct {
	// AfterRead, if set, runs after every Read call. Tests use it to
	// advance a fake clock so time-bounded loops make progress.
	AfterRead  func()
	ReadErr    error
	CloseErr   error
	TimeoutErr error
	Script     []ReadStep
	Writes     [][]byte
	DTRStates  []bool
	step       int
	offset     int
	Closed     bool
	Flushed    bool
	mu         syncutil.RWMutex
}

// NewMockPort creates a mock port that replays the given read script.
func NewMockPort(script ...ReadStep) *MockPort {
	return &MockPort{Script: script}
}

// FrameStep is a convenience for a step that yields one complete frame.
func FrameStep(frame []byte) ReadStep {
	return ReadStep{Data: frame}
}

// TimeoutStep is a convenience for a step that models a read timeout.
func TimeoutStep() ReadStep {
	return ReadStep{}
}

// Read yields one byte per call from the current script step. Serving
// bytes singly matches the framer's strict byte-at-a-time consumption
// and exercises its resynchronization paths.
func (m *MockPort) Read(p []byte) (int, error) {
	defer func() {
		if m.AfterRead != nil {
			m.AfterRead()
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, errors.New("port closed")
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if m.step >= len(m.Script) {
		// Script exhausted: behave like a quiet line.
		return 0, nil
	}

	cur := m.Script[m.step]
	if cur.Err != nil {
		m.step++
		m.offset = 0
		return 0, cur.Err
	}
	if m.offset >= len(cur.Data) {
		m.step++
		m.offset = 0
		return 0, nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	p[0] = cur.Data[m.offset]
	m.offset++
	if m.offset >= len(cur.Data) {
		m.step++
		m.offset = 0
	}
	return 1, nil
}

// Write records the frame for later assertions.
func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, errors.New("port closed")
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	m.Writes = append(m.Writes, buf)
	return len(p), nil
}

// Close implements the Close method for serial ports.
func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseErr
}

// SetReadTimeout implements the SetReadTimeout method for serial ports.
func (m *MockPort) SetReadTimeout(_ time.Duration) error {
	return m.TimeoutErr
}

// SetDTR records the DTR transition.
func (m *MockPort) SetDTR(state bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DTRStates = append(m.DTRStates, state)
	return nil
}

// ResetInputBuffer implements the corresponding serial port method.
func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flushed = true
	return nil
}

// ResetOutputBuffer implements the corresponding serial port method.
func (m *MockPort) ResetOutputBuffer() error {
	return nil
}

// WrittenFrames returns a snapshot of all recorded writes (thread-safe).
func (m *MockPort) WrittenFrames() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	frames := make([][]byte, len(m.Writes))
	copy(frames, m.Writes)
	return frames
}

// DTRTransitions returns a snapshot of recorded DTR states (thread-safe).
func (m *MockPort) DTRTransitions() []bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make([]bool, len(m.DTRStates))
	copy(states, m.DTRStates)
	return states
}

// IsClosed returns true if the port has been closed (thread-safe).
func (m *MockPort) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Closed
}
