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
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// rotationCounterBound keeps the rotation counter small. Only the value
// modulo the rotation length matters, and the bound is a multiple of the
// rotation length so the wrap never skews tile ordering.
const rotationCounterBound = 1_000_000

// Scheduler answers steady-state polls with a strict round-robin over
// all tiles. One poll, one reply: the counter advances only after a
// reply is written, so noise and timeouts never cost a tile its turn.
type Scheduler struct {
	port  Port
	reg   *Registry
	clock clockwork.Clock
	// OnReply, if set, is called after each reply with the answered tile.
	OnReply  func(TileID)
	rotation []Descriptor
	settle   time.Duration
	counter  int
}

func NewScheduler(port Port, reg *Registry, clock clockwork.Clock, settle time.Duration) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		port:     port,
		reg:      reg,
		clock:    clock,
		rotation: reg.SteadyRotation(),
		settle:   settle,
	}
}

// Run serves polls until the context is cancelled or the transport
// fails.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Int("tiles", len(s.rotation)).Msg("steady-state scheduler running")
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if _, err := s.answerNext(); err != nil {
			return err
		}
	}
}

// answerNext reads one poll and, if valid, replies for the current
// rotation slot. It reports whether a reply was written.
func (s *Scheduler) answerNext() (bool, error) {
	marker, ok, err := ReadPollFrame(s.port)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	desc := s.rotation[s.counter%len(s.rotation)]
	payload := desc.Provider()

	// Steady-state contract: the marker is the panel echoing the last
	// tile id it accepted. It is informational only; replies carry each
	// tile's fixed seq byte.
	seq := s.reg.SeqByteFor(desc.ID)
	frame := BuildReplyFrame(desc.ID, seq, payload)
	if err := writeFrame(s.port, frame, s.clock, s.settle); err != nil {
		return false, err
	}
	if s.OnReply != nil {
		s.OnReply(desc.ID)
	}

	log.Trace().
		Str("tile", desc.ID.String()).
		Uint8("marker", marker).
		Int("payload", len(payload)).
		Msg("answered poll")

	s.counter = (s.counter + 1) % rotationCounterBound
	return true, nil
}
