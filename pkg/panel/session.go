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
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// SessionConfig carries everything a Session needs beyond its
// collaborators.
type SessionConfig struct {
	Unlock      UnlockConfig
	SettleDelay time.Duration
}

// Session owns the full lifecycle of one serial link: unlock first, then
// steady-state service. The phase transition is one-way; a session never
// re-enters unlock, it is torn down and replaced instead.
type Session struct {
	port  Port
	clock clockwork.Clock
	// OnReply, if set, is called after every reply in either phase with
	// the answered tile.
	OnReply func(TileID)
	unlock  *UnlockSession
	sched   *Scheduler
	phase   atomic.Int32
}

func NewSession(port Port, reg *Registry, clock clockwork.Clock, cfg SessionConfig) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Session{
		port:   port,
		clock:  clock,
		unlock: NewUnlockSession(port, reg, clock, cfg.Unlock),
		sched:  NewScheduler(port, reg, clock, cfg.SettleDelay),
	}
	s.unlock.OnReply = s.notify
	s.sched.OnReply = s.notify
	s.phase.Store(int32(PhaseUnlocking))
	return s
}

// Phase reports the session's current phase. Safe for concurrent use;
// the dashboard reads it from its own goroutine.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

// Run blocks until the context is cancelled or the transport fails. The
// unlock outcome never stops the session: a panel that missed activation
// often catches up once steady-state replies start flowing.
func (s *Session) Run(ctx context.Context) error {
	result, err := s.unlock.Run(ctx)
	if err != nil {
		return err
	}
	if result == GaveUp && ctx.Err() == nil {
		log.Warn().Msg("entering steady state without confirmed activation")
	}

	s.phase.Store(int32(PhaseSteady))
	if ctx.Err() != nil {
		return nil
	}
	return s.sched.Run(ctx)
}

func (s *Session) notify(id TileID) {
	if s.OnReply != nil {
		s.OnReply(id)
	}
}
