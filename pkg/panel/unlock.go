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
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DTR reset pulse shape. The low time only has to register with the
// adapter; the recovery time gives the panel firmware room to settle
// before frames start flowing again.
const (
	DefaultPulseLow     = 50 * time.Millisecond
	DefaultPulseRecover = 300 * time.Millisecond
)

// UnlockConfig bounds the bootstrap handshake. The activation thresholds
// are empirically tuned to the panel's firmware timing; they are
// configuration, not protocol.
type UnlockConfig struct {
	// Attempts is the total number of unlock attempts before giving up.
	Attempts int
	// Window bounds a single attempt.
	Window time.Duration
	// BootMarkers is the minimum count of boot-mode markers that must be
	// seen within one attempt.
	BootMarkers int
	// PollCount is the minimum number of poll arrivals that must fall
	// inside a trailing PollWindow interval.
	PollCount int
	// PollWindow is the trailing interval for the arrival-rate check.
	PollWindow time.Duration
	// SettleDelay is the pause after every reply write.
	SettleDelay time.Duration
	// PulseLow and PulseRecover shape the DTR reset pulse between
	// failed attempts.
	PulseLow     time.Duration
	PulseRecover time.Duration
}

// UnlockResult is the terminal state of the unlock state machine.
type UnlockResult int

const (
	// Activated means the panel confirmed boot identity and reached its
	// normal high-rate poll cadence.
	Activated UnlockResult = iota
	// GaveUp means every attempt timed out. Non-fatal: the scheduler
	// proceeds regardless, as the panel may still display content once
	// live traffic resumes.
	GaveUp
)

// UnlockSession answers boot-mode polls until the panel activates,
// retrying with a DTR reset pulse between attempts. The unit of retry is
// the whole attempt window: the panel's handshake is cumulative state,
// not a per-frame acknowledgment, so individual frames are never
// retried.
type UnlockSession struct {
	port  Port
	reg   *Registry
	clock clockwork.Clock
	// OnReply, if set, is called after each reply with the answered tile.
	OnReply func(TileID)
	cfg     UnlockConfig
}

func NewUnlockSession(port Port, reg *Registry, clock clockwork.Clock, cfg UnlockConfig) *UnlockSession {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &UnlockSession{
		port:  port,
		reg:   reg,
		clock: clock,
		cfg:   cfg,
	}
}

// Run drives the unlock attempts to a terminal result. A returned error
// is a transport failure and fatal to the session.
func (s *UnlockSession) Run(ctx context.Context) (UnlockResult, error) {
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		activated, err := s.attempt(ctx, attempt)
		if err != nil {
			return GaveUp, err
		}
		if activated {
			log.Info().Int("attempt", attempt).Msg("panel activated")
			return Activated, nil
		}
		if ctx.Err() != nil {
			return GaveUp, nil
		}
		if attempt < s.cfg.Attempts {
			s.pulseReset()
		}
	}

	log.Warn().
		Int("attempts", s.cfg.Attempts).
		Msg("panel may not be fully activated, continuing anyway")
	return GaveUp, nil
}

func (s *UnlockSession) attempt(ctx context.Context, n int) (bool, error) {
	log.Info().
		Int("attempt", n).
		Int("total", s.cfg.Attempts).
		Dur("window", s.cfg.Window).
		Msg("unlock attempt: echoing markers with cpu/gpu/memory rotation")

	rotation := s.reg.UnlockRotation()
	deadline := s.clock.Now().Add(s.cfg.Window)
	idx := 0
	bootMarkers := 0
	var arrivals []time.Time

	for s.clock.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false, nil
		}

		marker, ok, err := ReadPollFrame(s.port)
		if err != nil {
			return false, fmt.Errorf("poll read failed: %w", err)
		}
		if !ok {
			continue
		}

		now := s.clock.Now()
		arrivals = append(arrivals, now)
		arrivals = pruneArrivals(arrivals, now.Add(-s.cfg.PollWindow))

		desc := rotation[idx%len(rotation)]
		payload := desc.Provider()

		// Boot-mode contract: the reply's seq byte echoes the received
		// marker. The panel authenticates the host by seeing its own
		// marker reflected back.
		frame := BuildReplyFrame(desc.ID, marker, payload)
		if err := writeFrame(s.port, frame, s.clock, s.cfg.SettleDelay); err != nil {
			return false, err
		}
		if s.OnReply != nil {
			s.OnReply(desc.ID)
		}

		idx++
		if IsBootMarker(marker) {
			bootMarkers++
		}

		// Activation needs both: repeated boot identity confirmation and
		// a poll rate brisk enough to indicate the panel accepted us.
		if bootMarkers >= s.cfg.BootMarkers && len(arrivals) >= s.cfg.PollCount {
			return true, nil
		}
	}

	log.Info().Int("attempt", n).Msg("no activation within window")
	return false, nil
}

// pulseReset drops and reasserts DTR to force the panel to reset its
// link state before the next attempt. Failures are ignored: not every
// adapter wires the line, and the next attempt may succeed regardless.
func (s *UnlockSession) pulseReset() {
	if err := s.port.SetDTR(false); err != nil {
		log.Debug().Err(err).Msg("failed to deassert DTR")
		return
	}
	if s.cfg.PulseLow > 0 {
		s.clock.Sleep(s.cfg.PulseLow)
	}
	if err := s.port.SetDTR(true); err != nil {
		log.Debug().Err(err).Msg("failed to reassert DTR")
	}
	if s.cfg.PulseRecover > 0 {
		s.clock.Sleep(s.cfg.PulseRecover)
	}
}

// pruneArrivals drops timestamps before cutoff. Arrivals are appended in
// order, so the slice stays sorted.
func pruneArrivals(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	return ts[i:]
}

// writeFrame writes a reply and observes the settle delay before the
// caller's next read. The panel's receive buffer needs the pause;
// omitting it drops replies on real hardware, so it is part of the write
// contract.
func writeFrame(p Port, frame []byte, clock clockwork.Clock, settle time.Duration) error {
	if _, err := p.Write(frame); err != nil {
		return fmt.Errorf("reply write failed: %w", err)
	}
	if settle > 0 {
		clock.Sleep(settle)
	}
	return nil
}
