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

// Package service assembles and runs the panel driver: serial port,
// metric collector, weather client, and the unlock/steady session on a
// single goroutine. A transport failure is fatal by design; the process
// exits and the supervisor restarts it with a fresh link.
package service

import (
	"context"
	"fmt"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/AtomTileProject/atomtile-core/pkg/metrics"
	"github.com/AtomTileProject/atomtile-core/pkg/panel"
	"github.com/AtomTileProject/atomtile-core/pkg/weather"
	"github.com/jonboulle/clockwork"
	"github.com/mackerelio/go-osstat/uptime"
	"github.com/rs/zerolog/log"
)

// Options carries optional collaborator overrides for Start.
type Options struct {
	// PortFactory overrides how the serial port is opened. Nil means a
	// real port.
	PortFactory panel.PortFactory
	// Clock overrides all timing. Nil means the wall clock.
	Clock clockwork.Clock
}

// Service is a running panel driver.
type Service struct {
	cfg     *config.Instance
	port    panel.Port
	session *panel.Session
	store   *metrics.SnapshotStore
	weather *weather.Client
	cancel  context.CancelFunc
	fatal   chan error
	done    chan struct{}
}

// Start brings the driver up: waits out the start delay, opens the
// port, and launches the session. The returned service is already
// serving.
func Start(cfg *config.Instance, opts Options) (*Service, error) {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	log.Info().
		Str("version", config.AppVersion).
		Str("device", cfg.PanelDevice()).
		Int("baud", cfg.PanelBaudRate()).
		Bool("rtscts", cfg.PanelRTSCTS()).
		Bool("dsrdtr", cfg.PanelDSRDTR()).
		Msg("starting panel service")
	if up, err := uptime.Get(); err == nil {
		log.Info().Dur("uptime", up).Msg("host uptime")
	}

	// USB CDC enumeration and fan spin-up lag behind boot; opening the
	// port too early just fails.
	if delay := cfg.StartDelay(); delay > 0 {
		log.Info().Dur("delay", delay).Msg("waiting before opening serial port")
		clock.Sleep(delay)
	}

	port, err := panel.OpenPort(cfg, opts.PortFactory)
	if err != nil {
		return nil, fmt.Errorf("failed to open panel port: %w", err)
	}

	weatherClient := weather.NewClient(cfg, clock)
	collector := metrics.NewCollector(cfg, metrics.CollectorOpts{
		Clock:   clock,
		Weather: weatherClient,
	})
	registry := panel.NewRegistry(collector.Providers())

	session := panel.NewSession(port, registry, clock, panel.SessionConfig{
		SettleDelay: cfg.WriteSettle(),
		Unlock: panel.UnlockConfig{
			Attempts:     cfg.UnlockAttempts(),
			Window:       cfg.UnlockWindow(),
			BootMarkers:  cfg.ActivationBootMarkers(),
			PollCount:    cfg.ActivationPollCount(),
			PollWindow:   cfg.ActivationPollWindow(),
			SettleDelay:  cfg.WriteSettle(),
			PulseLow:     panel.DefaultPulseLow,
			PulseRecover: panel.DefaultPulseRecover,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		cfg:     cfg,
		port:    port,
		session: session,
		store:   collector.Store(),
		weather: weatherClient,
		cancel:  cancel,
		fatal:   make(chan error, 1),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(svc.done)
		if err := session.Run(ctx); err != nil {
			log.Error().Err(err).Msg("panel session failed")
			svc.fatal <- err
		}
	}()

	return svc, nil
}

// Phase reports the session phase for the dashboard.
func (s *Service) Phase() panel.Phase {
	return s.session.Phase()
}

// Store exposes the live metric snapshot.
func (s *Service) Store() *metrics.SnapshotStore {
	return s.store
}

// Weather exposes the weather cache for the dashboard.
func (s *Service) Weather() *weather.Client {
	return s.weather
}

// Fatal signals an unrecoverable session error. The channel never
// closes; a read only ever yields a real failure.
func (s *Service) Fatal() <-chan error {
	return s.fatal
}

// Stop winds the session down and closes the port.
func (s *Service) Stop() error {
	s.cancel()
	<-s.done
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("failed to close panel port: %w", err)
	}
	log.Info().Msg("panel service stopped")
	return nil
}
