//go:build linux

/*
AtomTile Core
Copyright (c) 2026 The AtomTile Project Contributors.

This file is part of AtomTile Core.

AtomTile Core is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

AtomTile Core is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with AtomTile Core.  If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/cli"
	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/AtomTileProject/atomtile-core/pkg/service"
	"github.com/AtomTileProject/atomtile-core/pkg/ui/tui"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

//nolint:gocognit // flag plumbing reads better flat
func run() error {
	flags := cli.SetupFlags()

	daemonMode := flag.Bool(
		"daemon",
		false,
		"run service in foreground with no UI",
	)
	device := flag.String(
		"device",
		"",
		"serial device path of the panel",
	)
	attempts := flag.Int(
		"attempts",
		0,
		"unlock attempts before giving up",
	)
	window := flag.Float64(
		"window",
		0,
		"unlock attempt window in seconds",
	)
	startDelay := flag.Float64(
		"start-delay",
		-1,
		"delay in seconds before opening the serial port",
	)
	fanPrefer := flag.String(
		"fan-prefer",
		"",
		"fan rpm source: auto, hwmon or nvidia",
	)
	fanMaxRPM := flag.Int(
		"fan-max-rpm",
		0,
		"assumed max rpm when scaling nvidia fan percent",
	)

	flags.Pre()

	// The dashboard owns the terminal, so console logging is only safe
	// in daemon mode.
	var logWriters []io.Writer
	if *daemonMode {
		logWriters = []io.Writer{os.Stderr}
	}

	cfg := cli.Setup(config.BaseDefaults, logWriters)

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	flags.Post(cfg)

	// Flag overrides beat the config file for this run only; nothing is
	// written back.
	if *device != "" {
		cfg.SetPanelDevice(*device)
	}
	if isFlagPassed("attempts") {
		cfg.SetUnlockAttempts(*attempts)
	}
	if isFlagPassed("window") {
		cfg.SetUnlockWindow(time.Duration(*window * float64(time.Second)))
	}
	if isFlagPassed("start-delay") {
		cfg.SetStartDelay(time.Duration(*startDelay * float64(time.Second)))
	}
	if *fanPrefer != "" {
		cfg.SetFanPrefer(*fanPrefer)
	}
	if isFlagPassed("fan-max-rpm") {
		cfg.SetFanMaxRPM(*fanMaxRPM)
	}

	svc, err := service.Start(cfg, service.Options{})
	if err != nil {
		log.Error().Err(err).Msg("error starting service")
		return fmt.Errorf("error starting service: %w", err)
	}
	defer func() {
		if err := svc.Stop(); err != nil {
			log.Error().Err(err).Msg("error stopping service")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	if *daemonMode {
		log.Info().Msg("started in daemon mode")
		select {
		case <-sigs:
			return nil
		case err := <-svc.Fatal():
			// Exit non-zero so the supervisor restarts us with a fresh
			// serial link.
			return fmt.Errorf("panel session failed: %w", err)
		}
	}

	// Default to showing the live dashboard.
	stop := make(chan struct{})
	var fatalErr error
	go func() {
		select {
		case <-sigs:
		case fatalErr = <-svc.Fatal():
		}
		close(stop)
	}()

	dash := tui.New(cfg, svc.Store(), svc.Weather(), svc.Phase)
	if err := dash.Run(stop); err != nil {
		log.Error().Err(err).Msg("error running dashboard")
		return fmt.Errorf("error running dashboard: %w", err)
	}
	if fatalErr != nil {
		return fmt.Errorf("panel session failed: %w", fatalErr)
	}

	return nil
}
