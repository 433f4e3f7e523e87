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

// Package cli holds the flag handling and environment setup shared by
// the platform entry points.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/AtomTileProject/atomtile-core/pkg/helpers"
	"github.com/rs/zerolog"
)

type Flags struct {
	Version *bool
	Config  *bool
	Debug   *bool
	Devices *bool
}

// SetupFlags defines all common CLI flags between platforms.
func SetupFlags() *Flags {
	return &Flags{
		Version: flag.Bool(
			"version",
			false,
			"print version and exit",
		),
		Config: flag.Bool(
			"config",
			false,
			"print config file path and exit",
		),
		Debug: flag.Bool(
			"debug",
			false,
			"enable debug logging",
		),
		Devices: flag.Bool(
			"devices",
			false,
			"list candidate serial devices and exit",
		),
	}
}

// Pre runs flag parsing and actions any immediate flags that don't
// require environment setup. Add any custom flags before running this.
func (f *Flags) Pre() {
	flag.Parse()

	if *f.Version {
		_, _ = fmt.Printf("AtomTile v%s\n", config.AppVersion)
		os.Exit(0)
	}
}

// Post actions all remaining common flags that require the environment
// to be set up. Logging is allowed.
func (f *Flags) Post(cfg *config.Instance) {
	if *f.Config {
		_, _ = fmt.Println(cfg.Path())
		os.Exit(0)
	}

	if *f.Devices {
		devices, err := helpers.GetSerialDeviceList()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error listing serial devices: %v\n", err)
			os.Exit(1)
		}
		if len(devices) == 0 {
			_, _ = fmt.Println("no serial devices found")
		} else {
			_, _ = fmt.Println(strings.Join(devices, "\n"))
		}
		os.Exit(0)
	}

	if *f.Debug {
		cfg.SetDebugLogging(true)
	}
}

// Setup initializes logging and the user config. Returns a user config
// object.
//
//nolint:gocritic // config struct copied for immutability
func Setup(defaultConfig config.Values, writers []io.Writer) *config.Instance {
	err := helpers.InitLogging(writers)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(helpers.ConfigDir(), defaultConfig)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return cfg
}
