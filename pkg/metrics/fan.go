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

package metrics

import (
	"math"
	"strconv"
	"strings"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/spf13/afero"
)

// noFanRPM is the sentinel sent when no fan source can be read.
const noFanRPM = -1

// fanRPM probes fan speed from the configured preferred source, falling
// back to the other one. hwmon reports RPM directly; nvidia-smi reports
// a percentage scaled by the configured maximum RPM.
func (c *Collector) fanRPM() int {
	switch c.cfg.FanPrefer() {
	case config.FanPreferHwmon:
		if v, ok := c.fanFromHwmon(); ok {
			return v
		}
		if v, ok := c.fanFromNvidia(); ok {
			return v
		}
	case config.FanPreferNvidia:
		if v, ok := c.fanFromNvidia(); ok {
			return v
		}
		if v, ok := c.fanFromHwmon(); ok {
			return v
		}
	default: // auto
		if v, ok := c.fanFromHwmon(); ok {
			return v
		}
		if v, ok := c.fanFromNvidia(); ok {
			return v
		}
	}
	return noFanRPM
}

// fanFromHwmon returns the fastest spinning fan known to hwmon.
func (c *Collector) fanFromHwmon() (int, bool) {
	mons, err := afero.Glob(c.fs, "/sys/class/hwmon/hwmon*")
	if err != nil {
		return 0, false
	}

	best := 0
	found := false
	for _, hm := range mons {
		fans, err := afero.Glob(c.fs, hm+"/fan*_input")
		if err != nil {
			continue
		}
		for _, fan := range fans {
			v, err := strconv.Atoi(c.readTrimmed(fan))
			if err != nil || v <= 0 {
				continue
			}
			if !found || v > best {
				best = v
			}
			found = true
		}
	}
	return best, found
}

func (c *Collector) fanFromNvidia() (int, bool) {
	ctx, cancel := c.execCtx()
	defer cancel()

	out, err := c.exec.Output(ctx, "nvidia-smi",
		"--query-gpu=fan.speed", "--format=csv,noheader,nounits")
	if err != nil || len(out) == 0 {
		return 0, false
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	percent, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, false
	}

	maxRPM := c.cfg.FanMaxRPM()
	if maxRPM < 1 {
		maxRPM = 1
	}
	return int(math.Round(percent / 100.0 * float64(maxRPM))), true
}
