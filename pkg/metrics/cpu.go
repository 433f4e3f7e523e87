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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AtomTileProject/atomtile-core/pkg/helpers"
	"github.com/spf13/afero"
)

// CPUPayload renders the CPU tile:
// {CPU:<model>;Tempr:<C>;Useage:<pct>;Freq:<kHz>;Tempr1:<C>;}
// The panel shows two temperature slots; the host has one sensor worth
// trusting, so both carry the same value.
func (c *Collector) CPUPayload() string {
	model := c.cpuModel()
	temp := c.cpuTempC()
	usage := c.cpuUsagePct()
	freq := c.cpuFreqKHz()

	c.store.Apply(func(s *Snapshot) {
		s.CPUModel = model
		s.CPUTemp = temp
		s.CPUUsage = usage
		s.CPUFreqKHz = freq
	})

	return fmt.Sprintf("{CPU:%s;Tempr:%d;Useage:%d;Freq:%d;Tempr1:%d;}",
		helpers.SanitizeField(model), temp, usage, freq, temp)
}

func (c *Collector) cpuModel() string {
	ctx, cancel := c.execCtx()
	defer cancel()

	info, err := c.probes.cpuInfo(ctx)
	if err == nil && len(info) > 0 && info[0].ModelName != "" {
		return strings.TrimSpace(info[0].ModelName)
	}
	return "Linux CPU"
}

func (c *Collector) cpuUsagePct() int {
	ctx, cancel := c.execCtx()
	defer cancel()

	pcts, err := c.probes.cpuPercent(ctx, cpuSampleInterval)
	if err != nil || len(pcts) == 0 {
		return 0
	}
	return clampPct(int(math.Round(pcts[0])))
}

// cpuFreqKHz prefers the live scaling frequency from sysfs; gopsutil
// only knows the nominal frequency, which is the fallback.
func (c *Collector) cpuFreqKHz() int {
	for _, p := range []string{
		"/sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq",
		"/sys/devices/system/cpu/cpu0/cpufreq/cpuinfo_cur_freq",
	} {
		if khz, err := strconv.Atoi(c.readTrimmed(p)); err == nil && khz >= 0 {
			return khz
		}
	}

	ctx, cancel := c.execCtx()
	defer cancel()
	info, err := c.probes.cpuInfo(ctx)
	if err == nil && len(info) > 0 && info[0].Mhz > 0 {
		return int(info[0].Mhz * 1000)
	}
	return 0
}

// cpuTempC returns the first hwmon temperature found. Values above 1000
// are millidegrees.
func (c *Collector) cpuTempC() int {
	mons, err := afero.Glob(c.fs, "/sys/class/hwmon/hwmon*")
	if err != nil {
		return 0
	}
	for _, hm := range mons {
		for n := 0; n < 8; n++ {
			v, err := strconv.Atoi(c.readTrimmed(fmt.Sprintf("%s/temp%d_input", hm, n)))
			if err != nil {
				continue
			}
			if v > 1000 {
				return v / 1000
			}
			return v
		}
	}
	return 0
}

// readTrimmed reads a small sysfs/procfs file, empty string on any
// failure.
func (c *Collector) readTrimmed(path string) string {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
