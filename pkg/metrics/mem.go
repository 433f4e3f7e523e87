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
	"regexp"
	"strings"

	"github.com/AtomTileProject/atomtile-core/pkg/helpers"
)

var (
	dmiManufacturerRe  = regexp.MustCompile(`(?im)^\s*Manufacturer:\s*(.+)$`)
	lshwManufacturerRe = regexp.MustCompile(`(?im)^\s*manufacturer:\s*(.+)$`)

	// DMI placeholder strings boards ship instead of a real vendor.
	dmiPlaceholders = []string{"Undefined", "Not Specified", "Unknown", "To Be Filled By O.E.M."}
)

// MemoryPayload renders the memory tile:
// {Memory:<label>;Used:<GB>;Available:<GB>;Total:<GB>;Useage:<pct>}
func (c *Collector) MemoryPayload() string {
	used, avail, total, usage := c.memInfo()
	vendor := c.ramVendor()

	label := "Memory"
	if vendor != "" {
		label = fmt.Sprintf("Memory (%s)", vendor)
	}

	c.store.Apply(func(s *Snapshot) {
		s.RAMVendor = vendor
		s.MemUsedGB = used
		s.MemAvailGB = avail
		s.MemTotalGB = total
		s.MemUsage = usage
	})

	return fmt.Sprintf("{Memory:%s;Used:%s;Available:%s;Total:%s;Useage:%d}",
		helpers.SanitizeField(label), formatGB1(used), formatGB1(avail), formatGB1(total), usage)
}

// memInfo reports used/available/total in GB (one decimal) and usage
// percent. "Used" follows MemAvailable, not MemFree, so reclaimable
// cache doesn't count against the user.
func (c *Collector) memInfo() (used, avail, total float64, usage int) {
	ctx, cancel := c.execCtx()
	defer cancel()

	vm, err := c.probes.virtualMemory(ctx)
	if err != nil || vm == nil || vm.Total == 0 {
		return 0, 0, 0, 0
	}

	usedB := vm.Total - min(vm.Available, vm.Total)
	toGB := func(b uint64) float64 {
		return math.Round(float64(b)/(1024*1024*1024)*10) / 10
	}
	usage = clampPct(int(math.Round(100 * float64(usedB) / float64(vm.Total))))
	return toGB(usedB), toGB(vm.Available), toGB(vm.Total), usage
}

// ramVendor probes the module manufacturer, normalized to the common
// short names. Cached because dmidecode is slow and the answer never
// changes.
func (c *Collector) ramVendor() string {
	if v, ok := c.ramLabel.get(); ok {
		return v
	}

	ctx, cancel := c.execCtx()
	defer cancel()

	manu := ""
	out, err := c.exec.Output(ctx, "dmidecode", "-t", "memory")
	if err != nil || len(out) == 0 {
		// Unprivileged fallback when sudo -n is allowed.
		out, err = c.exec.Output(ctx, "sudo", "-n", "dmidecode", "-t", "memory")
	}
	if err == nil {
		if m := dmiManufacturerRe.FindSubmatch(out); m != nil {
			manu = strings.TrimSpace(string(m[1]))
			if helpers.Contains(dmiPlaceholders, manu) {
				manu = ""
			}
		}
	}

	if manu == "" {
		if out, err := c.exec.Output(ctx, "lshw", "-class", "memory"); err == nil {
			if m := lshwManufacturerRe.FindSubmatch(out); m != nil {
				manu = strings.TrimSpace(string(m[1]))
			}
		}
	}

	replacer := strings.NewReplacer(
		"Micron Technology", "Micron",
		"Samsung Electronics", "Samsung",
		"HYNIX", "SK hynix",
		"Hynix", "SK hynix",
	)
	manu = strings.TrimSpace(replacer.Replace(manu))

	c.ramLabel.set(manu)
	return manu
}

// formatGB1 prints a size with one decimal, like the panel expects.
func formatGB1(gb float64) string {
	return fmt.Sprintf("%.1f", gb)
}
