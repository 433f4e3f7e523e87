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
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// NoBatterySentinel is the exact value the panel firmware interprets as
// "no battery present". It is not a percentage.
const NoBatterySentinel = 177

// BatteryPayload renders the battery tile: {Battery:<pct_or_177>}
func (c *Collector) BatteryPayload() string {
	pct := c.batteryPct()
	c.store.Apply(func(s *Snapshot) { s.Battery = pct })
	return fmt.Sprintf("{Battery:%d}", pct)
}

func (c *Collector) batteryPct() int {
	entries, err := afero.ReadDir(c.fs, "/sys/class/power_supply")
	if err != nil {
		return NoBatterySentinel
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "BAT") {
			continue
		}
		capPath := "/sys/class/power_supply/" + e.Name() + "/capacity"
		if pct, err := strconv.Atoi(c.readTrimmed(capPath)); err == nil {
			return pct
		}
	}
	return NoBatterySentinel
}
