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
	"regexp"
	"strconv"
)

var volumePctRe = regexp.MustCompile(`(\d+)%`)

// noVolume is sent when PulseAudio/PipeWire has no default sink or
// pactl is absent. The panel renders it as a muted glyph.
const noVolume = -1

// VolumePayload renders the volume tile: {VOLUME:<pct_or_-1>}
func (c *Collector) VolumePayload() string {
	vol := c.sinkVolume()
	c.store.Apply(func(s *Snapshot) { s.Volume = vol })
	return fmt.Sprintf("{VOLUME:%d}", vol)
}

func (c *Collector) sinkVolume() int {
	ctx, cancel := c.execCtx()
	defer cancel()

	out, err := c.exec.Output(ctx, "pactl", "get-sink-volume", "@DEFAULT_SINK@")
	if err != nil {
		return noVolume
	}
	m := volumePctRe.FindSubmatch(out)
	if m == nil {
		return noVolume
	}
	vol, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return noVolume
	}
	return vol
}
