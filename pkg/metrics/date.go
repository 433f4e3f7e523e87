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
)

// DatePayload renders the date tile. Its shape is always complete: the
// panel's parser chokes on missing keys, so weather outages produce
// blank values, never absent fields. Week is Sunday=0.
//
//	{Date:YYYY/MM/DD;Time:HH:MM:SS;Week:N;Weather:X;TemprLo:L,TemprHi:H,Zone:Z,Desc:D}
func (c *Collector) DatePayload() string {
	now := c.clock.Now()
	head := fmt.Sprintf("{Date:%04d/%02d/%02d;Time:%02d:%02d:%02d;Week:%d;",
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Second(),
		int(now.Weekday()))

	if c.weather != nil {
		if w := c.weather.Current(); w != nil {
			return head + fmt.Sprintf("Weather:%d;TemprLo:%d,TemprHi:%d,Zone:%s,Desc:%s}",
				w.Code, w.Lo, w.Hi, w.Zone, w.Desc)
		}
	}
	return head + "Weather:;TemprLo:,TemprHi:,Zone:,Desc:}"
}
