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

import "fmt"

// FormatRate renders a transfer rate given in KiB/s with one decimal and
// the unit the panel expects: K/s, M/s, or G/s.
func FormatRate(rateKBs float64) string {
	if rateKBs < 1024.0 {
		return fmt.Sprintf("%.1f K/s", rateKBs)
	}
	mbs := rateKBs / 1024.0
	if mbs < 1024.0 {
		return fmt.Sprintf("%.1f M/s", mbs)
	}
	return fmt.Sprintf("%.1f G/s", mbs/1024.0)
}
