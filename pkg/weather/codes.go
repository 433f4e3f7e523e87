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

package weather

import "strings"

// UnknownCode is the panel glyph shown when a condition cannot be
// classified.
const UnknownCode = 99

// CodeFor maps an OpenWeather condition id and icon to the panel's
// weather glyph code. The icon's trailing d/n distinguishes day and
// night variants where the panel has both.
func CodeFor(owID int, icon string) int {
	day := icon == "" || strings.HasSuffix(icon, "d")

	switch owID {
	case 800: // clear
		if day {
			return 1
		}
		return 3
	case 801: // few clouds
		if day {
			return 5
		}
		return 6
	case 802: // scattered clouds
		if day {
			return 7
		}
		return 8
	case 803, 804: // overcast
		return 9
	}

	switch owID / 100 {
	case 2: // thunderstorm
		switch owID {
		case 202, 212, 232:
			return 16 // strong storm
		default:
			return 11 // thundershower
		}
	case 3: // drizzle
		return 13
	case 5: // rain
		switch owID {
		case 511:
			return 19 // freezing rain
		case 520, 521, 522, 531:
			return 10 // showers
		case 500:
			return 13
		case 501:
			return 14
		case 502, 503, 504:
			return 15 // heavy rain
		default:
			return 14
		}
	case 6: // snow
		switch owID {
		case 611, 612, 615, 616:
			return 20 // sleet, wintry mix
		case 600:
			return 22 // light snow
		case 601:
			return 23 // moderate snow
		case 602, 621, 622:
			return 24 // heavy snow, snow showers
		case 620:
			return 21 // flurry
		default:
			return 22
		}
	case 7: // atmosphere
		switch owID {
		case 701, 741:
			return 30 // mist, fog
		case 711, 721:
			return 31 // smoke, haze
		case 731, 751:
			return 27 // sand
		case 761, 762:
			return 26 // dust, volcanic ash
		case 771:
			return 33 // squalls
		case 781:
			return 36 // tornado
		default:
			return 31
		}
	}

	return UnknownCode
}
