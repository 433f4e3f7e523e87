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

package helpers

import (
	"os"
	"path/filepath"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/adrg/xdg"
)

// ConfigDir returns the directory the config file lives in.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, config.AppName)
}

// DataDir returns the directory for persistent app data.
func DataDir() string {
	return filepath.Join(xdg.DataHome, config.AppName)
}

// TempDir returns the directory used for logs and other scratch files.
func TempDir() string {
	return filepath.Join(os.TempDir(), config.AppName)
}
