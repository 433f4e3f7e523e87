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

package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRegistry builds a registry whose providers return a recognizable
// payload per tile.
func testRegistry() *Registry {
	fixed := func(s string) Provider {
		return func() string { return s }
	}
	return NewRegistry(Providers{
		CPU:     fixed("{CPU:1;}"),
		GPU:     fixed("{GPU:2;}"),
		Memory:  fixed("{MEM:3;}"),
		Disk:    fixed("{DSK:4;}"),
		Date:    fixed("{Date:5;}"),
		Network: fixed("{NET:6;}"),
		Volume:  fixed("{Vol:7;}"),
		Battery: fixed("{BAT:8;}"),
	})
}

func TestRegistryRotationOrder(t *testing.T) {
	t.Parallel()

	reg := testRegistry()
	rotation := reg.SteadyRotation()
	require.Len(t, rotation, 8)

	wantOrder := []TileID{
		TileCPU, TileGPU, TileMemory, TileDisk,
		TileDate, TileNetwork, TileVolume, TileBattery,
	}
	wantSeq := []byte{'2', '3', '4', '5', '6', '7', '9', '2'}
	for i, desc := range rotation {
		assert.Equal(t, wantOrder[i], desc.ID, "slot %d", i)
		assert.Equal(t, wantSeq[i], desc.SeqChar, "slot %d", i)
		require.NotNil(t, desc.Provider, "slot %d", i)
	}
}

func TestRegistryUnlockRotation(t *testing.T) {
	t.Parallel()

	rotation := testRegistry().UnlockRotation()
	require.Len(t, rotation, 3)
	assert.Equal(t, TileCPU, rotation[0].ID)
	assert.Equal(t, TileGPU, rotation[1].ID)
	assert.Equal(t, TileMemory, rotation[2].ID)
}

func TestRegistrySeqByteFor(t *testing.T) {
	t.Parallel()

	reg := testRegistry()
	assert.Equal(t, byte('2'), reg.SeqByteFor(TileCPU))
	assert.Equal(t, byte('7'), reg.SeqByteFor(TileNetwork))
	assert.Equal(t, byte('2'), reg.SeqByteFor(TileBattery))
	assert.Equal(t, byte(DefaultSeqChar), reg.SeqByteFor(TileID(0xEE)))
}

func TestTileIDString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cpu", TileCPU.String())
	assert.Equal(t, "battery", TileBattery.String())
	assert.Equal(t, "unknown", TileID(0xEE).String())
}
