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

// TileID addresses one metric tile on the panel. The values are baked
// into the panel firmware.
type TileID byte

const (
	TileCPU     TileID = 0x53
	TileGPU     TileID = 0x36
	TileMemory  TileID = 0x49
	TileDisk    TileID = 0x4F
	TileDate    TileID = 0x6B
	TileNetwork TileID = 0x27
	TileVolume  TileID = 0x10
	TileBattery TileID = 0x1A
)

func (t TileID) String() string {
	switch t {
	case TileCPU:
		return "cpu"
	case TileGPU:
		return "gpu"
	case TileMemory:
		return "memory"
	case TileDisk:
		return "disk"
	case TileDate:
		return "date"
	case TileNetwork:
		return "network"
	case TileVolume:
		return "volume"
	case TileBattery:
		return "battery"
	default:
		return "unknown"
	}
}

// DefaultSeqChar is sent for any tile without a mapped sequence
// character. All built-in tiles are mapped; this is a defensive default
// only.
const DefaultSeqChar = '2'

// Provider produces a fresh ASCII payload for one tile. Providers must
// degrade internally (sentinel or blank fields) rather than fail, and
// must complete well inside the panel's frame turnaround budget.
type Provider func() string

// Descriptor is one immutable tile registry entry.
type Descriptor struct {
	Provider Provider
	ID       TileID
	SeqChar  byte
}

// Providers names the payload producer for every tile. All fields are
// required.
type Providers struct {
	CPU     Provider
	GPU     Provider
	Memory  Provider
	Disk    Provider
	Date    Provider
	Network Provider
	Volume  Provider
	Battery Provider
}

// Registry is the fixed, ordered set of tile descriptors. Registry order
// is rotation order.
type Registry struct {
	tiles []Descriptor
}

// NewRegistry builds the eight-tile registry. The per-tile sequence
// characters and the ordering come from the panel firmware and must not
// change.
func NewRegistry(p Providers) *Registry {
	return &Registry{tiles: []Descriptor{
		{ID: TileCPU, SeqChar: '2', Provider: p.CPU},
		{ID: TileGPU, SeqChar: '3', Provider: p.GPU},
		{ID: TileMemory, SeqChar: '4', Provider: p.Memory},
		{ID: TileDisk, SeqChar: '5', Provider: p.Disk},
		{ID: TileDate, SeqChar: '6', Provider: p.Date},
		{ID: TileNetwork, SeqChar: '7', Provider: p.Network},
		{ID: TileVolume, SeqChar: '9', Provider: p.Volume},
		{ID: TileBattery, SeqChar: '2', Provider: p.Battery},
	}}
}

// SteadyRotation returns all tiles in registry order. The steady-state
// scheduler cycles through this, one tile per poll.
func (r *Registry) SteadyRotation() []Descriptor {
	return r.tiles
}

// UnlockRotation returns the short rotation used while unlocking:
// CPU, GPU, and memory. These providers are cheap and deterministic,
// which maximizes the chance of replying inside the panel's tight
// expectation window during the handshake.
func (r *Registry) UnlockRotation() []Descriptor {
	return r.tiles[:3]
}

// SeqByteFor returns the fixed sequence byte carried by steady-state
// replies for the given tile.
func (r *Registry) SeqByteFor(id TileID) byte {
	for i := range r.tiles {
		if r.tiles[i].ID == id {
			return r.tiles[i].SeqChar
		}
	}
	return DefaultSeqChar
}
