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
	"github.com/AtomTileProject/atomtile-core/pkg/helpers/syncutil"
)

// Snapshot is the latest value of everything shown on the panel, one
// field group per tile. The panel loop replaces groups as it answers
// polls; the dashboard only ever reads whole copies.
type Snapshot struct {
	CPUModel  string
	GPUName   string
	RAMVendor string
	DiskLabel string
	NetIface  string

	CPUTemp    int
	CPUUsage   int
	CPUFreqKHz int

	GPUTemp int
	GPUUtil int

	MemUsedGB  float64
	MemAvailGB float64
	MemTotalGB float64
	MemUsage   int

	DiskUsedGB  int
	DiskTotalGB int
	DiskUsage   int

	NetRxKBs float64
	NetTxKBs float64
	NetValid bool

	FanRPM  int
	Volume  int
	Battery int
}

// SnapshotStore shares the live snapshot between the panel loop and the
// dashboard.
type SnapshotStore struct {
	cur Snapshot
	mu  syncutil.RWMutex
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		cur: Snapshot{
			FanRPM:  -1,
			Volume:  -1,
			Battery: NoBatterySentinel,
		},
	}
}

// Apply updates the snapshot under the write lock.
func (s *SnapshotStore) Apply(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cur)
}

// Current returns a copy of the latest snapshot.
func (s *SnapshotStore) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}
