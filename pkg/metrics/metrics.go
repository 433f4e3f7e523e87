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

// Package metrics collects host metrics and renders them as tile
// payloads. Every collector degrades to a sentinel or blank field
// instead of failing: the panel loop must always have something to send
// inside its tight turnaround budget, so nothing here returns an error
// to it.
package metrics

import (
	"context"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/AtomTileProject/atomtile-core/pkg/helpers/command"
	"github.com/AtomTileProject/atomtile-core/pkg/panel"
	"github.com/AtomTileProject/atomtile-core/pkg/weather"
	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/spf13/afero"
)

const (
	// execTimeout bounds every external probe command. The panel polls
	// roughly every 100ms, so a slow probe costs frames but a hung one
	// must never wedge the loop.
	execTimeout = 700 * time.Millisecond

	// cpuSampleInterval is the /proc/stat delta window for CPU usage.
	cpuSampleInterval = 80 * time.Millisecond

	// labelTTL caches hardware vendor labels, which never change while
	// the machine is up but are expensive to probe.
	labelTTL = time.Hour
)

// WeatherSource supplies the date tile's weather fields. A nil report
// means the fields render blank.
type WeatherSource interface {
	Current() *weather.Report
	Age() time.Duration
}

// hostProbes are the gopsutil entry points, swappable in tests.
type hostProbes struct {
	cpuInfo       func(ctx context.Context) ([]cpu.InfoStat, error)
	cpuPercent    func(ctx context.Context, interval time.Duration) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	netCounters   func(ctx context.Context) ([]gopsnet.IOCountersStat, error)
}

func defaultProbes() hostProbes {
	return hostProbes{
		cpuInfo: cpu.InfoWithContext,
		cpuPercent: func(ctx context.Context, interval time.Duration) ([]float64, error) {
			return cpu.PercentWithContext(ctx, interval, false)
		},
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		netCounters: func(ctx context.Context) ([]gopsnet.IOCountersStat, error) {
			return gopsnet.IOCountersWithContext(ctx, true)
		},
	}
}

// Collector owns all per-tile samplers and their caches.
type Collector struct {
	fs        afero.Fs
	exec      command.Executor
	clock     clockwork.Clock
	cfg       *config.Instance
	store     *SnapshotStore
	weather   WeatherSource
	net       *netMeter
	ramLabel  *labelCache
	diskLabel *labelCache
	probes    hostProbes
}

// CollectorOpts carries optional collaborator overrides; zero fields get
// production defaults.
type CollectorOpts struct {
	Fs      afero.Fs
	Exec    command.Executor
	Clock   clockwork.Clock
	Weather WeatherSource
	Store   *SnapshotStore
}

func NewCollector(cfg *config.Instance, opts CollectorOpts) *Collector {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Exec == nil {
		opts.Exec = &command.RealExecutor{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Store == nil {
		opts.Store = NewSnapshotStore()
	}

	c := &Collector{
		fs:        opts.Fs,
		exec:      opts.Exec,
		clock:     opts.Clock,
		cfg:       cfg,
		store:     opts.Store,
		weather:   opts.Weather,
		probes:    defaultProbes(),
		ramLabel:  &labelCache{clock: opts.Clock},
		diskLabel: &labelCache{clock: opts.Clock},
	}
	c.net = newNetMeter(cfg, opts.Fs, opts.Exec, opts.Clock, c.probes.netCounters)
	return c
}

// Store exposes the live snapshot for the dashboard.
func (c *Collector) Store() *SnapshotStore {
	return c.store
}

// Providers wires each tile to its payload builder.
func (c *Collector) Providers() panel.Providers {
	return panel.Providers{
		CPU:     c.CPUPayload,
		GPU:     c.GPUPayload,
		Memory:  c.MemoryPayload,
		Disk:    c.DiskPayload,
		Date:    c.DatePayload,
		Network: c.NetworkPayload,
		Volume:  c.VolumePayload,
		Battery: c.BatteryPayload,
	}
}

func (c *Collector) execCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), execTimeout)
}

// labelCache holds one probed hardware label with a TTL.
type labelCache struct {
	clock   clockwork.Clock
	value   string
	fetched time.Time
	primed  bool
}

func (l *labelCache) get() (string, bool) {
	if !l.primed || l.value == "" {
		return "", false
	}
	if l.clock.Now().Sub(l.fetched) >= labelTTL {
		return "", false
	}
	return l.value, true
}

func (l *labelCache) set(v string) {
	l.value = v
	l.fetched = l.clock.Now()
	l.primed = true
}
