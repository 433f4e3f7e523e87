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
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/AtomTileProject/atomtile-core/pkg/weather"
	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// fakeExecutor returns canned output per command line and records call
// counts. Unknown commands behave like missing binaries.
type fakeExecutor struct {
	outputs map[string][]byte
	calls   map[string]int
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		outputs: map[string][]byte{},
		calls:   map[string]int{},
	}
}

func (f *fakeExecutor) on(cmdline string, out string) {
	f.outputs[cmdline] = []byte(out)
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args ...string) error {
	_, err := f.Output(ctx, name, args...)
	return err
}

func (f *fakeExecutor) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.calls[key]++
	if out, ok := f.outputs[key]; ok {
		return out, nil
	}
	return nil, exec.ErrNotFound
}

// fakeWeather is a static WeatherSource.
type fakeWeather struct {
	report *weather.Report
	age    time.Duration
}

func (f *fakeWeather) Current() *weather.Report { return f.report }
func (f *fakeWeather) Age() time.Duration       { return f.age }

// collectorEnv bundles a collector with all its fakes.
type collectorEnv struct {
	c     *Collector
	fs    afero.Fs
	exec  *fakeExecutor
	clock *clockwork.FakeClock
}

func newCollectorEnv(t *testing.T) *collectorEnv {
	t.Helper()

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	return newCollectorEnvWith(t, cfg)
}

func newCollectorEnvWith(t *testing.T, cfg *config.Instance) *collectorEnv {
	t.Helper()

	env := &collectorEnv{
		fs:    afero.NewMemMapFs(),
		exec:  newFakeExecutor(),
		clock: clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 9, 5, 7, 0, time.UTC)),
	}
	env.c = NewCollector(cfg, CollectorOpts{
		Fs:    env.fs,
		Exec:  env.exec,
		Clock: env.clock,
	})

	// Host probes default to erroring so tests opt in per metric.
	env.c.probes = hostProbes{
		cpuInfo: func(context.Context) ([]cpu.InfoStat, error) {
			return nil, exec.ErrNotFound
		},
		cpuPercent: func(context.Context, time.Duration) ([]float64, error) {
			return nil, exec.ErrNotFound
		},
		virtualMemory: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return nil, exec.ErrNotFound
		},
		diskUsage: func(context.Context, string) (*disk.UsageStat, error) {
			return nil, exec.ErrNotFound
		},
		netCounters: func(context.Context) ([]gopsnet.IOCountersStat, error) {
			return nil, exec.ErrNotFound
		},
	}
	return env
}

func (env *collectorEnv) writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(env.fs, path, []byte(content), 0o644))
}

// rebuildNetMeter re-creates the meter after fakes are in place, since
// the constructor primes the baseline immediately.
func (env *collectorEnv) rebuildNetMeter(cfg *config.Instance) {
	env.c.net = newNetMeter(cfg, env.fs, env.exec, env.clock, env.c.probes.netCounters)
}
