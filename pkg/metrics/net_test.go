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
	"testing"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterSource is a mutable fake for the per-interface byte counters.
type counterSource struct {
	stats []gopsnet.IOCountersStat
}

func (cs *counterSource) probe(context.Context) ([]gopsnet.IOCountersStat, error) {
	out := make([]gopsnet.IOCountersStat, len(cs.stats))
	copy(out, cs.stats)
	return out, nil
}

func (env *collectorEnv) addIface(t *testing.T, name, operstate, carrier string, wireless bool) {
	t.Helper()
	base := "/sys/class/net/" + name
	env.writeFile(t, base+"/operstate", operstate+"\n")
	env.writeFile(t, base+"/carrier", carrier+"\n")
	if wireless {
		require.NoError(t, env.fs.MkdirAll(base+"/wireless", 0o755))
	}
}

func TestNetworkPayloadRates(t *testing.T) {
	t.Parallel()

	env := newCollectorEnv(t)
	env.addIface(t, "eth0", "up", "1", false)
	env.exec.on("ip -o route show default",
		"default via 192.168.1.1 dev eth0 proto dhcp metric 100\n")

	src := &counterSource{stats: []gopsnet.IOCountersStat{
		{Name: "eth0", BytesRecv: 1000, BytesSent: 2000},
	}}
	env.c.probes.netCounters = src.probe

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	env.rebuildNetMeter(cfg)

	env.clock.Advance(2 * time.Second)
	src.stats[0].BytesRecv += 4096 // 2 KiB/s
	src.stats[0].BytesSent += 2048 // 1 KiB/s

	assert.Equal(t, "{SPEED:-1;NETWORK:2.0 K/s,1.0 K/s}", env.c.NetworkPayload())

	snap := env.c.Store().Current()
	assert.Equal(t, "eth0", snap.NetIface)
	assert.True(t, snap.NetValid)
	assert.InDelta(t, 2.0, snap.NetRxKBs, 0.001)
}

func TestNetworkPayloadNoInterface(t *testing.T) {
	t.Parallel()

	env := newCollectorEnv(t)
	src := &counterSource{}
	env.c.probes.netCounters = src.probe

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	env.rebuildNetMeter(cfg)

	assert.Equal(t, "{SPEED:-1;NETWORK:N/A,N/A}", env.c.NetworkPayload())
	assert.Equal(t, "N/A", env.c.Store().Current().NetIface)
}

func TestNetworkPayloadFanRPM(t *testing.T) {
	t.Parallel()

	env := newCollectorEnv(t)
	env.writeFile(t, "/sys/class/hwmon/hwmon0/fan1_input", "2400\n")
	env.writeFile(t, "/sys/class/hwmon/hwmon1/fan1_input", "3100\n")

	src := &counterSource{}
	env.c.probes.netCounters = src.probe
	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	env.rebuildNetMeter(cfg)

	// Fastest hwmon fan wins.
	assert.Equal(t, "{SPEED:3100;NETWORK:N/A,N/A}", env.c.NetworkPayload())
}

func TestFanNvidiaPercentScaling(t *testing.T) {
	t.Parallel()

	defaults := config.BaseDefaults
	defaults.Fan.Prefer = config.FanPreferNvidia
	defaults.Fan.MaxRPM = 5000
	cfg, err := config.NewConfig(t.TempDir(), defaults)
	require.NoError(t, err)

	env := newCollectorEnvWith(t, cfg)
	env.exec.on("nvidia-smi --query-gpu=fan.speed --format=csv,noheader,nounits", "40\n")

	assert.Equal(t, 2000, env.c.fanRPM())
}

func TestNetMeterPrefersWiredDefaultRoute(t *testing.T) {
	t.Parallel()

	env := newCollectorEnv(t)
	env.addIface(t, "wlan0", "up", "1", true)
	env.addIface(t, "eth0", "up", "1", false)
	env.exec.on("ip -o route show default",
		"default via 10.0.0.1 dev wlan0 metric 600\n"+
			"default via 192.168.1.1 dev eth0 metric 100\n")

	src := &counterSource{stats: []gopsnet.IOCountersStat{
		{Name: "eth0"}, {Name: "wlan0"},
	}}
	env.c.probes.netCounters = src.probe
	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	env.rebuildNetMeter(cfg)

	assert.Equal(t, "eth0", env.c.net.iface)
}

func TestNetMeterRepicksWhenLinkDrops(t *testing.T) {
	t.Parallel()

	env := newCollectorEnv(t)
	env.addIface(t, "wlan0", "up", "1", true)
	env.exec.on("ip -o route show default", "default via 10.0.0.1 dev wlan0\n")

	src := &counterSource{stats: []gopsnet.IOCountersStat{
		{Name: "wlan0"}, {Name: "eth0"},
	}}
	env.c.probes.netCounters = src.probe
	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	env.rebuildNetMeter(cfg)
	require.Equal(t, "wlan0", env.c.net.iface)

	// Wireless loses carrier while a wired link appears.
	env.writeFile(t, "/sys/class/net/wlan0/carrier", "0\n")
	env.addIface(t, "eth0", "up", "1", false)
	env.exec.on("ip -o route show default", "default via 192.168.1.1 dev eth0\n")

	env.clock.Advance(time.Second)
	rx, tx, ok := env.c.net.ratesKS()
	require.True(t, ok)
	assert.Equal(t, "eth0", env.c.net.iface)
	// The fresh baseline starts at the repick instant, so the first
	// sample reads as idle.
	assert.Zero(t, rx)
	assert.Zero(t, tx)
}

func TestNetMeterConfigOverride(t *testing.T) {
	t.Parallel()

	defaults := config.BaseDefaults
	defaults.Network.Interface = "wg0"
	cfg, err := config.NewConfig(t.TempDir(), defaults)
	require.NoError(t, err)

	env := newCollectorEnvWith(t, cfg)
	src := &counterSource{stats: []gopsnet.IOCountersStat{{Name: "wg0"}}}
	env.c.probes.netCounters = src.probe
	env.rebuildNetMeter(cfg)

	assert.Equal(t, "wg0", env.c.net.iface)
}
