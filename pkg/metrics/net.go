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
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/AtomTileProject/atomtile-core/pkg/helpers/command"
	"github.com/jonboulle/clockwork"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/spf13/afero"
)

var routeDevRe = regexp.MustCompile(`\bdev\s+(\S+)`)

// NetworkPayload renders the network tile:
// {SPEED:<fan_rpm_or_-1>;NETWORK:<rx>,<tx>}
// The SPEED slot carries the fan RPM; the panel labels it that way.
func (c *Collector) NetworkPayload() string {
	rxk, txk, ok := c.net.ratesKS()
	rpm := c.fanRPM()

	c.store.Apply(func(s *Snapshot) {
		s.NetIface = c.net.ifaceName()
		s.NetRxKBs = rxk
		s.NetTxKBs = txk
		s.NetValid = ok
		s.FanRPM = rpm
	})

	if !ok {
		return fmt.Sprintf("{SPEED:%d;NETWORK:N/A,N/A}", rpm)
	}
	return fmt.Sprintf("{SPEED:%d;NETWORK:%s,%s}", rpm, FormatRate(rxk), FormatRate(txk))
}

// netMeter tracks byte counter deltas on the most useful interface,
// repicking when the current one loses its link.
type netMeter struct {
	fs       afero.Fs
	exec     command.Executor
	clock    clockwork.Clock
	counters func(ctx context.Context) ([]gopsnet.IOCountersStat, error)
	override string
	iface    string
	t0       time.Time
	rx0      uint64
	tx0      uint64
	primed   bool
}

func newNetMeter(
	cfg *config.Instance,
	fs afero.Fs,
	exec command.Executor,
	clock clockwork.Clock,
	counters func(ctx context.Context) ([]gopsnet.IOCountersStat, error),
) *netMeter {
	m := &netMeter{
		fs:       fs,
		exec:     exec,
		clock:    clock,
		counters: counters,
		override: cfg.NetworkInterface(),
	}
	m.iface = m.pick()
	m.prime()
	return m
}

func (m *netMeter) ifaceName() string {
	if m.iface == "" {
		return "N/A"
	}
	return m.iface
}

// ratesKS samples the counters and returns RX/TX in KiB/s since the last
// sample. ok=false means there is no usable interface or no baseline
// yet.
func (m *netMeter) ratesKS() (rxk, txk float64, ok bool) {
	m.maybeRepick()
	if m.iface == "" {
		return 0, 0, false
	}

	rx1, tx1, found := m.read(m.iface)
	if !found || !m.primed {
		m.prime()
		return 0, 0, false
	}

	t1 := m.clock.Now()
	dt := t1.Sub(m.t0).Seconds()
	if dt < 1e-3 {
		dt = 1e-3
	}

	rxk = float64(rx1-min(rx1, m.rx0)) / dt / 1024.0
	txk = float64(tx1-min(tx1, m.tx0)) / dt / 1024.0
	m.rx0, m.tx0, m.t0 = rx1, tx1, t1
	return rxk, txk, true
}

func (m *netMeter) prime() {
	if m.iface == "" {
		return
	}
	rx, tx, found := m.read(m.iface)
	if !found {
		m.iface = m.pick()
		if m.iface == "" {
			return
		}
		rx, tx, found = m.read(m.iface)
		if !found {
			return
		}
	}
	m.rx0, m.tx0, m.t0 = rx, tx, m.clock.Now()
	m.primed = true
}

// maybeRepick switches interfaces when the current one has gone down or
// a wireless link lost its carrier.
func (m *netMeter) maybeRepick() {
	if m.iface == "" {
		m.iface = m.pick()
		m.prime()
		return
	}
	info := m.ifaceInfo(m.iface)
	if !info.up || (info.wireless && !info.carrier) {
		if next := m.pick(); next != "" && next != m.iface {
			m.iface = next
			m.primed = false
			m.prime()
		}
	}
}

func (m *netMeter) read(iface string) (rx, tx uint64, found bool) {
	ctx, cancel := context.WithTimeout(context.Background(), execTimeout)
	defer cancel()

	stats, err := m.counters(ctx)
	if err != nil {
		return 0, 0, false
	}
	for i := range stats {
		if stats[i].Name == iface {
			return stats[i].BytesRecv, stats[i].BytesSent, true
		}
	}
	return 0, 0, false
}

func trimmed(b []byte) string {
	return strings.TrimSpace(string(b))
}

type ifaceInfo struct {
	name     string
	up       bool
	carrier  bool
	wireless bool
}

func (m *netMeter) ifaceInfo(name string) ifaceInfo {
	base := "/sys/class/net/" + name
	info := ifaceInfo{name: name}

	if fi, err := m.fs.Stat(base + "/wireless"); err == nil && fi.IsDir() {
		info.wireless = true
	}
	if data, err := afero.ReadFile(m.fs, base+"/operstate"); err == nil {
		info.up = trimmed(data) == "up"
	}
	if data, err := afero.ReadFile(m.fs, base+"/carrier"); err == nil {
		info.carrier = trimmed(data) == "1"
	}
	return info
}

// pick chooses the interface to meter: the config override wins, then
// default-route interfaces ranked up/carrier/wired, then any candidate
// under /sys/class/net, then nothing.
func (m *netMeter) pick() string {
	if m.override != "" {
		return m.override
	}

	if name := m.bestOf(m.defaultRouteIfaces()); name != "" {
		return name
	}
	cands := m.candidates()
	if name := m.bestOf(cands); name != "" {
		return name
	}
	if len(cands) > 0 {
		return cands[0]
	}
	return ""
}

// bestOf ranks interfaces: link beats up beats down, wired beats
// wireless.
func (m *netMeter) bestOf(names []string) string {
	type ranked struct {
		name  string
		score int
		wired bool
	}
	var rs []ranked
	for _, n := range names {
		info := m.ifaceInfo(n)
		score := 0
		switch {
		case info.up && info.carrier:
			score = 2
		case info.up:
			score = 1
		}
		if !info.wireless {
			score++
		}
		rs = append(rs, ranked{name: n, score: score, wired: !info.wireless})
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].score != rs[j].score {
			return rs[i].score > rs[j].score
		}
		return rs[i].wired && !rs[j].wired
	})
	for _, r := range rs {
		if r.score > 0 {
			return r.name
		}
	}
	return ""
}

func (m *netMeter) defaultRouteIfaces() []string {
	ctx, cancel := context.WithTimeout(context.Background(), execTimeout)
	defer cancel()

	out, err := m.exec.Output(ctx, "ip", "-o", "route", "show", "default")
	if err != nil {
		return nil
	}

	var devs []string
	seen := map[string]bool{}
	for _, match := range routeDevRe.FindAllStringSubmatch(string(out), -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			devs = append(devs, match[1])
		}
	}
	return devs
}

func (m *netMeter) candidates() []string {
	entries, err := afero.ReadDir(m.fs, "/sys/class/net")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.Name() != "lo" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}
