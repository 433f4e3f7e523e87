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

// Package tui renders the live panel snapshot in the terminal. It is an
// observer only: it reads the snapshot store and the session phase and
// never touches the serial link.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/AtomTileProject/atomtile-core/pkg/metrics"
	"github.com/AtomTileProject/atomtile-core/pkg/panel"
	"github.com/AtomTileProject/atomtile-core/pkg/weather"
	"github.com/gdamore/tcell/v2"
	"github.com/mackerelio/go-osstat/uptime"
	"github.com/rivo/tview"
)

const refreshInterval = 250 * time.Millisecond

// WeatherInfo is the dashboard's read-only view of the weather cache.
type WeatherInfo interface {
	Current() *weather.Report
	Age() time.Duration
}

// Dashboard is the optional live console view.
type Dashboard struct {
	cfg     *config.Instance
	store   *metrics.SnapshotStore
	weather WeatherInfo
	phase   func() panel.Phase
	app     *tview.Application
	view    *tview.TextView
}

func New(
	cfg *config.Instance,
	store *metrics.SnapshotStore,
	w WeatherInfo,
	phase func() panel.Phase,
) *Dashboard {
	d := &Dashboard{
		cfg:     cfg,
		store:   store,
		weather: w,
		phase:   phase,
		app:     tview.NewApplication(),
		view:    tview.NewTextView().SetDynamicColors(true),
	}
	d.view.SetBorder(true).SetTitle(" AtomTile ")
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			d.app.Stop()
			return nil
		}
		return event
	})
	return d
}

// Run blocks until the user quits or stop is closed. It owns the
// terminal while running.
func (d *Dashboard) Run(stop <-chan struct{}) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				d.app.Stop()
				return
			case <-done:
				return
			case <-ticker.C:
				d.app.QueueUpdateDraw(func() {
					d.view.SetText(d.render())
				})
			}
		}
	}()

	if err := d.app.SetRoot(d.view, true).Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}

func (d *Dashboard) render() string {
	snap := d.store.Current()
	var b strings.Builder

	fmt.Fprintf(&b, "[::b]Phase:[::-] %s   [::b]Time:[::-] %s",
		d.phase(), time.Now().Format("2006-01-02 15:04:05"))
	if up, err := uptime.Get(); err == nil {
		fmt.Fprintf(&b, "   [::b]Uptime:[::-] %s", up.Truncate(time.Second))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "[::b]Processor[::-]\n")
	fmt.Fprintf(&b, "  Model : %s\n", snap.CPUModel)
	fmt.Fprintf(&b, "  Temp  : [%s]%d °C[-]\n", tempColor(snap.CPUTemp), snap.CPUTemp)
	fmt.Fprintf(&b, "  Usage : [%s]%d %%[-]\n", utilColor(snap.CPUUsage), snap.CPUUsage)
	fmt.Fprintf(&b, "  Freq  : %d kHz\n\n", snap.CPUFreqKHz)

	fmt.Fprintf(&b, "[::b]GPU[::-]\n")
	fmt.Fprintf(&b, "  Model : %s\n", snap.GPUName)
	fmt.Fprintf(&b, "  Temp  : [%s]%d °C[-]\n", tempColor(snap.GPUTemp), snap.GPUTemp)
	fmt.Fprintf(&b, "  Usage : [%s]%d %%[-]\n\n", utilColor(snap.GPUUtil), snap.GPUUtil)

	fmt.Fprintf(&b, "[::b]Memory[::-]  %s\n", snap.RAMVendor)
	fmt.Fprintf(&b, "  Used/Total : %.1f/%.1f GB ([%s]%d %%[-])\n\n",
		snap.MemUsedGB, snap.MemTotalGB, usageColor(snap.MemUsage), snap.MemUsage)

	fmt.Fprintf(&b, "[::b]Disk[::-]  %s\n", snap.DiskLabel)
	fmt.Fprintf(&b, "  Used/Total : %d/%d GB ([%s]%d %%[-])\n\n",
		snap.DiskUsedGB, snap.DiskTotalGB, usageColor(snap.DiskUsage), snap.DiskUsage)

	fmt.Fprintf(&b, "[::b]Network[::-]  %s\n", snap.NetIface)
	if snap.NetValid {
		fmt.Fprintf(&b, "  RX,TX : %s, %s\n",
			metrics.FormatRate(snap.NetRxKBs), metrics.FormatRate(snap.NetTxKBs))
	} else {
		b.WriteString("  RX,TX : N/A, N/A\n")
	}
	fmt.Fprintf(&b, "  Fan   : %d r/min\n", snap.FanRPM)
	fmt.Fprintf(&b, "  Volume: %d %%\n", snap.Volume)
	fmt.Fprintf(&b, "  Battery: %d %%\n\n", snap.Battery)

	d.renderWeather(&b)
	b.WriteString("\nPress q to quit.")
	return b.String()
}

func (d *Dashboard) renderWeather(b *strings.Builder) {
	if d.weather == nil {
		return
	}
	w := d.weather.Current()
	if w == nil {
		reason := "offline or unavailable"
		if d.cfg.WeatherAPIKey() == "" {
			reason = "no API key"
		}
		fmt.Fprintf(b, "[yellow]Weather : OFFLINE (%s)[-]\n", reason)
		return
	}

	unit := "°C"
	if d.cfg.WeatherUnits() != "metric" {
		unit = "°F"
	}
	fmt.Fprintf(b, "[green]Weather : ONLINE[-]\n")
	fmt.Fprintf(b, "  Code  : %d\n", w.Code)
	fmt.Fprintf(b, "  Lo/Hi : %d/%d %s\n", w.Lo, w.Hi, unit)
	fmt.Fprintf(b, "  Zone  : %s\n", w.Zone)
	fmt.Fprintf(b, "  Desc  : %s\n", w.Desc)
	fmt.Fprintf(b, "  Age   : %s (refresh %s)\n",
		d.weather.Age().Truncate(time.Second), d.cfg.WeatherRefresh())
}

// Temperature thresholds: green below 60, yellow below 80, red above.
func tempColor(t int) string {
	switch {
	case t < 60:
		return "green"
	case t < 80:
		return "yellow"
	default:
		return "red"
	}
}

// Utilization thresholds: green below 40, yellow below 80, red above.
func utilColor(pct int) string {
	switch {
	case pct < 40:
		return "green"
	case pct < 80:
		return "yellow"
	default:
		return "red"
	}
}

// Capacity thresholds for memory and disk: green below 70, yellow below
// 90, red above.
func usageColor(pct int) string {
	switch {
	case pct < 70:
		return "green"
	case pct < 90:
		return "yellow"
	default:
		return "red"
	}
}
