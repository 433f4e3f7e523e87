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
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/AtomTileProject/atomtile-core/pkg/helpers"
	"github.com/spf13/afero"
)

// diskTileTemp is a constant: the panel insists on a temperature field
// for the disk tile but consumer NVMe temps need root, so the original
// firmware companion always sent 33.
const diskTileTemp = 33

var partitionSuffixRe = regexp.MustCompile(`p?\d+$`)

// DiskPayload renders the disk tile:
// {DiskName:<label>;Tempr:33;UsageSpace:<GB>;AllSpace:<GB>;Usage:<pct>}
func (c *Collector) DiskPayload() string {
	used, total, usage := c.diskNumbers()
	label := c.diskModel()
	if label == "" {
		label = "Disk"
	}

	c.store.Apply(func(s *Snapshot) {
		s.DiskLabel = label
		s.DiskUsedGB = used
		s.DiskTotalGB = total
		s.DiskUsage = usage
	})

	return fmt.Sprintf("{DiskName:%s;Tempr:%d;UsageSpace:%d;AllSpace:%d;Usage:%d}",
		helpers.SanitizeField(label), diskTileTemp, used, total, usage)
}

// diskNumbers reports the root filesystem in whole GB.
func (c *Collector) diskNumbers() (used, total, usage int) {
	ctx, cancel := c.execCtx()
	defer cancel()

	du, err := c.probes.diskUsage(ctx, "/")
	if err != nil || du == nil || du.Total == 0 {
		return 0, 0, 0
	}

	toGB := func(b uint64) int {
		return int(math.Round(float64(b) / (1024 * 1024 * 1024)))
	}
	return toGB(du.Used), toGB(du.Total), clampPct(int(math.Round(du.UsedPercent)))
}

// diskModel probes the root device's model string: NVMe sysfs first,
// lsblk against the root mount's device second. Cached like the RAM
// vendor.
func (c *Collector) diskModel() string {
	if v, ok := c.diskLabel.get(); ok {
		return v
	}

	label := ""
	if nvmes, err := afero.Glob(c.fs, "/sys/class/nvme/nvme*"); err == nil {
		sort.Strings(nvmes)
		for _, n := range nvmes {
			if model := c.readTrimmed(n + "/model"); model != "" {
				label = model
				break
			}
		}
	}

	if label == "" {
		label = c.diskModelFromLsblk()
	}

	label = strings.TrimSpace(multiSpace.ReplaceAllString(label, " "))
	c.diskLabel.set(label)
	return label
}

func (c *Collector) diskModelFromLsblk() string {
	ctx, cancel := c.execCtx()
	defer cancel()

	out, err := c.exec.Output(ctx, "lsblk", "-dno", "NAME,MODEL,VENDOR")
	if err != nil || len(out) == 0 {
		return ""
	}

	rootDev := ""
	if src, err := c.exec.Output(ctx, "findmnt", "-nro", "SOURCE", "/"); err == nil {
		dev := strings.TrimPrefix(strings.TrimSpace(string(src)), "/dev/")
		rootDev = partitionSuffixRe.ReplaceAllString(dev, "")
	}

	pick := ""
	for _, ln := range strings.Split(string(out), "\n") {
		fields := strings.Fields(ln)
		if len(fields) == 0 {
			continue
		}
		rest := strings.Join(fields[1:], " ")
		if rootDev != "" && fields[0] == rootDev {
			pick = rest
			break
		}
		if rootDev == "" && pick == "" {
			pick = rest
		}
	}
	return strings.TrimSpace(pick)
}
