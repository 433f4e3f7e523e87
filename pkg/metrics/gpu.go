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
	"regexp"
	"strconv"
	"strings"

	"github.com/AtomTileProject/atomtile-core/pkg/helpers"
	"github.com/spf13/afero"
)

var (
	gpuNameNoise = regexp.MustCompile(`(?i)\(R\)|\(TM\)|NVIDIA Corporation|Advanced Micro Devices,? Inc\.?|Intel\(R\)\s*`)
	multiSpace   = regexp.MustCompile(`\s+`)
	rocmTempRe   = regexp.MustCompile(`(?i)(\d+(\.\d+)?)\s*c`)
	rocmUtilRe   = regexp.MustCompile(`(\d+)\s*%`)
	rocmNameRe   = regexp.MustCompile(`GPU\[\d+\].*?\s(.*?)\s{2,}`)
	lspciVGARe   = regexp.MustCompile(`VGA compatible controller \[0300\]\s+"([^"]+)"`)
)

// GPUPayload renders the GPU tile: {GPU:<name>;Tempr:<C>;Useage:<pct>}
func (c *Collector) GPUPayload() string {
	name, temp, util := c.gpuInfo()

	c.store.Apply(func(s *Snapshot) {
		s.GPUName = name
		s.GPUTemp = temp
		s.GPUUtil = util
	})

	return fmt.Sprintf("{GPU:%s;Tempr:%d;Useage:%d}",
		helpers.SanitizeField(name), temp, util)
}

// gpuInfo tries vendor tools in order of usefulness: nvidia-smi reports
// everything, rocm-smi most of it, and the sysfs/lspci fallback at least
// identifies the adapter.
func (c *Collector) gpuInfo() (name string, temp, util int) {
	if name, temp, util, ok := c.gpuFromNvidiaSMI(); ok {
		return name, temp, util
	}
	if name, temp, util, ok := c.gpuFromROCmSMI(); ok {
		return name, temp, util
	}
	return c.gpuFromSysfs()
}

func (c *Collector) gpuFromNvidiaSMI() (name string, temp, util int, ok bool) {
	ctx, cancel := c.execCtx()
	defer cancel()

	out, err := c.exec.Output(ctx, "nvidia-smi",
		"--query-gpu=name,temperature.gpu,utilization.gpu",
		"--format=csv,noheader,nounits")
	if err != nil || len(out) == 0 {
		return "", 0, 0, false
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return "", 0, 0, false
	}
	temp, errT := strconv.Atoi(strings.TrimSpace(fields[1]))
	util, errU := strconv.Atoi(strings.TrimSpace(fields[2]))
	if errT != nil || errU != nil {
		return "", 0, 0, false
	}
	return cleanGPUName(fields[0]), temp, util, true
}

func (c *Collector) gpuFromROCmSMI() (name string, temp, util int, ok bool) {
	ctx, cancel := c.execCtx()
	defer cancel()

	out, err := c.exec.Output(ctx, "rocm-smi", "--showtemp", "--showuse")
	if err != nil || len(out) == 0 {
		return "", 0, 0, false
	}
	s := string(out)

	if m := rocmTempRe.FindStringSubmatch(s); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			temp = int(f)
		}
	}
	if m := rocmUtilRe.FindStringSubmatch(s); m != nil {
		util, _ = strconv.Atoi(m[1])
	}
	name = "AMD Radeon"
	if m := rocmNameRe.FindStringSubmatch(s); m != nil {
		name = strings.TrimSpace(m[1])
	}
	return cleanGPUName(name), temp, util, true
}

// gpuFromSysfs identifies the card from DRM attributes or lspci and
// reads its hwmon temperature. Utilization is not knowable here.
func (c *Collector) gpuFromSysfs() (name string, temp, util int) {
	for _, p := range []string{
		"/sys/class/drm/card0/device/product_name",
		"/sys/class/drm/card0/device/name",
	} {
		if s := c.readTrimmed(p); s != "" {
			name = s
			break
		}
	}
	if name == "" {
		ctx, cancel := c.execCtx()
		defer cancel()
		if out, err := c.exec.Output(ctx, "lspci", "-mmnn"); err == nil {
			if m := lspciVGARe.FindStringSubmatch(string(out)); m != nil {
				name = m[1]
			}
		}
	}

	if cands, err := afero.Glob(c.fs, "/sys/class/drm/card0/device/hwmon/hwmon*/temp*_input"); err == nil {
		for _, cand := range cands {
			if v, err := strconv.Atoi(c.readTrimmed(cand)); err == nil {
				temp = v / 1000
				break
			}
		}
	}

	if name == "" {
		return "GPU", temp, 0
	}
	return cleanGPUName(name), temp, 0
}

// cleanGPUName strips vendor marketing noise from the adapter name.
func cleanGPUName(name string) string {
	s := gpuNameNoise.ReplaceAllString(strings.TrimSpace(name), "")
	s = strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
	if s == "" {
		return "GPU"
	}
	return s
}
