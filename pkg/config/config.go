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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "ATOMTILE_CFG"
	OWMAPIKeyEnv  = "ATOMTILE_OWM_API"

	FanPreferAuto   = "auto"
	FanPreferHwmon  = "hwmon"
	FanPreferNvidia = "nvidia"
)

type Values struct {
	Panel        Panel   `toml:"panel"`
	Unlock       Unlock  `toml:"unlock,omitempty"`
	Weather      Weather `toml:"weather,omitempty"`
	Fan          Fan     `toml:"fan,omitempty"`
	Network      Network `toml:"network,omitempty"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

// Panel holds the serial transport settings for the display panel.
type Panel struct {
	Device         string  `toml:"device"`
	BaudRate       int     `toml:"baud_rate"`
	RTSCTS         bool    `toml:"rtscts"`
	DSRDTR         bool    `toml:"dsrdtr"`
	StartDelaySecs float64 `toml:"start_delay_secs"`
	WriteSettleMs  int     `toml:"write_settle_ms"`
	ReadTimeoutMs  int     `toml:"read_timeout_ms"`
}

// Unlock holds the bootstrap handshake tuning. The activation thresholds
// are empirically matched to the panel firmware's poll cadence; change
// them only against real hardware.
type Unlock struct {
	Attempts       int     `toml:"attempts"`
	WindowSecs     float64 `toml:"window_secs"`
	BootMarkers    int     `toml:"boot_markers"`
	PollCount      int     `toml:"poll_count"`
	PollWindowSecs float64 `toml:"poll_window_secs"`
}

type Weather struct {
	APIKey      string `toml:"api_key,omitempty"`
	Location    string `toml:"location"`
	Units       string `toml:"units"`
	Lang        string `toml:"lang"`
	RefreshSecs int    `toml:"refresh_secs"`
}

type Fan struct {
	Prefer string `toml:"prefer"`
	MaxRPM int    `toml:"max_rpm"`
}

type Network struct {
	Interface string `toml:"interface,omitempty"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Panel: Panel{
		Device:         "/dev/serial/by-id/usb-Synwit_USB_Virtual_COM-if00",
		BaudRate:       115200,
		DSRDTR:         true,
		StartDelaySecs: 3.0,
		WriteSettleMs:  6,
		ReadTimeoutMs:  1000,
	},
	Unlock: Unlock{
		Attempts:       3,
		WindowSecs:     5.0,
		BootMarkers:    3,
		PollCount:      5,
		PollWindowSecs: 2.0,
	},
	Weather: Weather{
		Location:    "51.7687,19.4570",
		Units:       "metric",
		Lang:        "en",
		RefreshSecs: 600,
	},
	Fan: Fan{
		Prefer: FanPreferAuto,
		MaxRPM: 5000,
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		mu:       syncutil.RWMutex{},
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	if _, err := os.Stat(c.cfgPath); err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	// This ensures fields not present in the file retain their default values.
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	c.vals = newVals

	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	// set current schema version
	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfgPath
}

func (c *Instance) PanelDevice() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Panel.Device
}

func (c *Instance) SetPanelDevice(device string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Panel.Device = device
}

func (c *Instance) PanelBaudRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Panel.BaudRate
}

func (c *Instance) PanelRTSCTS() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Panel.RTSCTS
}

func (c *Instance) PanelDSRDTR() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Panel.DSRDTR
}

func (c *Instance) StartDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Panel.StartDelaySecs * float64(time.Second))
}

func (c *Instance) SetStartDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Panel.StartDelaySecs = d.Seconds()
}

func (c *Instance) WriteSettle() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Panel.WriteSettleMs) * time.Millisecond
}

func (c *Instance) ReadTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Panel.ReadTimeoutMs) * time.Millisecond
}

func (c *Instance) UnlockAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Unlock.Attempts
}

func (c *Instance) SetUnlockAttempts(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Unlock.Attempts = n
}

func (c *Instance) UnlockWindow() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Unlock.WindowSecs * float64(time.Second))
}

func (c *Instance) SetUnlockWindow(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Unlock.WindowSecs = d.Seconds()
}

func (c *Instance) ActivationBootMarkers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Unlock.BootMarkers
}

func (c *Instance) ActivationPollCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Unlock.PollCount
}

func (c *Instance) ActivationPollWindow() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Unlock.PollWindowSecs * float64(time.Second))
}

// WeatherAPIKey returns the OpenWeather API key. The environment variable
// takes priority over the config file so the key can be kept out of it.
func (c *Instance) WeatherAPIKey() string {
	if key := os.Getenv(OWMAPIKeyEnv); key != "" {
		return key
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Weather.APIKey
}

func (c *Instance) WeatherLocation() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Weather.Location
}

func (c *Instance) WeatherUnits() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Weather.Units
}

func (c *Instance) WeatherLang() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Weather.Lang
}

func (c *Instance) WeatherRefresh() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Weather.RefreshSecs) * time.Second
}

func (c *Instance) FanPrefer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Fan.Prefer
}

func (c *Instance) SetFanPrefer(prefer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Fan.Prefer = prefer
}

func (c *Instance) FanMaxRPM() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Fan.MaxRPM
}

func (c *Instance) SetFanMaxRPM(rpm int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Fan.MaxRPM = rpm
}

func (c *Instance) NetworkInterface() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Network.Interface
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
