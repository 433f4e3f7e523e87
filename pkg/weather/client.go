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

// Package weather fetches current conditions and today's min/max from
// OpenWeather's free endpoints, mapped to the panel's glyph codes and
// cached between refreshes. Everything here degrades to "no data": the
// date tile always renders, just with blank weather fields.
package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/AtomTileProject/atomtile-core/pkg/helpers"
	"github.com/AtomTileProject/atomtile-core/pkg/helpers/syncutil"
	"github.com/AtomTileProject/atomtile-core/pkg/shared/httpclient"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://api.openweathermap.org"
	fetchTimeout   = 7 * time.Second
	probeAddr      = "8.8.8.8:53"
	probeTimeout   = 1500 * time.Millisecond
)

// Report is one resolved weather observation, sanitized for the wire.
type Report struct {
	Zone string
	Desc string
	Code int
	Lo   int
	Hi   int
}

// Client resolves the configured location and serves cached reports.
// Current() is called from the panel loop at poll rate, so everything
// network-bound hides behind the cache TTL.
type Client struct {
	clock       clockwork.Clock
	cfg         *config.Instance
	http        *httpclient.Client
	reachable   func() bool
	fetchedAt   time.Time
	baseURL     string
	cached      *Report
	primed      bool
	warnedNoKey bool
	mu          syncutil.Mutex
}

func NewClient(cfg *config.Instance, clock clockwork.Clock) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		clock:     clock,
		cfg:       cfg,
		http:      httpclient.NewClientWithTimeout(fetchTimeout),
		baseURL:   defaultBaseURL,
		reachable: internetReachable,
	}
}

// Current returns the cached report, refreshing it when the TTL has
// lapsed. A nil report means weather is unavailable; failures are cached
// too, so an offline host probes at most once per TTL.
func (c *Client) Current() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.primed && c.cached != nil && now.Sub(c.fetchedAt) < c.cfg.WeatherRefresh() {
		return c.cached
	}
	if c.primed && c.cached == nil && now.Sub(c.fetchedAt) < c.cfg.WeatherRefresh() {
		return nil
	}

	c.cached = c.fetch()
	c.fetchedAt = now
	c.primed = true
	return c.cached
}

// Age returns how old the cached report is. Used by the dashboard.
func (c *Client) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.primed {
		return 0
	}
	return c.clock.Now().Sub(c.fetchedAt)
}

func (c *Client) fetch() *Report {
	key := c.cfg.WeatherAPIKey()
	if key == "" {
		if !c.warnedNoKey {
			log.Warn().Msg("no OpenWeather API key set, date tile will carry blank weather fields")
			c.warnedNoKey = true
		}
		return nil
	}
	if !c.reachable() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*fetchTimeout)
	defer cancel()

	lat, lon, zone, err := c.locate(ctx, c.cfg.WeatherLocation(), key)
	if err != nil {
		log.Debug().Err(err).Msg("failed to resolve weather location")
		return nil
	}

	cur, err := c.current(ctx, lat, lon, key)
	if err != nil {
		log.Debug().Err(err).Msg("failed to fetch current weather")
		return nil
	}

	var cond owCondition
	if len(cur.Weather) > 0 {
		cond = cur.Weather[0]
	}

	lo, hi, ok := 0, 0, false
	if fore, foreErr := c.forecast(ctx, lat, lon, key); foreErr == nil {
		lo, hi, ok = todayMinMax(fore, c.clock.Now())
	}
	if !ok {
		// No forecast rows for today: current temp stands in for both.
		lo = int(math.Round(cur.Main.Temp))
		hi = lo
	}

	return &Report{
		Code: CodeFor(cond.ID, cond.Icon),
		Lo:   lo,
		Hi:   hi,
		Zone: helpers.SanitizeField(zone),
		Desc: helpers.SanitizeField(cond.Description),
	}
}

// locate resolves the configured location to coordinates and a display
// zone. Accepts "lat,lon", "ZIP,CC", or "City,CC".
func (c *Client) locate(ctx context.Context, loc, key string) (lat, lon float64, zone string, err error) {
	s := strings.TrimSpace(loc)
	if s == "" {
		return 0, 0, "", errors.New("no weather location configured")
	}

	if a, b, found := strings.Cut(s, ","); found {
		la, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
		lo, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
		if errA == nil && errB == nil {
			return la, lo, fmt.Sprintf("%.4f,%.4f", la, lo), nil
		}

		head := strings.ReplaceAll(strings.TrimSpace(a), "-", "")
		if _, zipErr := strconv.Atoi(head); zipErr == nil {
			var z owZip
			u := fmt.Sprintf("%s/geo/1.0/zip?zip=%s&appid=%s",
				c.baseURL, url.QueryEscape(s), url.QueryEscape(key))
			if err := c.http.GetJSON(ctx, u, &z); err == nil {
				name := z.Name
				if name == "" {
					name = "ZIP"
				}
				return z.Lat, z.Lon, name, nil
			}
		}
	}

	var ents []owGeo
	u := fmt.Sprintf("%s/geo/1.0/direct?q=%s&limit=1&appid=%s",
		c.baseURL, url.QueryEscape(s), url.QueryEscape(key))
	if err := c.http.GetJSON(ctx, u, &ents); err != nil {
		return 0, 0, "", err
	}
	if len(ents) == 0 {
		return 0, 0, "", fmt.Errorf("no geocoding result for %q", s)
	}

	ent := ents[0]
	name := ent.Name
	if name == "" {
		name = s
	}
	zone = name
	if ent.Country != "" {
		zone = name + "," + ent.Country
	}
	if ent.State != "" && !strings.Contains(zone, ent.State) {
		if ent.Country != "" {
			zone = fmt.Sprintf("%s, %s, %s", name, ent.State, ent.Country)
		} else {
			zone = fmt.Sprintf("%s, %s", name, ent.State)
		}
	}
	return ent.Lat, ent.Lon, zone, nil
}

func (c *Client) current(ctx context.Context, lat, lon float64, key string) (*owCurrent, error) {
	var cur owCurrent
	if err := c.http.GetJSON(ctx, c.dataURL("weather", lat, lon, key), &cur); err != nil {
		return nil, err
	}
	return &cur, nil
}

func (c *Client) forecast(ctx context.Context, lat, lon float64, key string) (*owForecast, error) {
	var fore owForecast
	if err := c.http.GetJSON(ctx, c.dataURL("forecast", lat, lon, key), &fore); err != nil {
		return nil, err
	}
	return &fore, nil
}

func (c *Client) dataURL(endpoint string, lat, lon float64, key string) string {
	qs := url.Values{
		"lat":   {fmt.Sprintf("%.6f", lat)},
		"lon":   {fmt.Sprintf("%.6f", lon)},
		"units": {c.cfg.WeatherUnits()},
		"lang":  {c.cfg.WeatherLang()},
		"appid": {key},
	}
	return fmt.Sprintf("%s/data/2.5/%s?%s", c.baseURL, endpoint, qs.Encode())
}

// todayMinMax scans the 3-hourly forecast for rows falling on today's
// date in the city's own timezone and returns their temperature range.
func todayMinMax(fore *owForecast, now time.Time) (lo, hi int, ok bool) {
	if fore == nil || len(fore.List) == 0 {
		return 0, 0, false
	}

	tz := time.Duration(fore.City.Timezone) * time.Second
	localDate := now.UTC().Add(tz).Format("2006-01-02")

	var minT, maxT float64
	found := false
	for _, row := range fore.List {
		rowDate := time.Unix(row.Dt, 0).UTC().Add(tz).Format("2006-01-02")
		if rowDate != localDate {
			continue
		}
		t := row.Main.Temp
		if !found || t < minT {
			minT = t
		}
		if !found || t > maxT {
			maxT = t
		}
		found = true
	}
	if !found {
		return 0, 0, false
	}
	return int(math.Round(minT)), int(math.Round(maxT)), true
}

// internetReachable is a cheap connectivity probe: a UDP "connect" only
// needs a route, no packets are exchanged.
func internetReachable() bool {
	conn, err := net.DialTimeout("udp", probeAddr, probeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

type owCondition struct {
	Icon        string `json:"icon"`
	Description string `json:"description"`
	ID          int    `json:"id"`
}

type owCurrent struct {
	Weather []owCondition `json:"weather"`
	Main    struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

type owForecast struct {
	List []struct {
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Dt int64 `json:"dt"`
	} `json:"list"`
	City struct {
		Timezone int `json:"timezone"`
	} `json:"city"`
}

type owGeo struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type owZip struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}
