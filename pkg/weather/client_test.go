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

package weather

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AtomTileProject/atomtile-core/pkg/config"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, apiKey string) *config.Instance {
	t.Helper()
	defaults := config.BaseDefaults
	defaults.Weather.APIKey = apiKey
	cfg, err := config.NewConfig(t.TempDir(), defaults)
	require.NoError(t, err)
	return cfg
}

// fakeOpenWeather serves canned current and forecast responses and
// counts hits per endpoint.
func fakeOpenWeather(t *testing.T, clock clockwork.Clock, hits map[string]int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/data/2.5/weather", func(w http.ResponseWriter, r *http.Request) {
		hits["weather"]++
		assert.NotEmpty(t, r.URL.Query().Get("appid"))
		fmt.Fprint(w, `{"weather":[{"id":500,"icon":"10d","description":"light rain; mże"}],`+
			`"main":{"temp":11.2}}`)
	})
	mux.HandleFunc("/data/2.5/forecast", func(w http.ResponseWriter, _ *http.Request) {
		hits["forecast"]++
		now := clock.Now().UTC().Unix()
		fmt.Fprintf(w, `{"city":{"timezone":3600},"list":[`+
			`{"dt":%d,"main":{"temp":8.4}},`+
			`{"dt":%d,"main":{"temp":14.6}},`+
			`{"dt":%d,"main":{"temp":2.0}}]}`,
			now, now+3*3600, now+72*3600)
	})
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, _ *http.Request) {
		hits["geocode"]++
		fmt.Fprint(w, `[{"name":"Lodz","country":"PL","lat":51.77,"lon":19.46}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetchesAndMapsReport(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	hits := map[string]int{}
	srv := fakeOpenWeather(t, clock, hits)

	client := NewClient(testConfig(t, "test-key"), clock)
	client.baseURL = srv.URL
	client.reachable = func() bool { return true }

	report := client.Current()
	require.NotNil(t, report)

	// id 500 with a day icon maps to light rain.
	assert.Equal(t, 13, report.Code)
	// Only the first two forecast rows fall on today (UTC+1).
	assert.Equal(t, 8, report.Lo)
	assert.Equal(t, 15, report.Hi)
	// Coordinates resolve without geocoding.
	assert.Equal(t, "51.7687,19.4570", report.Zone)
	assert.Zero(t, hits["geocode"])
	// Payload-hostile characters are sanitized.
	assert.Equal(t, "light rain, m?e", report.Desc)
}

func TestClientCachesUntilRefresh(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	hits := map[string]int{}
	srv := fakeOpenWeather(t, clock, hits)

	client := NewClient(testConfig(t, "test-key"), clock)
	client.baseURL = srv.URL
	client.reachable = func() bool { return true }

	require.NotNil(t, client.Current())
	require.NotNil(t, client.Current())
	assert.Equal(t, 1, hits["weather"], "second call must hit the cache")

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 5*time.Minute, client.Age())

	clock.Advance(6 * time.Minute) // past the 600s default TTL
	require.NotNil(t, client.Current())
	assert.Equal(t, 2, hits["weather"])
}

func TestClientCachesFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	probes := 0

	client := NewClient(testConfig(t, "test-key"), clock)
	client.reachable = func() bool { probes++; return false }

	assert.Nil(t, client.Current())
	assert.Nil(t, client.Current())
	assert.Equal(t, 1, probes, "offline result must be cached for the TTL")

	clock.Advance(11 * time.Minute)
	assert.Nil(t, client.Current())
	assert.Equal(t, 2, probes)
}

func TestClientWithoutKeyReturnsNil(t *testing.T) {
	client := NewClient(testConfig(t, ""), clockwork.NewFakeClock())
	client.reachable = func() bool {
		t.Fatal("no key must short-circuit before the network probe")
		return false
	}
	assert.Nil(t, client.Current())
}

func TestClientGeocodesCityLocation(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	hits := map[string]int{}
	srv := fakeOpenWeather(t, clock, hits)

	defaults := config.BaseDefaults
	defaults.Weather.APIKey = "test-key"
	defaults.Weather.Location = "Lodz,PL"
	cfg, err := config.NewConfig(t.TempDir(), defaults)
	require.NoError(t, err)

	client := NewClient(cfg, clock)
	client.baseURL = srv.URL
	client.reachable = func() bool { return true }

	report := client.Current()
	require.NotNil(t, report)
	assert.Equal(t, 1, hits["geocode"])
	assert.Equal(t, "Lodz,PL", report.Zone)
}
