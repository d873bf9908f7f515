// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/advisor/pkg/ratings"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

func newTestRMP(t *testing.T, handler http.HandlerFunc) (*RMPClient, *ratings.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := ratings.NewStore()
	client := NewRMPClient(srv.URL, store)
	client.now = fixedNow
	return client, store
}

func TestRMPSyncStoresRating(t *testing.T) {
	var gotQuery string
	client, store := newTestRMP(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"avgRating": "4.2",
			"wouldTakeAgainPercent": "87",
			"avgDifficulty": "2.9",
			"link": "https://www.ratemyprofessors.com/professor/1234",
			"numRatings": "52",
			"legacyId": 1234
		}`))
	})

	client.Sync(context.Background(), "Doe, Jane")

	// Roster order is "Last, First"; the proxy is queried as "First Last".
	assert.Equal(t, "Jane Doe", gotQuery)

	rating, ok := store.Get("Doe, Jane")
	require.True(t, ok)
	assert.Equal(t, "4.2", rating.AvgRating)
	assert.Equal(t, "52", rating.NumRatings)
	assert.Equal(t, fixedNow().Unix(), rating.LastUpdated)
}

func TestRMPSyncNoContentStoresDefault(t *testing.T) {
	client, store := newTestRMP(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client.Sync(context.Background(), "Unknown, Totally")

	rating, ok := store.Get("Unknown, Totally")
	require.True(t, ok)
	assert.Equal(t, ratings.Default(fixedNow()), rating)
}

func TestRMPSyncFailureStoresDefault(t *testing.T) {
	client, store := newTestRMP(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client.Sync(context.Background(), "Doe, Jane")

	rating, ok := store.Get("Doe, Jane")
	require.True(t, ok)
	assert.Equal(t, ratings.Default(fixedNow()), rating)
}

func TestRMPSyncStaleSkipsFresh(t *testing.T) {
	calls := 0
	client, store := newTestRMP(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"avgRating": "4.0"}`))
	})

	fresh := ratings.Default(fixedNow().Add(-time.Hour))
	store.Set("Fresh, Fred", fresh)
	stale := ratings.Default(fixedNow().Add(-24 * time.Hour))
	store.Set("Stale, Steve", stale)

	refreshed := client.SyncStale(context.Background(), []string{"Fresh, Fred", "Stale, Steve", "New, Nancy", ""})

	assert.Equal(t, 2, refreshed)
	assert.Equal(t, 2, calls)
	assert.Equal(t, fresh, mustGet(t, store, "Fresh, Fred"))
	assert.Equal(t, "4.0", mustGet(t, store, "Stale, Steve").AvgRating)
	assert.Equal(t, "4.0", mustGet(t, store, "New, Nancy").AvgRating)
}

func mustGet(t *testing.T, store *ratings.Store, name string) ratings.Rating {
	t.Helper()
	rating, ok := store.Get(name)
	require.True(t, ok)
	return rating
}
