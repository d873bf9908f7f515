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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kadirpekel/advisor/internal/httpclient"
	"github.com/kadirpekel/advisor/pkg/ratings"
)

// rmpTimeout bounds one rating lookup against the proxy.
const rmpTimeout = 10 * time.Second

// RMPClient fetches instructor ratings from the RateMyProfessors proxy
// and maintains the rating store.
type RMPClient struct {
	http    *httpclient.Client
	baseURL string
	store   *ratings.Store

	// now is stubbed in tests.
	now func() time.Time
}

// NewRMPClient returns a client for the given proxy base URL writing
// into store.
func NewRMPClient(baseURL string, store *ratings.Store) *RMPClient {
	return &RMPClient{
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: rmpTimeout}),
		),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		store:   store,
		now:     time.Now,
	}
}

// Sync fetches a fresh rating for one instructor and stores it. Any
// failure stores the default record so repeated misses do not re-query
// until the record goes stale again.
func (c *RMPClient) Sync(ctx context.Context, instructor string) {
	if instructor == "" {
		return
	}

	rating, err := c.fetch(ctx, instructor)
	if err != nil {
		slog.Warn("Rating lookup failed, storing default", "instructor", instructor, "error", err)
		rating = ratings.Default(c.now())
	}
	c.store.Set(instructor, rating)
}

// SyncStale refreshes every listed instructor whose cached rating is
// older than the staleness window. Returns how many were refreshed.
func (c *RMPClient) SyncStale(ctx context.Context, instructors []string) int {
	synced := 0
	for _, name := range instructors {
		if ctx.Err() != nil {
			return synced
		}
		if name == "" || !c.store.IsStale(name, c.now()) {
			continue
		}
		c.Sync(ctx, name)
		synced++
	}
	return synced
}

// fetch queries the proxy. Roster names arrive as "Last, First"; the
// proxy wants "First Last".
func (c *RMPClient) fetch(ctx context.Context, instructor string) (ratings.Rating, error) {
	query := instructor
	if last, first, ok := strings.Cut(instructor, ", "); ok {
		query = first + " " + last
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/prof?q="+url.QueryEscape(query), nil)
	if err != nil {
		return ratings.Rating{}, fmt.Errorf("failed to build rating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ratings.Rating{}, fmt.Errorf("rating request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		// No page for this instructor.
		return ratings.Default(c.now()), nil
	}
	if resp.StatusCode != http.StatusOK {
		return ratings.Rating{}, fmt.Errorf("rating request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ratings.Rating{}, fmt.Errorf("failed to read rating response: %w", err)
	}
	var rating ratings.Rating
	if err := json.Unmarshal(body, &rating); err != nil {
		return ratings.Rating{}, fmt.Errorf("failed to decode rating response: %w", err)
	}
	rating.LastUpdated = c.now().Unix()
	return rating, nil
}
