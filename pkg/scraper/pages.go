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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kadirpekel/advisor/internal/httpclient"
)

// DefaultCatalogBaseURL is the course catalog site.
const DefaultCatalogBaseURL = "https://catalog.njit.edu"

// DefaultCatalogURLs are the listing pages the catalog scraper walks.
var DefaultCatalogURLs = []string{
	DefaultCatalogBaseURL + "/graduate/computing-sciences/#coursestext",
	DefaultCatalogBaseURL + "/graduate/architecture-design/#coursestext",
	DefaultCatalogBaseURL + "/graduate/science-liberal-arts/#coursestext",
	DefaultCatalogBaseURL + "/graduate/newark-college-engineering/#coursestext",
	DefaultCatalogBaseURL + "/graduate/management/#coursestext",
	DefaultCatalogBaseURL + "/undergraduate/computing-sciences/#coursestext",
	DefaultCatalogBaseURL + "/undergraduate/architecture-design/#coursestext",
	DefaultCatalogBaseURL + "/undergraduate/science-liberal-arts/#coursestext",
	DefaultCatalogBaseURL + "/undergraduate/newark-college-engineering/#coursestext",
	DefaultCatalogBaseURL + "/undergraduate/management/#coursestext",
}

const (
	// listingTimeout bounds one catalog listing-page fetch.
	listingTimeout = 10 * time.Second

	// searchTimeout bounds one per-course search-page fetch.
	searchTimeout = 5 * time.Second
)

// PageClient fetches and parses catalog web pages.
type PageClient struct {
	listing *httpclient.Client
	search  *httpclient.Client
	baseURL string
}

// NewPageClient returns a client for the catalog site. An empty baseURL
// selects the default.
func NewPageClient(baseURL string) *PageClient {
	if baseURL == "" {
		baseURL = DefaultCatalogBaseURL
	}
	return &PageClient{
		listing: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: listingTimeout}),
		),
		search: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: searchTimeout}),
		),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Search fetches one course's search page. Failures degrade to an empty
// title and the no-description placeholder; a course stays usable even
// when its catalog page is unreachable.
func (c *PageClient) Search(ctx context.Context, courseCode string) (title, desc string) {
	desc = noDescription

	body, err := c.fetch(ctx, c.search, c.baseURL+"/search/?P="+url.QueryEscape(courseCode))
	if err != nil {
		return "", desc
	}

	parsedTitle, parsedDesc, err := ParseSearchResult(string(body))
	if err != nil {
		return "", desc
	}
	if parsedDesc != "" {
		desc = parsedDesc
	}
	return parsedTitle, desc
}

// Listing fetches and parses one catalog listing page.
func (c *PageClient) Listing(ctx context.Context, pageURL string) ([]CatalogCourse, error) {
	body, err := c.fetch(ctx, c.listing, pageURL)
	if err != nil {
		return nil, err
	}
	return ParseCatalogPage(string(body))
}

func (c *PageClient) fetch(ctx context.Context, client *httpclient.Client, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("User-Agent", bannerUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog request returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
