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
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/advisor/internal/httpclient"
)

// Banner endpoint defaults.
const (
	DefaultBannerBaseURL = "https://generalssb-prod.ec.njit.edu/BannerExtensibility/internalPb"
	bannerReferer        = "https://generalssb-prod.ec.njit.edu/BannerExtensibility/customPage/page/stuRegCrseSched"
	bannerUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	subjectListDomain = "virtualDomains.stuRegCrseSchedSubjList"
	sectionsDomain    = "virtualDomains.stuRegCrseSchedSections"

	// bannerTimeout bounds every sections/subject fetch.
	bannerTimeout = 10 * time.Second

	// sectionsMaxResults is the per-subject page size.
	sectionsMaxResults = "500"
)

// BannerClient fetches the registration system's subject list and
// per-subject section pages.
type BannerClient struct {
	http    *httpclient.Client
	baseURL string
}

// NewBannerClient returns a client for the given Page Builder base URL.
// An empty baseURL selects the default.
func NewBannerClient(baseURL string) *BannerClient {
	if baseURL == "" {
		baseURL = DefaultBannerBaseURL
	}
	return &BannerClient{
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: bannerTimeout}),
		),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Subjects returns the subject codes offering sections in the term.
func (c *BannerClient) Subjects(ctx context.Context, term string) ([]string, error) {
	body, err := c.get(ctx, subjectListDomain, map[string]string{
		"term":   term,
		"max":    "9999",
		"offset": "0",
		"attr":   "",
	})
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to decode subject list: %w", err)
	}

	var subjects []string
	for _, item := range items {
		if subj, ok := item["SUBJECT"].(string); ok && subj != "" {
			subjects = append(subjects, subj)
		}
	}
	return subjects, nil
}

// SectionsHTML returns the HTML fragments of a subject's section tables.
// The endpoint responds with a JSON array whose first element maps field
// names to rendered HTML; only values carrying course tables are kept.
func (c *BannerClient) SectionsHTML(ctx context.Context, subject, term string) ([]string, error) {
	body, err := c.get(ctx, sectionsDomain, map[string]string{
		"term":    term,
		"subject": subject,
		"max":     sectionsMaxResults,
		"offset":  "0",
		"attr":    "",
	})
	if err != nil {
		return nil, err
	}

	var payload []map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode sections for %s: %w", subject, err)
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var fragments []string
	for _, value := range payload[0] {
		if s, ok := value.(string); ok && strings.Contains(s, "<h4") {
			fragments = append(fragments, s)
		}
	}
	return fragments, nil
}

func (c *BannerClient) get(ctx context.Context, domain string, raw map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+domain+"?"+pbParams(raw).Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build banner request: %w", err)
	}
	req.Header.Set("User-Agent", bannerUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", bannerReferer)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("banner request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("banner request returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
