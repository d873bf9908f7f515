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

// Package reranker scores (query, document) pairs with a cross-encoder.
//
// Vector retrieval alone is imprecise for short academic descriptions;
// the cross-encoder supplies the precision. The model runs out of
// process behind a small HTTP scoring service; this package is the
// client.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kadirpekel/advisor/internal/httpclient"
)

// DefaultTimeout bounds one scoring round-trip.
const DefaultTimeout = 10 * time.Second

// Scorer scores documents against a query. Higher is more relevant.
type Scorer interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
}

// HTTP is a Scorer backed by a cross-encoder scoring service.
type HTTP struct {
	url    string
	client *httpclient.Client
}

type scoreRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// NewHTTP returns a scorer talking to the service at url. A zero timeout
// falls back to DefaultTimeout.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{
		url: url,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(2),
			httpclient.WithBaseDelay(time.Second),
		),
	}
}

// Score sends one scoring request. The response must carry exactly one
// score per document, in document order.
func (h *HTTP) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(scoreRequest{Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach reranker service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("reranker service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode scoring response: %w", err)
	}
	if len(response.Scores) != len(documents) {
		return nil, fmt.Errorf("reranker service returned %d scores for %d documents",
			len(response.Scores), len(documents))
	}
	return response.Scores, nil
}

var _ Scorer = (*HTTP)(nil)
