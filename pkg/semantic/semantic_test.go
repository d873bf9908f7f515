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

package semantic

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/advisor/pkg/catalog"
)

// keywordEmbedder maps text onto a fixed vocabulary axis per keyword, so
// similarity in tests is predictable without a real model.
type keywordEmbedder struct {
	vocab []string
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(e.vocab)+1)
	text = strings.ToLower(text)
	for i, word := range e.vocab {
		if strings.Contains(text, word) {
			vec[i] = 1
		}
	}
	vec[len(e.vocab)] = 0.1 // shared component so nothing is orthogonal to the query

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (e *keywordEmbedder) Model() string { return "keyword-test" }

// keywordScorer gives full marks to documents containing its word, so a
// test can force the cross-encoder ordering to disagree with the vector
// ordering.
type keywordScorer struct{ word string }

func (s keywordScorer) Score(_ context.Context, _ string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))
	for i, d := range docs {
		if strings.Contains(strings.ToLower(d), s.word) {
			scores[i] = 1
		}
	}
	return scores, nil
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, string, []string) ([]float64, error) {
	return nil, fmt.Errorf("scorer offline")
}

func testCatalog(courses map[string][2]string) *catalog.Store {
	store := catalog.NewStore()
	all := make(map[string]*catalog.Course, len(courses))
	for name, td := range courses {
		all[name] = &catalog.Course{Title: td[0], Desc: td[1]}
	}
	store.ReplaceAll(all)
	return store
}

func newTestIndex(t *testing.T, scorerFails bool) *Index {
	t.Helper()
	emb := &keywordEmbedder{vocab: []string{"database", "network", "painting"}}
	var ix *Index
	var err error
	if scorerFails {
		ix, err = New(Config{}, emb, failingScorer{})
	} else {
		ix, err = New(Config{}, emb, nil)
	}
	require.NoError(t, err)
	return ix
}

func TestReconcileIdempotent(t *testing.T) {
	ix := newTestIndex(t, false)
	cat := testCatalog(map[string][2]string{
		"CS 280":  {"Databases", "Intro to database systems"},
		"CS 356":  {"Networks", "Computer network protocols"},
		"ART 101": {"Painting", "Studio painting fundamentals"},
	})

	n, err := ix.Reconcile(context.Background(), cat)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = ix.Reconcile(context.Background(), cat)
	require.NoError(t, err)
	assert.Zero(t, n, "unchanged catalog upserts nothing")

	// Changing one description re-upserts exactly that course.
	course, ok := cat.Get("CS 280")
	require.True(t, ok)
	cat.Upsert("CS 280", &catalog.Course{Title: course.Title, Desc: "Relational database design"})

	n, err = ix.Reconcile(context.Background(), cat)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueryCandidateFilterAndTruncation(t *testing.T) {
	ix := newTestIndex(t, false)
	cat := testCatalog(map[string][2]string{
		"CS 280":  {"Databases", "Intro to database systems"},
		"CS 356":  {"Networks", "Computer network protocols"},
		"ART 101": {"Painting", "Studio painting fundamentals"},
	})
	_, err := ix.Reconcile(context.Background(), cat)
	require.NoError(t, err)

	results, err := ix.Query(context.Background(), "database course", nil, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "CS 280", results[0].ID)

	// Restricting candidates excludes the best vector match.
	results, err = ix.Query(context.Background(), "database course", []string{"ART 101"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ART 101", results[0].ID)

	// An empty candidate set yields nothing.
	results, err = ix.Query(context.Background(), "database course", []string{}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryRerankOverridesVectorOrder(t *testing.T) {
	emb := &keywordEmbedder{vocab: []string{"database", "network", "painting"}}
	ix, err := New(Config{}, emb, keywordScorer{word: "painting"})
	require.NoError(t, err)

	cat := testCatalog(map[string][2]string{
		"CS 280":  {"Databases", "Intro to database systems"},
		"ART 101": {"Painting", "Studio painting fundamentals"},
	})
	_, err = ix.Reconcile(context.Background(), cat)
	require.NoError(t, err)

	results, err := ix.Query(context.Background(), "database course", nil, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ART 101", results[0].ID, "cross-encoder score outranks vector similarity")
}

func TestQueryScorerFailureFallsBackToVectorOrder(t *testing.T) {
	ix := newTestIndex(t, true)
	cat := testCatalog(map[string][2]string{
		"CS 280":  {"Databases", "Intro to database systems"},
		"ART 101": {"Painting", "Studio painting fundamentals"},
	})
	_, err := ix.Reconcile(context.Background(), cat)
	require.NoError(t, err)

	results, err := ix.Query(context.Background(), "database course", nil, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "CS 280", results[0].ID, "vector order survives a scorer outage")
}

func TestQueryDepth(t *testing.T) {
	tests := []struct {
		name       string
		restricted bool
		count      int
		want       int
	}{
		{"unrestricted small collection", false, 3, 3},
		{"unrestricted large collection caps at fetchK", false, 2000, fetchK},
		{"restricted scans whole collection", true, 2000, 2000},
		{"restricted small collection", true, 3, 3},
		{"empty collection", true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryDepth(tt.restricted, tt.count))
		})
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	ix := newTestIndex(t, false)
	results, err := ix.Query(context.Background(), "anything", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestContentHash(t *testing.T) {
	content, hash := ContentHash("Databases", "Intro")
	assert.Equal(t, "Databases Intro", content)
	assert.Len(t, hash, 32)

	_, hash2 := ContentHash("Databases", "Intro v2")
	assert.NotEqual(t, hash, hash2)
}
