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

// Package semantic maintains the vector index over course titles and
// descriptions and answers hybrid queries: a wide vector retrieval pass
// followed by cross-encoder reranking.
//
// The index holds one document per course, id = course name, content =
// title + " " + description. An MD5 of the content is stored in the
// document metadata so reconciliation can skip unchanged courses.
package semantic

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kadirpekel/advisor/pkg/catalog"
	"github.com/kadirpekel/advisor/pkg/embedder"
	"github.com/kadirpekel/advisor/pkg/reranker"
)

// CollectionName is the chromem collection holding course documents.
const CollectionName = "courses"

// fetchK is how many results the vector pass retrieves before reranking.
// Wide on purpose: the cross-encoder does the precision work.
const fetchK = 500

// reconcileBatchSize caps one upsert flush during reconciliation.
const reconcileBatchSize = 100

// Config configures index persistence.
type Config struct {
	// PersistPath is the directory for the on-disk index. Empty keeps
	// the index in memory only.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for persistence.
	Compress bool `yaml:"compress,omitempty"`
}

// Result is one scored course from a query.
type Result struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
	Score      float64 `json:"score"`
}

// Index is the semantic course index.
type Index struct {
	db     *chromem.DB
	col    *chromem.Collection
	scorer reranker.Scorer
}

// New opens (or creates) the index. The embedder computes document and
// query vectors; the scorer reranks retrieval results and may be nil to
// disable reranking entirely.
func New(cfg Config, emb embedder.Embedder, scorer reranker.Scorer) (*Index, error) {
	var db *chromem.DB
	if cfg.PersistPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.PersistPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return emb.Embed(ctx, text)
	}
	col, err := db.GetOrCreateCollection(CollectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", CollectionName, err)
	}

	return &Index{db: db, col: col, scorer: scorer}, nil
}

// ContentHash builds a course's document content and its MD5 fingerprint.
func ContentHash(title, desc string) (string, string) {
	content := title + " " + desc
	sum := md5.Sum([]byte(content))
	return content, hex.EncodeToString(sum[:])
}

// Reconcile brings the index in sync with the catalog. Courses whose
// stored hash matches are skipped; new and changed courses are upserted
// in batches. Returns the number of upserted documents.
func (ix *Index) Reconcile(ctx context.Context, cat *catalog.Store) (int, error) {
	var pending []chromem.Document
	upserts := 0

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := ix.col.AddDocuments(ctx, pending, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to upsert course documents: %w", err)
		}
		upserts += len(pending)
		pending = pending[:0]
		return nil
	}

	for _, name := range cat.Names() {
		course, ok := cat.Get(name)
		if !ok {
			continue
		}
		content, hash := ContentHash(course.Title, course.Desc)

		existing, err := ix.col.GetByID(ctx, name)
		if err == nil && existing.Metadata["hash"] == hash {
			continue
		}

		pending = append(pending, chromem.Document{
			ID:       name,
			Content:  content,
			Metadata: map[string]string{"hash": hash, "title": course.Title},
		})
		if len(pending) >= reconcileBatchSize {
			if err := flush(); err != nil {
				return upserts, err
			}
		}
	}
	if err := flush(); err != nil {
		return upserts, err
	}

	if upserts > 0 {
		slog.Info("Reconciled semantic index", "upserts", upserts, "documents", ix.col.Count())
	}
	return upserts, nil
}

// queryDepth picks how many results the vector pass retrieves. The
// candidate restriction is applied after retrieval, so a restricted
// query must scan the whole collection or eligible candidates outside
// the vector top-fetchK would be unreachable.
func queryDepth(restricted bool, count int) int {
	if restricted || count < fetchK {
		return count
	}
	return fetchK
}

// Query retrieves the k best courses for a natural-language query. When
// candidateIDs is non-nil, only those courses are considered. Retrieval
// fetches up to fetchK results by vector similarity (the full collection
// when a candidate set restricts it); the scorer then reranks the
// survivors. If the scorer fails, the vector ordering stands.
func (ix *Index) Query(ctx context.Context, queryText string, candidateIDs []string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	n := queryDepth(candidateIDs != nil, ix.col.Count())
	if n == 0 {
		return nil, nil
	}

	raw, err := ix.col.Query(ctx, queryText, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	var candidates map[string]bool
	if candidateIDs != nil {
		candidates = make(map[string]bool, len(candidateIDs))
		for _, id := range candidateIDs {
			candidates[id] = true
		}
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		if candidates != nil && !candidates[r.ID] {
			continue
		}
		results = append(results, Result{
			ID:         r.ID,
			Content:    r.Content,
			Similarity: r.Similarity,
			Score:      float64(r.Similarity),
		})
	}
	if len(results) == 0 {
		return nil, nil
	}

	ix.rerank(ctx, queryText, results)

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// rerank rescores results in place and sorts them descending. A scorer
// failure leaves the vector ordering untouched.
func (ix *Index) rerank(ctx context.Context, queryText string, results []Result) {
	if ix.scorer == nil {
		return
	}

	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Content
	}

	scores, err := ix.scorer.Score(ctx, queryText, docs)
	if err != nil {
		slog.Warn("Reranker unavailable, keeping vector order", "error", err)
		return
	}

	for i := range results {
		results[i].Score = scores[i]
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}
