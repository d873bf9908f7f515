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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/redis/go-redis/v9"

	"github.com/kadirpekel/advisor/pkg/advisor"
	"github.com/kadirpekel/advisor/pkg/catalog"
	"github.com/kadirpekel/advisor/pkg/config"
	"github.com/kadirpekel/advisor/pkg/embedder"
	"github.com/kadirpekel/advisor/pkg/model/gemini"
	"github.com/kadirpekel/advisor/pkg/ratings"
	"github.com/kadirpekel/advisor/pkg/reranker"
	"github.com/kadirpekel/advisor/pkg/scraper"
	"github.com/kadirpekel/advisor/pkg/semantic"
	"github.com/kadirpekel/advisor/pkg/session"
)

// app holds the wired components shared by the server and the workers.
type app struct {
	advisor *advisor.Advisor
	catalog *catalog.Store
	ratings *ratings.Store
	index   *semantic.Index
	scraper *scraper.Scraper
	rdb     *redis.Client
}

// buildApp wires the full dependency graph from configuration. Data
// loads prefer the Redis mirror and fall back to the on-disk snapshot.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	cat := catalog.NewStore()
	loadStore(ctx, "courses", cfg.Scraper.CatalogFile, rdb,
		func() error { return cat.LoadRedis(ctx, rdb) },
		func() error { return cat.LoadFile(cfg.Scraper.CatalogFile) })

	rat := ratings.NewStore()
	loadStore(ctx, "lecturers", cfg.Scraper.LecturersFile, rdb,
		func() error { return rat.LoadRedis(ctx, rdb) },
		func() error { return rat.LoadFile(cfg.Scraper.LecturersFile) })

	emb := embedder.NewOllama(embedder.OllamaConfig{
		Host:  cfg.Embedder.Host,
		Model: cfg.Embedder.Model,
	})
	var scorer reranker.Scorer
	if cfg.Reranker.URL != "" {
		scorer = reranker.NewHTTP(cfg.Reranker.URL, cfg.Reranker.Timeout.Duration())
	}
	index, err := semantic.New(semantic.Config{
		PersistPath: cfg.Semantic.PersistPath,
		Compress:    cfg.Semantic.Compress,
	}, emb, scorer)
	if err != nil {
		return nil, err
	}
	if n, err := index.Reconcile(ctx, cat); err != nil {
		slog.Warn("Initial semantic reconcile failed", "error", err)
	} else {
		slog.Info("Semantic index ready", "reembedded", n)
	}

	model, err := gemini.New(gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		Temperature: cfg.Gemini.Temperature,
	})
	if err != nil {
		return nil, err
	}

	chatPrompt, err := os.ReadFile(cfg.Prompts.ChatbotFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat prompt: %w", err)
	}
	extractPrompt, err := os.ReadFile(cfg.Prompts.ExtractionFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction prompt: %w", err)
	}

	adv := &advisor.Advisor{
		Catalog:  cat,
		Index:    index,
		Ratings:  rat,
		Sessions: session.NewStore(rdb),
		Model:    model,
		Prompt:   string(chatPrompt),
	}

	scr := scraper.New(
		scraper.NewBannerClient(cfg.Scraper.BannerBaseURL),
		scraper.NewPageClient(cfg.Scraper.CatalogBaseURL),
		scraper.NewExtractor(model, string(extractPrompt)),
		scraper.NewRMPClient(cfg.Scraper.RMPBaseURL, rat),
		cat, rat, rdb,
		scraper.Config{
			TermFile:         cfg.Scraper.TermFile,
			CatalogFile:      cfg.Scraper.CatalogFile,
			LecturersFile:    cfg.Scraper.LecturersFile,
			CourseInterval:   cfg.Scraper.CourseInterval.Duration(),
			LecturerInterval: cfg.Scraper.LecturerInterval.Duration(),
			CatalogURLs:      cfg.Scraper.CatalogURLs,
		},
	)

	return &app{
		advisor: adv,
		catalog: cat,
		ratings: rat,
		index:   index,
		scraper: scr,
		rdb:     rdb,
	}, nil
}

// loadStore tries the Redis mirror first, then the file snapshot.
// Starting with an empty store is fine; the scrapers fill it.
func loadStore(_ context.Context, name, path string, rdb *redis.Client, fromRedis, fromFile func() error) {
	if rdb != nil {
		if err := fromRedis(); err == nil {
			slog.Info("Loaded data from redis", "store", name)
			return
		}
	}
	if err := fromFile(); err != nil {
		slog.Warn("Starting with empty store", "store", name, "path", path, "error", err)
		return
	}
	slog.Info("Loaded data from file", "store", name, "path", path)
}

func versionString() string {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	return "advisor version " + version
}
