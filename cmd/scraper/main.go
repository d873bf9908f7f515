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

// Command scraper runs one-shot scrape passes outside the server:
// sections for a term, catalog titles and descriptions, or lecturer
// ratings. Results are persisted the same way the background workers
// persist them.
//
// Usage:
//
//	scraper sections --term 202610
//	scraper catalog
//	scraper lecturers
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/redis/go-redis/v9"

	"github.com/kadirpekel/advisor/pkg/catalog"
	"github.com/kadirpekel/advisor/pkg/config"
	"github.com/kadirpekel/advisor/pkg/logger"
	"github.com/kadirpekel/advisor/pkg/model/gemini"
	"github.com/kadirpekel/advisor/pkg/ratings"
	"github.com/kadirpekel/advisor/pkg/scraper"
)

// CLI defines the command-line interface.
type CLI struct {
	Sections  SectionsCmd  `cmd:"" help:"Scrape one term's section tables."`
	Catalog   CatalogCmd   `cmd:"" help:"Scrape catalog titles and descriptions."`
	Lecturers LecturersCmd `cmd:"" help:"Refresh stale lecturer ratings."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile  string `help:"Log file path (empty = stderr)."`
}

// SectionsCmd scrapes the section tables of one term.
type SectionsCmd struct {
	Term   string `help:"Term code (e.g. 202610). Defaults to the configured term file."`
	Output string `help:"Catalog snapshot path (overrides config)." type:"path"`
}

func (c *SectionsCmd) Run(cli *CLI) error {
	ctx, s, err := setup(cli, c.Output)
	if err != nil {
		return err
	}

	term := c.Term
	if term == "" {
		data, err := os.ReadFile(s.TermFile())
		if err != nil {
			return fmt.Errorf("no --term given and term file unreadable: %w", err)
		}
		term = strings.TrimSpace(string(data))
		if term == "" {
			return fmt.Errorf("no --term given and term file is empty")
		}
	}

	slog.Info("Scraping sections", "term", term)
	if err := s.RunSections(ctx, term); err != nil {
		return err
	}
	s.PersistCourses(ctx)
	return nil
}

// CatalogCmd reconciles titles and descriptions from the catalog pages.
type CatalogCmd struct {
	Output string `help:"Catalog snapshot path (overrides config)." type:"path"`
}

func (c *CatalogCmd) Run(cli *CLI) error {
	ctx, s, err := setup(cli, c.Output)
	if err != nil {
		return err
	}

	slog.Info("Scraping catalog pages")
	if err := s.RunCatalog(ctx); err != nil {
		return err
	}
	s.PersistCourses(ctx)
	return nil
}

// LecturersCmd refreshes every stale instructor rating.
type LecturersCmd struct{}

func (c *LecturersCmd) Run(cli *CLI) error {
	ctx, s, err := setup(cli, "")
	if err != nil {
		return err
	}

	refreshed := s.CheckLecturers(ctx)
	slog.Info("Lecturer refresh finished", "refreshed", refreshed)
	s.PersistRatings(ctx)
	return nil
}

// setup loads configuration and assembles a scraper with its stores
// pre-loaded from the existing snapshots.
func setup(cli *CLI, outputOverride string) (context.Context, *scraper.Scraper, error) {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, nil, err
	}
	if outputOverride != "" {
		cfg.Scraper.CatalogFile = outputOverride
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	cat := catalog.NewStore()
	if err := cat.LoadFile(cfg.Scraper.CatalogFile); err != nil {
		slog.Warn("Starting with empty catalog", "path", cfg.Scraper.CatalogFile, "error", err)
	}
	rat := ratings.NewStore()
	if err := rat.LoadFile(cfg.Scraper.LecturersFile); err != nil {
		slog.Warn("Starting with empty lecturer store", "path", cfg.Scraper.LecturersFile, "error", err)
	}

	model, err := gemini.New(gemini.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	})
	if err != nil {
		return nil, nil, err
	}

	extractPrompt, err := os.ReadFile(cfg.Prompts.ExtractionFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read extraction prompt: %w", err)
	}

	s := scraper.New(
		scraper.NewBannerClient(cfg.Scraper.BannerBaseURL),
		scraper.NewPageClient(cfg.Scraper.CatalogBaseURL),
		scraper.NewExtractor(model, string(extractPrompt)),
		scraper.NewRMPClient(cfg.Scraper.RMPBaseURL, rat),
		cat, rat, rdb,
		scraper.Config{
			TermFile:      cfg.Scraper.TermFile,
			CatalogFile:   cfg.Scraper.CatalogFile,
			LecturersFile: cfg.Scraper.LecturersFile,
			CatalogURLs:   cfg.Scraper.CatalogURLs,
		},
	)
	return ctx, s, nil
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("scraper"),
		kong.Description("Course catalog and rating scraper"),
		kong.UsageOnError(),
	)

	cleanup, err := logger.Init(cli.LogLevel, cli.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
