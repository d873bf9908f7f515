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

// Command advisor runs the course-planning chat backend: the HTTP
// surface plus the background section and rating scrapers.
//
// Usage:
//
//	advisor serve --config config.yaml
//	advisor serve --addr :3001 --no-scrape
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/advisor/pkg/config"
	"github.com/kadirpekel/advisor/pkg/logger"
	"github.com/kadirpekel/advisor/pkg/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Start the advisor server."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile  string `help:"Log file path (empty = stderr)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(versionString())
	return nil
}

// ServeCmd starts the HTTP server and the background scrapers.
type ServeCmd struct {
	Addr     string `help:"Listen address (overrides config)."`
	NoScrape bool   `name:"no-scrape" help:"Disable the background scrape workers."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}

	srv := server.New(app.advisor, app.catalog, app.ratings, app.rdb, server.Config{Addr: cfg.Server.Addr})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	if app.rdb != nil {
		g.Go(func() error {
			srv.SubscribeRefresh(ctx, app.index)
			return nil
		})
	}
	if !c.NoScrape {
		g.Go(func() error {
			app.scraper.CourseWorker(ctx)
			return nil
		})
		g.Go(func() error {
			app.scraper.LecturerWorker(ctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("advisor"),
		kong.Description("Course-planning advisor backend"),
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
