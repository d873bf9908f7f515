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

// Package server exposes the advisor over HTTP: a streaming NDJSON chat
// endpoint plus read-only catalog and rating lookups for the frontend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/kadirpekel/advisor/pkg/advisor"
	"github.com/kadirpekel/advisor/pkg/catalog"
	"github.com/kadirpekel/advisor/pkg/ratings"
	"github.com/kadirpekel/advisor/pkg/session"
)

// Config holds the HTTP listener settings.
type Config struct {
	Addr string `yaml:"addr"`
}

// Server is the advisor's HTTP surface.
type Server struct {
	advisor *advisor.Advisor
	catalog *catalog.Store
	ratings *ratings.Store
	rdb     *redis.Client

	httpServer *http.Server
}

// New assembles the server. rdb may be nil; the pub/sub subscriber then
// never runs and data is served from the in-process stores only.
func New(adv *advisor.Advisor, cat *catalog.Store, rat *ratings.Store, rdb *redis.Client, cfg Config) *Server {
	s := &Server{
		advisor: adv,
		catalog: cat,
		ratings: rat,
		rdb:     rdb,
	}
	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.routes(),
	}
	return s
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	slog.Info("HTTP server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	return nil
}

// Handler returns the configured router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/chat", s.handleChat)
	r.Post("/getprofs", s.handleGetProfs)
	r.Get("/getcourses", s.handleGetCourses)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	return r
}

// handleChat streams the advisor's response as NDJSON, one frame per
// line, flushed as produced so schedules surface while the model is
// still talking.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req advisor.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = session.NewID()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Session-ID", req.SessionID)

	enc := json.NewEncoder(w)
	err := s.advisor.Chat(r.Context(), &req, func(frame advisor.Frame) error {
		if err := enc.Encode(frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		// Headers are already out; log and cut the stream.
		slog.Error("Chat stream failed", "session", req.SessionID, "error", err)
	}
}

// handleGetProfs resolves instructor names to their cached ratings.
// Unknown instructors map to null so the client can tell "no page"
// from "not asked".
func (s *Server) handleGetProfs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Profs []string `json:"profs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	out := make(map[string]*ratings.Rating, len(req.Profs))
	for _, name := range req.Profs {
		if rating, ok := s.ratings.Get(name); ok {
			r := rating
			out[name] = &r
		} else {
			out[name] = nil
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleGetCourses(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.catalog.Snapshot())
}
