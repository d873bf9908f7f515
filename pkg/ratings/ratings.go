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

// Package ratings holds instructor ratings fetched from the
// RateMyProfessors proxy, keyed by the instructor name exactly as it
// appears in section rows ("Lastname, Firstname").
package ratings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKey is the Redis key under which all ratings are mirrored.
const RedisKey = "lecturers"

// StaleAfter is how long a fetched rating stays fresh.
const StaleAfter = 5 * time.Hour

// NotFoundLink is the link stored when the proxy has no page for an
// instructor.
const NotFoundLink = "https://www.ratemyprofessors.com/teacher-not-found"

// Rating mirrors the proxy's response shape. Numeric fields arrive as
// strings and are kept that way; consumers parse on demand.
type Rating struct {
	AvgRating             string `json:"avgRating"`
	WouldTakeAgainPercent string `json:"wouldTakeAgainPercent"`
	AvgDifficulty         string `json:"avgDifficulty"`
	Link                  string `json:"link"`
	NumRatings            string `json:"numRatings"`
	LegacyID              int64  `json:"legacyId"`
	LastUpdated           int64  `json:"last_updated"`
}

// Default returns the placeholder record stored for instructors the proxy
// cannot resolve.
func Default(now time.Time) Rating {
	return Rating{
		AvgRating:             "0",
		WouldTakeAgainPercent: "0",
		AvgDifficulty:         "5",
		Link:                  NotFoundLink,
		NumRatings:            "0",
		LastUpdated:           now.Unix(),
	}
}

// Store is the process-global rating table. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	ratings map[string]Rating
}

// NewStore returns an empty rating store.
func NewStore() *Store {
	return &Store{ratings: make(map[string]Rating)}
}

// Get returns the rating for an instructor name.
func (s *Store) Get(name string) (Rating, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[name]
	return r, ok
}

// Set stores or replaces one rating.
func (s *Store) Set(name string, r Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[name] = r
}

// Names returns the known instructor names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.ratings))
	for name := range s.ratings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsStale reports whether the instructor's rating is missing or older
// than StaleAfter.
func (s *Store) IsStale(name string, now time.Time) bool {
	r, ok := s.Get(name)
	if !ok {
		return true
	}
	return now.Unix()-r.LastUpdated > int64(StaleAfter.Seconds())
}

// AvgRating parses the instructor's average rating. It returns false for
// unknown instructors and unparseable values, which schedule filtering
// treats as "exclude".
func (s *Store) AvgRating(instructor string) (float64, bool) {
	r, ok := s.Get(instructor)
	if !ok {
		return 0, false
	}
	avg, err := strconv.ParseFloat(r.AvgRating, 64)
	if err != nil {
		return 0, false
	}
	return avg, true
}

// Snapshot returns a copy of the table for serialization.
func (s *Store) Snapshot() map[string]Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Rating, len(s.ratings))
	for name, r := range s.ratings {
		out[name] = r
	}
	return out
}

// ReplaceAll swaps the whole table in one step.
func (s *Store) ReplaceAll(ratings map[string]Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings = ratings
}

// LoadFile populates the store from lecturers.json. Missing or malformed
// input leaves the store empty and logs a warning.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Lecturer ratings file unavailable, starting empty", "path", path, "error", err)
		return nil
	}
	var ratings map[string]Rating
	if err := json.Unmarshal(data, &ratings); err != nil {
		slog.Warn("Lecturer ratings file malformed, starting empty", "path", path, "error", err)
		return nil
	}
	s.ReplaceAll(ratings)
	slog.Info("Loaded lecturer ratings", "path", path, "lecturers", len(ratings))
	return nil
}

// SaveFile writes the table to disk as indented JSON.
func (s *Store) SaveFile(path string) error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode lecturer ratings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write lecturer ratings file: %w", err)
	}
	return nil
}

// SaveRedis mirrors the table into Redis under RedisKey.
func (s *Store) SaveRedis(ctx context.Context, rdb *redis.Client) error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode lecturer ratings: %w", err)
	}
	if err := rdb.Set(ctx, RedisKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write lecturer ratings to redis: %w", err)
	}
	return nil
}

// LoadRedis replaces the table from the Redis mirror. A missing or
// malformed mirror leaves the current table untouched.
func (s *Store) LoadRedis(ctx context.Context, rdb *redis.Client) error {
	data, err := rdb.Get(ctx, RedisKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("failed to read lecturer ratings from redis: %w", err)
	}
	var ratings map[string]Rating
	if err := json.Unmarshal(data, &ratings); err != nil {
		slog.Warn("Lecturer ratings mirror in redis is malformed, keeping current table", "error", err)
		return nil
	}
	s.ReplaceAll(ratings)
	slog.Info("Reloaded lecturer ratings from redis", "lecturers", len(ratings))
	return nil
}
