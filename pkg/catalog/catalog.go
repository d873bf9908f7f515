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

// Package catalog owns the authoritative in-memory course catalog.
//
// The catalog maps course codes ("CS 101") to course records and maintains
// a term index so schedule and eligibility code can ask "which courses run
// in term T" without scanning. Writers are the scrapers; every other
// component only reads. Mutations happen in bulk at scrape boundaries via
// ReplaceAll, so a single reader-writer lock is sufficient.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/kadirpekel/advisor/pkg/prereq"
)

// RedisKey is the Redis key under which the full catalog is mirrored.
const RedisKey = "courses"

// Course is a single catalog entry. Sections are keyed first by term code,
// then by section id.
type Course struct {
	Title        string                        `json:"title"`
	Desc         string                        `json:"desc"`
	Credits      *float64                      `json:"credits,omitempty"`
	PrereqTree   *prereq.Node                  `json:"prereq_tree"`
	CoreqTree    *prereq.Node                  `json:"coreq_tree"`
	Restrictions []prereq.Restriction          `json:"restrictions"`
	Sections     map[string]map[string]Section `json:"sections"`
}

// Section is one scheduled offering of a course. It serializes as a fixed
// 13-element string array matching the scraped column order:
// section id, CRN, days, times, location, status, max seats, current seats,
// instructor, delivery mode, credits, info, comments.
type Section [13]string

func (s Section) ID() string           { return s[0] }
func (s Section) CRN() string          { return s[1] }
func (s Section) Days() string         { return s[2] }
func (s Section) Times() string        { return s[3] }
func (s Section) Location() string     { return s[4] }
func (s Section) Status() string       { return s[5] }
func (s Section) MaxSeats() string     { return s[6] }
func (s Section) CurrentSeats() string { return s[7] }
func (s Section) Instructor() string   { return s[8] }
func (s Section) DeliveryMode() string { return s[9] }
func (s Section) Credits() string      { return s[10] }
func (s Section) Info() string         { return s[11] }
func (s Section) Comments() string     { return s[12] }

// MarshalJSON emits the section as a JSON array of 13 strings.
func (s Section) MarshalJSON() ([]byte, error) {
	cols := [13]string(s)
	return json.Marshal(cols[:])
}

// UnmarshalJSON accepts arrays of any length; short rows are padded and
// long rows truncated. The scraper occasionally drops trailing columns.
func (s *Section) UnmarshalJSON(data []byte) error {
	var cols []string
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}
	var out [13]string
	copy(out[:], cols)
	*s = Section(out)
	return nil
}

// Store is the process-global catalog. All methods are safe for concurrent
// use.
type Store struct {
	mu      sync.RWMutex
	courses map[string]*Course

	// termCourses[t] = set of course names with sections in term t.
	// Rebuilt on every mutation.
	termCourses map[string][]string
}

// NewStore returns an empty catalog store.
func NewStore() *Store {
	return &Store{
		courses:     make(map[string]*Course),
		termCourses: make(map[string][]string),
	}
}

// Get returns the course record for an exact (already normalized) name.
func (s *Store) Get(name string) (*Course, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[name]
	return c, ok
}

// Upsert inserts or replaces a course record and refreshes the term index.
func (s *Store) Upsert(name string, course *Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[name] = course
	s.rebuildTermIndex()
}

// ReplaceAll swaps the whole catalog in one step. Used at scrape
// boundaries so readers never see a half-applied cycle shrink the map.
func (s *Store) ReplaceAll(courses map[string]*Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = courses
	s.rebuildTermIndex()
}

// Names returns all valid course names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.courses))
	for name := range s.courses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of courses.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses)
}

// TermCourses returns the names of courses offering sections in the given
// term.
func (s *Store) TermCourses(term string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termCourses[term]
}

// PrereqTree returns the prerequisite tree for a course, or nil when the
// course is unknown or unrestricted. Satisfies prereq.Catalog.
func (s *Store) PrereqTree(name string) *prereq.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[name]
	if !ok {
		return nil
	}
	return c.PrereqTree
}

// ForEach calls fn for every course. fn must not mutate the store.
func (s *Store) ForEach(fn func(name string, course *Course) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, c := range s.courses {
		if !fn(name, c) {
			return
		}
	}
}

// Snapshot returns a shallow copy of the catalog map, suitable for JSON
// encoding by the HTTP surface.
func (s *Store) Snapshot() map[string]*Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Course, len(s.courses))
	for name, c := range s.courses {
		out[name] = c
	}
	return out
}

// rebuildTermIndex recomputes termCourses. Caller holds the write lock.
func (s *Store) rebuildTermIndex() {
	idx := make(map[string][]string)
	for name, c := range s.courses {
		for term := range c.Sections {
			idx[term] = append(idx[term], name)
		}
	}
	for term := range idx {
		sort.Strings(idx[term])
	}
	s.termCourses = idx
}

// LoadFile populates the store from a graph.json file. Malformed input
// leaves the store empty and logs a warning; a missing catalog is not
// fatal to the serving process.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Course catalog file unavailable, starting empty", "path", path, "error", err)
		return nil
	}
	var courses map[string]*Course
	if err := json.Unmarshal(data, &courses); err != nil {
		slog.Warn("Course catalog file malformed, starting empty", "path", path, "error", err)
		return nil
	}
	s.ReplaceAll(courses)
	slog.Info("Loaded course catalog", "path", path, "courses", len(courses))
	return nil
}

// SaveFile writes the catalog to disk as indented JSON.
func (s *Store) SaveFile(path string) error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// SaveRedis mirrors the catalog into Redis under RedisKey.
func (s *Store) SaveRedis(ctx context.Context, rdb *redis.Client) error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := rdb.Set(ctx, RedisKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write catalog to redis: %w", err)
	}
	return nil
}

// LoadRedis replaces the catalog from the Redis mirror. A missing or
// malformed mirror leaves the current catalog untouched.
func (s *Store) LoadRedis(ctx context.Context, rdb *redis.Client) error {
	data, err := rdb.Get(ctx, RedisKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("failed to read catalog from redis: %w", err)
	}
	var courses map[string]*Course
	if err := json.Unmarshal(data, &courses); err != nil {
		slog.Warn("Catalog mirror in redis is malformed, keeping current catalog", "error", err)
		return nil
	}
	s.ReplaceAll(courses)
	slog.Info("Reloaded course catalog from redis", "courses", len(courses))
	return nil
}

var _ prereq.Catalog = (*Store)(nil)
