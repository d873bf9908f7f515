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

// Package scraper collects the course catalog: registration sections
// from the Banner endpoint, titles and descriptions from the catalog
// site, and instructor ratings from the RateMyProfessors proxy. Scraped
// data is persisted to disk and Redis, and consumers are notified over
// pub/sub.
package scraper

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kadirpekel/advisor/pkg/catalog"
	"github.com/kadirpekel/advisor/pkg/prereq"
	"github.com/kadirpekel/advisor/pkg/ratings"
)

// Pub/sub channels signalling that a fresh snapshot landed in Redis.
const (
	CourseUpdatesChannel   = "course_updates"
	LecturerUpdatesChannel = "lecturer_updates"
	RefreshPayload         = "refresh"
)

// Worker defaults.
const (
	defaultCourseInterval   = 5 * time.Minute
	defaultLecturerInterval = 6 * time.Hour

	// subjectPause spaces out per-subject section fetches.
	subjectPause = 200 * time.Millisecond
)

// Config holds the scraper's file paths and worker cadence. Zero values
// select the defaults.
type Config struct {
	// TermFile names the file holding the current term code. The course
	// worker skips its cycle while the file is missing or empty.
	TermFile string `yaml:"term_file"`

	// CatalogFile and LecturersFile are the on-disk snapshots.
	CatalogFile   string `yaml:"catalog_file"`
	LecturersFile string `yaml:"lecturers_file"`

	CourseInterval   time.Duration `yaml:"course_interval"`
	LecturerInterval time.Duration `yaml:"lecturer_interval"`

	// CatalogURLs overrides the listing pages the catalog pass walks.
	CatalogURLs []string `yaml:"catalog_urls"`
}

func (c Config) withDefaults() Config {
	if c.TermFile == "" {
		c.TermFile = "scrapers/currentTerm.txt"
	}
	if c.CatalogFile == "" {
		c.CatalogFile = "data/graph.json"
	}
	if c.LecturersFile == "" {
		c.LecturersFile = "data/lecturers.json"
	}
	if c.CourseInterval <= 0 {
		c.CourseInterval = defaultCourseInterval
	}
	if c.LecturerInterval <= 0 {
		c.LecturerInterval = defaultLecturerInterval
	}
	if len(c.CatalogURLs) == 0 {
		c.CatalogURLs = DefaultCatalogURLs
	}
	return c
}

// Scraper drives the scrape cycles and owns persistence of their
// results.
type Scraper struct {
	banner  *BannerClient
	pages   *PageClient
	extract *Extractor
	rmp     *RMPClient

	catalog *catalog.Store
	ratings *ratings.Store
	rdb     *redis.Client

	cfg Config
}

// New assembles a scraper. rdb may be nil; persistence then stays
// file-only and no refresh notifications are published.
func New(banner *BannerClient, pages *PageClient, extract *Extractor, rmp *RMPClient,
	cat *catalog.Store, rat *ratings.Store, rdb *redis.Client, cfg Config) *Scraper {
	return &Scraper{
		banner:  banner,
		pages:   pages,
		extract: extract,
		rmp:     rmp,
		catalog: cat,
		ratings: rat,
		rdb:     rdb,
		cfg:     cfg.withDefaults(),
	}
}

// RunSections scrapes every subject's section tables for the term and
// applies them to the catalog. Individual subject failures are logged
// and skipped.
func (s *Scraper) RunSections(ctx context.Context, term string) error {
	subjects, err := s.banner.Subjects(ctx, term)
	if err != nil {
		return err
	}

	for _, subject := range subjects {
		slog.Info("Fetching sections", "subject", subject, "term", term)
		fragments, err := s.banner.SectionsHTML(ctx, subject, term)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Subject fetch failed", "subject", subject, "error", err)
			continue
		}

		for _, fragment := range fragments {
			parsed, err := ParseSectionTables(fragment)
			if err != nil {
				slog.Warn("Section table parse failed", "subject", subject, "error", err)
				continue
			}
			for _, cs := range parsed {
				s.applySections(ctx, term, cs)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(subjectPause):
		}
	}
	return nil
}

// applySections folds one course's scraped sections into the catalog.
// Honors tables list only the honors sections, so they merge into the
// term's existing sections; regular tables replace the term wholesale.
func (s *Scraper) applySections(ctx context.Context, term string, cs CourseSections) {
	course, ok := s.catalog.Get(cs.CourseID)
	if !ok {
		slog.Info("New course discovered", "course", cs.CourseID)
		course = s.newCourse(ctx, cs)
	}
	if course.Sections == nil {
		course.Sections = make(map[string]map[string]catalog.Section)
	}

	if cs.Honors && course.Sections[term] != nil {
		for id, sec := range cs.Sections {
			course.Sections[term][id] = sec
		}
	} else {
		course.Sections[term] = cs.Sections
	}

	course.Credits = cs.Credits
	s.catalog.Upsert(cs.CourseID, course)
}

// newCourse builds a catalog entry for a course seen in the section
// tables but absent from the catalog, pulling its description from the
// search page and extracting the requirement trees. Extraction failures
// leave the trees empty; the catalog pass retries on the next
// description change.
func (s *Scraper) newCourse(ctx context.Context, cs CourseSections) *catalog.Course {
	title, desc := s.pages.Search(ctx, cs.CourseID)
	if title == "" {
		title = cs.Header
	}

	structure, err := s.extract.Process(ctx, desc)
	if err != nil {
		slog.Warn("Structure extraction failed", "course", cs.CourseID, "error", err)
		structure = &CourseStructure{Restrictions: []prereq.Restriction{}}
	}

	return &catalog.Course{
		Title:        title,
		Desc:         desc,
		PrereqTree:   structure.PrereqTree,
		CoreqTree:    structure.CoreqTree,
		Restrictions: structure.Restrictions,
	}
}

// RunCatalog walks the catalog listing pages and reconciles titles and
// descriptions. A changed description re-extracts the requirement
// trees; a changed title alone does not.
func (s *Scraper) RunCatalog(ctx context.Context) error {
	for _, pageURL := range s.cfg.CatalogURLs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		courses, err := s.pages.Listing(ctx, pageURL)
		if err != nil {
			slog.Warn("Catalog page fetch failed", "url", pageURL, "error", err)
			continue
		}
		for _, cc := range courses {
			s.applyCatalogCourse(ctx, cc)
		}
	}
	return nil
}

func (s *Scraper) applyCatalogCourse(ctx context.Context, cc CatalogCourse) {
	course, ok := s.catalog.Get(cc.Code)
	if !ok {
		structure, err := s.extract.Process(ctx, cc.Desc)
		if err != nil {
			slog.Warn("Structure extraction failed", "course", cc.Code, "error", err)
			structure = &CourseStructure{Restrictions: []prereq.Restriction{}}
		}
		s.catalog.Upsert(cc.Code, &catalog.Course{
			Title:        cc.Title,
			Desc:         cc.Desc,
			PrereqTree:   structure.PrereqTree,
			CoreqTree:    structure.CoreqTree,
			Restrictions: structure.Restrictions,
			Sections:     make(map[string]map[string]catalog.Section),
		})
		return
	}

	changed := false
	if course.Title != cc.Title {
		course.Title = cc.Title
		changed = true
	}
	if course.Desc != cc.Desc {
		course.Desc = cc.Desc
		changed = true
		if structure, err := s.extract.Process(ctx, cc.Desc); err != nil {
			slog.Warn("Structure extraction failed", "course", cc.Code, "error", err)
		} else {
			course.PrereqTree = structure.PrereqTree
			course.CoreqTree = structure.CoreqTree
			course.Restrictions = structure.Restrictions
		}
	}
	if course.Sections == nil {
		course.Sections = make(map[string]map[string]catalog.Section)
		changed = true
	}
	if changed {
		s.catalog.Upsert(cc.Code, course)
	}
}

// CourseWorker periodically scrapes the current term's sections. The
// cycle is skipped while no term is configured; scrape failures are
// logged and retried on the next tick.
func (s *Scraper) CourseWorker(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CourseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		term, ok := s.currentTerm()
		if !ok {
			continue
		}
		slog.Info("Starting course scrape", "term", term)
		if err := s.RunSections(ctx, term); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Course scrape failed", "term", term, "error", err)
			continue
		}
		s.PersistCourses(ctx)
	}
}

// LecturerWorker periodically refreshes stale instructor ratings for
// every instructor appearing in the catalog.
func (s *Scraper) LecturerWorker(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LecturerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.CheckLecturers(ctx)
		if ctx.Err() != nil {
			return
		}
		s.PersistRatings(ctx)
	}
}

// CheckLecturers refreshes stale ratings for every instructor in the
// catalog and returns how many were refreshed.
func (s *Scraper) CheckLecturers(ctx context.Context) int {
	names := s.instructorNames()
	refreshed := s.rmp.SyncStale(ctx, names)
	slog.Info("Lecturer check finished", "instructors", len(names), "refreshed", refreshed)
	return refreshed
}

// TermFile returns the configured current-term file path.
func (s *Scraper) TermFile() string {
	return s.cfg.TermFile
}

// currentTerm reads the configured term file. Missing or empty files
// are reported and skip the cycle rather than failing the worker.
func (s *Scraper) currentTerm() (string, bool) {
	data, err := os.ReadFile(s.cfg.TermFile)
	if err != nil {
		slog.Warn("Term file unavailable, skipping course scrape", "path", s.cfg.TermFile, "error", err)
		return "", false
	}
	term := strings.TrimSpace(string(data))
	if term == "" {
		slog.Warn("Term file is empty, skipping course scrape", "path", s.cfg.TermFile)
		return "", false
	}
	return term, true
}

// instructorNames collects the distinct instructors across every
// section of every course.
func (s *Scraper) instructorNames() []string {
	seen := make(map[string]struct{})
	s.catalog.ForEach(func(_ string, course *catalog.Course) bool {
		for _, sections := range course.Sections {
			for _, sec := range sections {
				if name := sec.Instructor(); name != "" {
					seen[name] = struct{}{}
				}
			}
		}
		return true
	})

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PersistCourses snapshots the catalog to disk and Redis and notifies
// subscribers. Failures are logged; the data stays in memory for the
// next attempt.
func (s *Scraper) PersistCourses(ctx context.Context) {
	if err := s.catalog.SaveFile(s.cfg.CatalogFile); err != nil {
		slog.Warn("Failed to save course file", "path", s.cfg.CatalogFile, "error", err)
	}
	if s.rdb == nil {
		return
	}
	if err := s.catalog.SaveRedis(ctx, s.rdb); err != nil {
		slog.Warn("Failed to save courses to redis", "error", err)
		return
	}
	if err := s.rdb.Publish(ctx, CourseUpdatesChannel, RefreshPayload).Err(); err != nil {
		slog.Warn("Failed to publish course update", "error", err)
	}
}

func (s *Scraper) PersistRatings(ctx context.Context) {
	if err := s.ratings.SaveFile(s.cfg.LecturersFile); err != nil {
		slog.Warn("Failed to save lecturer file", "path", s.cfg.LecturersFile, "error", err)
	}
	if s.rdb == nil {
		return
	}
	if err := s.ratings.SaveRedis(ctx, s.rdb); err != nil {
		slog.Warn("Failed to save lecturers to redis", "error", err)
		return
	}
	if err := s.rdb.Publish(ctx, LecturerUpdatesChannel, RefreshPayload).Err(); err != nil {
		slog.Warn("Failed to publish lecturer update", "error", err)
	}
}
