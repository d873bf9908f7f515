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

// Package schedule enumerates conflict-free weekly schedules from the
// course catalog.
//
// The enumerator builds a filtered section list per course, takes the
// Cartesian product in shuffled order, and emits each combination that
// fits the day budget and has no pairwise time overlap. Shuffling is
// deliberate: retrying the same request gives the user variety instead of
// the same lexicographically-first schedules.
package schedule

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/kadirpekel/advisor/pkg/catalog"
)

// MaxSchedules caps how many schedules a single request emits.
const MaxSchedules = 5

// MaxDays is the widest allowed day budget (Monday through Friday).
const MaxDays = 5

// weekdayLetters maps weekday names to catalog day letters.
var weekdayLetters = map[string]byte{
	"MONDAY":    'M',
	"TUESDAY":   'T',
	"WEDNESDAY": 'W',
	"THURSDAY":  'R',
	"FRIDAY":    'F',
}

// Catalog is the schedule enumerator's view of the course catalog.
type Catalog interface {
	Normalize(name string) (string, *catalog.NormalizeError)
	Get(name string) (*catalog.Course, bool)
}

// Ratings resolves an instructor's average rating. The second return is
// false when the instructor is unknown or the rating is unparseable.
type Ratings interface {
	AvgRating(instructor string) (float64, bool)
}

// Request is one schedule-generation request.
type Request struct {
	Courses          []string            `json:"courses"`
	MaxDays          int                 `json:"max_days"`
	LockedInSections map[string][]string `json:"locked_in_sections,omitempty"`
	MinRMPRating     float64             `json:"min_rmp_rating,omitempty"`
	Days             []string            `json:"days,omitempty"`
	Honors           bool                `json:"honors,omitempty"`
}

// SectionChoice is one section inside an emitted schedule.
type SectionChoice struct {
	Course     string `json:"course"`
	SectionID  string `json:"section_id"`
	Days       string `json:"days"`
	CRN        string `json:"crn"`
	Times      string `json:"times"`
	Location   string `json:"location"`
	Instructor string `json:"instructor"`

	parsed map[byte][]Interval
}

// Schedule is one conflict-free combination of sections.
type Schedule struct {
	Sections []SectionChoice `json:"sections"`
	DaysUsed []string        `json:"days_used"`
	NumDays  int             `json:"num_days"`
}

// ErrorRecord is an in-band error for one requested course.
type ErrorRecord struct {
	ErrorMessage string   `json:"error_message"`
	DidYouMean   []string `json:"did_you_mean,omitempty"`
}

// Summary is the tool-facing result of a run. Schedules repeats everything
// already emitted through the callback so the LLM sees the complete set.
type Summary struct {
	Errors              []ErrorRecord `json:"errors"`
	Schedules           []Schedule    `json:"schedules"`
	TotalValidSchedules int           `json:"total_valid_schedules"`
	Message             string        `json:"message"`
}

// Enumerator generates schedules against a catalog and a ratings source.
// Ratings may be nil; the rating filter then excludes every section, the
// same as an instructor with no record.
type Enumerator struct {
	Catalog Catalog
	Ratings Ratings
}

// Run enumerates schedules for one term. Each surviving combination is
// passed to emit (when non-nil) the moment it is found, before enumeration
// continues; the returned Summary repeats them. Run stops early once
// MaxSchedules have been emitted or ctx is cancelled.
func (e *Enumerator) Run(ctx context.Context, term string, req Request, emit func(Schedule)) Summary {
	maxDays := req.MaxDays
	if maxDays < 1 {
		maxDays = 1
	}
	if maxDays > MaxDays {
		maxDays = MaxDays
	}

	var errors []ErrorRecord
	var validCourses []string
	for _, name := range req.Courses {
		normalized, nerr := e.Catalog.Normalize(name)
		if nerr != nil {
			errors = append(errors, ErrorRecord{ErrorMessage: nerr.ErrorMessage, DidYouMean: nerr.DidYouMean})
			continue
		}
		validCourses = append(validCourses, normalized)
	}
	if len(validCourses) == 0 {
		return Summary{
			Errors:    errors,
			Schedules: []Schedule{},
			Message:   "No valid courses provided.",
		}
	}

	locked := e.normalizeLockedIn(req.LockedInSections)
	allowedDays := allowedDaySet(req.Days)

	var perCourse [][]SectionChoice
	for _, name := range validCourses {
		course, ok := e.Catalog.Get(name)
		if !ok {
			errors = append(errors, ErrorRecord{ErrorMessage: fmt.Sprintf("Course data not found for %s", name)})
			continue
		}
		termSections := course.Sections[term]
		if len(termSections) == 0 {
			errors = append(errors, ErrorRecord{ErrorMessage: fmt.Sprintf("No sections available for %s in term %s", name, term)})
			continue
		}

		sections := e.filterSections(name, termSections, locked[name], allowedDays, req)
		if len(sections) == 0 {
			errors = append(errors, ErrorRecord{ErrorMessage: fmt.Sprintf("No sections available for %s with the given constraints", name)})
			continue
		}
		perCourse = append(perCourse, sections)
	}
	if len(perCourse) == 0 {
		return Summary{
			Errors:    errors,
			Schedules: []Schedule{},
			Message:   "No sections available for any valid course.",
		}
	}

	schedules := e.enumerate(ctx, perCourse, maxDays, emit)
	return Summary{
		Errors:              errors,
		Schedules:           schedules,
		TotalValidSchedules: len(schedules),
		Message: fmt.Sprintf("Found %d schedule(s) fitting within %d day(s) with no time conflicts.",
			len(schedules), maxDays),
	}
}

// normalizeLockedIn canonicalizes both the course keys and the section ids
// of a locked-in map. Course keys that fail normalization keep their
// upper-cased form; they simply never match a valid course later.
func (e *Enumerator) normalizeLockedIn(in map[string][]string) map[string]map[string]bool {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]map[string]bool, len(in))
	for course, ids := range in {
		key, nerr := e.Catalog.Normalize(course)
		if nerr != nil {
			key = strings.ToUpper(strings.TrimSpace(course))
		}
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[catalog.NormalizeSectionID(id)] = true
		}
		out[key] = set
	}
	return out
}

// allowedDaySet maps weekday names to the day-letter set. Unrecognized
// names are ignored. A nil result means no day restriction.
func allowedDaySet(days []string) map[byte]bool {
	if len(days) == 0 {
		return nil
	}
	set := make(map[byte]bool, len(days))
	for _, day := range days {
		if letter, ok := weekdayLetters[strings.ToUpper(strings.TrimSpace(day))]; ok {
			set[letter] = true
		}
	}
	return set
}

func (e *Enumerator) filterSections(course string, termSections map[string]catalog.Section, lockedIDs map[string]bool, allowedDays map[byte]bool, req Request) []SectionChoice {
	var out []SectionChoice
	for id, sec := range termSections {
		normalizedID := catalog.NormalizeSectionID(id)
		if lockedIDs != nil {
			if !lockedIDs[normalizedID] {
				continue
			}
		} else {
			// High-school sections are never schedulable; honors
			// sections only on request.
			if strings.HasPrefix(normalizedID, "HS") {
				continue
			}
			if !req.Honors && strings.HasPrefix(normalizedID, "H") {
				continue
			}
		}

		if req.MinRMPRating > 0 {
			rating, ok := 0.0, false
			if e.Ratings != nil {
				rating, ok = e.Ratings.AvgRating(sec.Instructor())
			}
			if !ok || rating < req.MinRMPRating {
				continue
			}
		}

		days := sec.Days()
		if allowedDays != nil && !daysAllowed(days, allowedDays) {
			continue
		}

		out = append(out, SectionChoice{
			Course:     course,
			SectionID:  id,
			Days:       days,
			CRN:        sec.CRN(),
			Times:      sec.Times(),
			Location:   sec.Location(),
			Instructor: sec.Instructor(),
			parsed:     ParseSectionTimes(sec.Times(), days),
		})
	}

	// Map iteration order is random; sort so the shuffle is the only
	// source of randomness.
	sort.Slice(out, func(i, j int) bool { return out[i].SectionID < out[j].SectionID })
	return out
}

func daysAllowed(days string, allowed map[byte]bool) bool {
	for i := 0; i < len(days); i++ {
		if !allowed[days[i]] {
			return false
		}
	}
	return true
}

// enumerate walks the shuffled Cartesian product of the per-course section
// lists and collects combinations that fit the day budget without time
// conflicts.
func (e *Enumerator) enumerate(ctx context.Context, perCourse [][]SectionChoice, maxDays int, emit func(Schedule)) []Schedule {
	combos := indexCombinations(perCourse)
	rand.Shuffle(len(combos), func(i, j int) { combos[i], combos[j] = combos[j], combos[i] })

	schedules := []Schedule{}
	for _, combo := range combos {
		if ctx.Err() != nil || len(schedules) >= MaxSchedules {
			break
		}

		uniqueDays := make(map[byte]bool)
		for ci, si := range combo {
			days := perCourse[ci][si].Days
			for i := 0; i < len(days); i++ {
				uniqueDays[days[i]] = true
			}
		}
		if len(uniqueDays) > maxDays {
			continue
		}

		if comboConflicts(perCourse, combo) {
			continue
		}

		sections := make([]SectionChoice, len(combo))
		for ci, si := range combo {
			sections[ci] = perCourse[ci][si]
		}
		daysUsed := make([]string, 0, len(uniqueDays))
		for day := range uniqueDays {
			daysUsed = append(daysUsed, string(day))
		}
		sort.Strings(daysUsed)

		s := Schedule{Sections: sections, DaysUsed: daysUsed, NumDays: len(uniqueDays)}
		schedules = append(schedules, s)
		if emit != nil {
			emit(s)
		}
	}
	return schedules
}

func comboConflicts(perCourse [][]SectionChoice, combo []int) bool {
	for i := 0; i < len(combo); i++ {
		for j := i + 1; j < len(combo); j++ {
			if conflicts(perCourse[i][combo[i]].parsed, perCourse[j][combo[j]].parsed) {
				return true
			}
		}
	}
	return false
}

// indexCombinations materializes the index Cartesian product as an
// odometer so the whole space can be shuffled before iteration.
func indexCombinations(perCourse [][]SectionChoice) [][]int {
	total := 1
	for _, sections := range perCourse {
		total *= len(sections)
	}

	combos := make([][]int, 0, total)
	current := make([]int, len(perCourse))
	for {
		combo := make([]int, len(current))
		copy(combo, current)
		combos = append(combos, combo)

		i := len(current) - 1
		for i >= 0 {
			current[i]++
			if current[i] < len(perCourse[i]) {
				break
			}
			current[i] = 0
			i--
		}
		if i < 0 {
			return combos
		}
	}
}
