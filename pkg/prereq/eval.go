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

package prereq

import (
	"fmt"
	"strings"
)

// Result is the outcome of evaluating a requirement node. When OK is
// false, Reason carries a user-facing explanation suitable for the LLM to
// relay verbatim.
type Result struct {
	OK     bool
	Reason string
}

func satisfied() Result              { return Result{OK: true} }
func failed(reason string) Result    { return Result{Reason: reason} }
func failedf(f string, a ...any) Result { return Result{Reason: fmt.Sprintf(f, a...)} }

// Value renders the result the way tools report it: boolean true on
// success, the explanation string otherwise.
func (r Result) Value() any {
	if r.OK {
		return true
	}
	return r.Reason
}

// Evaluate recursively checks whether the profile satisfies the
// requirement tree rooted at node. A nil node is vacuously satisfied.
func Evaluate(node *Node, profile *Profile) Result {
	if node == nil {
		return satisfied()
	}

	switch node.Type {
	case TypeAnd:
		var reasons []string
		for _, child := range node.Children {
			if res := Evaluate(child, profile); !res.OK {
				reasons = append(reasons, res.Reason)
			}
		}
		switch len(reasons) {
		case 0:
			return satisfied()
		case 1:
			return failed(reasons[0])
		default:
			return failed("All of the following must be met: (" + strings.Join(reasons, "; ") + ")")
		}

	case TypeOr:
		// Empty OR is vacuously true so generated trees compose.
		if len(node.Children) == 0 {
			return satisfied()
		}
		var reasons []string
		for _, child := range node.Children {
			res := Evaluate(child, profile)
			if res.OK {
				return satisfied()
			}
			reasons = append(reasons, res.Reason)
		}
		return failed("At least one of these must be met: (" + strings.Join(reasons, " OR ") + ")")

	case TypeCourse:
		taken, ok := profile.Courses[node.Course]
		if !ok {
			return failedf("Missing course %s", node.Course)
		}
		if node.MinGrade != "" && !IsGradeSufficient(taken.Grade, node.MinGrade) {
			return failedf("User has %s in %s suggests %s, but %s or better is required.",
				taken.Grade, node.Course, taken.Grade, node.MinGrade)
		}
		return satisfied()

	case TypeEquivalent:
		var missing []string
		for _, course := range node.Courses {
			if !profile.HasEquivalent(course) {
				missing = append(missing, course)
			}
		}
		if len(missing) == 0 {
			return satisfied()
		}
		return failedf("Missing equivalent(s) for: %s", strings.Join(missing, ", "))

	case TypeStanding:
		if profile.Standing == "" {
			return failedf("Required academic standing: %s", node.Normalized)
		}
		userRank := standingRank(profile.Standing)
		reqRank := standingRank(node.Normalized)
		if userRank < 0 || reqRank < 0 {
			return failedf("Internal error: Invalid standing '%s' or '%s'.", profile.Standing, node.Normalized)
		}
		if userRank < reqRank {
			return failedf("Standing is %s, but %s or higher is required.", profile.Standing, node.Normalized)
		}
		if node.SemestersLeft != nil {
			if profile.SemestersLeft == nil {
				return failedf("Missing 'semesters left' info (required: %d)", *node.SemestersLeft)
			}
			if *profile.SemestersLeft > *node.SemestersLeft {
				return failedf("Requires %d or fewer semesters left, but you have %d.",
					*node.SemestersLeft, *profile.SemestersLeft)
			}
		}
		return satisfied()
	}

	// PLACEMENT, PERMISSION, SKILL and anything unrecognized cannot be
	// mechanically satisfied.
	name := node.Name
	if name == "" {
		name = node.Raw
	}
	if name == "" {
		name = node.Type
	}
	return failedf("Special requirement needed: %s (%s)", node.Type, name)
}

// Catalog is the minimal view of the course catalog that eligibility
// filtering needs.
type Catalog interface {
	// Names returns every valid course name.
	Names() []string

	// TermCourses returns names of courses with sections in the term.
	TermCourses(term string) []string

	// PrereqTree returns the course's prerequisite tree, nil when absent.
	PrereqTree(name string) *Node
}

// AvailableCourses lists the candidate courses for downstream filtering.
// With onlyCurrentTerm it draws from the term index instead of the whole
// catalog. With onlyFulfilled it drops courses the user already has and
// courses whose prerequisite tree does not evaluate clean.
func AvailableCourses(cat Catalog, profile *Profile, onlyFulfilled, onlyCurrentTerm bool, term string) []string {
	var names []string
	if onlyCurrentTerm {
		names = cat.TermCourses(term)
	} else {
		names = cat.Names()
	}

	if !onlyFulfilled {
		return names
	}

	var out []string
	for _, name := range names {
		if _, taken := profile.Courses[name]; taken {
			continue
		}
		if Evaluate(cat.PrereqTree(name), profile).OK {
			out = append(out, name)
		}
	}
	return out
}
