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

// Package prereq models course requirement trees and evaluates them
// against a user's academic profile.
//
// A requirement is a heterogeneous boolean tree: AND/OR internal nodes
// over COURSE, EQUIVALENT and STANDING leaves that can be checked
// mechanically, plus PLACEMENT, PERMISSION and SKILL leaves that can only
// be surfaced to the user as advisory text. The tree is a tagged sum
// discriminated by the Type field; the evaluator is one recursive
// function switching on the tag.
package prereq

// Node types produced by the description extractor.
const (
	TypeAnd        = "AND"
	TypeOr         = "OR"
	TypeCourse     = "COURSE"
	TypeEquivalent = "EQUIVALENT"
	TypeStanding   = "STANDING"
	TypePlacement  = "PLACEMENT"
	TypePermission = "PERMISSION"
	TypeSkill      = "SKILL"
)

// Standings in ascending rank order. STANDING nodes compare against this
// order, so the slice must stay sorted from lowest to highest rank.
var Standings = []string{"FRESHMAN", "SOPHOMORE", "JUNIOR", "SENIOR", "GRAD"}

// standingRank returns the ordinal rank of a standing, or -1 when unknown.
func standingRank(standing string) int {
	for i, s := range Standings {
		if s == standing {
			return i
		}
	}
	return -1
}

// Node is one node of a requirement tree. Only the fields relevant to its
// Type are populated; unknown types round-trip through JSON untouched and
// evaluate as special requirements.
type Node struct {
	Type string `json:"type"`

	// AND / OR
	Children []*Node `json:"children,omitempty"`

	// COURSE
	Course   string `json:"course,omitempty"`
	MinGrade string `json:"min_grade,omitempty"`

	// EQUIVALENT
	Courses []string `json:"courses,omitempty"`

	// STANDING
	Standing      string `json:"standing,omitempty"`
	Normalized    string `json:"normalized,omitempty"`
	SemestersLeft *int   `json:"semesters_left,omitempty"`

	// PLACEMENT / SKILL
	Name string `json:"name,omitempty"`

	// PERMISSION
	Raw string `json:"raw,omitempty"`
}

// CourseRefs appends every course name referenced by COURSE and EQUIVALENT
// leaves beneath n. Used to validate that requirement trees only point at
// catalog courses.
func (n *Node) CourseRefs(dst []string) []string {
	if n == nil {
		return dst
	}
	switch n.Type {
	case TypeCourse:
		dst = append(dst, n.Course)
	case TypeEquivalent:
		dst = append(dst, n.Courses...)
	}
	for _, child := range n.Children {
		dst = child.CourseRefs(dst)
	}
	return dst
}

// Restriction is an enrollment restriction attached to a course. These are
// advisory only; the backend never enforces them mechanically.
type Restriction struct {
	Raw      string   `json:"raw"`
	Kinds    []string `json:"kinds,omitempty"`
	Entities []string `json:"entities,omitempty"`
}
