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

import "encoding/json"

// CourseGrade records one course on the user's transcript.
type CourseGrade struct {
	Name  string `json:"name"`
	Grade string `json:"grade"`
}

// Profile is the per-session academic profile. It is owned by the request
// handler and passed explicitly into every tool; nothing global holds it.
type Profile struct {
	NewUser       bool                   `json:"new_user"`
	Courses       map[string]CourseGrade `json:"courses"`
	Equivalents   []string               `json:"equivalents"`
	Standing      string                 `json:"standing,omitempty"`
	SemestersLeft *int                   `json:"semesters_left,omitempty"`
	Honors        bool                   `json:"honors"`
}

// NewProfile returns the default profile for a session seen for the first
// time.
func NewProfile() *Profile {
	return &Profile{
		NewUser:     true,
		Courses:     make(map[string]CourseGrade),
		Equivalents: []string{},
	}
}

// HasEquivalent reports whether the profile lists an equivalent for the
// given course.
func (p *Profile) HasEquivalent(course string) bool {
	for _, eq := range p.Equivalents {
		if eq == course {
			return true
		}
	}
	return false
}

// Marshal serializes the profile to JSON for Redis persistence.
func (p *Profile) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalProfile deserializes a profile; empty or malformed input yields
// a fresh default profile so a corrupt session key never fails a request.
func UnmarshalProfile(data []byte) *Profile {
	if len(data) == 0 {
		return NewProfile()
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return NewProfile()
	}
	if p.Courses == nil {
		p.Courses = make(map[string]CourseGrade)
	}
	if p.Equivalents == nil {
		p.Equivalents = []string{}
	}
	return &p
}

// gradeValues maps letter grades to their numeric order. Unknown user
// grades are treated as failing; unknown minimum grades fall back to C.
var gradeValues = map[string]float64{
	"A":  4.0,
	"B+": 3.5,
	"B":  3.0,
	"C+": 2.5,
	"C":  2.0,
	"C-": 1.7,
	"F":  0.0,
}

const passingGradeValue = 2.0 // C

// IsGradeSufficient reports whether userGrade meets minGrade. An empty
// minGrade means a passing C is required.
func IsGradeSufficient(userGrade, minGrade string) bool {
	user := gradeValues[userGrade] // unknown -> 0.0
	if minGrade == "" {
		return user >= passingGradeValue
	}
	min, ok := gradeValues[minGrade]
	if !ok {
		min = passingGradeValue
	}
	return user >= min
}
