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

package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/kadirpekel/advisor/pkg/catalog"
	"github.com/kadirpekel/advisor/pkg/prereq"
	"github.com/kadirpekel/advisor/pkg/schedule"
	"github.com/kadirpekel/advisor/pkg/semantic"
	"github.com/kadirpekel/advisor/pkg/tool"
	"github.com/kadirpekel/advisor/pkg/tool/functiontool"
)

const makeScheduleName = "make_schedule"

// toolEnv binds the domain tools to one request: the session's profile,
// the request's term and the channel partial schedules stream through.
type toolEnv struct {
	catalog *catalog.Store
	index   *semantic.Index
	ratings schedule.Ratings
	profile *prereq.Profile
	term    string
	schedCh chan<- schedule.Schedule
}

// newToolRegistry builds the per-request tool set.
func (a *Advisor) newToolRegistry(profile *prereq.Profile, term string, schedCh chan<- schedule.Schedule) (*tool.Registry, error) {
	env := &toolEnv{
		catalog: a.Catalog,
		index:   a.Index,
		profile: profile,
		term:    term,
		schedCh: schedCh,
	}
	if a.Ratings != nil {
		env.ratings = a.Ratings
	}

	var tools []tool.CallableTool
	for _, build := range []func() (tool.CallableTool, error){
		env.newCourseQuery,
		env.newUpdateUserProfile,
		env.newGetCourseDescription,
		env.newCanTakeCourse,
		env.newMakeSchedule,
		env.newGetTerm,
	} {
		t, err := build()
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tool.NewRegistry(tools...), nil
}

type courseQueryArgs struct {
	Query                string `json:"query" jsonschema:"required,description=Natural language description of the course(s) the user is searching for"`
	TopN                 int    `json:"top_n,omitempty" jsonschema:"description=Maximum number of courses to return ordered by relevance"`
	OnlyPrereqsFulfilled bool   `json:"only_prereqs_fulfilled,omitempty" jsonschema:"description=If true return only courses for which the user satisfies all prerequisites"`
	OnlyCurrentSemester  bool   `json:"only_current_semester,omitempty" jsonschema:"description=If true only look at courses offered in the current semester"`
}

func (e *toolEnv) newCourseQuery() (tool.CallableTool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        "course_query",
			Description: "Queries the course database for semantic similarities.",
		},
		func(ctx context.Context, args courseQueryArgs) (map[string]any, error) {
			n := args.TopN
			if n < 1 {
				n = 1
			}
			if n > 100 {
				n = 100
			}

			candidates := prereq.AvailableCourses(e.catalog, e.profile,
				args.OnlyPrereqsFulfilled, args.OnlyCurrentSemester, e.term)
			if candidates == nil {
				// Zero eligible courses restricts the query to nothing;
				// a nil candidate set would mean no restriction at all.
				candidates = []string{}
			}

			results, err := e.index.Query(ctx, args.Query, candidates, n)
			if err != nil {
				return nil, err
			}
			if results == nil {
				results = []semantic.Result{}
			}

			message := "Configuration: Results not restricted to current term."
			if args.OnlyCurrentSemester {
				message = "Configuration: Results restricted to current term."
			}
			return map[string]any{
				"search_result":            results,
				"message_to_relay_to_user": message,
			}, nil
		})
}

type profileCourseArg struct {
	Name  string `json:"name" jsonschema:"required,description=Course name"`
	Grade string `json:"grade" jsonschema:"description=Grade received in the course. A pass is a 'C'."`
}

type removeProfileArgs struct {
	Courses             []string `json:"courses,omitempty" jsonschema:"description=Courses to remove"`
	Equivalents         []string `json:"equivalents,omitempty" jsonschema:"description=Course equivalents to remove"`
	RemoveStanding      bool     `json:"remove_standing,omitempty" jsonschema:"description=Whether to remove standing from the profile"`
	RemoveSemestersLeft bool     `json:"remove_semesters_left,omitempty" jsonschema:"description=Whether to remove semesters_left from the profile"`
}

type updateProfileArgs struct {
	Courses       []profileCourseArg `json:"courses,omitempty" jsonschema:"description=Courses the user has completed or is currently taking"`
	Equivalents   []string           `json:"equivalents,omitempty" jsonschema:"description=Courses the user has transfer equivalents for"`
	Standing      string             `json:"standing,omitempty" jsonschema:"enum=FRESHMAN,enum=SOPHOMORE,enum=JUNIOR,enum=SENIOR,enum=GRAD,description=The user's academic standing"`
	SemestersLeft *int               `json:"semesters_left,omitempty" jsonschema:"description=Number of semesters remaining until graduation"`
	Honors        *bool              `json:"honors,omitempty" jsonschema:"description=Whether the user is an honors student"`
	ToRemove      *removeProfileArgs `json:"to_remove,omitempty" jsonschema:"description=Profile entries to remove"`
}

func (e *toolEnv) newUpdateUserProfile() (tool.CallableTool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        "update_user_profile",
			Description: "Updates the user profile. Returns all user fulfilments after the update and errors if any.",
		},
		func(_ context.Context, args updateProfileArgs) (map[string]any, error) {
			var errs []any
			changed := false

			for _, c := range args.Courses {
				name, nerr := e.catalog.Normalize(c.Name)
				if nerr != nil {
					errs = append(errs, normalizeErrorMap(nerr))
					continue
				}
				e.profile.Courses[name] = prereq.CourseGrade{Name: name, Grade: c.Grade}
				changed = true
			}

			for _, eq := range args.Equivalents {
				name, nerr := e.catalog.Normalize(eq)
				if nerr != nil {
					errs = append(errs, normalizeErrorMap(nerr))
					continue
				}
				if !e.profile.HasEquivalent(name) {
					e.profile.Equivalents = append(e.profile.Equivalents, name)
				}
				changed = true
			}

			if args.Standing != "" {
				e.profile.Standing = args.Standing
				changed = true
			}
			if args.SemestersLeft != nil {
				e.profile.SemestersLeft = args.SemestersLeft
				changed = true
			}
			if args.Honors != nil {
				e.profile.Honors = *args.Honors
				changed = true
			}

			if rm := args.ToRemove; rm != nil {
				for _, c := range rm.Courses {
					if _, ok := e.profile.Courses[c]; ok {
						delete(e.profile.Courses, c)
						changed = true
					} else {
						errs = append(errs, map[string]any{
							"error_message": fmt.Sprintf("%s was not found in user courses!", c),
						})
					}
				}
				for _, eq := range rm.Equivalents {
					if i := slices.Index(e.profile.Equivalents, eq); i >= 0 {
						e.profile.Equivalents = slices.Delete(e.profile.Equivalents, i, i+1)
						changed = true
					} else {
						errs = append(errs, map[string]any{
							"error_message": fmt.Sprintf("%s was not found in user equivalents!", eq),
						})
					}
				}
				if rm.RemoveStanding {
					e.profile.Standing = ""
					changed = true
				}
				if rm.RemoveSemestersLeft {
					e.profile.SemestersLeft = nil
					changed = true
				}
			}

			if changed {
				e.profile.NewUser = false
			}

			dump, err := resultMap(e.profile)
			if err != nil {
				return nil, err
			}
			if len(errs) > 0 {
				dump["errors"] = errs
			}
			return dump, nil
		})
}

type courseSearchArgs struct {
	CourseName string `json:"course_name" jsonschema:"required,description=Name of the course to search for"`
}

func (e *toolEnv) newGetCourseDescription() (tool.CallableTool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        "get_course_description",
			Description: "Gets the course description of a course.",
		},
		func(_ context.Context, args courseSearchArgs) (map[string]any, error) {
			name, nerr := e.catalog.Normalize(args.CourseName)
			if nerr != nil {
				return normalizeErrorMap(nerr), nil
			}
			course, ok := e.catalog.Get(name)
			if !ok {
				return nil, fmt.Errorf("course data not found for %s", name)
			}
			return map[string]any{"description": course.Desc}, nil
		})
}

func (e *toolEnv) newCanTakeCourse() (tool.CallableTool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        "can_take_course",
			Description: "Checks if the user can take a course. Returns true or an explanation of why the user cannot take it.",
		},
		func(_ context.Context, args courseSearchArgs) (map[string]any, error) {
			name, nerr := e.catalog.Normalize(args.CourseName)
			if nerr != nil {
				return normalizeErrorMap(nerr), nil
			}
			if _, taken := e.profile.Courses[name]; taken {
				return map[string]any{
					"response": fmt.Sprintf("You have already completed or are currently taking %s.", name),
				}, nil
			}
			return map[string]any{
				"response": prereq.Evaluate(e.catalog.PrereqTree(name), e.profile).Value(),
			}, nil
		})
}

func (e *toolEnv) newMakeSchedule() (tool.CallableTool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        makeScheduleName,
			Description: "Generates up to five conflict-free schedules for the given courses fitting within the max_days constraint. Schedules are streamed to the user as they are found.",
		},
		func(ctx context.Context, args schedule.Request) (map[string]any, error) {
			// Honors students see honors sections even when the model
			// omits the flag.
			if !args.Honors {
				args.Honors = e.profile.Honors
			}

			enum := &schedule.Enumerator{Catalog: e.catalog, Ratings: e.ratings}
			summary := enum.Run(ctx, e.term, args, func(s schedule.Schedule) {
				select {
				case e.schedCh <- s:
				case <-ctx.Done():
				}
			})
			return resultMap(summary)
		})
}

// termSeasons maps the two-digit term-code suffix to a season name.
var termSeasons = map[string]string{
	"10": "Spring",
	"50": "Summer",
	"90": "Fall",
	"95": "Winter",
}

// TermName renders a six-digit term code as "<YYYY> <season>". Codes
// that do not match the convention are returned unchanged.
func TermName(code string) string {
	if len(code) == 6 {
		if season, ok := termSeasons[code[4:]]; ok {
			return code[:4] + " " + season
		}
	}
	return code
}

type getTermArgs struct{}

func (e *toolEnv) newGetTerm() (tool.CallableTool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        "get_term",
			Description: "Returns the term the user is currently planning for.",
		},
		func(_ context.Context, _ getTermArgs) (map[string]any, error) {
			return map[string]any{"term": TermName(e.term)}, nil
		})
}

// normalizeErrorMap renders an in-band normalization failure the way
// tools report it to the model.
func normalizeErrorMap(nerr *catalog.NormalizeError) map[string]any {
	return map[string]any{
		"error_message": nerr.ErrorMessage,
		"did_you_mean":  nerr.DidYouMean,
	}
}

// resultMap converts a typed value to the generic map shape function
// responses carry.
func resultMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode tool result: %w", err)
	}
	return m, nil
}
