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

package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/advisor/pkg/catalog"
	"github.com/kadirpekel/advisor/pkg/ratings"
)

const searchPage = `
<div class="search-courseresult">
  <h2>CS 350. Computer Systems</h2>
  <p class="courseblockdesc">Prerequisite: CS 280.</p>
</div>`

func newTestScraper(t *testing.T, gen *fakeGenerator, handler http.HandlerFunc) *Scraper {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := ratings.NewStore()
	return New(
		NewBannerClient(srv.URL),
		NewPageClient(srv.URL),
		NewExtractor(gen, "prompt"),
		NewRMPClient(srv.URL, store),
		catalog.NewStore(),
		store,
		nil,
		Config{TermFile: filepath.Join(t.TempDir(), "currentTerm.txt")},
	)
}

func sections(ids ...string) map[string]catalog.Section {
	out := make(map[string]catalog.Section)
	for _, id := range ids {
		var sec catalog.Section
		sec[0] = id
		sec[8] = "Doe, Jane"
		out[id] = sec
	}
	return out
}

func TestApplySectionsReplacesTerm(t *testing.T) {
	s := newTestScraper(t, &fakeGenerator{}, nil)
	s.catalog.Upsert("CS 101", &catalog.Course{
		Title: "Introduction to Computing",
		Sections: map[string]map[string]catalog.Section{
			"202610": sections("001", "002"),
		},
	})

	s.applySections(context.Background(), "202610", CourseSections{
		CourseID: "CS 101",
		Header:   "Introduction to Computing",
		Sections: sections("003"),
	})

	course, ok := s.catalog.Get("CS 101")
	require.True(t, ok)
	require.Len(t, course.Sections["202610"], 1)
	assert.Contains(t, course.Sections["202610"], "003")
}

func TestApplySectionsMergesHonors(t *testing.T) {
	s := newTestScraper(t, &fakeGenerator{}, nil)
	s.catalog.Upsert("CS 101", &catalog.Course{
		Title: "Introduction to Computing",
		Sections: map[string]map[string]catalog.Section{
			"202610": sections("001"),
		},
	})

	s.applySections(context.Background(), "202610", CourseSections{
		CourseID: "CS 101",
		Header:   "Introduction to Computing",
		Honors:   true,
		Sections: sections("H01"),
	})

	course, ok := s.catalog.Get("CS 101")
	require.True(t, ok)
	require.Len(t, course.Sections["202610"], 2)
	assert.Contains(t, course.Sections["202610"], "001")
	assert.Contains(t, course.Sections["202610"], "H01")
}

func TestApplySectionsCreatesNewCourse(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"prereq_tree": {"type": "COURSE", "course": "CS 280"},
		"restrictions": []
	}`}
	s := newTestScraper(t, gen, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/", r.URL.Path)
		require.Equal(t, "CS 350", r.URL.Query().Get("P"))
		_, _ = w.Write([]byte(searchPage))
	})

	credits := 3.0
	s.applySections(context.Background(), "202610", CourseSections{
		CourseID: "CS 350",
		Header:   "Computer Systems",
		Credits:  &credits,
		Sections: sections("001"),
	})

	course, ok := s.catalog.Get("CS 350")
	require.True(t, ok)
	assert.Equal(t, "Computer Systems", course.Title)
	assert.Equal(t, "Prerequisite: CS 280.", course.Desc)
	require.NotNil(t, course.PrereqTree)
	assert.Equal(t, "CS 280", course.PrereqTree.Course)
	require.NotNil(t, course.Credits)
	assert.Equal(t, 3.0, *course.Credits)
	assert.Contains(t, course.Sections["202610"], "001")
}

func TestApplySectionsFallsBackToHeaderTitle(t *testing.T) {
	// Search page unreachable: the course keeps the table header as its
	// title and the placeholder description, without a model call.
	gen := &fakeGenerator{response: `unused`}
	s := newTestScraper(t, gen, nil)

	s.applySections(context.Background(), "202610", CourseSections{
		CourseID: "CS 490",
		Header:   "Guided Design in Software Engineering",
		Sections: sections("001"),
	})

	course, ok := s.catalog.Get("CS 490")
	require.True(t, ok)
	assert.Equal(t, "Guided Design in Software Engineering", course.Title)
	assert.Equal(t, "No Description", course.Desc)
	assert.Nil(t, course.PrereqTree)
	assert.Empty(t, gen.asked)
}

func TestApplyCatalogCourseUpdatesDescription(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"prereq_tree": {"type": "COURSE", "course": "MATH 111"},
		"restrictions": []
	}`}
	s := newTestScraper(t, gen, nil)
	s.catalog.Upsert("MATH 112", &catalog.Course{
		Title:    "Calculus II",
		Desc:     "Old description.",
		Sections: map[string]map[string]catalog.Section{},
	})

	s.applyCatalogCourse(context.Background(), CatalogCourse{
		Code:  "MATH 112",
		Title: "Calculus II",
		Desc:  "Prerequisite: MATH 111.",
	})

	course, ok := s.catalog.Get("MATH 112")
	require.True(t, ok)
	assert.Equal(t, "Prerequisite: MATH 111.", course.Desc)
	require.NotNil(t, course.PrereqTree)
	assert.Equal(t, "MATH 111", course.PrereqTree.Course)
	require.Len(t, gen.asked, 1)
}

func TestApplyCatalogCourseTitleOnlyChangeSkipsExtraction(t *testing.T) {
	gen := &fakeGenerator{response: `unused`}
	s := newTestScraper(t, gen, nil)
	s.catalog.Upsert("MATH 112", &catalog.Course{
		Title:    "Calc II",
		Desc:     "Prerequisite: MATH 111.",
		Sections: map[string]map[string]catalog.Section{},
	})

	s.applyCatalogCourse(context.Background(), CatalogCourse{
		Code:  "MATH 112",
		Title: "Calculus II",
		Desc:  "Prerequisite: MATH 111.",
	})

	course, ok := s.catalog.Get("MATH 112")
	require.True(t, ok)
	assert.Equal(t, "Calculus II", course.Title)
	assert.Empty(t, gen.asked)
}

func TestApplyCatalogCourseCreatesNewCourse(t *testing.T) {
	gen := &fakeGenerator{response: `{"restrictions": []}`}
	s := newTestScraper(t, gen, nil)

	s.applyCatalogCourse(context.Background(), CatalogCourse{
		Code:  "HUM 101",
		Title: "Writing, Speaking, Thinking I",
		Desc:  "Practice in writing.",
	})

	course, ok := s.catalog.Get("HUM 101")
	require.True(t, ok)
	assert.Equal(t, "Writing, Speaking, Thinking I", course.Title)
	assert.NotNil(t, course.Sections)
}

func TestCurrentTerm(t *testing.T) {
	s := newTestScraper(t, &fakeGenerator{}, nil)

	_, ok := s.currentTerm()
	assert.False(t, ok, "missing term file should skip the cycle")

	require.NoError(t, os.WriteFile(s.cfg.TermFile, []byte("  \n"), 0o644))
	_, ok = s.currentTerm()
	assert.False(t, ok, "empty term file should skip the cycle")

	require.NoError(t, os.WriteFile(s.cfg.TermFile, []byte("202610\n"), 0o644))
	term, ok := s.currentTerm()
	require.True(t, ok)
	assert.Equal(t, "202610", term)
}

func TestInstructorNames(t *testing.T) {
	s := newTestScraper(t, &fakeGenerator{}, nil)
	s.catalog.Upsert("CS 101", &catalog.Course{
		Sections: map[string]map[string]catalog.Section{
			"202610": sections("001"),
			"202590": sections("002"),
		},
	})
	other := sections("001")
	sec := other["001"]
	sec[8] = "Smith, John"
	other["001"] = sec
	s.catalog.Upsert("MATH 111", &catalog.Course{
		Sections: map[string]map[string]catalog.Section{"202610": other},
	})

	assert.Equal(t, []string{"Doe, Jane", "Smith, John"}, s.instructorNames())
}
