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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/advisor/pkg/prereq"
)

// fakeGenerator replays a canned model response and records the prompt
// it was asked.
type fakeGenerator struct {
	response string
	err      error
	asked    []string
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, text string, _ bool) (string, error) {
	g.asked = append(g.asked, text)
	return g.response, g.err
}

func TestExtractorProcess(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"prereq_tree": {"type": "COURSE", "course": "CS 101", "min_grade": "C"},
		"coreq_tree": null,
		"restrictions": []
	}`}
	ex := NewExtractor(gen, "Extract the trees.")

	structure, err := ex.Process(context.Background(), "Prerequisite: CS 101 with a grade of C or better.")
	require.NoError(t, err)
	require.NotNil(t, structure.PrereqTree)
	assert.Equal(t, prereq.TypeCourse, structure.PrereqTree.Type)
	assert.Equal(t, "CS 101", structure.PrereqTree.Course)
	assert.Nil(t, structure.CoreqTree)
	assert.NotNil(t, structure.Restrictions)

	require.Len(t, gen.asked, 1)
	assert.Contains(t, gen.asked[0], "Extract the trees.")
	assert.Contains(t, gen.asked[0], "INPUT: Prerequisite: CS 101")
}

func TestExtractorProcessCleansUndefined(t *testing.T) {
	gen := &fakeGenerator{response: `{"prereq_tree": undefined, "coreq_tree": undefined}`}
	ex := NewExtractor(gen, "prompt")

	structure, err := ex.Process(context.Background(), "Some description.")
	require.NoError(t, err)
	assert.Nil(t, structure.PrereqTree)
	assert.Nil(t, structure.CoreqTree)
	assert.NotNil(t, structure.Restrictions)
}

func TestExtractorProcessSkipsEmptyDescriptions(t *testing.T) {
	gen := &fakeGenerator{response: `should never be used`}
	ex := NewExtractor(gen, "prompt")

	for _, desc := range []string{"", "No Description", "no description"} {
		structure, err := ex.Process(context.Background(), desc)
		require.NoError(t, err)
		assert.Nil(t, structure.PrereqTree)
		assert.NotNil(t, structure.Restrictions)
	}
	assert.Empty(t, gen.asked)
}
