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

package functiontool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/advisor/pkg/tool"
)

type lookupArgs struct {
	CourseName string `json:"course_name" jsonschema:"required,description=Name of the course to search for"`
	TopN       int    `json:"top_n,omitempty" jsonschema:"description=Maximum results,default=5"`
}

func newLookupTool(t *testing.T) tool.CallableTool {
	t.Helper()
	lookup, err := New(
		Config{Name: "lookup_course", Description: "Looks up a course by name"},
		func(_ context.Context, args lookupArgs) (map[string]any, error) {
			return map[string]any{"course": args.CourseName, "top_n": args.TopN}, nil
		},
	)
	require.NoError(t, err)
	return lookup
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Description: "no name"}, func(context.Context, lookupArgs) (map[string]any, error) {
		return nil, nil
	})
	require.Error(t, err)

	_, err = New(Config{Name: "no_description"}, func(context.Context, lookupArgs) (map[string]any, error) {
		return nil, nil
	})
	require.Error(t, err)
}

func TestSchemaFromStructTags(t *testing.T) {
	lookup := newLookupTool(t)

	schema := lookup.Schema()
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "course_name")
	assert.Contains(t, props, "top_n")

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "course_name")
	assert.NotContains(t, required, "top_n")
}

func TestCallConvertsArgs(t *testing.T) {
	lookup := newLookupTool(t)

	// JSON numbers arrive as float64; conversion to int must work.
	result, err := lookup.Call(context.Background(), map[string]any{
		"course_name": "CS 101",
		"top_n":       float64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "CS 101", result["course"])
	assert.Equal(t, 3, result["top_n"])
}

func TestCallRejectsMalformedArgs(t *testing.T) {
	lookup := newLookupTool(t)

	_, err := lookup.Call(context.Background(), map[string]any{"top_n": "three"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments for lookup_course")
}

func TestRegistry(t *testing.T) {
	lookup := newLookupTool(t)
	registry := tool.NewRegistry(lookup)

	got, ok := registry.Get("lookup_course")
	require.True(t, ok)
	assert.Equal(t, lookup, got)

	_, ok = registry.Get("missing")
	assert.False(t, ok)

	defs := registry.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "lookup_course", defs[0].Name)
	assert.NotNil(t, defs[0].Parameters)
}
