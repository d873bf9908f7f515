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

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestFromGenaiDropsThoughtParts(t *testing.T) {
	in := []*genai.Content{
		{Role: "model", Parts: []*genai.Part{
			{Text: "internal reasoning", Thought: true},
			{Text: "visible answer", ThoughtSignature: []byte("sig")},
		}},
	}

	got := FromGenai(in)
	require.Len(t, got, 1)
	require.Len(t, got[0].Parts, 1)
	assert.Equal(t, "visible answer", got[0].Parts[0].Text)

	data, err := MarshalHistory(got)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "internal reasoning")
	assert.NotContains(t, string(data), "sig")
}

func TestHistoryRoundTrip(t *testing.T) {
	in := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: "can I take CS 350?"}}},
		{Role: "model", Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{
				ID:   "call-1",
				Name: "can_take_course",
				Args: map[string]any{"course_name": "CS 350"},
			}},
		}},
		{Role: "user", Parts: []*genai.Part{
			{FunctionResponse: &genai.FunctionResponse{
				ID:       "call-1",
				Name:     "can_take_course",
				Response: map[string]any{"result": "Missing course CS 280"},
			}},
		}},
		{Role: "model", Parts: []*genai.Part{{Text: "Not yet."}}},
	}

	persisted := FromGenai(in)
	data, err := MarshalHistory(persisted)
	require.NoError(t, err)

	restored := ToGenai(UnmarshalHistory(data))
	require.Len(t, restored, 4)

	assert.Equal(t, "user", restored[0].Role)
	assert.Equal(t, "can I take CS 350?", restored[0].Parts[0].Text)

	call := restored[1].Parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "can_take_course", call.Name)
	assert.Equal(t, map[string]any{"course_name": "CS 350"}, call.Args)

	resp := restored[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "call-1", resp.ID)
	assert.Equal(t, map[string]any{"result": "Missing course CS 280"}, resp.Response)

	assert.Equal(t, "Not yet.", restored[3].Parts[0].Text)
}

func TestUnmarshalHistoryBestEffort(t *testing.T) {
	assert.Nil(t, UnmarshalHistory(nil))
	assert.Nil(t, UnmarshalHistory([]byte("")))
	assert.Nil(t, UnmarshalHistory([]byte("{not json")))
}

func TestSessionKeys(t *testing.T) {
	assert.Equal(t, "abc:history", HistoryKey("abc"))
	assert.Equal(t, "abc:prereqs", PrereqsKey("abc"))
}
