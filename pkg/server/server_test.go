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

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/kadirpekel/advisor/pkg/advisor"
	"github.com/kadirpekel/advisor/pkg/catalog"
	"github.com/kadirpekel/advisor/pkg/model/gemini"
	"github.com/kadirpekel/advisor/pkg/prereq"
	"github.com/kadirpekel/advisor/pkg/ratings"
	"github.com/kadirpekel/advisor/pkg/session"
)

// textModel streams fixed text deltas followed by a plain text turn.
type textModel struct {
	deltas []string
}

func (m *textModel) Stream(_ context.Context, _ *gemini.Request) iter.Seq2[*gemini.StreamEvent, error] {
	return func(yield func(*gemini.StreamEvent, error) bool) {
		text := ""
		for _, d := range m.deltas {
			text += d
			if !yield(&gemini.StreamEvent{TextDelta: d}, nil) {
				return
			}
		}
		yield(&gemini.StreamEvent{Final: &genai.Content{
			Role:  genai.RoleModel,
			Parts: []*genai.Part{{Text: text}},
		}}, nil)
	}
}

type nopSessions struct{}

func (nopSessions) Load(context.Context, string) *session.State {
	return &session.State{Profile: prereq.NewProfile()}
}

func (nopSessions) Save(context.Context, string, []*session.Content, *prereq.Profile) error {
	return nil
}

func newTestServer(t *testing.T) (*Server, *catalog.Store, *ratings.Store) {
	t.Helper()
	cat := catalog.NewStore()
	rat := ratings.NewStore()
	adv := &advisor.Advisor{
		Catalog:  cat,
		Ratings:  rat,
		Sessions: nopSessions{},
		Model:    &textModel{deltas: []string{"Hello ", "there."}},
		Prompt:   "You are a course advisor.",
	}
	return New(adv, cat, rat, nil, Config{Addr: ":0"}), cat, rat
}

func TestHandleChatStreamsNDJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/chat", "application/json",
		strings.NewReader(`{"sessionID": "s1", "query": "hi", "term": "202610"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var frames []advisor.Frame
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var frame advisor.Frame
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &frame))
		frames = append(frames, frame)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, frames, 2)
	assert.Equal(t, advisor.FrameText, frames[0].Type)
	assert.Equal(t, "Hello ", frames[0].Content)
	assert.Equal(t, "there.", frames[1].Content)
}

func TestHandleChatRejectsBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/chat", "application/json",
		strings.NewReader(`{"sessionID": "s1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleChatMintsSessionID(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/chat", "application/json",
		strings.NewReader(`{"query": "hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Session-ID"))
}

func TestHandleGetProfs(t *testing.T) {
	srv, _, rat := newTestServer(t)
	rat.Set("Doe, Jane", ratings.Rating{AvgRating: "4.5", LastUpdated: time.Now().Unix()})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/getprofs", "application/json",
		strings.NewReader(`{"profs": ["Doe, Jane", "Nobody, Nancy"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]*ratings.Rating
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
	require.NotNil(t, out["Doe, Jane"])
	assert.Equal(t, "4.5", out["Doe, Jane"].AvgRating)
	assert.Nil(t, out["Nobody, Nancy"])
}

func TestHandleGetCourses(t *testing.T) {
	srv, cat, _ := newTestServer(t)
	cat.Upsert("CS 101", &catalog.Course{Title: "Introduction to Computing"})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/getcourses")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]*catalog.Course
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Contains(t, out, "CS 101")
	assert.Equal(t, "Introduction to Computing", out["CS 101"].Title)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
