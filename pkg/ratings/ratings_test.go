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

package ratings

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvgRating(t *testing.T) {
	s := NewStore()
	s.Set("Calvin, James", Rating{AvgRating: "4.2"})
	s.Set("Broken, Record", Rating{AvgRating: "n/a"})

	avg, ok := s.AvgRating("Calvin, James")
	require.True(t, ok)
	assert.InDelta(t, 4.2, avg, 1e-9)

	_, ok = s.AvgRating("Broken, Record")
	assert.False(t, ok, "unparseable ratings count as missing")

	_, ok = s.AvgRating("Nobody, At All")
	assert.False(t, ok)
}

func TestIsStale(t *testing.T) {
	now := time.Now()
	s := NewStore()
	s.Set("Fresh, Fiona", Rating{LastUpdated: now.Unix()})
	s.Set("Stale, Stan", Rating{LastUpdated: now.Add(-6 * time.Hour).Unix()})

	assert.False(t, s.IsStale("Fresh, Fiona", now))
	assert.True(t, s.IsStale("Stale, Stan", now))
	assert.True(t, s.IsStale("Missing, Mel", now))
}

func TestDefaultRating(t *testing.T) {
	now := time.Now()
	d := Default(now)
	assert.Equal(t, "0", d.AvgRating)
	assert.Equal(t, "5", d.AvgDifficulty)
	assert.Equal(t, NotFoundLink, d.Link)
	assert.Equal(t, now.Unix(), d.LastUpdated)

	// The default never passes a positive rating floor.
	s := NewStore()
	s.Set("Unknown, Ursula", d)
	avg, ok := s.AvgRating("Unknown, Ursula")
	require.True(t, ok)
	assert.Zero(t, avg)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lecturers.json")

	s := NewStore()
	s.Set("Calvin, James", Rating{AvgRating: "4.2", NumRatings: "31", LegacyID: 12345, LastUpdated: 1700000000})
	require.NoError(t, s.SaveFile(path))

	loaded := NewStore()
	require.NoError(t, loaded.LoadFile(path))
	got, ok := loaded.Get("Calvin, James")
	require.True(t, ok)
	assert.Equal(t, "4.2", got.AvgRating)
	assert.Equal(t, int64(12345), got.LegacyID)
	assert.Equal(t, []string{"Calvin, James"}, loaded.Names())
}

func TestLoadFileMissingOrMalformed(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.LoadFile(filepath.Join(t.TempDir(), "nope.json")))
	assert.Empty(t, s.Names())
}
