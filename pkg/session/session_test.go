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
)

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	require.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestLockReturnsSameMutexPerSession(t *testing.T) {
	store := NewStore(nil)

	m1 := store.Lock("sid-1")
	m2 := store.Lock("sid-1")
	other := store.Lock("sid-2")

	assert.Same(t, m1, m2)
	assert.NotSame(t, m1, other)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "abc:history", HistoryKey("abc"))
	assert.Equal(t, "abc:prereqs", PrereqsKey("abc"))
}
