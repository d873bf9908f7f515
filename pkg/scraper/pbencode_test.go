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
	"encoding/base64"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodePB reverses pbEncode: the first four characters are the base64
// of a two-digit salt, the rest is the base64 of the value.
func decodePB(t *testing.T, encoded string) string {
	t.Helper()
	require.GreaterOrEqual(t, len(encoded), 4)

	salt, err := base64.StdEncoding.DecodeString(encoded[:4])
	require.NoError(t, err)
	n, err := strconv.Atoi(string(salt))
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 10)
	require.LessOrEqual(t, n, 99)

	value, err := base64.StdEncoding.DecodeString(encoded[4:])
	require.NoError(t, err)
	return string(value)
}

func TestPBEncodeRoundTrip(t *testing.T) {
	for _, value := range []string{"term", "202610", "", "CS"} {
		assert.Equal(t, value, decodePB(t, pbEncode(value)))
	}
}

func TestPBParams(t *testing.T) {
	values := pbParams(map[string]string{
		"term": "202610",
		"max":  "9999",
	})

	assert.Equal(t, "true", values.Get("encoded"))

	decoded := make(map[string]string)
	for key, vals := range values {
		if key == "encoded" {
			continue
		}
		require.Len(t, vals, 1)
		decoded[decodePB(t, key)] = decodePB(t, vals[0])
	}
	assert.Equal(t, map[string]string{
		"term": "202610",
		"max":  "9999",
	}, decoded)
}
