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
	"math/rand"
	"net/url"
	"strconv"
)

// pbEncode obfuscates a string the way the Ellucian Page Builder expects:
// base64 of a random 2-digit salt concatenated with base64 of the value.
func pbEncode(s string) string {
	salt := strconv.Itoa(10 + rand.Intn(90))
	return base64.StdEncoding.EncodeToString([]byte(salt)) +
		base64.StdEncoding.EncodeToString([]byte(s))
}

// pbParams obfuscates every key and value of the raw parameter set and
// adds the plain-text encoded=true flag.
func pbParams(raw map[string]string) url.Values {
	values := url.Values{}
	for key, value := range raw {
		values.Set(pbEncode(key), pbEncode(value))
	}
	values.Set("encoded", "true")
	return values
}
