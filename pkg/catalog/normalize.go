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

package catalog

import (
	"fmt"
	"strings"
)

// NormalizeError reports a course name that could not be resolved, along
// with the closest valid names. It is returned in-band to tools so the
// LLM can relay suggestions; it is not a Go error.
type NormalizeError struct {
	ErrorMessage string   `json:"error_message"`
	DidYouMean   []string `json:"did_you_mean"`
}

// maxSuggestions caps the did_you_mean list.
const maxSuggestions = 5

// Normalize validates and canonicalizes a course name ("cs101" -> "CS 101").
// The input is upper-cased; if it is already a valid name it is returned
// as-is. Otherwise the valid set is scored by longest common subsequence
// over space-stripped lowercase strings, and a single candidate whose
// space-stripped form matches exactly is accepted. Anything else yields a
// NormalizeError carrying up to five suggestions.
func (s *Store) Normalize(name string) (string, *NormalizeError) {
	name = strings.ToUpper(strings.TrimSpace(name))

	s.mu.RLock()
	_, valid := s.courses[name]
	s.mu.RUnlock()
	if valid {
		return name, nil
	}

	matches := s.bestMatches(name)
	if len(matches) == 1 && stripSpaces(name) == stripSpaces(matches[0]) {
		return matches[0], nil
	}

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	return "", &NormalizeError{
		ErrorMessage: fmt.Sprintf("%s is not a valid course!", name),
		DidYouMean:   matches,
	}
}

// bestMatches returns every valid course name that attains the maximum LCS
// score against the query. Sorted order comes from iterating Names().
func (s *Store) bestMatches(query string) []string {
	var (
		matches  []string
		maxScore int
	)
	for _, name := range s.Names() {
		score := lcsLength(query, name)
		switch {
		case score > maxScore:
			maxScore = score
			matches = matches[:0]
			matches = append(matches, name)
		case score == maxScore:
			matches = append(matches, name)
		}
	}
	return matches
}

// lcsLength computes the longest common subsequence length of two strings,
// case-insensitively and ignoring spaces. The usual O(|a|*|b|) table is
// reduced to a single row; adequate for catalogs in the low thousands of
// names. For larger corpora replace with a trigram index.
func lcsLength(a, b string) int {
	a = strings.ToLower(stripSpaces(a))
	b = strings.ToLower(stripSpaces(b))

	dp := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			tmp := dp[j]
			if a[i] == b[j-1] {
				dp[j] = prev + 1
			} else if dp[j-1] > dp[j] {
				dp[j] = dp[j-1]
			}
			prev = tmp
		}
	}
	return dp[len(b)]
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// NormalizeSectionID canonicalizes a section id for locked-in matching.
// Ids are upper-cased; when the id is a letter prefix followed by digits,
// the digits are left-padded with zeros so the total length is three
// ("2" -> "002", "H2" -> "H02", "HM2" -> "HM2").
func NormalizeSectionID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))

	i := 0
	for i < len(id) && (id[i] < '0' || id[i] > '9') {
		i++
	}
	prefix, digits := id[:i], id[i:]
	if digits == "" {
		return id
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return id
		}
	}
	for len(prefix)+len(digits) < 3 {
		digits = "0" + digits
	}
	return prefix + digits
}
