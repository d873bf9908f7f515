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

package schedule

import (
	"strconv"
	"strings"
)

// Interval is a half-open meeting window in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// parseClock converts "11:30 AM" to minutes since midnight. 12 AM maps to
// 0 and 12 PM to 720.
func parseClock(t string) (int, bool) {
	t = strings.TrimSpace(t)
	i := strings.LastIndex(t, " ")
	if i < 0 {
		return 0, false
	}
	clock, period := t[:i], strings.TrimSpace(t[i+1:])

	hm := strings.SplitN(clock, ":", 2)
	if len(hm) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(strings.TrimSpace(hm[0]))
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(strings.TrimSpace(hm[1]))
	if err != nil {
		return 0, false
	}

	switch period {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	default:
		return 0, false
	}
	return hour*60 + minute, true
}

// parseTimeRange parses a single "HH:MM AM - HH:MM PM" slot.
func parseTimeRange(s string) (Interval, bool) {
	parts := strings.Split(strings.TrimSpace(s), " - ")
	if len(parts) != 2 {
		return Interval{}, false
	}
	start, ok := parseClock(parts[0])
	if !ok {
		return Interval{}, false
	}
	end, ok := parseClock(parts[1])
	if !ok {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// ParseSectionTimes maps a section's times-string onto its day letters. A
// single comma-separated slot applies to every day; multiple slots map to
// days positionally. A slot that fails to parse drops that day only, so a
// section with one bad column still schedules on its remaining days.
func ParseSectionTimes(times, days string) map[byte][]Interval {
	if times == "" || days == "" {
		return map[byte][]Interval{}
	}

	slots := strings.Split(times, ",")
	out := make(map[byte][]Interval)

	if len(slots) == 1 {
		iv, ok := parseTimeRange(slots[0])
		if ok {
			for i := 0; i < len(days); i++ {
				out[days[i]] = []Interval{iv}
			}
		}
		return out
	}

	for i := 0; i < len(days) && i < len(slots); i++ {
		if iv, ok := parseTimeRange(slots[i]); ok {
			out[days[i]] = []Interval{iv}
		}
	}
	return out
}

// conflicts reports whether two parsed sections overlap on any shared day.
// Overlap is strict: touching boundaries do not conflict.
func conflicts(a, b map[byte][]Interval) bool {
	for day, slots := range a {
		others, ok := b[day]
		if !ok {
			continue
		}
		for _, x := range slots {
			for _, y := range others {
				if x.Start < y.End && y.Start < x.End {
					return true
				}
			}
		}
	}
	return false
}
