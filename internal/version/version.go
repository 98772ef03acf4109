// Copyright 2026 The NexusCentral Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package version compares dotted numeric version strings as reported by
// desktop clients ("1.2.3"). Comparison is lenient on purpose: a segment
// that is missing or not a number reads as zero, so an oddly formatted but
// legitimate client version never causes a hard failure. "1.2" and "1.2.0"
// compare equal.
package version

import (
	"strconv"
	"strings"
)

// Compare returns -1 if a < b, 0 if a == b, and 1 if a > b.
// It is total: malformed input degrades segment-wise to zero.
func Compare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		av := segment(as, i)
		bv := segment(bs, i)
		if av > bv {
			return 1
		}
		if av < bv {
			return -1
		}
	}

	return 0
}

func segment(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(parts[i])
	if err != nil || v < 0 {
		return 0
	}
	return v
}
