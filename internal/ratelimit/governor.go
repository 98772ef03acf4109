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

// Package ratelimit implements the request admission governor that fronts
// every control-plane operation. It counts requests per (client identity,
// route prefix) inside fixed windows. The governor is in-process and
// approximate: exactness is not a product requirement, only abuse dampening.
package ratelimit

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Rule bounds one route prefix.
type Rule struct {
	Prefix      string
	MaxRequests int
	Window      time.Duration
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter int // seconds until the window rolls over; set when rejected
}

type entry struct {
	count     int
	resetTime time.Time
	window    time.Duration
}

// Governor holds the counter store. It is safe for concurrent use and owned
// explicitly by the caller rather than living in package state.
type Governor struct {
	mu          sync.Mutex
	entries     map[string]*entry
	rules       []Rule
	fallback    Rule
	sweepChance float64
}

// DefaultRules mirrors the per-route budgets the desktop clients are tuned
// against.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/api/company/validate", MaxRequests: 10, Window: time.Minute},
		{Prefix: "/api/updates/check", MaxRequests: 60, Window: time.Hour},
		{Prefix: "/api/updates/download", MaxRequests: 5, Window: time.Hour},
	}
}

// DefaultFallback applies to any route without a configured rule.
func DefaultFallback() Rule {
	return Rule{Prefix: "", MaxRequests: 100, Window: time.Minute}
}

// NewGovernor creates a governor with the given per-prefix rules and a
// fallback for unmatched routes.
func NewGovernor(rules []Rule, fallback Rule) *Governor {
	return &Governor{
		entries:     make(map[string]*entry),
		rules:       rules,
		fallback:    fallback,
		sweepChance: 0.01,
	}
}

// Allow performs one admission check for the given client identity and
// request path. Each call is a single read-modify-write on one map entry.
func (g *Governor) Allow(identity, path string) Decision {
	rule := g.match(path)
	key := identity + ":" + rule.Prefix
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[key]
	if !ok || now.After(e.resetTime) {
		e = &entry{resetTime: now.Add(rule.Window), window: rule.Window}
		g.entries[key] = e
	}

	if rand.Float64() < g.sweepChance {
		g.sweep(now)
	}

	if e.count >= rule.MaxRequests {
		retry := int(e.resetTime.Sub(now).Seconds()) + 1
		return Decision{
			Allowed:    false,
			Limit:      rule.MaxRequests,
			Remaining:  0,
			Reset:      e.resetTime,
			RetryAfter: retry,
		}
	}

	e.count++
	return Decision{
		Allowed:   true,
		Limit:     rule.MaxRequests,
		Remaining: rule.MaxRequests - e.count,
		Reset:     e.resetTime,
	}
}

// match resolves the longest configured prefix for the path, falling back to
// the default rule.
func (g *Governor) match(path string) Rule {
	best := g.fallback
	bestLen := -1
	for _, r := range g.rules {
		if strings.HasPrefix(path, r.Prefix) && len(r.Prefix) > bestLen {
			best = r
			bestLen = len(r.Prefix)
		}
	}
	return best
}

// sweep drops entries whose window expired more than one window-duration
// ago. Running it on a small random fraction of requests bounds memory
// growth without a dedicated background task. Caller holds g.mu.
func (g *Governor) sweep(now time.Time) {
	for k, e := range g.entries {
		if now.Sub(e.resetTime) > e.window {
			delete(g.entries, k)
		}
	}
}
