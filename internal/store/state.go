// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store accumulates deduplicated learnings and sources for one
// research run and checkpoints them to SQLite so collected research survives
// a failed synthesis.
package store

import (
	"strings"
	"sync"
	"unicode"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Normalize lowercases s, strips punctuation, and collapses whitespace.
// Both query and learning deduplication key on this form.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// State is the single run-wide mutable aggregate. Branches compute their
// results in isolation and merge through the mutex here; the lock is never
// held across a network call.
type State struct {
	mu sync.Mutex

	learnings   []types.Learning
	learningIdx map[string]int // Normalize(text) → index into learnings

	sources     map[string]types.SourceRecord // URL → record
	sourceOrder []string

	visited map[string]bool // Normalize(query text)

	history []types.EvaluationResult
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		learningIdx: make(map[string]int),
		sources:     make(map[string]types.SourceRecord),
		visited:     make(map[string]bool),
	}
}

// MarkVisited records a query text as processed. It returns false when the
// normalized text was already visited, in which case the caller must skip
// the query.
func (s *State) MarkVisited(queryText string) bool {
	key := Normalize(queryText)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	return true
}

// Visited reports whether a query text has been processed.
func (s *State) Visited(queryText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visited[Normalize(queryText)]
}

// VisitedCount returns the number of distinct queries processed.
func (s *State) VisitedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited)
}

// Merge folds one branch's results into the shared state. Sources are
// deduplicated by URL, keeping the first record seen. Learnings are
// deduplicated by normalized text; a duplicate unions its source URLs into
// the existing entry. Learnings with no text or no source URLs are dropped.
// Merge returns the number of learnings that were new.
func (s *State) Merge(learnings []types.Learning, sources []types.SourceRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		if _, ok := s.sources[src.URL]; ok {
			continue
		}
		s.sources[src.URL] = src
		s.sourceOrder = append(s.sourceOrder, src.URL)
	}

	added := 0
	for _, l := range learnings {
		key := Normalize(l.Text)
		if key == "" {
			continue
		}
		urls := l.SourceURLs[:0:0]
		for _, u := range l.SourceURLs {
			if _, ok := s.sources[u]; ok {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			continue
		}
		if idx, ok := s.learningIdx[key]; ok {
			s.learnings[idx].SourceURLs = unionURLs(s.learnings[idx].SourceURLs, urls)
			continue
		}
		l.SourceURLs = unionURLs(nil, urls)
		s.learningIdx[key] = len(s.learnings)
		s.learnings = append(s.learnings, l)
		added++
	}
	return added
}

// unionURLs appends the members of add not already in urls, preserving order.
func unionURLs(urls, add []string) []string {
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		seen[u] = true
	}
	for _, u := range add {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// Learnings returns a copy of the accumulated learnings in merge order.
func (s *State) Learnings() []types.Learning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Learning, len(s.learnings))
	copy(out, s.learnings)
	for i := range out {
		out[i].SourceURLs = append([]string(nil), out[i].SourceURLs...)
	}
	return out
}

// LearningCount returns the number of distinct learnings.
func (s *State) LearningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.learnings)
}

// RecentLearnings returns up to n of the most recently merged learnings.
func (s *State) RecentLearnings(n int) []types.Learning {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.learnings) {
		n = len(s.learnings)
	}
	out := make([]types.Learning, n)
	copy(out, s.learnings[len(s.learnings)-n:])
	return out
}

// Sources returns the accumulated sources in first-seen order.
func (s *State) Sources() []types.SourceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.SourceRecord, 0, len(s.sourceOrder))
	for _, u := range s.sourceOrder {
		out = append(out, s.sources[u])
	}
	return out
}

// RecordEpoch appends one epoch's evaluation to the ordered history.
func (s *State) RecordEpoch(ev types.EvaluationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ev)
}

// EpochsCompleted returns the number of evaluated epochs.
func (s *State) EpochsCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// History returns a copy of the ordered epoch evaluations.
func (s *State) History() []types.EvaluationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.EvaluationResult, len(s.history))
	copy(out, s.history)
	return out
}

// LastScore returns the most recent epoch score, or fallback when no epoch
// has been evaluated yet.
func (s *State) LastScore(fallback float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return fallback
	}
	return s.history[len(s.history)-1].Score
}

// snapshot captures everything the checkpoint writes.
func (s *State) snapshot() ([]types.Learning, []types.SourceRecord, []types.EvaluationResult) {
	return s.Learnings(), s.Sources(), s.History()
}
