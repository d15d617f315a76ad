// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-research engine:
// queries, learnings, sources, evaluations, reports, and stage configuration.
package types

import "time"

// ResearchQuery is a single search query produced by the planner. Immutable
// once created.
type ResearchQuery struct {
	// Text is the query string sent to the search provider.
	Text string `json:"text" yaml:"text"`

	// Rationale explains what this query is meant to uncover. It is passed
	// to the summarizer so learnings stay focused on the branch's goal.
	Rationale string `json:"rationale" yaml:"rationale"`

	// ParentPath lists the ancestor query texts from the root down to this
	// query's parent, oldest first.
	ParentPath []string `json:"parent_path,omitempty" yaml:"parent_path,omitempty"`
}

// SearchHit is one result row from a search provider.
type SearchHit struct {
	URL     string `json:"url" yaml:"url"`
	Title   string `json:"title" yaml:"title"`
	Snippet string `json:"snippet" yaml:"snippet"`
}

// SourceRecord identifies a retrieved page. Deduplicated by URL.
type SourceRecord struct {
	URL         string    `json:"url" yaml:"url"`
	Title       string    `json:"title,omitempty" yaml:"title,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`
}

// Learning is an atomic fact condensed from source content. Learnings are
// deduplicated by normalized text; a duplicate merges its SourceURLs into
// the existing entry.
type Learning struct {
	// Text is the learning itself, one self-contained statement.
	Text string `json:"text" yaml:"text"`

	// SourceURLs lists the pages this learning was condensed from. Always a
	// non-empty subset of the accumulated source set.
	SourceURLs []string `json:"source_urls" yaml:"source_urls"`

	// Depth is the remaining depth of the branch that produced the learning.
	Depth int `json:"depth" yaml:"depth"`

	// DiscoveredAt is when the learning was first merged.
	DiscoveredAt time.Time `json:"discovered_at" yaml:"discovered_at"`
}

// EvaluationResult is the outcome of one epoch's goal-achievement scoring.
type EvaluationResult struct {
	// Achieved reports whether the evaluator judged the goal satisfied.
	Achieved bool `json:"achieved" yaml:"achieved"`

	// Score is the goal-alignment score in [0, 1].
	Score float64 `json:"score" yaml:"score"`

	// Rationale is the evaluator's explanation for the score.
	Rationale string `json:"rationale" yaml:"rationale"`
}

// ReportSection is one titled section of the final report.
type ReportSection struct {
	Heading string `json:"heading" yaml:"heading"`
	Body    string `json:"body" yaml:"body"`
}

// Report is the synthesized output of a research run.
type Report struct {
	Title           string          `json:"title" yaml:"title"`
	GeneratedAt     time.Time       `json:"generated_at" yaml:"generated_at"`
	GoalAchieved    bool            `json:"goal_achieved" yaml:"goal_achieved"`
	FinalScore      float64         `json:"final_score" yaml:"final_score"`
	EpochsCompleted int             `json:"epochs_completed" yaml:"epochs_completed"`
	Sections        []ReportSection `json:"sections" yaml:"sections"`
	Sources         []SourceRecord  `json:"sources" yaml:"sources"`
}
