// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "deep-research/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchBackend identifies the web search provider.
type SearchBackend string

const (
	BackendDuckDuckGo SearchBackend = "duckduckgo"
	BackendSerper     SearchBackend = "serper"
)

// SearchConfig holds settings for the web search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the search provider: duckduckgo or serper.
	Backend SearchBackend `json:"backend" yaml:"backend"`

	// MaxResults is the number of results requested per query (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// SerperAPIKey authenticates against the Serper API. Required when
	// Backend is "serper".
	SerperAPIKey string `json:"serper_api_key,omitempty" yaml:"serper_api_key,omitempty"`
}

// FetchConfig holds settings for page content fetching.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxBodyBytes caps the raw response body read per page (default 2 MiB).
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`

	// MaxTextRunes caps the extracted text passed to the summarizer per
	// page (default 25000).
	MaxTextRunes int `json:"max_text_runes" yaml:"max_text_runes"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint for OpenAI-compatible servers
	// (DeepSeek, Ollama). Empty means the provider default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts for failed or invalid
	// API responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ResearchConfig holds the run-level parameters of the research engine.
type ResearchConfig struct {
	// Topic is the subject under research.
	Topic string `json:"topic" yaml:"topic"`

	// Goal states what a successful run must establish. When empty the CLI
	// composes one from the topic.
	Goal string `json:"goal" yaml:"goal"`

	// Breadth is the maximum number of sibling queries at the root level.
	Breadth int `json:"breadth" yaml:"breadth"`

	// Depth is the number of expansion levels (epochs) the run may descend.
	Depth int `json:"depth" yaml:"depth"`

	// Concurrency is the run-wide ceiling on in-flight external operations.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// BranchDivisor controls how breadth narrows per level:
	// childBreadth = ceil(breadth / BranchDivisor). Default 2.
	BranchDivisor int `json:"branch_divisor" yaml:"branch_divisor"`

	// StagnationThreshold is the number of new learnings an epoch may add
	// and still be considered stagnant. Default 0: stop only when an epoch
	// adds nothing.
	StagnationThreshold int `json:"stagnation_threshold" yaml:"stagnation_threshold"`

	// LearningsPerQuery caps learnings condensed from one query (default 5).
	LearningsPerQuery int `json:"learnings_per_query" yaml:"learnings_per_query"`

	// FollowUpsPerQuery caps follow-up questions kept per query (default 2).
	FollowUpsPerQuery int `json:"follow_ups_per_query" yaml:"follow_ups_per_query"`

	// StateDir is the directory for the run checkpoint database.
	StateDir string `json:"state_dir" yaml:"state_dir"`
}

// Validate rejects parameter combinations the engine must never see.
// A violation is a configuration error, not a runtime fault.
func (c ResearchConfig) Validate() error {
	if c.Topic == "" {
		return fmt.Errorf("research topic is required")
	}
	if c.Breadth < 1 {
		return fmt.Errorf("breadth must be at least 1, got %d", c.Breadth)
	}
	if c.Depth < 1 {
		return fmt.Errorf("depth must be at least 1, got %d", c.Depth)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.BranchDivisor < 2 {
		return fmt.Errorf("branch divisor must be at least 2, got %d", c.BranchDivisor)
	}
	return nil
}

// ReportConfig holds settings for report synthesis and output.
type ReportConfig struct {
	AIConfig `yaml:",inline"`

	// OutputDir is the directory for rendered reports (e.g. "output/reports/").
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// RunConfig groups all stage configurations for one research run.
type RunConfig struct {
	Research ResearchConfig `json:"research" yaml:"research"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	Fetch    FetchConfig    `json:"fetch" yaml:"fetch"`
	AI       AIConfig       `json:"ai" yaml:"ai"`
	Report   ReportConfig   `json:"report" yaml:"report"`
}

// Defaults fills unset fields with the documented default values.
func (c *RunConfig) Defaults() {
	if c.Research.BranchDivisor == 0 {
		c.Research.BranchDivisor = 2
	}
	if c.Research.LearningsPerQuery == 0 {
		c.Research.LearningsPerQuery = 5
	}
	if c.Research.FollowUpsPerQuery == 0 {
		c.Research.FollowUpsPerQuery = 2
	}
	if c.Research.StateDir == "" {
		c.Research.StateDir = "state"
	}
	if c.Search.Backend == "" {
		c.Search.Backend = BackendDuckDuckGo
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = 30 * time.Second
	}
	if c.Search.UserAgent == "" {
		c.Search.UserAgent = "deep-research/0.1"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 20 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = c.Search.UserAgent
	}
	if c.Fetch.MaxBodyBytes == 0 {
		c.Fetch.MaxBodyBytes = 2 << 20
	}
	if c.Fetch.MaxTextRunes == 0 {
		c.Fetch.MaxTextRunes = 25000
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 3
	}
	if c.Report.Model == "" {
		c.Report.AIConfig = c.AI
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "output/reports"
	}
}
