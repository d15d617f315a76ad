// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm adapts a chat model into the narrow capabilities the research
// loop consumes: query planning, content summarization, goal scoring, goal
// composition, and report synthesis. Every capability requests a JSON object
// and validates it before accepting the response, retrying on malformed
// output.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/pkg/types"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultMaxRetries = 3
)

// retryBaseDelay scales the linear backoff between generation attempts.
// Tests shrink it.
var retryBaseDelay = time.Second

const systemPrompt = `You are an expert research assistant. Prioritize factual accuracy; include concrete data, numbers, dates, and named entities; focus on information relevant to the stated research objective. When asked for JSON, return a single valid JSON object with exactly the requested fields and no surrounding text or markdown.`

// Client wraps a chat model with JSON-mode generation and validation
// retries. One Client serves all research capabilities.
type Client struct {
	model      llms.Model
	maxRetries int
	log        *zap.Logger
}

// New constructs a Client against an OpenAI-compatible endpoint.
func New(cfg types.AIConfig, log *zap.Logger) (*Client, error) {
	name := cfg.Model
	if name == "" {
		name = defaultModel
	}
	opts := []openai.Option{openai.WithModel(name)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing chat model: %w", err)
	}
	return NewWithModel(model, cfg.MaxRetries, log), nil
}

// NewWithModel wraps an existing model. Tests inject fakes through here.
func NewWithModel(model llms.Model, maxRetries int, log *zap.Logger) *Client {
	if maxRetries < 1 {
		maxRetries = defaultMaxRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{model: model, maxRetries: maxRetries, log: log}
}

// generateJSON prompts the model in JSON mode and validates the raw
// response. A failed validation counts as a failed attempt; backoff grows
// linearly between attempts.
func (c *Client) generateJSON(ctx context.Context, user string, validate func(string) error) (string, error) {
	prompts := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn("retrying generation",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
			select {
			case <-time.After(retryBaseDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.model.GenerateContent(ctx, prompts, llms.WithJSONMode())
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("generation failed: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model returned no choices")
			continue
		}

		content := stripFences(resp.Choices[0].Content)
		if err := validate(content); err != nil {
			lastErr = fmt.Errorf("response validation failed: %w", err)
			continue
		}
		return content, nil
	}
	return "", fmt.Errorf("after %d attempts: %w", c.maxRetries, lastErr)
}

// stripFences removes a markdown code fence some models wrap JSON in even
// when JSON mode is requested.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// learningLines renders accumulated learnings as a bulleted block for
// prompt context.
func learningLines(learnings []types.Learning) string {
	if len(learnings) == 0 {
		return "(none yet)"
	}
	var b strings.Builder
	for _, l := range learnings {
		b.WriteString("- ")
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
