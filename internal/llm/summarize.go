// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const summarizePromptTemplate = `TASK: Extract insights and follow-up questions from search results.

SEARCH QUERY: %s
QUERY RATIONALE: %s

CONTENT TO ANALYZE:
%s

Extract up to %d learnings and up to %d follow-up questions.

Learnings must be specific and self-contained: include concrete numbers,
dates, names, and mechanisms rather than vague generalizations. Follow-up
questions identify gaps in the analyzed content that further research
should close; each must be specific enough to drive a new search query.

Return a JSON object:
{"learnings": ["..."], "followUpQuestions": ["..."]}`

// Summarize condenses fetched page texts into learnings and follow-up
// questions for one query. Implements the gather unit's summarizer
// capability.
func (c *Client) Summarize(ctx context.Context, contents []string, query, rationale string, maxLearnings, maxFollowUps int) ([]string, []string, error) {
	if len(contents) == 0 {
		return nil, nil, nil
	}

	var block strings.Builder
	for _, content := range contents {
		block.WriteString("<content>\n")
		block.WriteString(strings.TrimSpace(content))
		block.WriteString("\n</content>\n")
	}

	prompt := fmt.Sprintf(summarizePromptTemplate, query, rationale, block.String(), maxLearnings, maxFollowUps)

	var parsed struct {
		Learnings         []string `json:"learnings"`
		FollowUpQuestions []string `json:"followUpQuestions"`
	}
	_, err := c.generateJSON(ctx, prompt, func(content string) error {
		parsed.Learnings = nil
		parsed.FollowUpQuestions = nil
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return fmt.Errorf("parsing summary: %w", err)
		}
		if len(parsed.Learnings) == 0 {
			return fmt.Errorf("empty learnings list")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	learnings := trimAndCap(parsed.Learnings, maxLearnings)
	followUps := trimAndCap(parsed.FollowUpQuestions, maxFollowUps)
	c.log.Debug("summarized contents",
		zap.String("query", query),
		zap.Int("learnings", len(learnings)),
		zap.Int("follow_ups", len(followUps)))
	return learnings, followUps, nil
}

// trimAndCap drops blank entries and enforces the requested maximum.
func trimAndCap(items []string, max int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
