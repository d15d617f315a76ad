// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/pkg/types"
)

const queryPromptTemplate = `TASK: Generate search queries for comprehensive research coverage.

RESEARCH TOPIC:
%s

RESEARCH GOAL:
%s

PREVIOUS LEARNINGS:
%s

Generate up to %d distinct web search queries that collectively advance the
research goal. Each query targets a different aspect, timeframe, or
perspective; avoid redundant or near-identical queries. Use the previous
learnings to fill information gaps rather than repeating covered ground.

Return a JSON object:
{"queries": [{"query": "search engine query, 3-8 words", "rationale": "what this query should uncover"}]}`

// Generate proposes up to count search queries for the topic. Implements
// the planner's generator capability.
func (c *Client) Generate(ctx context.Context, topic, goal string, learnings []types.Learning, count int) ([]types.ResearchQuery, error) {
	prompt := fmt.Sprintf(queryPromptTemplate, topic, goalOrTopic(goal, topic), learningLines(learnings), count)

	var parsed struct {
		Queries []struct {
			Query     string `json:"query"`
			Rationale string `json:"rationale"`
		} `json:"queries"`
	}
	_, err := c.generateJSON(ctx, prompt, func(content string) error {
		parsed.Queries = nil
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return fmt.Errorf("parsing queries: %w", err)
		}
		if len(parsed.Queries) == 0 {
			return fmt.Errorf("empty queries list")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	queries := make([]types.ResearchQuery, 0, len(parsed.Queries))
	for _, q := range parsed.Queries {
		text := strings.TrimSpace(q.Query)
		if text == "" {
			continue
		}
		queries = append(queries, types.ResearchQuery{
			Text:      text,
			Rationale: strings.TrimSpace(q.Rationale),
		})
	}
	c.log.Debug("generated queries", zap.Int("count", len(queries)))
	return queries, nil
}

func goalOrTopic(goal, topic string) string {
	if strings.TrimSpace(goal) == "" {
		return topic
	}
	return goal
}
