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

const synthesizePromptTemplate = `TASK: Write a detailed research report from collected learnings.

ORIGINAL RESEARCH TOPIC:
%s

RESEARCH GOAL:
%s

COLLECTED RESEARCH LEARNINGS:
%s

Write a professional analytical report. Start with an executive summary
section, then 3-6 thematic findings sections, then a conclusions section.
Ground every claim in the learnings; keep specific numbers, dates, and
names. Do not invent information that is not in the learnings. Section
bodies are markdown paragraphs without headings of their own.

Return a JSON object:
{"title": "specific descriptive report title", "sections": [{"heading": "...", "body": "..."}]}`

// Synthesize produces the final report title and sections from all
// accumulated learnings. Implements the report builder's synthesizer
// capability.
func (c *Client) Synthesize(ctx context.Context, topic, goal string, learnings []types.Learning) (string, []types.ReportSection, error) {
	prompt := fmt.Sprintf(synthesizePromptTemplate, topic, goalOrTopic(goal, topic), learningLines(learnings))

	type synthesisResponse struct {
		Title    string `json:"title"`
		Sections []struct {
			Heading string `json:"heading"`
			Body    string `json:"body"`
		} `json:"sections"`
	}
	var parsed synthesisResponse
	_, err := c.generateJSON(ctx, prompt, func(content string) error {
		parsed = synthesisResponse{}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return fmt.Errorf("parsing report: %w", err)
		}
		if strings.TrimSpace(parsed.Title) == "" {
			return fmt.Errorf("empty report title")
		}
		if len(parsed.Sections) == 0 {
			return fmt.Errorf("empty sections list")
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	sections := make([]types.ReportSection, 0, len(parsed.Sections))
	for _, s := range parsed.Sections {
		heading := strings.TrimSpace(s.Heading)
		body := strings.TrimSpace(s.Body)
		if heading == "" || body == "" {
			continue
		}
		sections = append(sections, types.ReportSection{Heading: heading, Body: body})
	}
	if len(sections) == 0 {
		return "", nil, fmt.Errorf("report had no usable sections")
	}

	c.log.Debug("synthesized report",
		zap.String("title", parsed.Title),
		zap.Int("sections", len(sections)))
	return strings.TrimSpace(parsed.Title), sections, nil
}
