// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const goalPromptTemplate = `TASK: Turn a research topic into a concrete research goal.

RESEARCH TOPIC:
%s

Produce a goal framework that can guide an automated research system:
a primary objective (2-3 sentences), 3-5 measurable success criteria, and
3-5 specific factual questions the research must answer. Keep the goal
achievable through web research.

Return a JSON object:
{"primary_objective": "...", "success_criteria": ["..."], "specific_questions": ["..."]}`

// ComposeGoal derives a structured research goal from the bare topic. On
// failure the topic itself becomes the goal, so a run never blocks on goal
// composition.
func (c *Client) ComposeGoal(ctx context.Context, topic string) string {
	prompt := fmt.Sprintf(goalPromptTemplate, topic)

	type goalResponse struct {
		PrimaryObjective  string   `json:"primary_objective"`
		SuccessCriteria   []string `json:"success_criteria"`
		SpecificQuestions []string `json:"specific_questions"`
	}
	var parsed goalResponse
	_, err := c.generateJSON(ctx, prompt, func(content string) error {
		parsed = goalResponse{}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return fmt.Errorf("parsing goal: %w", err)
		}
		if strings.TrimSpace(parsed.PrimaryObjective) == "" {
			return fmt.Errorf("empty primary objective")
		}
		return nil
	})
	if err != nil {
		c.log.Warn("goal composition failed, using topic as goal", zap.Error(err))
		return topic
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(parsed.PrimaryObjective))
	if len(parsed.SuccessCriteria) > 0 {
		b.WriteString("\n\nSuccess criteria:")
		for _, cr := range parsed.SuccessCriteria {
			b.WriteString("\n- ")
			b.WriteString(strings.TrimSpace(cr))
		}
	}
	if len(parsed.SpecificQuestions) > 0 {
		b.WriteString("\n\nQuestions to answer:")
		for _, q := range parsed.SpecificQuestions {
			b.WriteString("\n- ")
			b.WriteString(strings.TrimSpace(q))
		}
	}
	return b.String()
}
