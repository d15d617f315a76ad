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

const scorePromptTemplate = `TASK: Evaluate research progress against the research goal.

RESEARCH GOAL:
%s

CURRENT EPOCH: %d
%s
RESEARCH LEARNINGS COLLECTED:
%s

Assess how well the collected learnings satisfy the goal. Score strictly:
0.0-0.3 minimal progress, 0.4-0.6 moderate progress with significant gaps,
0.7-0.8 good progress with minor gaps, 0.9-1.0 goal nearly or fully
achieved. Set goal_achieved true only when the learnings comprehensively
answer the goal with specific, well-sourced information.

Return a JSON object:
{"goal_achieved": false, "alignment_score": 0.0, "rationale": "one or two sentences on coverage and remaining gaps"}`

// Score judges goal achievement for the current epoch. Implements the
// epoch evaluator's scorer capability.
func (c *Client) Score(ctx context.Context, goal string, learnings []types.Learning, history []types.EvaluationResult) (types.EvaluationResult, error) {
	prompt := fmt.Sprintf(scorePromptTemplate, goal, len(history)+1, historyLines(history), learningLines(learnings))

	type scoreResponse struct {
		GoalAchieved   bool    `json:"goal_achieved"`
		AlignmentScore float64 `json:"alignment_score"`
		Rationale      string  `json:"rationale"`
	}
	var parsed scoreResponse
	_, err := c.generateJSON(ctx, prompt, func(content string) error {
		parsed = scoreResponse{}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return fmt.Errorf("parsing evaluation: %w", err)
		}
		if parsed.AlignmentScore < 0 || parsed.AlignmentScore > 1 {
			return fmt.Errorf("alignment score %v out of range", parsed.AlignmentScore)
		}
		return nil
	})
	if err != nil {
		return types.EvaluationResult{}, err
	}

	c.log.Debug("scored epoch",
		zap.Bool("achieved", parsed.GoalAchieved),
		zap.Float64("score", parsed.AlignmentScore))
	return types.EvaluationResult{
		Achieved:  parsed.GoalAchieved,
		Score:     parsed.AlignmentScore,
		Rationale: strings.TrimSpace(parsed.Rationale),
	}, nil
}

func historyLines(history []types.EvaluationResult) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("PREVIOUS EPOCH SCORES:\n")
	for i, ev := range history {
		fmt.Fprintf(&b, "  epoch %d: score %.2f, achieved %v\n", i+1, ev.Score, ev.Achieved)
	}
	return b.String()
}
