// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate scores goal achievement against accumulated learnings
// once per epoch.
package evaluate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/pkg/types"
)

// fallbackScore is reported when the very first evaluation fails and there
// is no previous epoch to carry forward.
const fallbackScore = 0.5

// Scorer is the upstream language capability that judges goal achievement.
type Scorer interface {
	Score(ctx context.Context, goal string, learnings []types.Learning, history []types.EvaluationResult) (types.EvaluationResult, error)
}

// Evaluator wraps a Scorer with the degraded-but-continuing failure policy:
// a scoring failure is never run-fatal.
type Evaluator struct {
	scorer Scorer
	log    *zap.Logger
}

// New creates an Evaluator.
func New(scorer Scorer, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{scorer: scorer, log: log}
}

// Evaluate scores the goal against learnings. When the scorer fails, the
// result degrades to not-achieved with the previous epoch's score (0.5 when
// there is none) so the run continues rather than aborting over a transient
// scoring failure.
func (e *Evaluator) Evaluate(ctx context.Context, goal string, learnings []types.Learning, history []types.EvaluationResult) types.EvaluationResult {
	ev, err := e.scorer.Score(ctx, goal, learnings, history)
	if err != nil {
		prev := fallbackScore
		if len(history) > 0 {
			prev = history[len(history)-1].Score
		}
		e.log.Warn("goal evaluation failed, continuing with previous score",
			zap.Float64("score", prev), zap.Error(err))
		return types.EvaluationResult{
			Achieved:  false,
			Score:     prev,
			Rationale: fmt.Sprintf("evaluation unavailable: %v", err),
		}
	}

	if ev.Score < 0 {
		ev.Score = 0
	}
	if ev.Score > 1 {
		ev.Score = 1
	}

	e.log.Info("epoch evaluated",
		zap.Bool("achieved", ev.Achieved),
		zap.Float64("score", ev.Score),
		zap.Int("learnings", len(learnings)))
	return ev
}
