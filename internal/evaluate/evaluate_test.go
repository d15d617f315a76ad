// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/deep-research/pkg/types"
)

type fakeScorer struct {
	ev  types.EvaluationResult
	err error
}

func (f *fakeScorer) Score(ctx context.Context, goal string, learnings []types.Learning, history []types.EvaluationResult) (types.EvaluationResult, error) {
	return f.ev, f.err
}

func TestEvaluatePassesThroughScorerResult(t *testing.T) {
	e := New(&fakeScorer{ev: types.EvaluationResult{Achieved: true, Score: 0.92, Rationale: "covered"}}, nil)

	got := e.Evaluate(context.Background(), "goal", nil, nil)
	assert.True(t, got.Achieved)
	assert.Equal(t, 0.92, got.Score)
	assert.Equal(t, "covered", got.Rationale)
}

func TestEvaluateClampsScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{1.7, 1},
		{0.4, 0.4},
	}
	for _, tt := range tests {
		e := New(&fakeScorer{ev: types.EvaluationResult{Score: tt.in}}, nil)
		got := e.Evaluate(context.Background(), "goal", nil, nil)
		assert.Equal(t, tt.want, got.Score, "score %v", tt.in)
	}
}

func TestEvaluateFirstFailureUsesFallback(t *testing.T) {
	e := New(&fakeScorer{err: fmt.Errorf("model unreachable")}, nil)

	got := e.Evaluate(context.Background(), "goal", nil, nil)
	assert.False(t, got.Achieved)
	assert.Equal(t, 0.5, got.Score)
	assert.Contains(t, got.Rationale, "evaluation unavailable")
}

func TestEvaluateFailureCarriesPreviousScore(t *testing.T) {
	e := New(&fakeScorer{err: fmt.Errorf("timeout")}, nil)
	history := []types.EvaluationResult{{Score: 0.3}, {Score: 0.65}}

	got := e.Evaluate(context.Background(), "goal", nil, history)
	assert.False(t, got.Achieved, "a failed evaluation never claims achievement")
	assert.Equal(t, 0.65, got.Score)
}
