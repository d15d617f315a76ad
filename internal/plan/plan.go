// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan turns a topic, goal, and prior learnings into the next round
// of search queries, deduplicated against everything already explored.
package plan

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/store"
	"github.com/pdiddy/deep-research/pkg/types"
)

// ErrPlanning marks a planning failure: the generation capability errored
// or produced zero usable queries after one retry. Callers treat the branch
// as exhausted, not the run as failed.
var ErrPlanning = errors.New("query planning failed")

// Generator is the upstream language capability that proposes queries.
type Generator interface {
	Generate(ctx context.Context, topic, goal string, learnings []types.Learning, count int) ([]types.ResearchQuery, error)
}

// Planner produces bounded, deduplicated query sets.
type Planner struct {
	gen Generator
	log *zap.Logger
}

// New creates a Planner.
func New(gen Generator, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{gen: gen, log: log}
}

// Plan asks the generator for up to breadth queries about topic, then drops
// empties, sibling duplicates, and anything already visited. Duplicate
// detection keys on case/whitespace-normalized text only; semantically
// similar wording survives. One retry on generator failure or an all-filtered
// round; after that Plan fails with ErrPlanning.
func (p *Planner) Plan(ctx context.Context, topic, goal string, prior []types.Learning, breadth int, visited func(string) bool) ([]types.ResearchQuery, error) {
	if breadth < 1 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		queries, err := p.gen.Generate(ctx, topic, goal, prior, breadth)
		if err != nil {
			lastErr = err
			p.log.Warn("query generation failed",
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		usable := p.filter(queries, breadth, visited)
		if len(usable) > 0 {
			return usable, nil
		}
		lastErr = fmt.Errorf("no usable queries in %d candidates", len(queries))
	}

	return nil, fmt.Errorf("%w: %v", ErrPlanning, lastErr)
}

func (p *Planner) filter(queries []types.ResearchQuery, breadth int, visited func(string) bool) []types.ResearchQuery {
	seen := make(map[string]bool, len(queries))
	var usable []types.ResearchQuery
	for _, q := range queries {
		key := store.Normalize(q.Text)
		if key == "" || seen[key] {
			continue
		}
		if visited != nil && visited(q.Text) {
			p.log.Debug("dropping already-visited query", zap.String("query", q.Text))
			continue
		}
		seen[key] = true
		usable = append(usable, q)
		if len(usable) >= breadth {
			break
		}
	}
	return usable
}
