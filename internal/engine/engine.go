// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine drives the recursive research expansion: it turns a topic
// plus breadth/depth parameters into a bounded tree of concurrent
// search-and-summarize operations, merges results into shared state, and
// evaluates goal achievement after every depth level.
//
// The tree is expanded one depth level per epoch. Each level's branches run
// concurrently and join structurally before the epoch evaluator decides
// whether the run continues; the goal decision therefore gates descent
// rather than depth alone. Child breadth narrows per level by the
// configured divisor.
package engine

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/internal/evaluate"
	"github.com/pdiddy/deep-research/internal/gather"
	"github.com/pdiddy/deep-research/internal/governor"
	"github.com/pdiddy/deep-research/internal/plan"
	"github.com/pdiddy/deep-research/internal/store"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Phase names the run loop states.
type Phase string

const (
	PhaseExpanding  Phase = "expanding"
	PhaseEvaluating Phase = "evaluating"
	PhaseContinuing Phase = "continuing"
	PhaseStopped    Phase = "stopped"
)

// StopReason explains why a run ended.
type StopReason string

const (
	// StopGoalAchieved: the evaluator judged the goal satisfied.
	StopGoalAchieved StopReason = "goal_achieved"

	// StopStagnation: an epoch added no new information beyond the
	// configured threshold.
	StopStagnation StopReason = "stagnation"

	// StopDepthExhausted: every configured depth level was expanded.
	StopDepthExhausted StopReason = "depth_exhausted"

	// StopBranchesExhausted: no branch produced queries to expand.
	StopBranchesExhausted StopReason = "branches_exhausted"

	// StopAborted: the run context was cancelled. Already-merged state
	// remains usable for synthesis.
	StopAborted StopReason = "aborted"
)

// Checkpointer persists accumulated state between epochs.
type Checkpointer interface {
	Save(ctx context.Context, s *store.State) error
}

// Outcome summarizes a finished run.
type Outcome struct {
	Reason          StopReason
	Final           types.EvaluationResult
	EpochsCompleted int
	Learnings       int
	Sources         int
	QueriesVisited  int
}

// Engine wires the run components together. State is the single shared
// aggregate; every other field is read-only during a run. Gov is the same
// Governor the gather unit holds: planning calls acquire tickets from the
// one pool, so the concurrency ceiling binds run-wide.
type Engine struct {
	Planner    *plan.Planner
	Unit       *gather.Unit
	Evaluator  *evaluate.Evaluator
	State      *store.State
	Checkpoint Checkpointer
	Gov        *governor.Governor
	Cfg        types.ResearchConfig
	Log        *zap.Logger
}

// Run executes the research loop until the goal is achieved, learnings
// stagnate, depth is exhausted, branches dry up, or ctx is cancelled.
// The returned error is non-nil only for configuration errors; cancellation
// surfaces as Outcome.Reason == StopAborted so the caller can still attempt
// synthesis from partial state.
func (e *Engine) Run(ctx context.Context) (Outcome, error) {
	if err := e.Cfg.Validate(); err != nil {
		return Outcome{}, err
	}
	log := e.logger()

	log.Info("research run starting",
		zap.String("topic", e.Cfg.Topic),
		zap.Int("breadth", e.Cfg.Breadth),
		zap.Int("depth", e.Cfg.Depth),
		zap.Int("concurrency", e.Cfg.Concurrency))

	frontier := e.rootQueries(ctx)

	depth := e.Cfg.Depth
	breadth := e.Cfg.Breadth

	for {
		if ctx.Err() != nil {
			return e.stop(StopAborted), nil
		}
		if len(frontier) == 0 {
			return e.stop(StopBranchesExhausted), nil
		}

		childBreadth := ceilDiv(breadth, e.Cfg.BranchDivisor)
		planChildren := depth > 1 && childBreadth >= 1

		log.Info("epoch expanding",
			zap.String("phase", string(PhaseExpanding)),
			zap.Int("epoch", e.State.EpochsCompleted()+1),
			zap.Int("queries", len(frontier)),
			zap.Int("remaining_depth", depth),
			zap.Int("breadth", breadth))

		before := e.State.LearningCount()
		next, aborted := e.expandLevel(ctx, frontier, depth, childBreadth, planChildren)
		if aborted {
			e.save(ctx)
			return e.stop(StopAborted), nil
		}
		added := e.State.LearningCount() - before

		log.Info("epoch evaluating",
			zap.String("phase", string(PhaseEvaluating)),
			zap.Int("new_learnings", added))

		ev := e.Evaluator.Evaluate(ctx, e.Cfg.Goal, e.State.Learnings(), e.State.History())
		e.State.RecordEpoch(ev)
		e.save(ctx)

		if reason, done := decide(ev, added, depth, e.Cfg.StagnationThreshold); done {
			return e.stop(reason), nil
		}

		log.Info("epoch continuing",
			zap.String("phase", string(PhaseContinuing)),
			zap.Int("next_queries", len(next)),
			zap.Int("next_breadth", childBreadth))

		depth--
		breadth = childBreadth
		frontier = next
	}
}

// decide applies the stopping policy after one evaluated epoch. It is the
// whole continuation decision, kept separate from the expansion machinery.
func decide(ev types.EvaluationResult, added, remainingDepth, stagnationThreshold int) (StopReason, bool) {
	if ev.Achieved {
		return StopGoalAchieved, true
	}
	if added <= stagnationThreshold {
		return StopStagnation, true
	}
	if remainingDepth <= 1 {
		return StopDepthExhausted, true
	}
	return "", false
}

// plan invokes the planner under a Governor ticket. Planning is an external
// call like search and fetch; concurrent branches queue on the same pool.
func (e *Engine) plan(ctx context.Context, seed string, learnings []types.Learning, breadth int) ([]types.ResearchQuery, error) {
	if err := e.Gov.Acquire(ctx); err != nil {
		return nil, err
	}
	defer e.Gov.Release()
	return e.Planner.Plan(ctx, seed, e.Cfg.Goal, learnings, breadth, e.State.Visited)
}

// rootQueries plans the first level from the topic itself. A planning
// failure at the root leaves nothing to expand; the run then stops with
// StopBranchesExhausted rather than failing.
func (e *Engine) rootQueries(ctx context.Context) []types.ResearchQuery {
	queries, err := e.plan(ctx, e.Cfg.Topic, nil, e.Cfg.Breadth)
	if err != nil {
		e.logger().Warn("root planning failed", zap.Error(err))
		return nil
	}
	return queries
}

// expandLevel runs every frontier query concurrently and joins them all
// before returning (a parent level never completes before its branches).
// It returns the next level's queries and whether the run was cancelled.
func (e *Engine) expandLevel(ctx context.Context, frontier []types.ResearchQuery, depth, childBreadth int, planChildren bool) ([]types.ResearchQuery, bool) {
	var (
		mu   sync.Mutex
		next []types.ResearchQuery
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range frontier {
		g.Go(func() error {
			children, err := e.expand(gctx, q, depth, childBreadth, planChildren)
			if err != nil {
				return err
			}
			if len(children) > 0 {
				mu.Lock()
				next = append(next, children...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger().Warn("expansion aborted", zap.Error(err))
		return nil, true
	}
	return next, false
}

// expand processes a single branch node: claim the query, gather its
// contribution, merge it into shared state, and plan this branch's children
// for the next level. Children are planned only when the branch produced
// follow-up questions; a silent branch terminates. The returned error is
// non-nil only on cancellation.
func (e *Engine) expand(ctx context.Context, query types.ResearchQuery, depth, childBreadth int, planChildren bool) ([]types.ResearchQuery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.State.MarkVisited(query.Text) {
		e.logger().Debug("skipping visited query", zap.String("query", query.Text))
		return nil, nil
	}

	res, err := e.Unit.Execute(ctx, query, depth)
	if err != nil {
		return nil, err
	}
	e.State.Merge(res.Learnings, res.Sources)

	if !planChildren || len(res.FollowUps) == 0 {
		return nil, nil
	}

	seed := childSeed(query, res.FollowUps)
	children, err := e.plan(ctx, seed, e.State.RecentLearnings(10), childBreadth)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Branch exhausted, not a run failure.
		return nil, nil
	}

	path := append(append([]string(nil), query.ParentPath...), query.Text)
	for i := range children {
		children[i].ParentPath = path
	}
	return children, nil
}

// childSeed builds the planning context for a branch's children from the
// branch query and its follow-up questions.
func childSeed(query types.ResearchQuery, followUps []string) string {
	seed := "Previous query: " + query.Text
	if query.Rationale != "" {
		seed += "\nIts goal: " + query.Rationale
	}
	seed += "\nOpen follow-up questions:"
	for _, f := range followUps {
		seed += "\n- " + f
	}
	return seed
}

// save checkpoints the state, surviving run cancellation so partial
// research stays durable.
func (e *Engine) save(ctx context.Context) {
	if e.Checkpoint == nil {
		return
	}
	if err := e.Checkpoint.Save(context.WithoutCancel(ctx), e.State); err != nil {
		e.logger().Warn("checkpoint save failed", zap.Error(err))
	}
}

func (e *Engine) stop(reason StopReason) Outcome {
	history := e.State.History()
	var final types.EvaluationResult
	if len(history) > 0 {
		final = history[len(history)-1]
	}
	out := Outcome{
		Reason:          reason,
		Final:           final,
		EpochsCompleted: e.State.EpochsCompleted(),
		Learnings:       e.State.LearningCount(),
		Sources:         len(e.State.Sources()),
		QueriesVisited:  e.State.VisitedCount(),
	}
	e.logger().Info("research run stopped",
		zap.String("phase", string(PhaseStopped)),
		zap.String("reason", string(reason)),
		zap.Int("epochs", out.EpochsCompleted),
		zap.Int("learnings", out.Learnings),
		zap.Int("sources", out.Sources))
	return out
}

func (e *Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// ceilDiv returns ceil(a / b) for positive integers.
func ceilDiv(a, b int) int {
	return int(math.Ceil(float64(a) / float64(b)))
}
