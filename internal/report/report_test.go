// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/pkg/types"
)

type fakeSynthesizer struct {
	title    string
	sections []types.ReportSection
	err      error

	gotTopic     string
	gotGoal      string
	gotLearnings []types.Learning
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, topic, goal string, learnings []types.Learning) (string, []types.ReportSection, error) {
	f.gotTopic = topic
	f.gotGoal = goal
	f.gotLearnings = learnings
	return f.title, f.sections, f.err
}

func TestBuildSynthesizesReport(t *testing.T) {
	syn := &fakeSynthesizer{
		title: "State of Fusion Energy",
		sections: []types.ReportSection{
			{Heading: "Executive Summary", Body: "summary"},
			{Heading: "Conclusions", Body: "closing"},
		},
	}
	b := New(syn, types.ReportConfig{}, nil)

	learnings := []types.Learning{{Text: "NIF achieved ignition in December 2022."}}
	sources := []types.SourceRecord{{URL: "https://example.com/a", Title: "A"}}
	history := []types.EvaluationResult{
		{Achieved: false, Score: 0.4},
		{Achieved: true, Score: 0.9},
	}

	rep, err := b.Build(context.Background(), "fusion energy", "assess progress", learnings, sources, history)
	require.NoError(t, err)

	assert.Equal(t, "State of Fusion Energy", rep.Title)
	assert.Equal(t, syn.sections, rep.Sections)
	assert.Equal(t, sources, rep.Sources)
	assert.True(t, rep.GoalAchieved)
	assert.Equal(t, 0.9, rep.FinalScore)
	assert.Equal(t, 2, rep.EpochsCompleted)
	assert.False(t, rep.GeneratedAt.IsZero())

	assert.Equal(t, "fusion energy", syn.gotTopic)
	assert.Equal(t, "assess progress", syn.gotGoal)
	assert.Equal(t, learnings, syn.gotLearnings)
}

func TestBuildWithoutLearningsSkipsSynthesis(t *testing.T) {
	syn := &fakeSynthesizer{err: fmt.Errorf("must not be called")}
	b := New(syn, types.ReportConfig{}, nil)

	rep, err := b.Build(context.Background(), "empty topic", "", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Research Report: empty topic", rep.Title)
	require.Len(t, rep.Sections, 1)
	assert.Contains(t, rep.Sections[0].Body, "No research learnings were collected")
	assert.Empty(t, syn.gotTopic)
}

func TestBuildPropagatesSynthesisError(t *testing.T) {
	syn := &fakeSynthesizer{err: fmt.Errorf("model down")}
	b := New(syn, types.ReportConfig{}, nil)

	_, err := b.Build(context.Background(), "topic", "", []types.Learning{{Text: "x"}}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synthesizing report")
}

func TestRenderMarkdown(t *testing.T) {
	rep := types.Report{
		Title:           "Findings on X",
		GeneratedAt:     time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		GoalAchieved:    true,
		FinalScore:      0.92,
		EpochsCompleted: 3,
		Sections: []types.ReportSection{
			{Heading: "Summary", Body: "body text\n"},
		},
		Sources: []types.SourceRecord{
			{URL: "https://example.com/a", Title: "Source A"},
			{URL: "https://example.com/b"},
		},
	}

	doc, err := RenderMarkdown(rep)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "---\n"))
	assert.Contains(t, doc, "title: Findings on X")
	assert.Contains(t, doc, "goal_achieved: true")
	assert.Contains(t, doc, "final_score: 0.92")
	assert.Contains(t, doc, "epochs_completed: 3")
	assert.Contains(t, doc, "\n# Findings on X\n")
	assert.Contains(t, doc, "\n## Summary\n\nbody text\n")
	assert.Contains(t, doc, "\n## Sources\n")
	assert.Contains(t, doc, "- [Source A](https://example.com/a)\n")
	assert.Contains(t, doc, "- https://example.com/b\n")
}

func TestRenderMarkdownNoSources(t *testing.T) {
	doc, err := RenderMarkdown(types.Report{
		Title:    "Bare",
		Sections: []types.ReportSection{{Heading: "A", Body: "b"}},
	})
	require.NoError(t, err)
	assert.NotContains(t, doc, "## Sources")
}

func TestWriteCreatesReportFile(t *testing.T) {
	dir := t.TempDir()
	b := New(nil, types.ReportConfig{OutputDir: dir}, nil)

	rep := types.Report{
		Title:       "Deep Dive: LLM Inference Costs!",
		GeneratedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Sections:    []types.ReportSection{{Heading: "Summary", Body: "text"}},
	}
	path, err := b.Write(rep)
	require.NoError(t, err)
	assert.Equal(t, dir+string(os.PathSeparator)+"20260314-093000-deep-dive-llm-inference-costs.md", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Deep Dive: LLM Inference Costs!")
}

func TestTitleSlug(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Fusion Energy", "fusion-energy"},
		{"punctuation", "Deep Dive: LLM Costs (2026)!", "deep-dive-llm-costs-2026"},
		{"only symbols", "!!!", "report"},
		{"empty", "", "report"},
		{"long title truncated", strings.Repeat("word ", 20), strings.Trim(strings.Repeat("word-", 12), "-")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titleSlug(tt.title))
		})
	}
}
