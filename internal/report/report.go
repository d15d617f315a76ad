// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report turns accumulated research state into a final markdown
// report: synthesized narrative sections followed by the full list of
// consulted sources.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Synthesizer is the upstream language capability that writes the report
// narrative.
type Synthesizer interface {
	Synthesize(ctx context.Context, topic, goal string, learnings []types.Learning) (title string, sections []types.ReportSection, err error)
}

// Builder assembles and persists research reports.
type Builder struct {
	syn Synthesizer
	cfg types.ReportConfig
	log *zap.Logger
}

func New(syn Synthesizer, cfg types.ReportConfig, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{syn: syn, cfg: cfg, log: log}
}

// Build synthesizes a report from the run's accumulated learnings, sources,
// and evaluation history. A run that collected nothing still yields a
// report stating that, so partial and aborted runs always produce output.
func (b *Builder) Build(ctx context.Context, topic, goal string, learnings []types.Learning, sources []types.SourceRecord, history []types.EvaluationResult) (types.Report, error) {
	rep := types.Report{
		GeneratedAt:     time.Now().UTC(),
		EpochsCompleted: len(history),
		Sources:         sources,
	}
	if len(history) > 0 {
		last := history[len(history)-1]
		rep.GoalAchieved = last.Achieved
		rep.FinalScore = last.Score
	}

	if len(learnings) == 0 {
		rep.Title = "Research Report: " + topic
		rep.Sections = []types.ReportSection{{
			Heading: "Findings",
			Body:    "No research learnings were collected for this topic.",
		}}
		return rep, nil
	}

	title, sections, err := b.syn.Synthesize(ctx, topic, goal, learnings)
	if err != nil {
		return types.Report{}, fmt.Errorf("synthesizing report: %w", err)
	}
	rep.Title = title
	rep.Sections = sections

	b.log.Info("report built",
		zap.String("title", title),
		zap.Int("sections", len(sections)),
		zap.Int("sources", len(sources)))
	return rep, nil
}

// frontMatter is the YAML header rendered at the top of each report file.
type frontMatter struct {
	Title           string    `yaml:"title"`
	GeneratedAt     time.Time `yaml:"generated_at"`
	GoalAchieved    bool      `yaml:"goal_achieved"`
	FinalScore      float64   `yaml:"final_score"`
	EpochsCompleted int       `yaml:"epochs_completed"`
}

// RenderMarkdown renders the report as a markdown document with YAML front
// matter and a trailing Sources section.
func RenderMarkdown(rep types.Report) (string, error) {
	fm, err := yaml.Marshal(frontMatter{
		Title:           rep.Title,
		GeneratedAt:     rep.GeneratedAt,
		GoalAchieved:    rep.GoalAchieved,
		FinalScore:      rep.FinalScore,
		EpochsCompleted: rep.EpochsCompleted,
	})
	if err != nil {
		return "", fmt.Errorf("rendering front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	b.WriteString("# ")
	b.WriteString(rep.Title)
	b.WriteString("\n")
	for _, s := range rep.Sections {
		b.WriteString("\n## ")
		b.WriteString(s.Heading)
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(s.Body))
		b.WriteString("\n")
	}
	if len(rep.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for _, src := range rep.Sources {
			if src.Title != "" {
				fmt.Fprintf(&b, "- [%s](%s)\n", src.Title, src.URL)
			} else {
				fmt.Fprintf(&b, "- %s\n", src.URL)
			}
		}
	}
	return b.String(), nil
}

// Write renders the report and saves it under the configured output
// directory. Returns the written file path.
func (b *Builder) Write(rep types.Report) (string, error) {
	doc, err := RenderMarkdown(rep)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", rep.GeneratedAt.Format("20060102-150405"), titleSlug(rep.Title))
	path := filepath.Join(b.cfg.OutputDir, name)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	b.log.Info("report written", zap.String("path", path))
	return path, nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// titleSlug produces a short filesystem-safe slug from a report title.
func titleSlug(title string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "report"
	}
	const maxSlug = 60
	if len(slug) > maxSlug {
		slug = strings.Trim(slug[:maxSlug], "-")
	}
	return slug
}
