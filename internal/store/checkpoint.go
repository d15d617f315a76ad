// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/deep-research/pkg/types"
)

const dbFile = "research.db"

// Checkpoint persists a run's accumulated state to SQLite at
// stateDir/research.db. The engine saves after every epoch merge and before
// synthesis, so a synthesis failure never loses collected research.
type Checkpoint struct {
	db    *sql.DB
	runID string
}

// OpenCheckpoint opens or creates the checkpoint database and registers a
// new run row for topic and goal. It creates the schema if it does not exist.
func OpenCheckpoint(stateDir, topic, goal string) (*Checkpoint, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint database: %w", err)
	}

	c := &Checkpoint{db: db, runID: uuid.NewString()}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO runs (id, topic, goal, started_at) VALUES (?, ?, ?, ?)`,
		c.runID, topic, goal, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registering run: %w", err)
	}
	return c, nil
}

// OpenLatest opens the checkpoint database positioned on the most recently
// started run, for re-synthesizing a report after the fact.
func OpenLatest(stateDir string) (*Checkpoint, error) {
	dbPath := filepath.Join(stateDir, dbFile)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("no checkpoint database at %s: %w", dbPath, err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint database: %w", err)
	}

	var runID string
	err = db.QueryRow(`SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&runID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("no completed runs in checkpoint: %w", err)
	}
	return &Checkpoint{db: db, runID: runID}, nil
}

// RunID returns the identifier of the run this checkpoint writes to.
func (c *Checkpoint) RunID() string { return c.runID }

// Close releases the database connection.
func (c *Checkpoint) Close() error { return c.db.Close() }

func (c *Checkpoint) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			goal TEXT,
			started_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learnings (
			run_id TEXT NOT NULL REFERENCES runs(id),
			norm TEXT NOT NULL,
			text TEXT NOT NULL,
			source_urls TEXT NOT NULL,
			depth INTEGER,
			discovered_at TEXT,
			PRIMARY KEY (run_id, norm)
		)`,
		`CREATE TABLE IF NOT EXISTS sources (
			run_id TEXT NOT NULL REFERENCES runs(id),
			url TEXT NOT NULL,
			title TEXT,
			retrieved_at TEXT,
			seq INTEGER,
			PRIMARY KEY (run_id, url)
		)`,
		`CREATE TABLE IF NOT EXISTS epochs (
			run_id TEXT NOT NULL REFERENCES runs(id),
			n INTEGER NOT NULL,
			achieved INTEGER NOT NULL,
			score REAL NOT NULL,
			rationale TEXT,
			PRIMARY KEY (run_id, n)
		)`,
	}
	for _, stmt := range statements {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save writes the state snapshot for this run in one transaction. Rows are
// upserted, so saving after every epoch is idempotent for unchanged entries.
func (c *Checkpoint) Save(ctx context.Context, s *State) error {
	learnings, sources, history := s.snapshot()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	lstmt, err := tx.PrepareContext(ctx,
		`INSERT INTO learnings (run_id, norm, text, source_urls, depth, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, norm) DO UPDATE SET source_urls=excluded.source_urls`)
	if err != nil {
		return fmt.Errorf("preparing learning insert: %w", err)
	}
	defer lstmt.Close()

	for _, l := range learnings {
		urlsJSON, _ := json.Marshal(l.SourceURLs)
		_, err := lstmt.ExecContext(ctx,
			c.runID, Normalize(l.Text), l.Text, string(urlsJSON),
			l.Depth, l.DiscoveredAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("saving learning: %w", err)
		}
	}

	sstmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO sources (run_id, url, title, retrieved_at, seq)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing source insert: %w", err)
	}
	defer sstmt.Close()

	for i, src := range sources {
		_, err := sstmt.ExecContext(ctx,
			c.runID, src.URL, src.Title,
			src.RetrievedAt.UTC().Format(time.RFC3339), i,
		)
		if err != nil {
			return fmt.Errorf("saving source: %w", err)
		}
	}

	for i, ev := range history {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO epochs (run_id, n, achieved, score, rationale)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, n) DO UPDATE SET
				achieved=excluded.achieved, score=excluded.score, rationale=excluded.rationale`,
			c.runID, i+1, boolToInt(ev.Achieved), ev.Score, ev.Rationale,
		)
		if err != nil {
			return fmt.Errorf("saving epoch %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// Load reads the persisted state of this checkpoint's run back into a fresh
// State, plus the run's topic and goal.
func (c *Checkpoint) Load(ctx context.Context) (*State, string, string, error) {
	var topic, goal string
	err := c.db.QueryRowContext(ctx,
		`SELECT topic, COALESCE(goal, '') FROM runs WHERE id = ?`, c.runID,
	).Scan(&topic, &goal)
	if err != nil {
		return nil, "", "", fmt.Errorf("loading run: %w", err)
	}

	s := NewState()

	srows, err := c.db.QueryContext(ctx,
		`SELECT url, COALESCE(title, ''), COALESCE(retrieved_at, '') FROM sources
		 WHERE run_id = ? ORDER BY seq`, c.runID)
	if err != nil {
		return nil, "", "", fmt.Errorf("loading sources: %w", err)
	}
	defer srows.Close()

	var sources []types.SourceRecord
	for srows.Next() {
		var src types.SourceRecord
		var retrieved string
		if err := srows.Scan(&src.URL, &src.Title, &retrieved); err != nil {
			return nil, "", "", fmt.Errorf("scanning source: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, retrieved); perr == nil {
			src.RetrievedAt = t
		}
		sources = append(sources, src)
	}
	if err := srows.Err(); err != nil {
		return nil, "", "", fmt.Errorf("reading sources: %w", err)
	}

	lrows, err := c.db.QueryContext(ctx,
		`SELECT text, source_urls, COALESCE(depth, 0), COALESCE(discovered_at, '')
		 FROM learnings WHERE run_id = ? ORDER BY rowid`, c.runID)
	if err != nil {
		return nil, "", "", fmt.Errorf("loading learnings: %w", err)
	}
	defer lrows.Close()

	var learnings []types.Learning
	for lrows.Next() {
		var l types.Learning
		var urlsJSON, discovered string
		if err := lrows.Scan(&l.Text, &urlsJSON, &l.Depth, &discovered); err != nil {
			return nil, "", "", fmt.Errorf("scanning learning: %w", err)
		}
		if err := json.Unmarshal([]byte(urlsJSON), &l.SourceURLs); err != nil {
			return nil, "", "", fmt.Errorf("parsing source urls: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, discovered); perr == nil {
			l.DiscoveredAt = t
		}
		learnings = append(learnings, l)
	}
	if err := lrows.Err(); err != nil {
		return nil, "", "", fmt.Errorf("reading learnings: %w", err)
	}

	s.Merge(learnings, sources)

	erows, err := c.db.QueryContext(ctx,
		`SELECT achieved, score, COALESCE(rationale, '') FROM epochs
		 WHERE run_id = ? ORDER BY n`, c.runID)
	if err != nil {
		return nil, "", "", fmt.Errorf("loading epochs: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		var ev types.EvaluationResult
		var achieved int
		if err := erows.Scan(&achieved, &ev.Score, &ev.Rationale); err != nil {
			return nil, "", "", fmt.Errorf("scanning epoch: %w", err)
		}
		ev.Achieved = achieved != 0
		s.RecordEpoch(ev)
	}
	if err := erows.Err(); err != nil {
		return nil, "", "", fmt.Errorf("reading epochs: %w", err)
	}

	return s, topic, goal, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
