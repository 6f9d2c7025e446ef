package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one scoring pass over a corpus.
type Run struct {
	ID            uuid.UUID  `json:"id"`
	CorpusRef     string     `json:"corpus_ref"`
	Status        string     `json:"status"`
	Conversations int        `json:"conversations"`
	Scored        int        `json:"scored"`
	Failed        int        `json:"failed"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// CreateRun records the start of a scoring run.
func (s *Store) CreateRun(ctx context.Context, runID uuid.UUID, corpusRef string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO helm_runs (id, corpus_ref, status, started_at)
		VALUES ($1, $2, 'running', now())`,
		runID, corpusRef,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records a run's final counters and status.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, conversations, scored, failed int, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE helm_runs
		SET conversations = $1, scored = $2, failed = $3, status = $4, finished_at = now()
		WHERE id = $5`,
		conversations, scored, failed, status, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, corpus_ref, status, conversations, scored, failed, started_at, finished_at
		FROM helm_runs
		ORDER BY started_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CorpusRef, &r.Status, &r.Conversations, &r.Scored, &r.Failed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
