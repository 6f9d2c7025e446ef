package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// WriteSimReplies persists simulated replies per utterance in a single
// transaction. The replies slice maps onto a text[] column.
func (s *Store) WriteSimReplies(ctx context.Context, runID uuid.UUID, corpusRef string, replies map[string][]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for uttID, texts := range replies {
		_, err := tx.Exec(ctx, `
			INSERT INTO helm_sim_replies (id, run_id, corpus_ref, utterance_id, replies, created_at)
			VALUES ($1, $2, $3, $4, $5, now())`,
			uuid.New(), runID, corpusRef, uttID, texts,
		)
		if err != nil {
			return fmt.Errorf("insert replies for %s: %w", uttID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SimRepliesByUtterance returns the most recent simulated replies for an
// utterance, or nil when none exist.
func (s *Store) SimRepliesByUtterance(ctx context.Context, utteranceID string) ([]string, error) {
	var replies []string
	err := s.pool.QueryRow(ctx, `
		SELECT replies
		FROM helm_sim_replies
		WHERE utterance_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		utteranceID,
	).Scan(&replies)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	return replies, nil
}
