package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LikelihoodKind distinguishes the two context series scored per corpus.
const (
	KindActual    = "actual"
	KindReference = "reference"
)

// LikelihoodRow is one scored utterance.
type LikelihoodRow struct {
	ID             uuid.UUID `json:"id"`
	RunID          uuid.UUID `json:"run_id"`
	CorpusRef      string    `json:"corpus_ref"`
	ConversationID string    `json:"conversation_id"`
	UtteranceID    string    `json:"utterance_id"`
	Kind           string    `json:"kind"`
	LogProb        float64   `json:"logprob"`
	CreatedAt      time.Time `json:"created_at"`
}

// WriteLikelihoods persists one conversation's likelihood map in a single
// transaction.
func (s *Store) WriteLikelihoods(ctx context.Context, runID uuid.UUID, corpusRef, conversationID, kind string, scores map[string]float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for uttID, logProb := range scores {
		_, err := tx.Exec(ctx, `
			INSERT INTO helm_likelihoods (id, run_id, corpus_ref, conversation_id, utterance_id, kind, logprob, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
			uuid.New(), runID, corpusRef, conversationID, uttID, kind, logProb,
		)
		if err != nil {
			return fmt.Errorf("insert likelihood for %s: %w", uttID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LikelihoodsByConversation returns a conversation's scored utterances for
// one kind, newest run first.
func (s *Store) LikelihoodsByConversation(ctx context.Context, conversationID, kind string) ([]LikelihoodRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, corpus_ref, conversation_id, utterance_id, kind, logprob, created_at
		FROM helm_likelihoods
		WHERE conversation_id = $1 AND kind = $2
		ORDER BY created_at DESC, utterance_id`,
		conversationID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("query likelihoods: %w", err)
	}
	defer rows.Close()

	var out []LikelihoodRow
	for rows.Next() {
		var r LikelihoodRow
		if err := rows.Scan(&r.ID, &r.RunID, &r.CorpusRef, &r.ConversationID, &r.UtteranceID, &r.Kind, &r.LogProb, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan likelihood: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
