//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_RunLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	runID := uuid.New()
	corpusRef := "integration-corpus-" + uuid.New().String()[:8]

	if err := s.CreateRun(ctx, runID, corpusRef); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := s.FinishRun(ctx, runID, 10, 42, 1, "completed"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}

	var found *Run
	for i := range runs {
		if runs[i].ID == runID {
			found = &runs[i]
			break
		}
	}
	if found == nil {
		t.Fatal("run not returned by ListRuns")
	}
	if found.Status != "completed" {
		t.Errorf("expected status completed, got %q", found.Status)
	}
	if found.Conversations != 10 || found.Scored != 42 || found.Failed != 1 {
		t.Errorf("counters = %d/%d/%d, want 10/42/1", found.Conversations, found.Scored, found.Failed)
	}
	if found.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
}

func TestIntegration_WriteAndReadLikelihoods(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	runID := uuid.New()
	corpusRef := "integration-corpus-" + uuid.New().String()[:8]
	convoID := "convo-" + uuid.New().String()[:8]

	if err := s.CreateRun(ctx, runID, corpusRef); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	scores := map[string]float64{
		"u2": -14.25,
		"u3": -9.5,
	}
	if err := s.WriteLikelihoods(ctx, runID, corpusRef, convoID, KindActual, scores); err != nil {
		t.Fatalf("WriteLikelihoods failed: %v", err)
	}

	rows, err := s.LikelihoodsByConversation(ctx, convoID, KindActual)
	if err != nil {
		t.Fatalf("LikelihoodsByConversation failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	got := make(map[string]float64)
	for _, r := range rows {
		got[r.UtteranceID] = r.LogProb
		if r.Kind != KindActual {
			t.Errorf("kind = %q, want actual", r.Kind)
		}
	}
	if got["u2"] != -14.25 || got["u3"] != -9.5 {
		t.Errorf("scores = %v", got)
	}

	// Reference kind is a separate series.
	refRows, err := s.LikelihoodsByConversation(ctx, convoID, KindReference)
	if err != nil {
		t.Fatalf("LikelihoodsByConversation(reference) failed: %v", err)
	}
	if len(refRows) != 0 {
		t.Errorf("expected no reference rows, got %d", len(refRows))
	}
}

func TestIntegration_WriteAndReadSimReplies(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	runID := uuid.New()
	corpusRef := "integration-corpus-" + uuid.New().String()[:8]
	uttID := "utt-" + uuid.New().String()[:8]

	if err := s.CreateRun(ctx, runID, corpusRef); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	replies := map[string][]string{
		uttID: {"let me check that", "one moment please"},
	}
	if err := s.WriteSimReplies(ctx, runID, corpusRef, replies); err != nil {
		t.Fatalf("WriteSimReplies failed: %v", err)
	}

	got, err := s.SimRepliesByUtterance(ctx, uttID)
	if err != nil {
		t.Fatalf("SimRepliesByUtterance failed: %v", err)
	}
	if len(got) != 2 || got[0] != "let me check that" {
		t.Errorf("replies = %v", got)
	}
}
