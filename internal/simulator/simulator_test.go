package simulator

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/helm/internal/corpus"
)

type fakeModel struct {
	replies      map[string][]string
	err          error
	fitContexts  []corpus.ContextTuple
	fitVal       []corpus.ContextTuple
	seenContexts []corpus.ContextTuple
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Fit(_ context.Context, contexts, valContexts []corpus.ContextTuple) error {
	m.fitContexts = contexts
	m.fitVal = valContexts
	return m.err
}

func (m *fakeModel) Transform(_ context.Context, contexts []corpus.ContextTuple) (map[string][]string, error) {
	m.seenContexts = contexts
	return m.replies, m.err
}

func testCorpus() *corpus.Corpus {
	c := corpus.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, turn := range [][2]string{
		{"caller", "my bill doubled"},
		{"agent", "let me check"},
		{"caller", "thanks"},
	} {
		c.AddUtterance(&corpus.Utterance{
			ID:             []string{"u0", "u1", "u2"}[i],
			ConversationID: "c1",
			Speaker:        turn[0],
			Text:           turn[1],
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
			Meta:           map[string]any{"role": turn[0]},
		})
	}
	return c
}

func TestTransform_AnnotatesEveryUtterance(t *testing.T) {
	c := testCorpus()
	model := &fakeModel{replies: map[string][]string{
		"u1": {"checking now"},
	}}
	sim := New(model, "sim_replies")

	replies, err := sim.Transform(context.Background(), c, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !reflect.DeepEqual(replies["u1"], []string{"checking now"}) {
		t.Errorf("replies[u1] = %v", replies["u1"])
	}

	u1, _ := c.Utterance("u1")
	if got, _ := u1.Meta["sim_replies"].([]string); !reflect.DeepEqual(got, []string{"checking now"}) {
		t.Errorf("u1 meta = %v", u1.Meta["sim_replies"])
	}
	// Utterances without a simulated reply are annotated with nil.
	u0, _ := c.Utterance("u0")
	if v, ok := u0.Meta["sim_replies"]; !ok || v != nil {
		t.Errorf("u0 meta = %v (present %v), want explicit nil", v, ok)
	}
}

func TestTransform_ModelErrorPropagates(t *testing.T) {
	c := testCorpus()
	sim := New(&fakeModel{err: errors.New("backend down")}, "")

	if _, err := sim.Transform(context.Background(), c, nil); err == nil {
		t.Error("expected error from model")
	}
	// No annotations on failure.
	u0, _ := c.Utterance("u0")
	if _, ok := u0.Meta["sim_replies"]; ok {
		t.Error("failed transform must not annotate utterances")
	}
}

func TestFit_IncludesFutureContext(t *testing.T) {
	c := testCorpus()
	model := &fakeModel{}
	sim := New(model, "")

	if err := sim.Fit(context.Background(), c, nil, corpus.SelectAll); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(model.fitContexts) != 3 {
		t.Fatalf("got %d training contexts, want 3", len(model.fitContexts))
	}
	if model.fitContexts[0].FutureContext == nil {
		t.Error("training contexts must include future context")
	}
	if len(model.fitVal) != 3 {
		t.Errorf("got %d validation contexts, want 3", len(model.fitVal))
	}
}

func TestFormatTranscript(t *testing.T) {
	c := testCorpus()
	utts := c.Conversations()[0].Chronological()

	got := FormatTranscript(utts)
	want := "Speaker A: my bill doubled\n\nSpeaker B: let me check\n\nSpeaker A: thanks"
	if got != want {
		t.Errorf("transcript = %q, want %q", got, want)
	}
}
