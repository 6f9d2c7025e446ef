package hermes

import (
	"encoding/json"
	"testing"
)

func TestCorpusStoredEventParsing(t *testing.T) {
	raw := `{
		"corpus_ref": "support-2026-03",
		"path": "/srv/corpora/support-2026-03.jsonl"
	}`

	var evt CorpusStoredEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse CorpusStoredEvent: %v", err)
	}

	if evt.CorpusRef != "support-2026-03" {
		t.Errorf("expected corpus_ref 'support-2026-03', got %q", evt.CorpusRef)
	}
	if evt.Path != "/srv/corpora/support-2026-03.jsonl" {
		t.Errorf("unexpected path %q", evt.Path)
	}
	if evt.Lines != nil {
		t.Errorf("expected no inline lines, got %d", len(evt.Lines))
	}
}

func TestCorpusStoredEventInlineLines(t *testing.T) {
	raw := `{
		"corpus_ref": "inline-corpus",
		"lines": ["{\"id\":\"u0\"}", "{\"id\":\"u1\"}"]
	}`

	var evt CorpusStoredEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse CorpusStoredEvent: %v", err)
	}
	if len(evt.Lines) != 2 {
		t.Errorf("expected 2 inline lines, got %d", len(evt.Lines))
	}
}
