package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// utteranceLine is one line of a JSONL corpus export.
type utteranceLine struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Speaker        string         `json:"speaker"`
	Text           string         `json:"text"`
	Timestamp      string         `json:"timestamp"`
	Meta           map[string]any `json:"meta"`
}

// LoadJSONL reads a corpus from a JSONL file, one utterance per line.
func LoadJSONL(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a corpus from JSONL input. Malformed lines and lines missing
// an utterance or conversation ID are skipped.
func Parse(r io.Reader) (*Corpus, error) {
	c := New()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB line buffer
	for scanner.Scan() {
		var line utteranceLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue // skip malformed lines
		}
		if line.ID == "" || line.ConversationID == "" {
			continue
		}

		ts, _ := time.Parse(time.RFC3339Nano, line.Timestamp)
		c.AddUtterance(&Utterance{
			ID:             line.ID,
			ConversationID: line.ConversationID,
			Speaker:        line.Speaker,
			Text:           line.Text,
			Timestamp:      ts,
			Meta:           line.Meta,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	return c, nil
}
