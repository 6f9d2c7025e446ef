package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostRunSummary posts a corpus run's scoring summary to the configured
// channel.
func (p *Poster) PostRunSummary(ctx context.Context, corpusRef string, conversations, scored, skipped, failed int) error {
	text := formatRunSummary(corpusRef, conversations, scored, skipped, failed)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted run summary to slack", "ts", slackResp.TS, "corpus_ref", corpusRef)
	return nil
}

func formatRunSummary(corpusRef string, conversations, scored, skipped, failed int) string {
	text := fmt.Sprintf(":ship: *Helm scoring run* — `%s`\n", corpusRef)
	text += fmt.Sprintf("Conversations scored: %d\n", conversations)
	text += fmt.Sprintf("Utterances scored: %d\n", scored)
	if skipped > 0 {
		text += fmt.Sprintf("Skipped (not two-party): %d\n", skipped)
	}
	if failed > 0 {
		text += fmt.Sprintf(":warning: Failed conversations: %d\n", failed)
	}
	if conversations == 0 && skipped == 0 {
		text += "_Empty corpus — nothing to score._\n"
	}
	return text
}
