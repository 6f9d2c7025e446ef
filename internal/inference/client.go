// Package inference is the HTTP client for the model-serving sidecar that
// hosts the fine-tuned causal language model. It covers the three
// collaborator surfaces the pipeline needs: tokenization, per-position
// token log-probabilities, and fine-tune submission.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type tokenizeRequest struct {
	Text string `json:"text"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// Encode tokenizes text into model token IDs. When maxTokens > 0 the result
// is truncated to the first maxTokens tokens.
func (c *Client) Encode(ctx context.Context, text string, maxTokens int) ([]int, error) {
	var resp tokenizeResponse
	if err := c.post(ctx, "/v1/tokenize", tokenizeRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	tokens := resp.Tokens
	if maxTokens > 0 && len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return tokens, nil
}

type logProbsRequest struct {
	Tokens []int `json:"tokens"`
}

type logProbsResponse struct {
	LogProbs []*float64 `json:"logprobs"`
}

// TokenLogProbs returns, for each input position, the log-probability the
// model assigns to that token given all preceding tokens. Position 0 has no
// conditioning prefix; the server reports it as null and it comes back NaN.
func (c *Client) TokenLogProbs(ctx context.Context, tokens []int) ([]float64, error) {
	var resp logProbsResponse
	if err := c.post(ctx, "/v1/logprobs", logProbsRequest{Tokens: tokens}, &resp); err != nil {
		return nil, fmt.Errorf("logprobs: %w", err)
	}
	if len(resp.LogProbs) != len(tokens) {
		return nil, fmt.Errorf("logprobs: got %d values for %d tokens", len(resp.LogProbs), len(tokens))
	}
	out := make([]float64, len(resp.LogProbs))
	for i, lp := range resp.LogProbs {
		if lp == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *lp
		}
	}
	return out, nil
}

type fineTuneRequest struct {
	Train      []string       `json:"train"`
	Validation []string       `json:"validation"`
	Config     map[string]any `json:"config"`
}

// FineTune submits training and validation sequences together with the
// opaque training configuration bundle. Config keys are passed through to
// the server unmodified.
func (c *Client) FineTune(ctx context.Context, train, val []string, config map[string]any) error {
	if err := c.post(ctx, "/v1/fine-tunes", fineTuneRequest{Train: train, Validation: val, Config: config}, nil); err != nil {
		return fmt.Errorf("fine-tune: %w", err)
	}
	return nil
}

// Healthy probes the server's health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
