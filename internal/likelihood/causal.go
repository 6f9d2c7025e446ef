package likelihood

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/helm/internal/redirection"
)

// Engine is the slice of the inference server the causal model needs:
// tokenization, per-position token log-probabilities, and fine-tune
// submission. Implemented by *inference.Client.
type Engine interface {
	Encode(ctx context.Context, text string, maxTokens int) ([]int, error)
	TokenLogProbs(ctx context.Context, tokens []int) ([]float64, error)
	FineTune(ctx context.Context, train, val []string, config map[string]any) error
}

// CausalModel scores future spans under a fine-tuned causal language model
// served by the inference sidecar.
type CausalModel struct {
	name          string
	engine        Engine
	maxSeqLength  int
	progressEvery int
	trainConfig   map[string]any
	logger        *slog.Logger
}

type CausalModelOptions struct {
	// Name identifies the model in logs and run records.
	Name string
	// MaxSeqLength is the model's context window in tokens.
	MaxSeqLength int
	// ProgressEvery logs scoring progress every Nth conversation; 0 disables.
	ProgressEvery int
	// TrainConfig is the opaque fine-tune configuration bundle, passed
	// through to the inference server unmodified.
	TrainConfig map[string]any
}

func NewCausalModel(engine Engine, opts CausalModelOptions, logger *slog.Logger) *CausalModel {
	if opts.MaxSeqLength <= 0 {
		opts.MaxSeqLength = 512
	}
	if opts.Name == "" {
		opts.Name = "causal-lm"
	}
	return &CausalModel{
		name:          opts.Name,
		engine:        engine,
		maxSeqLength:  opts.MaxSeqLength,
		progressEvery: opts.ProgressEvery,
		trainConfig:   opts.TrainConfig,
		logger:        logger,
	}
}

func (m *CausalModel) Name() string {
	return m.name
}

// Fit submits the training and validation sequences to the inference
// server's fine-tune endpoint along with the opaque config bundle.
func (m *CausalModel) Fit(ctx context.Context, train, val []string) error {
	m.logger.Info("submitting fine-tune", "model", m.name, "train", len(train), "val", len(val))
	if err := m.engine.FineTune(ctx, train, val, m.trainConfig); err != nil {
		return fmt.Errorf("fit %s: %w", m.name, err)
	}
	return nil
}

// Transform aggregates likelihoods across conversations. prev and future are
// parallel slices, one context-map pair per conversation. For each
// conversation, only utterance IDs present in BOTH maps are scored; IDs
// without a future entry are skipped silently. Output preserves conversation
// order. A scoring failure abandons the current conversation (its Result is
// nil) and processing continues with the next one.
func (m *CausalModel) Transform(ctx context.Context, prev, future []redirection.ContextMap) ([]Result, error) {
	if len(prev) != len(future) {
		return nil, fmt.Errorf("transform: %d previous-context maps vs %d future-context maps", len(prev), len(future))
	}

	results := make([]Result, 0, len(prev))
	for i := range prev {
		if m.progressEvery > 0 && i > 0 && i%m.progressEvery == 0 {
			m.logger.Info("scoring progress", "model", m.name, "done", i, "total", len(prev))
		}

		convoResult, err := m.scoreConversation(ctx, prev[i], future[i])
		if err != nil {
			m.logger.Error("conversation scoring failed", "model", m.name, "conversation_index", i, "error", err)
			results = append(results, nil)
			continue
		}
		results = append(results, convoResult)
	}
	return results, nil
}

func (m *CausalModel) scoreConversation(ctx context.Context, prev, future redirection.ContextMap) (Result, error) {
	result := make(Result)
	for uttID, prevContext := range prev {
		futureContext, ok := future[uttID]
		if !ok {
			continue // no future lookahead for this utterance
		}
		score, err := m.scoreOne(ctx, prevContext, futureContext)
		if err != nil {
			return nil, fmt.Errorf("utterance %s: %w", uttID, err)
		}
		result[uttID] = score
	}
	return result, nil
}

// scoreOne computes the conditional log-likelihood of the future context
// given the past context: the sum of the log-probabilities the model assigns
// to each future token after the past tokens. Fragments are joined with a
// blank line; each side is encoded within the sequence budget; the
// concatenation is left-truncated so the future span is always preserved.
func (m *CausalModel) scoreOne(ctx context.Context, prevContext, futureContext []string) (float64, error) {
	past := strings.Join(prevContext, "\n\n")
	future := strings.Join(futureContext, "\n\n")

	pastIDs, err := m.engine.Encode(ctx, past, m.maxSeqLength)
	if err != nil {
		return 0, fmt.Errorf("encode past: %w", err)
	}
	futureIDs, err := m.engine.Encode(ctx, future, m.maxSeqLength)
	if err != nil {
		return 0, fmt.Errorf("encode future: %w", err)
	}

	input := make([]int, 0, len(pastIDs)+len(futureIDs))
	input = append(input, pastIDs...)
	input = append(input, futureIDs...)
	if len(input) > m.maxSeqLength {
		input = input[len(input)-m.maxSeqLength:]
	}

	logProbs, err := m.engine.TokenLogProbs(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("token logprobs: %w", err)
	}

	offset := len(input) - len(futureIDs)
	var sum float64
	for i := range futureIDs {
		pos := offset + i
		if pos == 0 || math.IsNaN(logProbs[pos]) {
			continue // no conditioning prefix at the sequence start
		}
		sum += logProbs[pos]
	}
	return sum, nil
}
