// Package likelihood scores utterances by the conditional log-likelihood a
// causal language model assigns to the conversation's future given its past.
package likelihood

import (
	"context"

	"github.com/MikeSquared-Agency/helm/internal/redirection"
)

// Result maps utterance IDs to conditional log-likelihoods for one
// conversation. A nil Result marks a conversation whose scoring failed.
type Result map[string]float64

// Model is the pluggable likelihood model. The pipeline depends only on
// this interface; concrete implementations carry the model family.
type Model interface {
	Name() string

	// Fit fine-tunes the underlying model on training and validation text
	// sequences.
	Fit(ctx context.Context, train, val []string) error

	// Transform scores the aligned previous/future context maps, one pair
	// per conversation, and returns one Result per conversation in input
	// order.
	Transform(ctx context.Context, prev, future []redirection.ContextMap) ([]Result, error)
}
