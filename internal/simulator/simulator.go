// Package simulator generates hypothetical replies to conversation contexts
// through a pluggable reply-generation model, and annotates corpus
// utterances with the result.
package simulator

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/helm/internal/corpus"
)

// Model is the pluggable reply-generation model behind the simulator.
type Model interface {
	Name() string

	// Fit fine-tunes the model on context tuples that carry future
	// context (the observed continuations serve as targets).
	Fit(ctx context.Context, contexts, valContexts []corpus.ContextTuple) error

	// Transform generates simulated replies for the given contexts,
	// keyed by the current utterance's ID.
	Transform(ctx context.Context, contexts []corpus.ContextTuple) (map[string][]string, error)
}

// Simulator wraps a Model with corpus-level plumbing: it builds context
// tuples via caller-supplied selectors and writes the generated replies back
// onto utterance metadata.
type Simulator struct {
	model     Model
	replyAttr string
}

// New creates a simulator that annotates utterances under replyAttr
// ("sim_replies" when empty).
func New(model Model, replyAttr string) *Simulator {
	if replyAttr == "" {
		replyAttr = "sim_replies"
	}
	return &Simulator{model: model, replyAttr: replyAttr}
}

// Fit fine-tunes the underlying model on contexts selected from the corpus.
// Training contexts include future context; a nil valSelector skips
// validation data.
func (s *Simulator) Fit(ctx context.Context, c *corpus.Corpus, selector, valSelector corpus.ContextSelector) error {
	contexts := c.Contexts(selector, true)
	var valContexts []corpus.ContextTuple
	if valSelector != nil {
		valContexts = c.Contexts(valSelector, true)
	}
	if err := s.model.Fit(ctx, contexts, valContexts); err != nil {
		return fmt.Errorf("fit simulator model %s: %w", s.model.Name(), err)
	}
	return nil
}

// Transform generates replies for the selected contexts and annotates every
// utterance in the corpus under the reply attribute: the generated replies
// for simulated utterances, nil for the rest. It returns the reply map.
func (s *Simulator) Transform(ctx context.Context, c *corpus.Corpus, selector corpus.ContextSelector) (map[string][]string, error) {
	contexts := c.Contexts(selector, false)
	replies, err := s.model.Transform(ctx, contexts)
	if err != nil {
		return nil, fmt.Errorf("transform with model %s: %w", s.model.Name(), err)
	}

	c.Utterances(func(u *corpus.Utterance) {
		if r, ok := replies[u.ID]; ok {
			u.SetMeta(s.replyAttr, r)
		} else {
			u.SetMeta(s.replyAttr, nil)
		}
	})

	return replies, nil
}
