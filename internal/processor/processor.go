// Package processor orchestrates Helm's corpus pipeline: context
// extraction, likelihood scoring, optional reply simulation, persistence,
// and event publication.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/helm/internal/corpus"
	"github.com/MikeSquared-Agency/helm/internal/hermes"
	"github.com/MikeSquared-Agency/helm/internal/likelihood"
	"github.com/MikeSquared-Agency/helm/internal/metrics"
	"github.com/MikeSquared-Agency/helm/internal/redirection"
	"github.com/MikeSquared-Agency/helm/internal/simulator"
	"github.com/MikeSquared-Agency/helm/internal/slack"
)

// RunStore is the slice of the store the processor writes through.
type RunStore interface {
	CreateRun(ctx context.Context, runID uuid.UUID, corpusRef string) error
	FinishRun(ctx context.Context, runID uuid.UUID, conversations, scored, failed int, status string) error
	WriteLikelihoods(ctx context.Context, runID uuid.UUID, corpusRef, conversationID, kind string, scores map[string]float64) error
	WriteSimReplies(ctx context.Context, runID uuid.UUID, corpusRef string, replies map[string][]string) error
}

// Publisher emits events on the swarm bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// RunSummary reports one corpus run's outcome.
type RunSummary struct {
	RunID            uuid.UUID
	CorpusRef        string
	Conversations    int // conversations that entered scoring
	Skipped          int // conversations rejected by the two-role precondition
	Failed           int // conversations abandoned by a scoring failure
	UtterancesScored int // per the actual series
	RepliesSimulated int
}

type Processor struct {
	store   RunStore
	model   likelihood.Model
	sim     *simulator.Simulator
	hermes  Publisher
	slack   *slack.Poster
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(s RunStore, model likelihood.Model, sim *simulator.Simulator, h Publisher, sl *slack.Poster, m *metrics.Metrics, logger *slog.Logger) *Processor {
	return &Processor{
		store:   s,
		model:   model,
		sim:     sim,
		hermes:  h,
		slack:   sl,
		metrics: m,
		logger:  logger,
	}
}

// HandleCorpusStored is the NATS handler for swarm.chronicle.corpus.stored.
func (p *Processor) HandleCorpusStored(subject string, data []byte) {
	ctx := context.Background()

	var evt hermes.CorpusStoredEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse corpus event", "error", err)
		return
	}
	if evt.CorpusRef == "" {
		p.logger.Error("corpus event missing corpus_ref")
		return
	}

	c, err := p.loadCorpus(evt)
	if err != nil {
		p.logger.Error("failed to load corpus", "corpus_ref", evt.CorpusRef, "error", err)
		return
	}

	if _, err := p.ProcessCorpus(ctx, evt.CorpusRef, c); err != nil {
		p.logger.Error("corpus processing failed", "corpus_ref", evt.CorpusRef, "error", err)
	}
}

// ProcessFile loads a JSONL corpus export and processes it. The corpus ref
// is the file's base name without extension.
func (p *Processor) ProcessFile(ctx context.Context, path string) error {
	c, err := corpus.LoadJSONL(path)
	if err != nil {
		return fmt.Errorf("load corpus %s: %w", path, err)
	}
	ref := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	_, err = p.ProcessCorpus(ctx, ref, c)
	return err
}

func (p *Processor) loadCorpus(evt hermes.CorpusStoredEvent) (*corpus.Corpus, error) {
	// Prefer utterances embedded in the event payload.
	if len(evt.Lines) > 0 {
		return corpus.Parse(strings.NewReader(strings.Join(evt.Lines, "\n")))
	}
	if evt.Path == "" {
		return nil, fmt.Errorf("event carries neither inline lines nor a path")
	}
	return corpus.LoadJSONL(evt.Path)
}

// ProcessCorpus runs the full pipeline over one corpus: per-conversation
// context extraction, likelihood aggregation for the actual and reference
// series, persistence, and event publication. Conversations violating the
// two-role precondition are logged and skipped; a scoring failure abandons
// only the conversation it hit.
func (p *Processor) ProcessCorpus(ctx context.Context, corpusRef string, c *corpus.Corpus) (*RunSummary, error) {
	runID := uuid.New()
	summary := &RunSummary{RunID: runID, CorpusRef: corpusRef}

	if err := p.store.CreateRun(ctx, runID, corpusRef); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	p.logger.Info("processing corpus",
		"run_id", runID,
		"corpus_ref", corpusRef,
		"conversations", len(c.Conversations()),
		"model", p.model.Name(),
	)

	var convoIDs []string
	var prevMaps, refMaps, futMaps []redirection.ContextMap
	for _, convo := range c.Conversations() {
		actual, reference, err := redirection.PreviousContexts(convo)
		if err != nil {
			p.logger.Warn("skipping conversation", "conversation_id", convo.ID, "error", err)
			summary.Skipped++
			continue
		}
		future, err := redirection.FutureContexts(convo)
		if err != nil {
			p.logger.Warn("skipping conversation", "conversation_id", convo.ID, "error", err)
			summary.Skipped++
			continue
		}
		convoIDs = append(convoIDs, convo.ID)
		prevMaps = append(prevMaps, actual)
		refMaps = append(refMaps, reference)
		futMaps = append(futMaps, future)
	}
	summary.Conversations = len(convoIDs)

	start := time.Now()
	actualResults, err := p.model.Transform(ctx, prevMaps, futMaps)
	if err != nil {
		p.failRun(ctx, runID, summary)
		return nil, fmt.Errorf("score actual contexts: %w", err)
	}
	refResults, err := p.model.Transform(ctx, refMaps, futMaps)
	if err != nil {
		p.failRun(ctx, runID, summary)
		return nil, fmt.Errorf("score reference contexts: %w", err)
	}
	p.metrics.ScoringDuration.Observe(time.Since(start).Seconds())

	for i, convoID := range convoIDs {
		if actualResults[i] == nil || refResults[i] == nil {
			summary.Failed++
			p.metrics.RunErrors.Inc()
			continue
		}
		if err := p.store.WriteLikelihoods(ctx, runID, corpusRef, convoID, "actual", actualResults[i]); err != nil {
			p.failRun(ctx, runID, summary)
			return nil, fmt.Errorf("persist actual likelihoods for %s: %w", convoID, err)
		}
		if err := p.store.WriteLikelihoods(ctx, runID, corpusRef, convoID, "reference", refResults[i]); err != nil {
			p.failRun(ctx, runID, summary)
			return nil, fmt.Errorf("persist reference likelihoods for %s: %w", convoID, err)
		}
		summary.UtterancesScored += len(actualResults[i])
		p.metrics.ConversationsProcessed.Inc()
	}
	p.metrics.UtterancesScored.Add(float64(summary.UtterancesScored))

	// Optional reply simulation pass.
	if p.sim != nil {
		replies, err := p.sim.Transform(ctx, c, nil)
		if err != nil {
			p.logger.Error("reply simulation failed", "corpus_ref", corpusRef, "error", err)
			p.metrics.RunErrors.Inc()
		} else {
			if err := p.store.WriteSimReplies(ctx, runID, corpusRef, replies); err != nil {
				p.logger.Error("failed to persist simulated replies", "error", err)
			} else {
				summary.RepliesSimulated = len(replies)
				p.metrics.RepliesSimulated.Add(float64(len(replies)))
				p.publish(hermes.SubjectRepliesSimulated, map[string]any{
					"run_id":     runID.String(),
					"corpus_ref": corpusRef,
					"utterances": len(replies),
				})
			}
		}
	}

	status := "completed"
	if summary.Failed > 0 {
		status = "completed_with_errors"
	}
	if err := p.store.FinishRun(ctx, runID, summary.Conversations, summary.UtterancesScored, summary.Failed, status); err != nil {
		p.logger.Error("failed to finish run", "run_id", runID, "error", err)
	}

	p.publish(hermes.SubjectLikelihoodsComputed, map[string]any{
		"run_id":        runID.String(),
		"corpus_ref":    corpusRef,
		"conversations": summary.Conversations,
		"scored":        summary.UtterancesScored,
		"failed":        summary.Failed,
	})

	if p.slack != nil {
		if err := p.slack.PostRunSummary(ctx, corpusRef, summary.Conversations, summary.UtterancesScored, summary.Skipped, summary.Failed); err != nil {
			p.logger.Error("slack post failed", "error", err)
		}
	}

	p.logger.Info("corpus processed",
		"run_id", runID,
		"corpus_ref", corpusRef,
		"conversations", summary.Conversations,
		"skipped", summary.Skipped,
		"scored", summary.UtterancesScored,
		"failed", summary.Failed,
	)

	return summary, nil
}

func (p *Processor) failRun(ctx context.Context, runID uuid.UUID, summary *RunSummary) {
	p.metrics.RunErrors.Inc()
	if err := p.store.FinishRun(ctx, runID, summary.Conversations, summary.UtterancesScored, summary.Failed, "failed"); err != nil {
		p.logger.Error("failed to mark run failed", "run_id", runID, "error", err)
	}
}

func (p *Processor) publish(subject string, data any) {
	if p.hermes == nil {
		return
	}
	if err := p.hermes.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
	}
}
