package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/MikeSquared-Agency/helm/internal/corpus"
	"github.com/MikeSquared-Agency/helm/internal/redirection"
)

const defaultSystemPrompt = "You are simulating the next turn of a two-party conversation. " +
	"Reply as the speaker who would naturally respond to the final utterance of the transcript. " +
	"Answer with the reply text only, without a speaker prefix."

// FineTuner submits formatted training transcripts for fine-tuning.
// Implemented by *inference.Client.
type FineTuner interface {
	FineTune(ctx context.Context, train, val []string, config map[string]any) error
}

// ChatModel generates replies with an OpenAI-compatible chat completions
// endpoint and fine-tunes through the inference sidecar.
type ChatModel struct {
	client      *openai.Client
	model       string
	tuner       FineTuner
	trainConfig map[string]any
	numReplies  int
	logger      *slog.Logger
}

type ChatModelOptions struct {
	// Model is the chat model name sent to the completions endpoint.
	Model string
	// NumReplies is the number of simulated replies per context (default 1).
	NumReplies int
	// TrainConfig is the opaque fine-tune configuration bundle.
	TrainConfig map[string]any
}

func NewChatModel(client *openai.Client, tuner FineTuner, opts ChatModelOptions, logger *slog.Logger) *ChatModel {
	if opts.NumReplies <= 0 {
		opts.NumReplies = 1
	}
	return &ChatModel{
		client:      client,
		model:       opts.Model,
		tuner:       tuner,
		trainConfig: opts.TrainConfig,
		numReplies:  opts.NumReplies,
		logger:      logger,
	}
}

func (m *ChatModel) Name() string {
	return "chat:" + m.model
}

// Fit formats full transcripts (context plus observed continuation) and
// submits them to the fine-tune endpoint with the opaque config bundle.
func (m *ChatModel) Fit(ctx context.Context, contexts, valContexts []corpus.ContextTuple) error {
	train := formatTrainingSequences(contexts)
	val := formatTrainingSequences(valContexts)
	m.logger.Info("submitting simulator fine-tune", "model", m.model, "train", len(train), "val", len(val))
	if err := m.tuner.FineTune(ctx, train, val, m.trainConfig); err != nil {
		return fmt.Errorf("fine-tune: %w", err)
	}
	return nil
}

// Transform generates replies for each context tuple, one completions call
// per tuple.
func (m *ChatModel) Transform(ctx context.Context, contexts []corpus.ContextTuple) (map[string][]string, error) {
	replies := make(map[string][]string, len(contexts))
	for _, tuple := range contexts {
		resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: m.model,
			N:     m.numReplies,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: defaultSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: FormatTranscript(tuple.Context)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("utterance %s: chat completion: %w", tuple.Current.ID, err)
		}
		var texts []string
		for _, choice := range resp.Choices {
			texts = append(texts, strings.TrimSpace(choice.Message.Content))
		}
		replies[tuple.Current.ID] = texts
	}
	return replies, nil
}

// FormatTranscript renders utterances as a speaker-prefixed transcript,
// one blank-line-separated fragment per turn.
func FormatTranscript(utts []*corpus.Utterance) string {
	var roles []string
	seen := make(map[string]bool)
	for _, u := range utts {
		if r := u.Role(); !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	prefixes := redirection.SpeakerPrefixes(roles)

	lines := make([]string, len(utts))
	for i, u := range utts {
		lines[i] = prefixes[u.Role()] + u.Text
	}
	return strings.Join(lines, "\n\n")
}

func formatTrainingSequences(contexts []corpus.ContextTuple) []string {
	var seqs []string
	for _, tuple := range contexts {
		full := tuple.Context
		if len(tuple.FutureContext) > 0 {
			full = append(append([]*corpus.Utterance{}, tuple.Context...), tuple.FutureContext...)
		}
		seqs = append(seqs, FormatTranscript(full))
	}
	return seqs
}
