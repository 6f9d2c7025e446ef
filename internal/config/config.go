package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `env:"HELM_PORT" envDefault:"8760"`
	NatsURL     string `env:"NATS_URL" envDefault:"nats://hermes:4222"`
	NatsToken   string `env:"NATS_TOKEN"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	APIToken    string `env:"HELM_API_TOKEN"`

	// Inference sidecar hosting the fine-tuned causal LM.
	InferenceURL   string `env:"INFERENCE_URL" envDefault:"http://loom:8790"`
	InferenceToken string `env:"INFERENCE_TOKEN"`
	ModelName      string `env:"HELM_MODEL" envDefault:"gemma-2b-redirection"`
	MaxSeqLength   int    `env:"HELM_MAX_SEQ_LENGTH" envDefault:"512"`
	ProgressEvery  int    `env:"HELM_PROGRESS_EVERY" envDefault:"5"`

	// Fine-tune configuration bundle (YAML). Empty means built-in defaults.
	TrainConfigPath string `env:"HELM_TRAIN_CONFIG"`

	// Reply simulation (optional pass).
	SimulateReplies bool   `env:"HELM_SIMULATE_REPLIES" envDefault:"false"`
	ReplyAttribute  string `env:"HELM_REPLY_ATTRIBUTE" envDefault:"sim_replies"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	OpenAIModel     string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Scheduled corpus-directory scanning.
	CorpusDir     string `env:"HELM_CORPUS_DIR"`
	ScanSchedule  string `env:"HELM_SCAN_SCHEDULE" envDefault:"*/15 * * * *"`
	ScanStatePath string `env:"HELM_SCAN_STATE" envDefault:"data/helm-scan-state.json"`

	// Slack run summaries (optional).
	SlackBotToken string `env:"SLACK_BOT_TOKEN"`
	SlackChannel  string `env:"SLACK_HELM_CHANNEL"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// defaultTrainConfig mirrors the server-side trainer's expected keys. The
// bundle is opaque to Helm; values are passed through unmodified.
func defaultTrainConfig() map[string]any {
	return map[string]any{
		"output_dir":                  "checkpoints",
		"logging_dir":                 "logs",
		"logging_steps":               5,
		"eval_steps":                  100,
		"num_train_epochs":            1,
		"per_device_train_batch_size": 1,
		"per_device_eval_batch_size":  1,
		"evaluation_strategy":         "steps",
		"save_strategy":               "steps",
		"save_steps":                  100,
		"optim":                       "paged_adamw_8bit",
		"learning_rate":               2e-4,
		"max_seq_length":              512,
	}
}

// TrainConfig loads the fine-tune configuration bundle from a YAML file.
// Keys present in the file override the built-in defaults; an empty path
// returns the defaults unchanged.
func TrainConfig(path string) (map[string]any, error) {
	cfg := defaultTrainConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read train config: %w", err)
	}
	var overrides map[string]any
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse train config: %w", err)
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	return cfg, nil
}
