package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"

	"github.com/MikeSquared-Agency/helm/internal/api"
	"github.com/MikeSquared-Agency/helm/internal/config"
	"github.com/MikeSquared-Agency/helm/internal/hermes"
	"github.com/MikeSquared-Agency/helm/internal/inference"
	"github.com/MikeSquared-Agency/helm/internal/likelihood"
	"github.com/MikeSquared-Agency/helm/internal/metrics"
	"github.com/MikeSquared-Agency/helm/internal/processor"
	"github.com/MikeSquared-Agency/helm/internal/scheduler"
	"github.com/MikeSquared-Agency/helm/internal/simulator"
	"github.com/MikeSquared-Agency/helm/internal/slack"
	"github.com/MikeSquared-Agency/helm/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	slog.Info("helm starting", "port", cfg.Port, "model", cfg.ModelName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Inference sidecar hosting the causal LM
	engine := inference.NewClient(cfg.InferenceURL, cfg.InferenceToken)
	if err := engine.Healthy(ctx); err != nil {
		slog.Warn("inference server not ready, continuing anyway", "url", cfg.InferenceURL, "error", err)
	} else {
		slog.Info("inference server ready", "url", cfg.InferenceURL)
	}

	trainConfig, err := config.TrainConfig(cfg.TrainConfigPath)
	if err != nil {
		slog.Error("failed to load train config", "path", cfg.TrainConfigPath, "error", err)
		os.Exit(1)
	}

	model := likelihood.NewCausalModel(engine, likelihood.CausalModelOptions{
		Name:          cfg.ModelName,
		MaxSeqLength:  cfg.MaxSeqLength,
		ProgressEvery: cfg.ProgressEvery,
		TrainConfig:   trainConfig,
	}, slog.Default())

	// Reply simulation (optional pass)
	var sim *simulator.Simulator
	if cfg.SimulateReplies {
		if cfg.OpenAIAPIKey == "" {
			slog.Error("OPENAI_API_KEY is required when HELM_SIMULATE_REPLIES is set")
			os.Exit(1)
		}
		oaiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oaiCfg.BaseURL = cfg.OpenAIBaseURL
		}
		chat := simulator.NewChatModel(openai.NewClientWithConfig(oaiCfg), engine, simulator.ChatModelOptions{
			Model:       cfg.OpenAIModel,
			TrainConfig: trainConfig,
		}, slog.Default())
		sim = simulator.New(chat, cfg.ReplyAttribute)
		slog.Info("reply simulation enabled", "model", cfg.OpenAIModel, "attribute", cfg.ReplyAttribute)
	}

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Slack poster (optional)
	var slackPoster *slack.Poster
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		slackPoster = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, running without run summaries")
	}

	m := metrics.New(nil)

	// Processor: the scoring pipeline
	proc := processor.New(db, model, sim, hermesClient, slackPoster, m, slog.Default())

	// Subscribe to corpus events
	if err := hermesClient.Subscribe(hermes.SubjectCorpusStored, proc.HandleCorpusStored); err != nil {
		slog.Error("failed to subscribe to corpus events", "error", err)
		os.Exit(1)
	}

	// Scheduled corpus-directory scanning (optional)
	if cfg.CorpusDir != "" {
		sched := scheduler.New(cfg.CorpusDir, cfg.ScanStatePath, proc, slog.Default())
		if err := sched.Start(cfg.ScanSchedule); err != nil {
			slog.Error("failed to start corpus scan schedule", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, cfg.ModelName, db, m.Handler())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
		"model":     cfg.ModelName,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("helm ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("helm stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
