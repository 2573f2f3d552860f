package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/knowbase/docbot/internal/ai"
	"github.com/knowbase/docbot/internal/chunker"
	"github.com/knowbase/docbot/internal/config"
	"github.com/knowbase/docbot/internal/ingest"
	"github.com/knowbase/docbot/internal/retrieve"
	"github.com/knowbase/docbot/internal/store"
	"github.com/knowbase/docbot/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("docbot", pflag.ExitOnError)
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage
	setupLogger(cfg.LogLevel)

	if cfg.TelegramToken == "" {
		log.Fatal().Msg("DOCBOT_TELEGRAM_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer st.Close()

	embedder, err := ai.NewEmbedder(ctx, &ai.ClientConfig{
		Provider:   ai.Provider(strings.ToLower(cfg.Provider)),
		BaseURL:    cfg.OllamaURL,
		APIKey:     cfg.GeminiAPIKey,
		EmbedModel: cfg.EmbedModel,
		Dim:        cfg.Dim,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create embedder")
	}

	if err := st.Migrate(ctx, embedder.Dim()); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Refresh the knowledge base on startup so the bot always answers
	// from the current corpus.
	if _, err := os.Stat(cfg.DocsDir); err == nil {
		pipeline := ingest.New(st, embedder, chunker.New(cfg.ChunkSize, cfg.MinChunkSize))
		count, err := pipeline.Run(ctx, cfg.DocsDir)
		if err != nil {
			log.Fatal().Err(err).Msg("startup ingestion failed")
		}
		log.Info().Int("chunks", count).Msg("knowledge base refreshed")
	} else {
		log.Warn().Str("root", cfg.DocsDir).Msg("documents folder not found, skipping ingestion")
	}

	generator, err := ai.NewGeminiClient(ctx, &ai.ClientConfig{
		Provider:    ai.ProviderGemini,
		APIKey:      cfg.GeminiAPIKey,
		ChatModel:   cfg.GeminiModel,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create generator")
	}

	retriever := retrieve.NewService(embedder, st, cfg.TopK, cfg.Threshold)

	b, err := telegram.New(cfg.TelegramToken, retriever, generator, cfg.AllowedUsers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create telegram bot")
	}

	b.Start(ctx)
	log.Info().Msg("shutting down")
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
