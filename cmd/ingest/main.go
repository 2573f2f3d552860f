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
	"github.com/knowbase/docbot/internal/store"
)

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("docbot-ingest", pflag.ExitOnError)
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage
	setupLogger(cfg.LogLevel)

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
	if embedder.Dim() == 0 {
		log.Fatal().Msg("embedding dimension must be set")
	}

	if err := st.Migrate(ctx, embedder.Dim()); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	pipeline := ingest.New(st, embedder, chunker.New(cfg.ChunkSize, cfg.MinChunkSize))

	count, err := pipeline.Run(ctx, cfg.DocsDir)
	if err != nil {
		log.Fatal().Err(err).Int("chunks", count).Msg("ingestion failed")
	}
	total, err := st.Count(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to count stored chunks")
	}
	log.Info().Int("chunks", count).Int("total", total).Str("root", cfg.DocsDir).Msg("ingestion complete")
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
