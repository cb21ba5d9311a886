package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"vidcite/internal/ai"
	"vidcite/internal/config"
	"vidcite/internal/ingest"
	"vidcite/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("vidcite-ingest", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger

	if cfg.CreatorID == "" {
		log.Fatal("creator-id is required for ingestion")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	clientConfig := &ai.ClientConfig{
		APIKey:     cfg.APIKey,
		EmbedModel: cfg.EmbedModel,
		GenModel:   cfg.GenModel,
		Dim:        cfg.Dim,
		ProjectID:  cfg.ProjectID,
		Location:   cfg.Location,
		Provider:   ai.Provider(cfg.Provider),
	}
	client, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	if err := st.Migrate(ctx, client.Dim()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	logger.Info().
		Str("root", cfg.TranscriptRoot).
		Str("creator_id", cfg.CreatorID).
		Str("provider", cfg.Provider).
		Msg("starting transcript ingestion")

	start := time.Now()
	ix := ingest.New(st, client, cfg.CreatorID, cfg.TranscriptRoot)
	if err := ix.Run(ctx); err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}
	logger.Info().Dur("dur", time.Since(start)).Msg("ingestion complete")
}
