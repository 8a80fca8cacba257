package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/receiptiq/receiptiq/internal/config"
	"github.com/receiptiq/receiptiq/internal/export"
	httpapi "github.com/receiptiq/receiptiq/internal/interfaces/http"
	"github.com/receiptiq/receiptiq/internal/llm"
	"github.com/receiptiq/receiptiq/internal/query/engine"
	"github.com/receiptiq/receiptiq/internal/query/intent"
	"github.com/receiptiq/receiptiq/internal/query/merchant"
	"github.com/receiptiq/receiptiq/internal/query/temporal"
	"github.com/receiptiq/receiptiq/internal/retrieval/sqlitestore"
	"github.com/receiptiq/receiptiq/pkg/logging"
)

func main() {
	// Credentials may live in a local .env during development.
	_ = gotenv.Load()

	configPath := os.Getenv("RECEIPTIQ_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting receipt intelligence service",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path),
		zap.Bool("language_capabilities", !cfg.OpenAI.Disabled))

	var languages *llm.Client
	if !cfg.OpenAI.Disabled {
		languages = llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.EmbeddingModel, logger)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	var embedder sqlitestore.Embedder
	if languages != nil {
		embedder = languages
	}
	store, err := sqlitestore.Open(cfg.Database.Path, embedder, logger)
	if err != nil {
		logger.Fatal("Failed to open chunk store", zap.Error(err))
	}
	defer store.Close()

	corpus := merchant.NewCorpus()
	if names, err := store.Merchants(context.Background()); err != nil {
		logger.Warn("Failed to seed merchant corpus", zap.Error(err))
	} else {
		corpus.Add(names...)
		logger.Info("Merchant corpus seeded", zap.Int("merchants", len(names)))
	}

	var dateFallback temporal.DateExtractor
	var merchantFallback merchant.Extractor
	var gapFiller intent.GapFiller
	var generator engine.AnswerGenerator
	if languages != nil {
		dateFallback = languages
		merchantFallback = languages
		gapFiller = languages
		generator = languages
	}

	parser := intent.NewParser(
		temporal.NewResolver(dateFallback, cfg.Retrieval.MonthLookbackYears, logger),
		merchant.NewResolver(corpus, merchantFallback, logger),
		gapFiller,
		logger)
	eng := engine.New(store, parser, generator, cfg.Retrieval.TopK, logger)

	srv := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, eng, store, corpus, export.NewReportWriter(logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
	logger.Info("Server exited successfully")
}
