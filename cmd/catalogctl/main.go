package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/postgres"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/reasoning"
	redisadapter "github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/redis"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/registration"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/snapshot"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driving/cli"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/config"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/services"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/runtime"
)

var version = "dev"

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cli.SetVersion(version)
	cli.SetServiceLoader(loadServices)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadServices connects to the stores named by the configuration.
func loadServices(ctx context.Context) (*cli.Services, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	dbConfig := postgres.DefaultConfig(cfg.Database.URL)
	dbConfig.Migrate = cfg.Database.Migrate
	db, err := postgres.Connect(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closers := []func(){func() { db.Close() }}

	// The publish lock is shared with the worker so the two never run concurrently
	var lock driven.DistributedLock = postgres.NewAdvisoryLock(db)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		closers = append(closers, func() { client.Close() })
		lock = redisadapter.NewLock(client)
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var registrations driven.RegistrationStore
	if cfg.Catalog.RegistrationBackend == config.RegistrationFile {
		registrations = registration.NewFileStore(cfg.Catalog.RegistrationDir)
	} else {
		registrations = postgres.NewRegistrationStore(db)
	}

	reasoner, err := reasoning.New(ctx, &reasoning.Settings{
		Provider: domain.ReasoningProvider(cfg.Reasoning.Provider),
		APIKey:   cfg.Reasoning.APIKey(),
		Model:    cfg.Reasoning.Model,
		BaseURL:  cfg.Reasoning.OpenAIBaseURL,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to create reasoning service: %w", err)
	}

	products := postgres.NewProductStore(db)
	snapshots := snapshot.NewFileStore(cfg.Catalog.SnapshotPath)
	agents := runtime.NewAgentDirectory(registrations, cfg.Catalog.Deployment, logger)

	exporter := services.NewExporter(services.ExporterConfig{
		Products:  products,
		Snapshots: snapshots,
		Logger:    logger,
	})
	publisher := services.NewPublisher(services.PublisherConfig{
		Reasoning:     reasoner,
		Snapshots:     snapshots,
		Registrations: registrations,
		Directory:     agents,
		Deployment:    cfg.Catalog.Deployment,
		Model:         cfg.Reasoning.Model,
		Logger:        logger,
	})
	pipeline := services.NewPipeline(services.PipelineConfig{
		Exporter:   exporter,
		Publisher:  publisher,
		Reasoning:  reasoner,
		Products:   products,
		Lock:       lock,
		SmokeQuery: cfg.Catalog.SmokeQuery,
		Logger:     logger,
	})

	return &cli.Services{
		Exporter:      exporter,
		Pipeline:      pipeline,
		Registrations: registrations,
		Deployment:    cfg.Catalog.Deployment,
		Close:         closeAll,
	}, nil
}
