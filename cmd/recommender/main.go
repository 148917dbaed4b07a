package main

// @title           Recommender API
// @version         1.0
// @description     Asynchronous product recommendations. Queries are handed to a reasoning workflow and results are polled by session id.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Admin or callback token. Format: "Bearer {token}"

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/auth"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/postgres"
	postgresqueue "github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/queue/redis"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/reasoning"
	redisadapter "github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/redis"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/registration"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/snapshot"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/workflow"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driving/http"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/config"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/services"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/poller"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/runtime"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/worker"
)

var version = "dev"

const (
	agentWatchInterval = 30 * time.Second
	publishLockTTL     = 15 * time.Minute
	tokenIssuer        = "recommender"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// RUN_MODE may also be passed as the first argument
	if len(os.Args) > 1 {
		cfg.RunMode = os.Args[1]
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	slog.SetDefault(newLogger(cfg.Logging))
	log.Printf("recommender %s starting in %s mode", version, cfg.RunMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("recommender stopped: %v", err)
	}
	log.Println("recommender stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	dbConfig := postgres.DefaultConfig(cfg.Database.URL)
	dbConfig.Migrate = cfg.Database.Migrate
	db, err := postgres.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Println("PostgreSQL connected")

	// ===== Initialize Redis (optional) =====
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	resultTTL := cfg.Results.TTL.Std()

	// ===== Stores (Redis if available, otherwise PostgreSQL) =====
	var (
		sessionStore driven.SearchSessionStore
		resultStore  driven.ResultStore
		taskQueue    driven.TaskQueue
		lock         driven.DistributedLock
		purgers      = map[string]worker.Purger{}
	)
	if redisClient != nil {
		sessionStore = redisadapter.NewSessionStore(redisClient)
		rs := redisadapter.NewResultStore(redisClient, resultTTL)
		resultStore = rs
		purgers["results"] = rs
		taskQueue, err = redisqueue.NewQueue(ctx, redisClient, fmt.Sprintf("worker-%d", os.Getpid()))
		if err != nil {
			return fmt.Errorf("failed to create task queue: %w", err)
		}
		lock = redisadapter.NewLock(redisClient)
		log.Println("Using Redis sessions, results, task queue and lock")
	} else {
		ss := postgres.NewSessionStore(db)
		rs := postgres.NewResultStore(db, resultTTL)
		sessionStore = ss
		resultStore = rs
		purgers["sessions"] = ss
		purgers["results"] = rs
		taskQueue = postgresqueue.NewQueue(db.DB)
		lock = postgres.NewAdvisoryLock(db)
		log.Println("Using PostgreSQL sessions, results, task queue and advisory lock")
	}

	// ===== Agent registrations =====
	var (
		registrations driven.RegistrationStore
		fileRegs      *registration.FileStore
	)
	switch cfg.Catalog.RegistrationBackend {
	case config.RegistrationFile:
		fileRegs = registration.NewFileStore(cfg.Catalog.RegistrationDir)
		registrations = fileRegs
		log.Printf("Using file registrations in %s", cfg.Catalog.RegistrationDir)
	default:
		registrations = postgres.NewRegistrationStore(db)
		log.Println("Using PostgreSQL registrations")
	}

	agents := runtime.NewAgentDirectory(registrations, cfg.Catalog.Deployment, logger)
	if err := agents.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load active agent: %w", err)
	}
	if reg := agents.Current(); reg != nil {
		log.Printf("Active agent %s (registration %s)", reg.AgentID, reg.ID)
	} else {
		log.Println("Warning: no active agent; searches will time out until the catalog is published")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return agents.Watch(gctx, agentWatchInterval)
	})
	if fileRegs != nil {
		watcher := registration.NewWatcher(fileRegs, cfg.Catalog.Deployment, agents, logger)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	mode := cfg.RunMode
	if mode == config.ModeAPI || mode == config.ModeAll {
		server, err := newServer(cfg, db, redisClient, sessionStore, resultStore, taskQueue, agents)
		if err != nil {
			return err
		}
		log.Printf("API server starting on :%d", cfg.Server.Port)
		g.Go(func() error {
			return server.Start(gctx)
		})
	}

	if mode == config.ModeWorker || mode == config.ModeAll {
		w, err := newWorker(ctx, cfg, db, registrations, agents, taskQueue, lock, purgers)
		if err != nil {
			return err
		}
		if err := w.Start(gctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
		log.Println("Worker started, processing tasks...")
		log.Println("Worker handles:")
		log.Println("  - publish_catalog: export, upload, register, activate and smoke test")
		g.Go(func() error {
			<-gctx.Done()
			log.Println("Stopping worker...")
			w.Stop()
			log.Println("Worker stopped")
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newServer(
	cfg *config.Config,
	db *postgres.DB,
	redisClient *redis.Client,
	sessions driven.SearchSessionStore,
	results driven.ResultStore,
	taskQueue driven.TaskQueue,
	agents *runtime.AgentDirectory,
) (*http.Server, error) {
	secret := cfg.Callback.Secret
	if secret == "" {
		secret = randomSecret()
		log.Println("Warning: CALLBACK_SECRET not set; using a random secret, callbacks for sessions from other instances will be rejected")
	}
	tokens, err := auth.NewCallbackTokens(secret, tokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create callback tokens: %w", err)
	}

	var adminAuth driven.AdminAuth
	if cfg.Admin.Token != "" {
		a, err := auth.NewAdminAuth(cfg.Admin.Token, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to configure admin auth: %w", err)
		}
		adminAuth = a
	} else {
		log.Println("Warning: ADMIN_TOKEN not set; admin endpoints are disabled")
	}

	var trigger driven.WorkflowTrigger
	if cfg.Workflow.WebhookURL != "" {
		wh, err := workflow.NewWebhook(workflow.Config{
			URL:               cfg.Workflow.WebhookURL,
			APIToken:          cfg.Workflow.APIToken,
			RequestsPerSecond: cfg.Workflow.RatePerSec,
			Burst:             cfg.Workflow.Burst,
			Timeout:           cfg.Workflow.DispatchTimeout.Std(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create workflow trigger: %w", err)
		}
		trigger = wh
	} else {
		log.Println("Warning: WORKFLOW_WEBHOOK_URL not set; queries will not be dispatched")
	}

	pollBudget := cfg.Poll.Budget.Std()
	intake := services.NewIntakeService(services.IntakeConfig{
		Sessions:        sessions,
		Trigger:         trigger,
		Tokens:          tokens,
		Directory:       agents,
		CallbackURL:     strings.TrimRight(cfg.Server.PublicBaseURL, "/") + "/api/v1/search/callback",
		SessionTTL:      cfg.Results.TTL.Std(),
		DispatchTimeout: cfg.Workflow.DispatchTimeout.Std(),
		FailFast:        cfg.Workflow.FailFast,
		Logger:          slog.Default(),
	})
	resultService := services.NewResultService(services.ResultServiceConfig{
		Results:    results,
		Sessions:   sessions,
		SessionTTL: cfg.Results.TTL.Std(),
		Logger:     slog.Default(),
	})

	serverCfg := http.DefaultConfig()
	serverCfg.Port = cfg.Server.Port
	serverCfg.Version = version
	serverCfg.Deployment = cfg.Catalog.Deployment
	serverCfg.IntakeRatePerSec = cfg.Intake.RatePerSec
	serverCfg.IntakeBurst = cfg.Intake.Burst
	serverCfg.TrustProxyHeaders = cfg.Intake.TrustProxy
	serverCfg.Logger = slog.Default()
	serverCfg.Poll = poller.Resolver{
		Interval:     cfg.Poll.Interval.Std(),
		Budget:       pollBudget,
		ErrorBackoff: cfg.Poll.ErrorBackoff.Std(),
		Expected:     cfg.Poll.Expected.Std(),
	}

	var redisPing http.Pinger
	if redisClient != nil {
		redisPing = redisPinger{redisClient}
	}

	return http.NewServer(serverCfg, intake, resultService, agents, taskQueue, tokens, adminAuth, db, redisPing), nil
}

func newWorker(
	ctx context.Context,
	cfg *config.Config,
	db *postgres.DB,
	registrations driven.RegistrationStore,
	agents *runtime.AgentDirectory,
	taskQueue driven.TaskQueue,
	lock driven.DistributedLock,
	purgers map[string]worker.Purger,
) (*worker.Worker, error) {
	reasoner, err := reasoning.New(ctx, &reasoning.Settings{
		Provider: domain.ReasoningProvider(cfg.Reasoning.Provider),
		APIKey:   cfg.Reasoning.APIKey(),
		Model:    cfg.Reasoning.Model,
		BaseURL:  cfg.Reasoning.OpenAIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning service: %w", err)
	}
	if reasoner == nil {
		log.Println("Warning: no reasoning API key configured; publish tasks will fail at upload")
	}

	products := postgres.NewProductStore(db)
	snapshots := snapshot.NewFileStore(cfg.Catalog.SnapshotPath)

	exporter := services.NewExporter(services.ExporterConfig{
		Products:  products,
		Snapshots: snapshots,
		Logger:    slog.Default(),
	})
	publisher := services.NewPublisher(services.PublisherConfig{
		Reasoning:     reasoner,
		Snapshots:     snapshots,
		Registrations: registrations,
		Directory:     agents,
		Deployment:    cfg.Catalog.Deployment,
		Model:         cfg.Reasoning.Model,
		Logger:        slog.Default(),
	})
	pipeline := services.NewPipeline(services.PipelineConfig{
		Exporter:   exporter,
		Publisher:  publisher,
		Reasoning:  reasoner,
		Products:   products,
		Lock:       lock,
		LockTTL:    publishLockTTL,
		SmokeQuery: cfg.Catalog.SmokeQuery,
		Logger:     slog.Default(),
	})

	sweeper := worker.NewSweeper(worker.SweeperConfig{
		Purgers:   purgers,
		TaskQueue: taskQueue,
		Interval:  cfg.Worker.PurgeInterval.Std(),
		Logger:    slog.Default(),
	})

	return worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      taskQueue,
		Pipeline:       pipeline,
		Agents:         agents,
		Sweeper:        sweeper,
		Deployment:     cfg.Catalog.Deployment,
		Logger:         slog.Default(),
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Worker.DequeueTimeout.Std(),
	}), nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// redisPinger adapts the Redis client to the readiness check
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
