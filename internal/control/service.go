package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/robfig/cron/v3"

	"github.com/oversync/syncgate/internal/admin"
	"github.com/oversync/syncgate/internal/breaker"
	"github.com/oversync/syncgate/internal/core/config"
	"github.com/oversync/syncgate/internal/infra/adapter"
	redisclient "github.com/oversync/syncgate/internal/infra/redis"
	"github.com/oversync/syncgate/internal/infra/storage"
	"github.com/oversync/syncgate/internal/infra/storage/memory"
	"github.com/oversync/syncgate/internal/infra/storage/postgres"
	"github.com/oversync/syncgate/internal/retry"
)

// Service is the main application struct that wires the retry subsystem
// together and manages its lifecycle.
type Service struct {
	cfg         config.AppConfig
	processor   *retry.Processor
	queue       *retry.Queue
	adminServer *admin.Server
	db          *postgres.DB
	redisClient *redisclient.Client
	cron        *cron.Cron
	log         *slog.Logger
}

// NewService creates a new Service instance with all dependencies initialized.
func NewService(cfg config.AppConfig) (*Service, error) {
	// 1. Initialize Storage
	var repo storage.SyncLogRepository
	var db *postgres.DB
	var health func(ctx context.Context) error

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		repo = postgres.NewSyncLogRepo(db)
		health = db.Health
		slog.Info("Using PostgreSQL storage")
	} else {
		repo = memory.NewSyncLogRepo()
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Circuit Breaker Registry. With Redis configured, circuit
	// state is shared across worker processes; otherwise each process keeps
	// its own view.
	var registry breaker.Registry
	var redisCli *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisCli, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, using in-process circuit state", "error", err)
			registry = breaker.NewMemoryRegistry(cfg.Breaker)
		} else {
			registry = redisclient.NewCircuitRegistry(redisCli, cfg.Breaker)
			slog.Info("Using Redis-backed circuit state")
		}
	} else {
		registry = breaker.NewMemoryRegistry(cfg.Breaker)
	}

	// 3. Initialize Adapters
	adapters := adapter.NewRegistry()
	for _, sys := range cfg.Systems {
		adapters.Register(sys.Name, adapter.NewHTTPAdapter(sys.Name, sys.URL, sys.Timeout))
		slog.Info("Registered sync adapter", "system", sys.Name, "url", sys.URL)
	}

	// 4. Initialize Retry Components
	scheduler := retry.NewScheduler(repo, cfg.Retry.SchedulerConfig)
	processor := retry.NewProcessor(
		retry.ProcessorConfig{BatchSize: cfg.Retry.BatchSize},
		repo,
		registry,
		scheduler,
		adapters,
	)
	queue := retry.NewQueue(repo, registry, cfg.Retry.MaxRetries)

	// 5. Admin API
	adminServer := admin.NewServer(queue, processor, health, cfg.Server.Port)

	// 6. Batch trigger. SkipIfStillRunning guards against a slow batch
	// overlapping the next tick; the processor holds its own lock as well.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &Service{
		cfg:         cfg,
		processor:   processor,
		queue:       queue,
		adminServer: adminServer,
		db:          db,
		redisClient: redisCli,
		cron:        c,
		log:         slog.Default(),
	}, nil
}

// Start starts the admin server and the periodic batch trigger.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.adminServer.Start(); err != nil {
			s.log.Error("Admin server failed", "error", err)
		}
	}()

	spec := fmt.Sprintf("@every %s", s.cfg.Retry.ProcessInterval)
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.processor.ProcessRetryQueue(ctx); err != nil {
			s.log.Error("Retry queue batch failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule batch processor: %w", err)
	}
	s.cron.Start()

	s.log.Info("Service started",
		"port", s.cfg.Server.Port,
		"process_interval", s.cfg.Retry.ProcessInterval,
	)
	return nil
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	// Wait for an in-flight batch to finish.
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	return s.adminServer.Stop(ctx)
}
