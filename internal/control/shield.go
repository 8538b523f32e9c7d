// Package control wires the resilience-layer components together and
// manages their lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/shield/internal/auth"
	"github.com/vietddude/shield/internal/connectivity"
	"github.com/vietddude/shield/internal/core/config"
	"github.com/vietddude/shield/internal/health"
	redisclient "github.com/vietddude/shield/internal/infra/redis"
	"github.com/vietddude/shield/internal/infra/storage"
	"github.com/vietddude/shield/internal/infra/storage/memory"
	"github.com/vietddude/shield/internal/infra/storage/postgres"
	"github.com/vietddude/shield/internal/perf"
	"github.com/vietddude/shield/internal/recovery"
)

// Shield is the composition root owning the resilience components.
type Shield struct {
	cfg          config.AppConfig
	monitor      *connectivity.Monitor
	engine       *recovery.Engine
	verifier     *auth.Verifier
	stateCache   *auth.StateCache
	perfMon      *perf.Monitor
	healthServer *health.Server
	store        *memory.MemoryStorage
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// New creates a Shield instance with all dependencies initialized.
func New(cfg config.AppConfig) (*Shield, error) {
	log := slog.Default()

	// 1. Initialize the authorization store
	var roleRepo storage.RoleRepository
	var resolver auth.PrincipalResolver
	var store *memory.MemoryStorage
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		roleRepo = postgres.NewRoleRepo(db)
		// The live session still resolves in-process.
		store = memory.NewMemoryStorage()
		resolver = store
		log.Info("Using PostgreSQL authorization store")
	} else {
		store = memory.NewMemoryStorage()
		roleRepo = memory.NewRoleRepo(store)
		resolver = store
		log.Info("Using in-memory authorization store")
	}

	// 2. Auth snapshot cache, optionally persisted in redis
	var cacheOpts []auth.StateCacheOption
	if cfg.Auth.SnapshotTTL > 0 {
		cacheOpts = append(cacheOpts, auth.WithTTL(cfg.Auth.SnapshotTTL))
	}
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		cacheOpts = append(cacheOpts, auth.WithSnapshotStore(redisClient))
		log.Info("Auth snapshot persistence enabled")
	}
	stateCache := auth.NewStateCache(log, cacheOpts...)

	// 3. Connectivity monitor
	prober, err := buildProber(cfg.Prober)
	if err != nil {
		return nil, err
	}
	monitor := connectivity.NewMonitor(cfg.Connectivity, prober, nil, log)

	// 4. Permission verifier
	verifier, err := auth.NewVerifier(resolver, roleRepo, stateCache, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init verifier: %w", err)
	}

	// 5. Performance monitor
	perfMon := perf.NewMonitor(cfg.Performance, log)

	// 6. Recovery engine
	engine := recovery.NewEngine(recovery.Options{
		Monitor:   monitor,
		Snapshots: stateCache,
		Perf:      perfMon,
		Logout: func(ctx context.Context) error {
			store.ClearPrincipal()
			return nil
		},
		Log: log,
	})

	// 7. Health endpoint
	healthMon := health.NewMonitor(monitor, engine, perfMon)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	return &Shield{
		cfg:          cfg,
		monitor:      monitor,
		engine:       engine,
		verifier:     verifier,
		stateCache:   stateCache,
		perfMon:      perfMon,
		healthServer: healthServer,
		store:        store,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

func buildProber(cfg config.ProberConfig) (connectivity.Prober, error) {
	switch cfg.Kind {
	case "grpc":
		prober, err := connectivity.NewGRPCProber(cfg.Name, cfg.Endpoint, cfg.Service)
		if err != nil {
			return nil, fmt.Errorf("failed to create grpc prober: %w", err)
		}
		return prober, nil
	case "http", "":
		return connectivity.NewHTTPProber(cfg.Name, cfg.Endpoint, connectivity.DefaultConfig.ProbeTimeout), nil
	default:
		return nil, fmt.Errorf("unknown prober kind %q", cfg.Kind)
	}
}

// Start launches the background loops and the health server.
func (s *Shield) Start(ctx context.Context) error {
	s.monitor.StartReconnection()
	s.perfMon.StartJanitor()

	go func() {
		if err := s.healthServer.Start(); err != nil && ctx.Err() == nil {
			s.log.Error("Health server stopped", "error", err)
		}
	}()

	s.log.Info("Shield started", "port", s.cfg.Server.Port)
	return nil
}

// Stop shuts everything down gracefully.
func (s *Shield) Stop(ctx context.Context) error {
	s.monitor.StopReconnection()
	s.perfMon.StopJanitor()

	if err := s.healthServer.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop health server: %w", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close redis client", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	s.log.Info("Shield stopped")
	return nil
}

// Monitor exposes the connectivity monitor to the embedding application.
func (s *Shield) Monitor() *connectivity.Monitor { return s.monitor }

// Engine exposes the recovery engine.
func (s *Shield) Engine() *recovery.Engine { return s.engine }

// Verifier exposes the permission verifier.
func (s *Shield) Verifier() *auth.Verifier { return s.verifier }

// StateCache exposes the auth snapshot cache.
func (s *Shield) StateCache() *auth.StateCache { return s.stateCache }

// Perf exposes the performance monitor.
func (s *Shield) Perf() *perf.Monitor { return s.perfMon }

// Session exposes the in-process session store.
func (s *Shield) Session() *memory.MemoryStorage { return s.store }
