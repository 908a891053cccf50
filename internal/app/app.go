package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/gomarketplace/internal/config"
	handler "github.com/utafrali/gomarketplace/internal/handler/http"
	"github.com/utafrali/gomarketplace/internal/storage"
	"github.com/utafrali/gomarketplace/internal/storage/memory"
	pgstorage "github.com/utafrali/gomarketplace/internal/storage/postgres"
	redisstorage "github.com/utafrali/gomarketplace/internal/storage/redis"
	"github.com/utafrali/gomarketplace/internal/store"
	"github.com/utafrali/gomarketplace/pkg/database"
	apperrors "github.com/utafrali/gomarketplace/pkg/errors"
	"github.com/utafrali/gomarketplace/pkg/health"
	"github.com/utafrali/gomarketplace/pkg/tracing"
)

// App wires together all dependencies and runs the cart.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	backend        storage.KV
	closeStorage   func()
	store          *store.Store
	httpServer     *http.Server
	shutdownTracer func(context.Context) error
}

// NewApp creates a new application instance, connecting to the configured
// storage backend.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	database.SetSlowCallLogging(cfg.SlowCallThreshold(), logger)

	backend, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTracer(context.Background())
		return nil, err
	}

	kv := storage.NewBreaker(backend, storage.DefaultBreakerConfig(cfg.StorageBackend), logger)
	cart := store.New(kv, logger, cfg.StoreOptions())

	healthHandler := health.NewHandler()
	healthHandler.Register("storage", kv.Ping)
	healthHandler.Register("cart", health.Signal(cart.Ready()))

	router := handler.NewRouter(cart, healthHandler, logger, handler.RouterConfig{
		ServiceName: cfg.ServiceName,
		CORSOrigins: cfg.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		backend:        backend,
		closeStorage:   closeStorage,
		store:          cart,
		httpServer:     httpServer,
		shutdownTracer: shutdownTracer,
	}, nil
}

// openStorage connects the configured backend. The returned func releases its
// connections.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.KV, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, nil, apperrors.Wrap(err, "connect to redis")
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		return redisstorage.NewKV(rdb, cfg.TTL()), func() {
			if err := rdb.Close(); err != nil {
				logger.Error("redis close error", slog.String("error", err.Error()))
			}
		}, nil

	case config.BackendPostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, "connect to postgres")
		}
		kv := pgstorage.NewKV(pool)
		if err := kv.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, apperrors.Wrap(err, "prepare cart table")
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", pgCfg.Host),
			slog.String("database", pgCfg.DBName),
		)
		return kv, pool.Close, nil

	case config.BackendMemory:
		logger.Warn("using in-memory storage, the cart will not survive a restart")
		return memory.New(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// Handler returns the HTTP handler serving the cart API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run loads the stored cart, starts the HTTP server and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.store.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown stops the HTTP server, writes the final cart snapshot and closes
// the storage connections.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	var errs []error
	if err := a.store.Close(ctx); err != nil {
		a.logger.Error("final cart write failed", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.closeStorage()

	if err := a.shutdownTracer(ctx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
