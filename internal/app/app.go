package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"HappyPlaceLocal/internal/apikey"
	"HappyPlaceLocal/internal/config"
	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/hooks"
	"HappyPlaceLocal/internal/infrastructure/httpapi"
	"HappyPlaceLocal/internal/infrastructure/llm"
	"HappyPlaceLocal/internal/infrastructure/lock"
	"HappyPlaceLocal/internal/infrastructure/places"
	"HappyPlaceLocal/internal/infrastructure/scheduler"
	"HappyPlaceLocal/internal/infrastructure/storage"
	"HappyPlaceLocal/internal/infrastructure/storage/memstore"
	"HappyPlaceLocal/internal/infrastructure/telegram"
	"HappyPlaceLocal/internal/logging"
	"HappyPlaceLocal/internal/ports"
	"HappyPlaceLocal/internal/stage"
	"HappyPlaceLocal/internal/usecase"
)

// DriverMemory keeps all state in process; useful for dry runs.
const DriverMemory = "memory"

// Store is everything the pipeline persists.
type Store interface {
	ports.IngestStore
	ports.ContentStore
	ports.OptionStore
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db    *sql.DB
	redis *redis.Client

	Store    Store
	Hooks    *hooks.Hooks
	Pipeline *usecase.Pipeline
	Runner   *usecase.Runner
}

// New builds the application. The database is opened but not migrated.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	var locker ports.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := lockTTL(cfg)
		if ttl != cfg.Redis.LockTTL {
			baseLogger.Warn("redis lock ttl raised above stage timeout", "configured", cfg.Redis.LockTTL, "effective", ttl)
		}
		locker = lock.NewRedisLocker(a.redis, ttl, baseLogger.With("component", "lock"))
	}

	a.Hooks = hooks.New(baseLogger.With("component", "hooks"))
	notifier := telegram.NewNotifier(cfg.Notifications.Telegram)
	if notifier.Enabled() {
		telegram.Subscribe(a.Hooks, notifier)
	}

	chat := llm.NewOpenAIClient(cfg.OpenAI, baseLogger.With("component", "llm"))
	placesClient := places.NewGoogleClient(cfg.Places, baseLogger.With("component", "places"))
	keys := apikey.Default(a.Store, cfg.Places.OptionName, cfg.Places.ConfigFile)

	registry := stage.NewRegistry()
	registry.Register(usecase.NewClassifier(chat, a.Store))
	registry.Register(usecase.NewEnricher(a.Store, placesClient, keys, usecase.EnricherOptions{
		PhotoBaseURL: cfg.Places.PhotoBaseURL,
		Logger:       baseLogger.With("component", "enrich"),
	}))
	registry.Register(usecase.NewScorer(a.Store, a.Hooks))
	registry.Register(usecase.NewRewriter(chat, a.Store))
	registry.Register(usecase.NewPublisher(a.Store, a.Store, a.Hooks, cfg.Pipeline.PublishThreshold, baseLogger.With("component", "publish")))

	a.Pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Store:        a.Store,
		Registry:     registry,
		Locker:       locker,
		Hooks:        a.Hooks,
		Logger:       baseLogger.With("component", "pipeline"),
		StageTimeout: cfg.Pipeline.StageTimeout,
	})
	a.Runner = usecase.NewRunner(a.Pipeline, a.Store, cfg.Pipeline.BatchSize, cfg.Pipeline.Workers, baseLogger.With("component", "runner"))
	return a, nil
}

// lockTTL keeps the Redis lock alive for at least two stage timeouts so a
// slow handler never outlives its lock.
func lockTTL(cfg config.Config) time.Duration {
	stageTimeout := cfg.Pipeline.StageTimeout
	if stageTimeout <= 0 {
		stageTimeout = usecase.DefaultStageTimeout
	}
	if floor := 2 * stageTimeout; cfg.Redis.LockTTL < floor {
		return floor
	}
	return cfg.Redis.LockTTL
}

func (a *Application) openStore(ctx context.Context) error {
	if a.cfg.Database.Driver == DriverMemory {
		a.Store = memstore.New()
		return nil
	}
	db, err := storage.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.Store = storage.NewStore(db, a.cfg.Database.Driver)
	return nil
}

// Migrate applies pending schema migrations. It is a no-op for the memory driver.
func (a *Application) Migrate() (uint, error) {
	if a.db == nil {
		return 0, nil
	}
	version, dirty, err := storage.Migrate(a.db, a.cfg.Database.Driver)
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	a.logger.Info("schema migrated", "driver", a.cfg.Database.Driver, "version", version)
	return version, nil
}

// Run executes one step for one item.
func (a *Application) Run(ctx context.Context, id int64, step domain.Step) (domain.Outcome, error) {
	return a.Pipeline.Run(ctx, id, step)
}

// Advance runs the next step for one item.
func (a *Application) Advance(ctx context.Context, id int64) (domain.Outcome, error) {
	return a.Pipeline.Advance(ctx, id)
}

// Drain processes one batch waiting for step.
func (a *Application) Drain(ctx context.Context, step domain.Step) (usecase.DrainReport, error) {
	return a.Runner.Drain(ctx, step)
}

// Serve starts the periodic runner and the HTTP trigger API and blocks until
// ctx is cancelled or the listener fails.
func (a *Application) Serve(ctx context.Context) error {
	sched := usecase.NewScheduler(
		scheduler.NewTickerScheduler(a.cfg.Pipeline.TickInterval),
		a.Runner,
		a.logger.With("component", "scheduler"),
	)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	writeTimeout := 2 * a.cfg.Pipeline.StageTimeout
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Minute
	}
	handler := httpapi.NewHandler(a.Store, a.Pipeline, a.Runner)
	server := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      httpapi.NewServer(handler, a.logger.With("component", "http")),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler stop", "error", err)
	}
	return runErr
}

// Close releases the database and Redis connections.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
