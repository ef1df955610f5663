package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/yangluo1024/store-contracts/internal/config"
	"github.com/yangluo1024/store-contracts/internal/economy"
	"github.com/yangluo1024/store-contracts/internal/scheduler"
	"github.com/yangluo1024/store-contracts/internal/service"
	"github.com/yangluo1024/store-contracts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newEconomy() (*economy.Economy, error) {
	params, err := a.Config.Economy.Params()
	if err != nil {
		return nil, err
	}
	return economy.New(params, nil), nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running sealing service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eco, err := a.newEconomy()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}
	if store != nil {
		if err := store.Migrate(ctx, a.Config.Database.MigrationsPath); err != nil {
			return err
		}
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToGrid:  a.Config.Scheduler.AlignToGrid,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	var epochStore storage.EpochStore
	var snapshotStore storage.SnapshotStore
	if store != nil {
		epochStore = store
		snapshotStore = store
	}

	svc := service.New(eco, sched, epochStore, snapshotStore, a.Logger)
	if err := svc.Restore(ctx); err != nil {
		return err
	}

	a.Logger.Info().
		Str("owner", a.Config.Economy.Owner).
		Dur("epoch_interval", a.Config.Economy.EpochInterval).
		Msg("starting emission service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("emission service stopped")
	return nil
}

// ExportOptions hold parameters for exporting epoch history.
type ExportOptions struct {
	Stream    string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions configure the local scenario run.
type SimulateOptions struct {
	Accounts int
	Days     int
	Seed     int64
}
