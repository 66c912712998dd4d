package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cattools/cattools/internal/budget"
	"github.com/cattools/cattools/internal/categories"
	"github.com/cattools/cattools/internal/cli/config"
	"github.com/cattools/cattools/internal/finder"
	"github.com/cattools/cattools/internal/logging"
	"github.com/cattools/cattools/internal/scribunto"
	"github.com/cattools/cattools/internal/store"
)

// app is the wiring shared by the commands: configuration, logger, replica
// and the toolbox built on top of it
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *store.DB
	toolbox *categories.Toolbox
}

// openApp loads configuration and connects to the replica
func openApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("failed to connect to replica: %w", err)
	}

	f := finder.NewSQLFinder(db, db.Schema, logger).WithBatchSize(cfg.Limits.BatchSize)
	tb := categories.New(db, db.Schema,
		categories.WithLimits(cfg.CategoryLimits()),
		categories.WithFinder(f),
		categories.WithLogger(logger),
	)

	return &app{cfg: cfg, logger: logger, db: db, toolbox: tb}, nil
}

// render returns a toolbox with a fresh in-memory budget. One CLI
// invocation counts as one render.
func (a *app) render() *categories.Toolbox {
	return a.toolbox.ForRender(budget.NewLimited(a.cfg.Budget.Limit))
}

// counters builds the per-render budget source for the configured backend.
// The returned close function releases the backend.
func (a *app) counters(ctx context.Context) (scribunto.CounterSource, func() error, error) {
	switch a.cfg.Budget.Backend {
	case config.BudgetRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		rb, err := budget.NewRedisBudget(budget.RedisBudgetConfig{
			Client: client,
			Limit:  a.cfg.Budget.Limit,
			TTL:    a.cfg.Budget.TTL,
			Prefix: a.cfg.Redis.KeyPrefix,
		})
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		a.logger.Info("using redis expensive-call budget", zap.String("addr", a.cfg.Redis.Addr))
		return rb.ForRender, client.Close, nil
	default:
		return scribunto.LimitedCounters(a.cfg.Budget.Limit), func() error { return nil }, nil
	}
}

// engine builds a Lua engine over the toolbox
func (a *app) engine(counters scribunto.CounterSource) *scribunto.Engine {
	return scribunto.NewEngine(a.toolbox,
		scribunto.WithCounters(counters),
		scribunto.WithEngineLogger(a.logger),
	)
}

// Close releases the replica and flushes the logger
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close replica", zap.Error(err))
	}
	a.logger.Sync()
}
