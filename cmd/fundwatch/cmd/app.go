package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oljefondvakt/fundwatch/internal/config"
	"github.com/oljefondvakt/fundwatch/internal/dataset"
	"github.com/oljefondvakt/fundwatch/internal/generation"
	"github.com/oljefondvakt/fundwatch/internal/platform/gemini"
	"github.com/oljefondvakt/fundwatch/internal/platform/logger"
	"github.com/oljefondvakt/fundwatch/internal/platform/memory"
	"github.com/oljefondvakt/fundwatch/internal/platform/postgres"
	redisstore "github.com/oljefondvakt/fundwatch/internal/platform/redis"
	"github.com/oljefondvakt/fundwatch/internal/redact"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// application holds the dependencies shared by the commands and makes sure
// they are released on exit.
type application struct {
	config *config.Config
	logger *slog.Logger
	store  store.InvestmentStore

	// db is set for the postgres backend only.
	db      *sql.DB
	closers []func() error
}

// newApplication loads configuration, sets up logging and opens the
// configured store.
func newApplication(cmd *cobra.Command, v *viper.Viper, opts *rootOptions) (*application, error) {
	cfg, err := config.Load(
		config.WithViper(v),
		config.WithConfigFile(opts.configFile),
		config.WithEnvFile(opts.envFile),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Logs go to stderr so that stdout stays clean for exported data.
	l, err := logger.SetupWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	app := &application{config: cfg, logger: l}
	if err := app.openStore(cmd.Context()); err != nil {
		app.cleanup()
		return nil, err
	}
	l.Debug("application initialized",
		"command", cmd.Name(),
		"store_backend", cfg.Store.Backend,
		"llm_backend", cfg.LLM.Backend)
	return app, nil
}

func (app *application) openStore(ctx context.Context) error {
	cfg := app.config.Store
	switch cfg.Backend {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%w: failed to open database: %s", store.ErrUnavailable, redact.Error(err))
		}
		app.db = db
		app.closers = append(app.closers, db.Close)
		app.store = postgres.NewInvestmentStore(db, app.logger)
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		app.store = redisstore.NewInvestmentStore(client, cfg.RedisPrefix, app.logger)
	default:
		s := memory.NewInvestmentStore()
		app.store = s
		return app.seedMemory(ctx, s)
	}
	return nil
}

// seedMemory loads the snapshot as is into a fresh memory store so that
// every command has data to work on without an external database.
func (app *application) seedMemory(ctx context.Context, s *memory.InvestmentStore) error {
	path := app.config.Paths.Snapshot
	items, err := dataset.LoadSnapshot(path)
	if errors.Is(err, os.ErrNotExist) {
		app.logger.Warn("memory store is empty, snapshot not found", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := store.WriteChunked(ctx, s, items); err != nil {
		return fmt.Errorf("failed to seed memory store: %w", err)
	}
	app.logger.Warn("using the memory store, results are not persisted",
		"path", path,
		"items", len(items))
	return nil
}

// generator creates the report generator for the configured backend.
func (app *application) generator(ctx context.Context) (generation.Generator, error) {
	g, err := gemini.NewGenerator(ctx, app.logger.With("component", "llm_generator"), app.config.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	return g, nil
}

// cleanup releases resources in reverse order of acquisition.
func (app *application) cleanup() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error("error releasing resource", "error", err)
		}
	}
	app.closers = nil
}

// withApp runs fn with a fully initialized application.
func withApp(
	v *viper.Viper,
	opts *rootOptions,
	fn func(cmd *cobra.Command, app *application, args []string) error,
) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := bindConfigFlags(v, cmd); err != nil {
			return err
		}
		app, err := newApplication(cmd, v, opts)
		if err != nil {
			return err
		}
		defer app.cleanup()
		return fn(cmd, app, args)
	}
}
