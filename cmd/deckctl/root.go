package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/deckgen-api/internal/config"
	"github.com/phrazzld/deckgen-api/internal/platform/logger"
	"github.com/phrazzld/deckgen-api/internal/platform/postgres"
	"github.com/spf13/cobra"
)

// deps are the process-level hooks the commands use, replaceable in tests.
type deps struct {
	loadConfig func() (*config.Config, error)
	openDB     func(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: func() (*config.Config, error) { return config.LoadUnvalidated(".") },
		openDB:     postgres.Open,
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	deps     deps
	dbURL    string
	logLevel string
}

func newRootCmd(d deps) *cobra.Command {
	c := &cli{deps: d}

	root := &cobra.Command{
		Use:           "deckctl",
		Short:         "Operate the deckgen API database and tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.dbURL, "db", "", "database URL (overrides DECKGEN_DATABASE_URL)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(
		c.newMigrateCmd(),
		c.newReconcileCmd(),
		c.newTasksCmd(),
		c.newTokenCmd(),
	)
	return root
}

// config loads configuration and applies flag overrides.
func (c *cli) config() (*config.Config, error) {
	cfg, err := c.deps.loadConfig()
	if err != nil {
		return nil, err
	}
	if c.dbURL != "" {
		cfg.Database.URL = c.dbURL
	}
	return cfg, nil
}

// logger writes human-readable logs to stderr so stdout stays parseable.
func (c *cli) logger() *slog.Logger {
	level, ok := logger.ParseLevel(c.logLevel)
	if !ok {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openDB connects using the configured database URL. The caller closes it.
func (c *cli) openDB(ctx context.Context) (*sql.DB, *config.Config, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("database URL required: set --db or DECKGEN_DATABASE_URL")
	}

	db, err := c.deps.openDB(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect: %w", err)
	}
	return db, cfg, nil
}
