package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/duckbot/internal/config"
	"github.com/tbourn/duckbot/internal/repo"
	"github.com/tbourn/duckbot/internal/sysutil"
)

// Version is set via ldflags at build time.
var Version = "dev"

// app carries state resolved once by the root command for its subcommands.
type app struct {
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "duckbot",
		Short: "Socratic tutoring bots for Slack",
		Long: `duckbot serves the Slack Events API webhook for one or more bot
identities (duck, goose, ...) that guide students toward answers instead of
giving them away. The remaining commands inspect and maintain the
conversation store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	cmd.PersistentFlags().String("env-file", ".env", "dotenv file to read before the environment (missing file is ignored)")
	cmd.PersistentFlags().String("log-level", "", "override LOG_LEVEL: debug|info|warn|error")

	cmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newStatsCmd(a),
		newQueriesCmd(a),
		newPurgeUserCmd(a),
		newAdminTokenCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotenv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	level, _ := cmd.Flags().GetString("log-level")
	sysutil.SetupLogger(cmd.ErrOrStderr(), sysutil.FirstNonEmpty(level, cfg.LogLevel), cfg.LogPretty)
	a.cfg = cfg
	return nil
}

// open opens the conversation store without touching its schema.
func (a *app) open() (*gorm.DB, func(), error) {
	db, err := repo.Open(a.cfg.DatabaseURL, repo.Options{
		Tracing: a.cfg.OTEL.Enabled,
		Silent:  a.cfg.LogLevel != "debug",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return db, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

// openDB opens the conversation store and brings its schema up to date.
func (a *app) openDB(ctx context.Context) (*gorm.DB, func(), error) {
	db, closeFn, err := a.open()
	if err != nil {
		return nil, nil, err
	}
	if _, err := repo.Migrate(ctx, db); err != nil {
		closeFn()
		return nil, nil, err
	}
	return db, closeFn, nil
}

func (a *app) requireTenant(id string) error {
	if _, ok := a.cfg.Tenant(id); !ok {
		return fmt.Errorf("unknown tenant %q", id)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the duckbot version",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "duckbot %s\n", Version)
		},
	}
}
