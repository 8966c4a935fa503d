package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"mysubs/internal/backend"
	"mysubs/internal/cli"
	"mysubs/internal/storage"
	"mysubs/internal/storage/postgres"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending schema migrations" }
func (*migrateCmd) Usage() string {
	return `mysubsctl migrate

  Applies the embedded migrations to the backend selected by DATA_BACKEND
  (sqlite or postgres).
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger := cli.LoadAndValidateConfig(os.Stderr)

	switch backend.BackendType(cfg.DataBackend) {
	case backend.SQLiteBackend:
		version, err := storage.RunMigrations(cfg.SQLiteDBPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		logger.Info("SQLite schema up to date", "path", cfg.SQLiteDBPath, "version", version)
	case backend.PostgresBackend:
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		logger.Info("Postgres schema up to date")
	default:
		fmt.Fprintf(os.Stderr, "backend %q has no schema\n", cfg.DataBackend)
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}
