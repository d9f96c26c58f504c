package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/bioneo/stakeledger/internal/config"
	"github.com/bioneo/stakeledger/internal/repository"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCommand() *cobra.Command {
	var dsn string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Runs the journal schema migrations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "postgres DSN (defaults to LEDGER_POSTGRES_DSN)")

	run := func(use, short string, fn func(db *sql.DB) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := open(dsn)
				if err != nil {
					return err
				}
				defer db.Close()
				return fn(db)
			},
		}
	}

	root.AddCommand(
		run("up", "Migrates the journal to the latest version", func(db *sql.DB) error {
			return goose.Up(db, repository.MigrationsDir)
		}),
		run("down", "Rolls back the latest migration", func(db *sql.DB) error {
			return goose.Down(db, repository.MigrationsDir)
		}),
		run("status", "Prints the migration status", func(db *sql.DB) error {
			return goose.Status(db, repository.MigrationsDir)
		}),
	)
	return root
}

func open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		dsn = cfg.Database.PostgresDSN
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "no database configured: set LEDGER_POSTGRES_DSN or --dsn")
		os.Exit(2)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	goose.SetBaseFS(repository.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set dialect: %w", err)
	}
	return db, nil
}
