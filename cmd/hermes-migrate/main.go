// Package main is the entry point for the Hermes database migration tool.
// It manages the PostgreSQL schema; SQLite deployments migrate in-process
// at server startup and do not need this tool.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/hermes-users/internal/config"
	"github.com/prn-tf/hermes-users/internal/repository/postgres"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Hermes Users Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := withDB(func(ctx context.Context, db *postgres.DB) error {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			version, err := db.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Schema is up to date at version %d\n", version)
			return nil
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := withDB(func(ctx context.Context, db *postgres.DB) error {
			version, err := db.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Println("No migrations applied")
			} else {
				fmt.Printf("Current migration version: %d\n", version)
			}
			return nil
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// withDB connects to the configured PostgreSQL database and runs fn.
func withDB(fn func(ctx context.Context, db *postgres.DB) error) error {
	cfg, err := config.Load(os.Getenv("HERMES_CONFIG"))
	if err != nil {
		return err
	}
	if cfg.Database.IsEmbedded() {
		return fmt.Errorf("migration tool only supports the postgres driver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	logger := zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	db, err := postgres.NewDB(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, db)
}

func printUsage() {
	fmt.Println(`Hermes Users Migration Tool

Usage:
  hermes-migrate <command>

Commands:
  up          Apply all pending migrations
  status      Show the current migration version
  version     Print version information
  help        Show this help message

Environment Variables:
  HERMES_CONFIG             Path to the configuration file (optional)
  HERMES_DATABASE_HOST      PostgreSQL host
  HERMES_DATABASE_USER      PostgreSQL user
  HERMES_DATABASE_PASSWORD  PostgreSQL password
  HERMES_DATABASE_DATABASE  PostgreSQL database name

Examples:
  hermes-migrate up
  hermes-migrate status`)
}
