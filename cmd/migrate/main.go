package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"claimease/internal/config"
	"claimease/internal/logging"
	"claimease/internal/store/postgres"
)

const usage = "Usage: migrate [up|down|steps N|version]"

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store.Backend != "postgres" {
		return fmt.Errorf("store backend is %q; migrations only apply to postgres", cfg.Store.Backend)
	}
	logger := logging.Setup(cfg.Log)

	dir := os.Getenv("CLAIMEASE_MIGRATIONS_DIR")
	if dir == "" {
		dir = "db/migrations"
	}
	m, err := migrate.New("file://"+dir, cfg.Store.DB.DSN())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
	case "steps":
		if len(args) < 2 {
			return errors.New("steps requires a number argument")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid steps argument: %w", err)
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration steps failed: %w", err)
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("migrate: no migrations applied", "table", postgres.TableName, "database", cfg.Store.DB.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	logger.Info("migrate: done",
		"command", args[0],
		"version", version,
		"dirty", dirty,
		"table", postgres.TableName,
		"database", cfg.Store.DB.Name,
	)
	return nil
}
