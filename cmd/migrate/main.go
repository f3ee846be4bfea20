// Package main provides the species store migration runner.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"

	"github.com/cory-johannsen/pokeduel/internal/config"
	"github.com/cory-johannsen/pokeduel/internal/storage/postgres"
	"github.com/cory-johannsen/pokeduel/internal/storage/sqlite"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file")
	driver := flag.String("driver", "", "storage driver to migrate: postgres or sqlite (default storage.driver)")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *driver == "" {
		*driver = cfg.Storage.Driver
	}

	m, err := newMigrator(*driver, cfg)
	if err != nil {
		log.Fatalf("creating migrator: %v", err)
	}
	defer m.Close()

	err = run(m, *direction, *steps)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration failed: %v", err)
	}

	version, dirty, _ := m.Version()
	elapsed := time.Since(start)

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintf(os.Stdout, "%s: no changes (version=%d dirty=%v) [%s]\n", *driver, version, dirty, elapsed)
	} else {
		fmt.Fprintf(os.Stdout, "%s: migrated %s to version=%d dirty=%v [%s]\n", *driver, *direction, version, dirty, elapsed)
	}
}

// newMigrator opens the embedded schema for driver against the configured database.
func newMigrator(driver string, cfg config.Config) (*migrate.Migrate, error) {
	switch driver {
	case config.StoragePostgres:
		return postgres.NewMigrator(cfg.Database.DSN())
	case config.StorageSQLite:
		return sqlite.NewMigrator(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("driver %q has no schema: must be %q or %q", driver, config.StoragePostgres, config.StorageSQLite)
	}
}

func run(m *migrate.Migrate, direction string, steps int) error {
	switch direction {
	case "up":
		if steps > 0 {
			return m.Steps(steps)
		}
		return m.Up()
	case "down":
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	default:
		return fmt.Errorf("invalid direction %q: must be 'up' or 'down'", direction)
	}
}
