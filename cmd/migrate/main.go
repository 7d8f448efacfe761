// Command migrate applies the embedded schema migrations.
//
// Usage:
//
//	migrate [up]            apply all pending migrations
//	migrate down [steps]    roll back steps migrations (default 1)
//	migrate force <version> mark version as applied after a failed run
//	migrate version         print the current schema version
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	appconfig "github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/config"
	appmigrations "github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/migrations"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).With("component", "migrate")

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	m, closeDB, err := newMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to initialise migrator", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	if err := run(m, os.Args[1:]); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Error("failed to read schema version", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "version", version, "dirty", dirty)
}

func newMigrator(databaseURL string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}

type migrator interface {
	Up() error
	Steps(n int) error
	Force(version int) error
}

func run(m migrator, args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
		return nil
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		return nil
	case "force":
		if len(args) < 2 {
			return errors.New("force requires a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		return m.Force(version)
	case "version":
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}
