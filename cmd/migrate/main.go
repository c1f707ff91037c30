// Command migrate creates the Spanner instance and database when missing and
// applies the DDL files under migrations/ that have not run yet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
)

func main() {
	var cfg config
	flag.StringVar(&cfg.project, "project", getEnvOrDefault("SPANNER_PROJECT_ID", "test-project"), "GCP project ID")
	flag.StringVar(&cfg.instance, "instance", getEnvOrDefault("SPANNER_INSTANCE_ID", "dev-instance"), "Spanner instance ID")
	flag.StringVar(&cfg.database, "database", getEnvOrDefault("SPANNER_DATABASE_ID", "farmily-ledger"), "Spanner database ID")
	flag.StringVar(&cfg.dir, "migrations", "migrations", "directory of numbered .sql files")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "list pending migrations without applying them")
	flag.Parse()
	cfg.emulator = os.Getenv("SPANNER_EMULATOR_HOST")

	log := logging.New(logging.Config{Level: os.Getenv("LOG_LEVEL"), Console: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

type config struct {
	project  string
	instance string
	database string
	dir      string
	dryRun   bool
	emulator string
}

func (c config) instancePath() string {
	return fmt.Sprintf("projects/%s/instances/%s", c.project, c.instance)
}

func (c config) databasePath() string {
	return fmt.Sprintf("%s/databases/%s", c.instancePath(), c.database)
}

func run(ctx context.Context, cfg config, log zerolog.Logger) error {
	if cfg.emulator != "" {
		log.Info().Str("host", cfg.emulator).Msg("using Spanner emulator")
	}

	files, err := migrationFiles(cfg.dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Info().Str("dir", cfg.dir).Msg("no migration files")
		return nil
	}

	m, err := newMigrator(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer m.Close()

	// 1. Instance and database
	if err := m.ensureInstance(ctx); err != nil {
		return fmt.Errorf("ensure instance: %w", err)
	}
	if err := m.ensureDatabase(ctx); err != nil {
		return fmt.Errorf("ensure database: %w", err)
	}

	// 2. Bookkeeping table
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	// 3. Pending files in name order
	pending := 0
	for _, f := range files {
		if applied[f.name] {
			log.Debug().Str("migration", f.name).Msg("already applied")
			continue
		}
		pending++
		if cfg.dryRun {
			log.Info().Str("migration", f.name).Int("statements", len(f.statements)).Msg("pending")
			continue
		}
		if err := m.apply(ctx, f); err != nil {
			return fmt.Errorf("apply %s: %w", f.name, err)
		}
		log.Info().Str("migration", f.name).Msg("applied")
	}

	log.Info().Int("pending", pending).Bool("dry_run", cfg.dryRun).Str("database", cfg.databasePath()).Msg("migrations done")
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
