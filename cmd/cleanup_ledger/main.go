// Command cleanup_ledger prunes relayed and parked action events from the
// outbox. Ledger rows in chain_actions are kept.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/benomayebu/Farmily-Docs/internal/models/m_action_event"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/query"
)

type config struct {
	database          string
	completedRetained time.Duration
	failedRetained    time.Duration
	dryRun            bool
}

func main() {
	var (
		cfg                     config
		completedDays, failDays int
	)
	flag.StringVar(&cfg.database, "database", os.Getenv("SPANNER_DATABASE"), "projects/P/instances/I/databases/D")
	flag.IntVar(&completedDays, "completed-retention", 30, "days to keep completed events")
	flag.IntVar(&failDays, "failed-retention", 90, "days to keep failed events")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "count what would be deleted")
	flag.Parse()
	cfg.completedRetained = time.Duration(completedDays) * 24 * time.Hour
	cfg.failedRetained = time.Duration(failDays) * 24 * time.Hour

	log := logging.New(logging.Config{Level: os.Getenv("LOG_LEVEL"), Console: true})
	if cfg.database == "" {
		log.Fatal().Msg("-database or SPANNER_DATABASE is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := spanner.NewClient(ctx, cfg.database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Spanner client")
	}
	defer client.Close()

	n, err := cleanup(ctx, client, cfg, clock.NewRealClock(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("cleanup failed")
	}
	log.Info().Int64("events", n).Bool("dry_run", cfg.dryRun).Msg("cleanup done")
}

// expired returns one selector per status that is safe to prune.
func expired(cfg config, now time.Time) map[string]*query.Builder {
	sel := func(status string, keep time.Duration) *query.Builder {
		return query.From(m_action_event.TableName).
			Where(query.Eq(m_action_event.Status, status)).
			Where(query.Lt(m_action_event.ProcessedAt, now.Add(-keep)))
	}
	return map[string]*query.Builder{
		m_action_event.StatusCompleted: sel(m_action_event.StatusCompleted, cfg.completedRetained),
		m_action_event.StatusFailed:    sel(m_action_event.StatusFailed, cfg.failedRetained),
	}
}

func cleanup(ctx context.Context, client *spanner.Client, cfg config, clk clock.Clock, log zerolog.Logger) (int64, error) {
	var total int64
	for status, sel := range expired(cfg, clk.Now().UTC()) {
		var (
			n   int64
			err error
		)
		if cfg.dryRun {
			n, err = count(ctx, client, sel.Count().Build())
		} else {
			// Partitioned DML: the delete can exceed one transaction's
			// mutation limit.
			n, err = client.PartitionedUpdate(ctx, sel.Delete().Build())
		}
		if err != nil {
			return total, fmt.Errorf("%s events: %w", status, err)
		}
		log.Info().Str("status", status).Int64("events", n).Bool("dry_run", cfg.dryRun).Msg("expired events")
		total += n
	}
	return total, nil
}

func count(ctx context.Context, client *spanner.Client, stmt spanner.Statement) (int64, error) {
	iter := client.Single().Query(ctx, stmt)
	defer iter.Stop()

	row, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Columns(&n); err != nil {
		return 0, err
	}
	return n, nil
}
