package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/alerts"
	"github.com/rentfolio/rentfolio/internal/config"
	"github.com/rentfolio/rentfolio/internal/database"
	"github.com/rentfolio/rentfolio/internal/database/portfolio"
	"github.com/rentfolio/rentfolio/internal/database/rawevents"
	"github.com/rentfolio/rentfolio/internal/database/settings"
	"github.com/rentfolio/rentfolio/internal/database/syncruns"
	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/ingest"
	"github.com/rentfolio/rentfolio/internal/propertyware"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

// SyncCommand runs a single sync against the provider API in the
// foreground, without the HTTP server or task queue.
type SyncCommand struct {
	Mode         string
	DatabasePath string
	Force        bool
	Verbose      bool
}

func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	fs.StringVar(&cmd.Mode, "mode", string(entities.SyncModeIncremental), "Sync mode: 'incremental' (changes since last successful run) or 'full'")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local database file")
	fs.BoolVar(&cmd.Force, "force", false, "Start the sync even if another run appears to be active")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Fetch properties, units, leases, transactions, work orders, vendors\n")
		fmt.Fprintf(os.Stderr, "and bills from the provider API and reconcile them into the local\n")
		fmt.Fprintf(os.Stderr, "database. The run blocks until it reaches a terminal state.\n\n")
		fmt.Fprintf(os.Stderr, "API credentials are read from stored settings, or from the\n")
		fmt.Fprintf(os.Stderr, "PW_CLIENT_ID, PW_CLIENT_SECRET and PW_ORG_ID environment variables.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Incremental sync since the last successful run:\n")
		fmt.Fprintf(os.Stderr, "  %s sync\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Re-fetch everything regardless of the watermark:\n")
		fmt.Fprintf(os.Stderr, "  %s sync -mode full\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	mode := entities.SyncMode(cmd.Mode)
	if mode != entities.SyncModeIncremental && mode != entities.SyncModeFull {
		return fmt.Errorf("invalid -mode %q: must be 'incremental' or 'full'", cmd.Mode)
	}

	return nil
}

func (cmd *SyncCommand) Run() error {
	log := logrus.New()
	if cmd.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	db, err := database.NewDatabase(cmd.DatabasePath, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("error closing database")
		}
	}()

	runs := syncruns.NewRepository(db.DB)
	store := settingsstore.New(settings.NewRepository(db.DB))

	engine := ingest.NewEngine(
		runs,
		rawevents.NewRepository(db.DB),
		portfolio.NewRepository(db.DB),
		store,
		ingest.NewClientSource(propertyware.DefaultOptions()),
		alerts.NewService(db.DB, store, &alerts.LogNotifier{Log: log}, alerts.DefaultFailureThreshold, log),
		log,
	)

	// The enqueuer executes inline so the command blocks until the run
	// finishes.
	service := ingest.NewService(runs, engine.Execute, log)

	fmt.Printf("Starting %s sync...\n", cmd.Mode)
	started := time.Now()

	run, err := service.StartRun(context.Background(), entities.SyncMode(cmd.Mode), cmd.Force)
	if err != nil {
		return fmt.Errorf("sync failed to start: %w", err)
	}

	// StartRun already ran the enqueuer, so the run is terminal; reload
	// it for the final counters.
	run, err = runs.Get(run.ID)
	if err != nil {
		return fmt.Errorf("failed to reload run: %w", err)
	}

	fmt.Printf("\nRun #%d finished with status %q in %s\n", run.ID, run.Status, time.Since(started).Round(time.Millisecond))

	if run.Status == entities.SyncRunStatusFailed {
		if run.ErrorSummary != "" {
			return fmt.Errorf("sync failed: %s", run.ErrorSummary)
		}
		return fmt.Errorf("sync failed")
	}

	printRunSummary(run)
	return nil
}

func printRunSummary(run *entities.SyncRun) {
	fmt.Println("\nResults by resource:")
	for _, resource := range entities.ResourceSyncOrder {
		metric, ok := run.Metadata.ResourceMetrics[resource]
		if !ok {
			continue
		}
		fmt.Printf("  %-12s created=%d updated=%d skipped=%d errors=%d (%dms)\n",
			resource, metric.Created, metric.Updated, metric.Skipped, metric.Errors, metric.DurationMS)
	}
	fmt.Printf("\nTotal: %d resources reconciled, %d errors\n", run.ResourceCount, run.ErrorCount)
}
