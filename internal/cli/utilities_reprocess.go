package cli

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/config"
	"github.com/rentfolio/rentfolio/internal/database"
	"github.com/rentfolio/rentfolio/internal/reclassify"
)

// UtilitiesReprocessCommand rebuilds derived utility expenses from the
// stored bill lines.
type UtilitiesReprocessCommand struct {
	From         string
	To           string
	DatabasePath string
	Force        bool
	Verbose      bool

	from *time.Time
	to   *time.Time
}

func NewUtilitiesReprocessCommand() *UtilitiesReprocessCommand {
	return &UtilitiesReprocessCommand{}
}

func (cmd *UtilitiesReprocessCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("utilities-reprocess", flag.ExitOnError)

	fs.StringVar(&cmd.From, "from", "", "Only reprocess bills dated on or after this date (YYYY-MM-DD)")
	fs.StringVar(&cmd.To, "to", "", "Only reprocess bills dated on or before this date (YYYY-MM-DD)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local database file")
	fs.BoolVar(&cmd.Force, "force", false, "Skip the confirmation prompt")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s utilities-reprocess [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Delete derived utility expenses in the given date range and rebuild\n")
		fmt.Fprintf(os.Stderr, "them from the stored bill lines using the current account mappings.\n")
		fmt.Fprintf(os.Stderr, "Bill lines themselves are never modified.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Rebuild every utility expense:\n")
		fmt.Fprintf(os.Stderr, "  %s utilities-reprocess\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Rebuild only the first quarter:\n")
		fmt.Fprintf(os.Stderr, "  %s utilities-reprocess -from 2026-01-01 -to 2026-03-31\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if cmd.from, err = parseDateFlag("from", cmd.From); err != nil {
		return err
	}
	if cmd.to, err = parseDateFlag("to", cmd.To); err != nil {
		return err
	}
	if cmd.from != nil && cmd.to != nil && cmd.to.Before(*cmd.from) {
		return fmt.Errorf("-to date is before -from date")
	}

	return nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s date %q: expected YYYY-MM-DD", name, value)
	}
	return &parsed, nil
}

func (cmd *UtilitiesReprocessCommand) Run() error {
	log := logrus.New()
	if cmd.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	rangeDesc := "all dates"
	if cmd.From != "" || cmd.To != "" {
		rangeDesc = fmt.Sprintf("from %s to %s", orAny(cmd.From), orAny(cmd.To))
	}

	if !cmd.Force {
		fmt.Printf("This will delete and rebuild utility expenses (%s). Continue? [y/N] ", rangeDesc)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
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

	engine := reclassify.NewEngine(db.DB, log)

	fmt.Printf("Reprocessing utility expenses (%s)...\n", rangeDesc)

	result, err := engine.ReprocessRange(cmd.from, cmd.to)
	if err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}

	fmt.Printf("\nDone. Examined %d bill lines: %d expenses created, %d lines unmatched, %d errors, %d stale expenses removed.\n",
		result.BillsExamined, result.Created, result.Unmatched, result.Errors, result.Deleted)

	return nil
}

func orAny(value string) string {
	if value == "" {
		return "any"
	}
	return value
}
