package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"utility-ledger/internal/changes"
	"utility-ledger/internal/models"
	"utility-ledger/internal/source"
	"utility-ledger/pkg/errors"
	"utility-ledger/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	previousFile  string
	currentFile   string
	changesFormat string
)

// changesCmd represents the changes command
var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Report which account readings changed between two scrapes",
	Long: `Changes compares two scrapes and reports whether the account balance,
the latest bill, the previous bill or the last payment changed.

Without a previous scrape every reading that is present counts as changed.

Examples:
  # Compare the two newest scrapes in the database
  ledger changes --db data/scraper.db

  # Compare two exported snapshots
  ledger changes --previous february.json --current march.json --output-format json`,

	PreRunE: validateChangesFlags,
	RunE:    runChanges,
}

func init() {
	rootCmd.AddCommand(changesCmd)

	changesCmd.Flags().StringVar(&previousFile, "previous", "", "path to the earlier snapshot (optional)")
	changesCmd.Flags().StringVar(&currentFile, "current", "", "path to the later snapshot")
	changesCmd.Flags().StringVar(&dbPath, "db", "", "path to the scraper's SQLite database")
	changesCmd.Flags().StringVarP(&changesFormat, "output-format", "f", "console", "output format: console, json")
}

func validateChangesFlags(cmd *cobra.Command, args []string) error {
	previousFile = viper.GetString("previous")
	currentFile = viper.GetString("current")
	dbPath = viper.GetString("db")
	changesFormat = viper.GetString("output-format")

	if previousFile != "" && currentFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "current", nil, nil).
			WithSuggestion("--previous must be paired with --current")
	}
	if previousFile != "" && dbPath != "" {
		return errors.ConfigurationError(errors.CodeConfigConflict, "previous/db", fmt.Sprintf("%s, %s", previousFile, dbPath), nil)
	}
	if err := validateSnapshotSource(currentFile, dbPath, "current"); err != nil {
		return err
	}
	if previousFile != "" {
		if err := validateFileExists(previousFile); err != nil {
			return err
		}
	}

	if changesFormat == "" {
		changesFormat = "console"
	}
	if changesFormat != "console" && changesFormat != "json" {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", changesFormat, nil).
			WithSuggestion("valid formats: console, json")
	}

	return nil
}

type changesOutput struct {
	PreviousTime string           `json:"previous_time,omitempty"`
	CurrentTime  string           `json:"current_time,omitempty"`
	Changed      []string         `json:"changed"`
	Changes      changes.Changes  `json:"changes"`
	Readings     changes.Readings `json:"readings"`
}

func runChanges(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger()

	var previous, current *models.Snapshot
	err := logger.TimedOperation("load_snapshots", log, func() error {
		var loadErr error
		previous, current, loadErr = loadSnapshotPair(commandContext(cmd))
		return loadErr
	})
	if err != nil {
		return err
	}

	detector := changes.NewDetector(log)
	detected := detector.Detect(previous, current)

	output := changesOutput{
		CurrentTime: snapshotTime(current),
		Changed:     detected.Names(),
		Changes:     detected,
		Readings:    detector.Readings(current),
	}
	if previous != nil {
		output.PreviousTime = snapshotTime(previous)
	}

	if changesFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(output); err != nil {
			return errors.ReportError(errors.CodeWriteFailed, "json", err)
		}
		return nil
	}

	if err := printChanges(cmd.OutOrStdout(), output); err != nil {
		return errors.ReportError(errors.CodeWriteFailed, "console", err)
	}
	return nil
}

// loadSnapshotPair returns (previous, current). previous is nil when only one
// snapshot is available.
func loadSnapshotPair(ctx context.Context) (*models.Snapshot, *models.Snapshot, error) {
	if dbPath == "" {
		current, err := loadSnapshotFile(currentFile)
		if err != nil {
			return nil, nil, err
		}
		if previousFile == "" {
			return nil, current, nil
		}
		previous, err := loadSnapshotFile(previousFile)
		if err != nil {
			return nil, nil, err
		}
		return previous, current, nil
	}

	store, err := source.OpenSQLite(dbPath)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	snapshots, err := store.Latest(ctx, 2)
	if err != nil {
		return nil, nil, err
	}
	switch len(snapshots) {
	case 0:
		return nil, nil, errors.SourceError(errors.CodeNoSnapshot, dbPath, nil)
	case 1:
		return nil, snapshots[0], nil
	default:
		return snapshots[1], snapshots[0], nil
	}
}

func printChanges(w io.Writer, output changesOutput) error {
	ew := &lineWriter{w: w}

	ew.printf("Current snapshot:  %s\n", orUnknown(output.CurrentTime))
	if output.PreviousTime != "" {
		ew.printf("Previous snapshot: %s\n", output.PreviousTime)
	} else {
		ew.printf("Previous snapshot: none (all readings are new)\n")
	}
	ew.printf("\n")

	r := output.Readings
	ew.printf("%-16s %-9s %s\n", "account_balance", mark(output.Changes.AccountBalance), orUnknown(r.AccountBalance))
	ew.printf("%-16s %-9s %s\n", "latest_bill", mark(output.Changes.LatestBill), billSummary(r.LatestBill))
	ew.printf("%-16s %-9s %s\n", "previous_bill", mark(output.Changes.PreviousBill), billSummary(r.PreviousBill))
	ew.printf("%-16s %-9s %s\n", "last_payment", mark(output.Changes.LastPayment), paymentSummary(r.LastPayment))

	return ew.err
}

func mark(changed bool) string {
	if changed {
		return "changed"
	}
	return "unchanged"
}

func billSummary(b *models.Bill) string {
	if b == nil {
		return "none"
	}
	return fmt.Sprintf("%s %s", orUnknown(b.CycleKey()), b.Total)
}

func paymentSummary(p *models.Payment) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprintf("%s %s", orUnknown(p.CycleEndDate), p.Amount)
}

func snapshotTime(s *models.Snapshot) string {
	if s.Timestamp != "" {
		return s.Timestamp
	}
	return s.ScrapedAt
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

type lineWriter struct {
	w   io.Writer
	err error
}

func (lw *lineWriter) printf(format string, args ...interface{}) {
	if lw.err != nil {
		return
	}
	_, lw.err = fmt.Fprintf(lw.w, format, args...)
}
