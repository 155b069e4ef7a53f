package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"utility-ledger/cmd/ledger/config"
	"utility-ledger/internal/ledger"
	"utility-ledger/internal/models"
	"utility-ledger/internal/reporter"
	"utility-ledger/internal/source"
	"utility-ledger/pkg/errors"
	"utility-ledger/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	inputFile    string
	dbPath       string
	outputFormat string
	outputFile   string
	includeStats bool
	csvDelimiter string
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Group ledger payments under the bills they paid",
	Long: `Reconcile reads one scraped ledger snapshot and groups it into billing
cycles. Each bill receives the payments posted after its cycle ended and up
to the end of the next cycle. Repeated bills for the same cycle are dropped.

The snapshot comes from exactly one of:
- an exported file (--input), JSON or CSV
- the scraper's SQLite database (--db), using the newest scrape

Examples:
  # Console report from an export
  ledger reconcile --input snapshot.json

  # Latest scrape as JSON with run statistics
  ledger reconcile --db data/scraper.db --output-format json --include-stats

  # Spreadsheet with one sheet for cycles and one for payments
  ledger reconcile --input ledger.csv --output-format xlsx --output-file cycles.xlsx`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&inputFile, "input", "i", "", "path to a JSON or CSV ledger snapshot")
	reconcileCmd.Flags().StringVar(&dbPath, "db", "", "path to the scraper's SQLite database")
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv, xlsx")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout, required for xlsx)")
	reconcileCmd.Flags().BoolVar(&includeStats, "include-stats", false, "include reconciliation statistics in the report")
	reconcileCmd.Flags().StringVar(&csvDelimiter, "csv-delimiter", ",", "field delimiter for CSV input")
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and environment)
	inputFile = viper.GetString("input")
	dbPath = viper.GetString("db")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	includeStats = viper.GetBool("include-stats")
	csvDelimiter = viper.GetString("csv-delimiter")

	if err := validateSnapshotSource(inputFile, dbPath, "input"); err != nil {
		return err
	}

	if outputFormat == "" {
		outputFormat = string(reporter.FormatConsole)
	}
	format := reporter.OutputFormat(outputFormat)
	if !format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat, nil).
			WithSuggestion("valid formats: console, json, csv, xlsx")
	}
	if format.IsBinary() && outputFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "output-file", nil, nil).
			WithSuggestion("xlsx reports must be written to a file; pass --output-file")
	}

	if outputFile != "" {
		if dir := filepath.Dir(outputFile); dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.FileError(errors.CodeDirectoryError, dir, err)
			}
		}
	}

	return nil
}

// validateSnapshotSource checks that exactly one of a file or a database was given
func validateSnapshotSource(file, db, fileFlag string) error {
	if file == "" && db == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, fileFlag+" or db", nil, nil).
			WithSuggestion(fmt.Sprintf("pass --%s with a snapshot file or --db with the scraper database", fileFlag))
	}
	if file != "" && db != "" {
		return errors.ConfigurationError(errors.CodeConfigConflict, fileFlag+"/db", fmt.Sprintf("%s, %s", file, db), nil)
	}
	if file != "" {
		return validateFileExists(file)
	}
	return validateFileExists(db)
}

func validateFileExists(filePath string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeDirectoryError, filePath, err)
	}
	if info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, filePath, fmt.Errorf("%s is a directory, expected a file", filePath))
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	log := logger.GetGlobalLogger()

	op := logger.NewOperationLogger("reconcile", log).WithFields(logger.Fields{
		"input":         inputFile,
		"db":            dbPath,
		"output_format": outputFormat,
		"output_file":   outputFile,
	})

	op.Step("load_snapshot")
	snapshot, err := loadSnapshot(ctx, inputFile, dbPath)
	if err != nil {
		op.Error(err, "Failed to load snapshot")
		return err
	}

	op.Step("reconcile")
	result := ledger.NewReconciler(log).Reconcile(snapshot.Ledger)
	if result.Stats.DateFallbacks > 0 {
		log.WithField("date_fallbacks", result.Stats.DateFallbacks).
			Warn("Some ledger dates could not be read; those entries were ordered as oldest")
	}

	op.Step("report")
	reportConfig, err := config.CreateReportConfig(outputFormat, includeStats)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat, err)
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	report := reporter.NewReport(snapshot, result)
	if outputFile != "" {
		err = generator.WriteToFile(report, outputFile)
	} else {
		err = generator.GenerateReportSafely(report, cmd.OutOrStdout())
	}
	if err != nil {
		op.Error(err, "Failed to write report")
		return err
	}

	op.WithFields(logger.Fields{
		"groups":       result.Stats.Groups,
		"unattributed": result.Stats.Unattributed,
	}).Success("Reconciliation completed")
	return nil
}

// loadSnapshot reads the snapshot from a file or the newest database row
func loadSnapshot(ctx context.Context, file, db string) (*models.Snapshot, error) {
	if file != "" {
		return loadSnapshotFile(file)
	}

	store, err := source.OpenSQLite(db)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.LatestOne(ctx)
}

func loadSnapshotFile(path string) (*models.Snapshot, error) {
	sourceConfig, err := config.CreateSourceConfig(csvDelimiter)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "csv-delimiter", csvDelimiter, err)
	}
	loader, err := source.NewLoader(sourceConfig)
	if err != nil {
		return nil, err
	}
	return loader.LoadFile(path)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
