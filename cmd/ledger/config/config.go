package config

import (
	"fmt"
	"io"
	"strings"

	"utility-ledger/internal/reporter"
	"utility-ledger/internal/source"
	"utility-ledger/pkg/logger"
)

// CreateSourceConfig creates the loader configuration used by the CLI
func CreateSourceConfig(delimiter string) (*source.Config, error) {
	config := source.DefaultConfig()

	if delimiter != "" {
		runes := []rune(delimiter)
		if len(runes) != 1 {
			return nil, fmt.Errorf("CSV delimiter must be a single character, got %q", delimiter)
		}
		config.Delimiter = runes[0]
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string, includeStats bool) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format)))
	config.IncludeStats = includeStats

	switch config.Format {
	case reporter.FormatConsole:
		config.IncludePayments = true
	case reporter.FormatJSON, reporter.FormatXLSX:
		config.IncludePayments = true
		config.MaxPaymentsPerCycle = 0
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.MaxPaymentsPerCycle = 0
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateLoggerConfig builds the CLI logger configuration. Verbose raises the
// level to debug; an empty level keeps the default.
func CreateLoggerConfig(level, format string, verbose bool, writer io.Writer) (*logger.Config, error) {
	config := logger.DefaultConfig()
	config.Writer = writer

	if level != "" {
		config.Level = logger.Level(strings.ToLower(level))
	}
	if verbose {
		config.Level = logger.DebugLevel
	}
	if format != "" {
		config.Format = logger.Format(strings.ToLower(format))
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
