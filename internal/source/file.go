// Package source loads raw ledger snapshots produced by the portal scraper.
//
// Snapshots come from three places:
//   - JSON files holding a stored scrape, the scraped data object, a bill
//     history or a bare array of ledger entries
//   - CSV files with a header row and one ledger entry per line
//   - the scraper's SQLite database (see SQLiteStore)
//
// Loading validates the container format only; the ledger entries themselves
// are passed through untouched so reconciliation can apply its own fallbacks.
package source

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"utility-ledger/internal/models"
	"utility-ledger/pkg/errors"
	"utility-ledger/pkg/logger"
)

// Format identifies a ledger file format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// DetectFormat infers the file format from its extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", errors.ParseError(errors.CodeInvalidFormat, path, 0, "", fmt.Errorf("unsupported extension %q", filepath.Ext(path)))
	}
}

// Loader reads ledger snapshots from files
type Loader struct {
	config *Config
	logger logger.Logger
}

// NewLoader creates a loader. A nil config uses DefaultConfig.
func NewLoader(config *Config) (*Loader, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "source", config, err)
	}

	return &Loader{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("source"),
	}, nil
}

// LoadFile reads one snapshot, choosing the decoder from the file extension
func (l *Loader) LoadFile(path string) (*models.Snapshot, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(logger.Fields{
		"file_path": path,
		"format":    format,
		"bytes":     len(data),
	}).Debug("Loading ledger file")

	if l.config.ValidateEncoding && !utf8.Valid(data) {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", fmt.Errorf("invalid UTF-8 encoding detected")).
			WithSuggestion("save the file in UTF-8 encoding and try again")
	}

	var snapshot *models.Snapshot
	switch format {
	case FormatJSON:
		snapshot, err = models.DecodeSnapshot(data)
		if err != nil {
			return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", err)
		}
	case FormatCSV:
		snapshot, err = l.decodeCSV(path, strings.NewReader(string(data)))
		if err != nil {
			return nil, err
		}
	}

	l.logger.WithFields(logger.Fields{
		"file_path": path,
		"entries":   len(snapshot.Ledger),
	}).Debug("Loaded ledger file")

	return snapshot, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if os.IsNotExist(err) {
		return nil, errors.FileError(errors.CodeFileNotFound, path, err)
	}
	if os.IsPermission(err) {
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}
	return nil, errors.FileError(errors.CodeDirectoryError, path, err)
}

func (l *Loader) decodeCSV(path string, r io.Reader) (*models.Snapshot, error) {
	reader := csv.NewReader(r)
	reader.Comma = l.config.Delimiter
	reader.TrimLeadingSpace = l.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, errors.ParseError(errors.CodeMissingColumn, path, 1, "type", fmt.Errorf("file is empty"))
	}
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 1, "", err)
	}

	columns := make(map[string]int, len(headers))
	for i, header := range headers {
		name := l.config.canonicalColumn(header)
		if _, exists := columns[name]; !exists {
			columns[name] = i
		}
	}
	if _, ok := columns["type"]; !ok {
		return nil, errors.ParseError(errors.CodeMissingColumn, path, 1, "type", nil)
	}

	cell := func(record []string, name string) string {
		index, ok := columns[name]
		if !ok || index >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[index])
	}

	snapshot := &models.Snapshot{Ledger: []models.RawEntry{}}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var csvErr *csv.ParseError
			if stderrors.As(err, &csvErr) {
				line = csvErr.Line
			}
			return nil, errors.ParseError(errors.CodeInvalidData, path, line, "", err)
		}
		if isBlank(record) {
			continue
		}

		snapshot.Ledger = append(snapshot.Ledger, models.RawEntry{
			Type:          cell(record, "type"),
			BillCycleDate: cell(record, "bill_cycle_date"),
			BillDate:      cell(record, "bill_date"),
			MonthRange:    cell(record, "month_range"),
			BillTotal:     cell(record, "bill_total"),
			Description:   cell(record, "description"),
			Amount:        cell(record, "amount"),
			PaymentDate:   cell(record, "payment_date"),
		})
	}

	return snapshot, nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
