package reporter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"utility-ledger/pkg/errors"
	"utility-ledger/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and typed errors
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("use one of the formats console, json, csv or xlsx")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely validates its inputs, renders the report and wraps any
// failure in a report error
func (srg *SafeReportGenerator) GenerateReportSafely(report *Report, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(report, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	if err := srg.GenerateReport(report, writer); err != nil {
		wrapped := srg.wrapGenerationError(err)
		srg.logger.WithError(wrapped).Error("Report generation failed")
		return wrapped
	}

	srg.logger.WithField("groups", len(report.Result.Groups)).Debug("Report generation completed")
	return nil
}

// WriteToFile renders the report into path, creating parent directories.
// A partially written file is removed on failure.
func (srg *SafeReportGenerator) WriteToFile(report *Report, path string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			return errors.FileError(errors.CodeDirectoryError, dir, mkErr)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		if os.IsPermission(err) {
			return errors.FileError(errors.CodeFilePermission, path, err)
		}
		return errors.ReportError(errors.CodeWriteFailed, string(srg.config.Format), err).
			WithContext("output_file", path)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = errors.ReportError(errors.CodeWriteFailed, string(srg.config.Format), closeErr).
				WithContext("output_file", path)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	buffered := bufio.NewWriter(file)
	if err = srg.GenerateReportSafely(report, buffered); err != nil {
		return err
	}
	if flushErr := buffered.Flush(); flushErr != nil {
		return srg.wrapGenerationError(flushErr)
	}

	srg.logger.WithField("output_file", path).Info("Report written")
	return nil
}

func (srg *SafeReportGenerator) validateInputs(report *Report, writer io.Writer) error {
	if report == nil || report.Result == nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_generation",
			fmt.Errorf("no reconciliation result to report"),
		)
	}

	if writer == nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_generation",
			fmt.Errorf("no output writer"),
		)
	}

	return nil
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if ledgerErr, ok := errors.AsLedgerError(err); ok {
		return ledgerErr
	}

	wrapped := errors.ReportError(errors.CodeWriteFailed, string(srg.config.Format), err)
	if isSpaceError(err) {
		wrapped.WithSuggestion("free up disk space and try again")
	}
	return wrapped
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}
