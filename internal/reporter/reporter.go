// Package reporter renders reconciled billing cycles for people and tools.
//
// Supported output formats:
//   - Console: one block per billing cycle for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one row per cycle and payment for spreadsheets
//   - XLSX: a workbook with summary, cycles and payments sheets
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	report := reporter.NewReport(snapshot, result)
//	err = generator.GenerateReport(report, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"utility-ledger/internal/ledger"
	"utility-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format cannot be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeStats    bool `json:"include_stats"`
	IncludePayments bool `json:"include_payments"`

	// MaxPaymentsPerCycle truncates console payment lists; 0 means no limit
	MaxPaymentsPerCycle int `json:"max_payments_per_cycle"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:              FormatConsole,
		IncludeStats:        false,
		IncludePayments:     true,
		MaxPaymentsPerCycle: 10,
		CSVDelimiter:        ',',
		CSVHeaders:          true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.MaxPaymentsPerCycle < 0 {
		return fmt.Errorf("max payments per cycle cannot be negative, got %d", c.MaxPaymentsPerCycle)
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	return nil
}

// Report is everything a rendered report shows
type Report struct {
	SnapshotTime   string
	AccountBalance string
	Result         *ledger.Result
}

// NewReport pairs a snapshot's metadata with its reconciliation result
func NewReport(snapshot *models.Snapshot, result *ledger.Result) *Report {
	report := &Report{Result: result}
	if snapshot != nil {
		report.SnapshotTime = snapshot.Timestamp
		if report.SnapshotTime == "" {
			report.SnapshotTime = snapshot.ScrapedAt
		}
		report.AccountBalance = snapshot.AccountBalance
	}
	return report
}

// cycleSummary holds the money figures derived from one group
type cycleSummary struct {
	total       decimal.Decimal
	totalOK     bool
	paid        decimal.Decimal
	paidOK      bool
	outstanding decimal.Decimal
}

func summarize(g models.BillGroup) cycleSummary {
	var s cycleSummary
	if g.Bill != nil {
		s.total, s.totalOK = models.ParseAmount(g.Bill.Total)
	}
	s.paid, s.paidOK = models.SumAmounts(g.Payments)
	if s.totalOK {
		s.outstanding = s.total.Sub(s.paid)
	}
	return s
}

func (s cycleSummary) paidString() string {
	if !s.paidOK {
		return ""
	}
	return s.paid.StringFixed(2)
}

func (s cycleSummary) outstandingString() string {
	if !s.totalOK {
		return ""
	}
	return s.outstanding.StringFixed(2)
}

// ReportGenerator generates ledger reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// GenerateReport renders the report and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(report *Report, writer io.Writer) error {
	if report == nil || report.Result == nil {
		return fmt.Errorf("report and reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(report *Report, writer io.Writer) error {
	ew := &errWriter{w: writer}

	ew.printf("LEDGER RECONCILIATION\n")
	ew.printf("Snapshot:        %s\n", orDefault(report.SnapshotTime, "unknown"))
	ew.printf("Account Balance: %s\n\n", orDefault(report.AccountBalance, "n/a"))

	groups := report.Result.Groups
	ew.printf("=== BILLING CYCLES (%d) ===\n", len(groups))
	if len(groups) == 0 {
		ew.printf("No bills found in ledger\n")
	}

	for _, g := range groups {
		rg.printGroup(ew, g)
	}

	if rg.config.IncludeStats {
		ew.printf("=== STATISTICS ===\n")
		rg.printStats(ew, report.Result.Stats)
	}

	return ew.err
}

func (rg *ReportGenerator) printGroup(ew *errWriter, g models.BillGroup) {
	summary := summarize(g)

	ew.printf("\n%s", orDefault(g.Label(), "(undated cycle)"))
	if key := g.CycleKey(); key != "" && key != g.Label() {
		ew.printf(" [%s]", key)
	}
	ew.printf("\n")

	if g.Bill != nil {
		ew.printf("  Bill Total:     %s\n", orDefault(g.Bill.Total, "n/a"))
		if g.Bill.StatementDate != "" {
			ew.printf("  Statement Date: %s\n", g.Bill.StatementDate)
		}
	}

	if rg.config.IncludePayments {
		ew.printf("  Payments (%d):\n", len(g.Payments))
		for i, p := range g.Payments {
			if rg.config.MaxPaymentsPerCycle > 0 && i >= rg.config.MaxPaymentsPerCycle {
				ew.printf("    ... and %d more\n", len(g.Payments)-i)
				break
			}
			ew.printf("    %d. %s  %s  %s\n", i+1, orDefault(p.CycleEndDate, "undated"), p.Description, p.Amount)
		}
	}

	if summary.paidOK || summary.totalOK {
		ew.printf("  Paid: %s", orDefault(summary.paidString(), "0.00"))
		if summary.totalOK {
			ew.printf("  Outstanding: %s", summary.outstandingString())
		}
		ew.printf("\n")
	}
}

func (rg *ReportGenerator) printStats(ew *errWriter, stats ledger.Stats) {
	ew.printf("Entries:            %d\n", stats.Entries)
	ew.printf("Bills:              %d\n", stats.Bills)
	ew.printf("Payments:           %d\n", stats.Payments)
	ew.printf("Ignored Entries:    %d\n", stats.IgnoredEntries)
	ew.printf("Date Fallbacks:     %d\n", stats.DateFallbacks)
	ew.printf("Duplicates Dropped: %d\n", stats.DuplicatesDropped)
	ew.printf("Unattributed:       %d\n", stats.Unattributed)
}

type jsonGroup struct {
	CycleKey    string            `json:"cycle_key"`
	Label       string            `json:"label"`
	Bill        *models.Bill      `json:"bill"`
	Payments    []*models.Payment `json:"payments"`
	PaidTotal   string            `json:"paid_total,omitempty"`
	Outstanding string            `json:"outstanding,omitempty"`
}

type jsonReport struct {
	SnapshotTime   string        `json:"snapshot_time,omitempty"`
	AccountBalance string        `json:"account_balance,omitempty"`
	Groups         []jsonGroup   `json:"groups"`
	Stats          *ledger.Stats `json:"stats,omitempty"`
}

func (rg *ReportGenerator) generateJSONReport(report *Report, writer io.Writer) error {
	output := jsonReport{
		SnapshotTime:   report.SnapshotTime,
		AccountBalance: report.AccountBalance,
		Groups:         make([]jsonGroup, 0, len(report.Result.Groups)),
	}

	for _, g := range report.Result.Groups {
		summary := summarize(g)
		payments := g.Payments
		if payments == nil {
			payments = []*models.Payment{}
		}
		output.Groups = append(output.Groups, jsonGroup{
			CycleKey:    g.CycleKey(),
			Label:       g.Label(),
			Bill:        g.Bill,
			Payments:    payments,
			PaidTotal:   summary.paidString(),
			Outstanding: summary.outstandingString(),
		})
	}

	if rg.config.IncludeStats {
		stats := report.Result.Stats
		output.Stats = &stats
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(output)
}

var csvHeaders = []string{
	"Cycle_Key",
	"Label",
	"Bill_Total",
	"Statement_Date",
	"Payment_Date",
	"Payment_Description",
	"Payment_Amount",
	"Paid_Total",
	"Outstanding",
}

func (rg *ReportGenerator) generateCSVReport(report *Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, g := range report.Result.Groups {
		summary := summarize(g)
		prefix := []string{g.CycleKey(), g.Label(), "", ""}
		if g.Bill != nil {
			prefix[2] = g.Bill.Total
			prefix[3] = g.Bill.StatementDate
		}
		suffix := []string{summary.paidString(), summary.outstandingString()}

		if len(g.Payments) == 0 {
			record := append(append(append([]string{}, prefix...), "", "", ""), suffix...)
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write cycle record: %w", err)
			}
			continue
		}

		for _, p := range g.Payments {
			record := append(append(append([]string{}, prefix...), p.CycleEndDate, p.Description, p.Amount), suffix...)
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write payment record: %w", err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// errWriter remembers the first write error so console output can be
// written without checking every call
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
