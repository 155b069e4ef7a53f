package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"utility-ledger/internal/ledger"
	"utility-ledger/internal/models"
	"utility-ledger/pkg/errors"
	"utility-ledger/pkg/logger"

	"github.com/xuri/excelize/v2"
)

func quietLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.DebugLevel,
		Format: logger.TextFormat,
		Writer: io.Discard,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func sampleReport(t *testing.T) *Report {
	t.Helper()
	snapshot := &models.Snapshot{
		Timestamp:      "2024-03-21T08:15:02",
		AccountBalance: "$10.00",
		Ledger: []models.RawEntry{
			{Type: "bill", BillCycleDate: "2024-03-15", BillDate: "2024-03-18", MonthRange: "Feb 14 - Mar 15, 2024", BillTotal: "$120.00"},
			{Type: "payment", BillCycleDate: "2024-03-20", Description: "Payment Received", Amount: "$60.00"},
			{Type: "payment", BillCycleDate: "2024-03-25", Description: "Payment Received", Amount: "$50.00"},
			{Type: "bill", BillCycleDate: "2024-02-15", BillTotal: "$110.00"},
			{Type: "bill", BillCycleDate: "2024-01-15", MonthRange: "Dec 15 - Jan 15", BillTotal: "$100.00"},
			{Type: "payment", BillCycleDate: "2024-01-20", Description: "Payment Received", Amount: "$100.00"},
		},
	}
	result := ledger.NewReconciler(quietLogger(t)).Reconcile(snapshot.Ledger)
	return NewReport(snapshot, result)
}

func newGenerator(t *testing.T, config *ReportConfig) *ReportGenerator {
	t.Helper()
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	return generator
}

func configFor(format OutputFormat) *ReportConfig {
	config := DefaultReportConfig()
	config.Format = format
	return config
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{
			name:        "default config",
			config:      nil,
			expectError: false,
		},
		{
			name:        "xlsx config",
			config:      configFor(FormatXLSX),
			expectError: false,
		},
		{
			name:        "invalid format",
			config:      &ReportConfig{Format: "pdf"},
			expectError: true,
		},
		{
			name:        "negative payment limit",
			config:      &ReportConfig{Format: FormatConsole, MaxPaymentsPerCycle: -1},
			expectError: true,
		},
		{
			name:        "csv without delimiter",
			config:      &ReportConfig{Format: FormatCSV},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if generator == nil {
				t.Errorf("expected generator but got nil")
			}
		})
	}
}

func TestOutputFormatValidation(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
		binary bool
	}{
		{FormatConsole, true, false},
		{FormatJSON, true, false},
		{FormatCSV, true, false},
		{FormatXLSX, true, true},
		{"invalid", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := tt.format.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, expected %v", got, tt.valid)
			}
			if got := tt.format.IsBinary(); got != tt.binary {
				t.Errorf("IsBinary() = %v, expected %v", got, tt.binary)
			}
		})
	}
}

func TestNewReport(t *testing.T) {
	result := &ledger.Result{}

	report := NewReport(&models.Snapshot{ScrapedAt: "2024-03-21 08:15:00", AccountBalance: "$1.00"}, result)
	if report.SnapshotTime != "2024-03-21 08:15:00" {
		t.Errorf("expected scraped_at fallback, got %q", report.SnapshotTime)
	}

	if report := NewReport(nil, result); report.SnapshotTime != "" || report.Result != result {
		t.Errorf("unexpected report for nil snapshot: %+v", report)
	}
}

func TestGenerateConsoleReport(t *testing.T) {
	config := configFor(FormatConsole)
	config.IncludeStats = true

	var buf bytes.Buffer
	if err := newGenerator(t, config).GenerateReport(sampleReport(t), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	expected := []string{
		"LEDGER RECONCILIATION",
		"Account Balance: $10.00",
		"=== BILLING CYCLES (3) ===",
		"Feb 14 - Mar 15, 2024 [2024-03-15]",
		"Statement Date: 2024-03-18",
		"Payments (2):",
		"1. 2024-03-25  Payment Received  $50.00",
		"Paid: 110.00  Outstanding: 10.00",
		"\n2024-02-15\n",
		"Paid: 0.00  Outstanding: 110.00",
		"=== STATISTICS ===",
		"Unattributed:       0",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("console output missing %q\n%s", want, output)
		}
	}

	if strings.Index(output, "Feb 14 - Mar 15") > strings.Index(output, "Dec 15 - Jan 15") {
		t.Error("expected newest cycle first")
	}
}

func TestGenerateConsoleReport_Truncation(t *testing.T) {
	config := configFor(FormatConsole)
	config.MaxPaymentsPerCycle = 1

	var buf bytes.Buffer
	if err := newGenerator(t, config).GenerateReport(sampleReport(t), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "... and 1 more") {
		t.Errorf("expected truncation notice, got:\n%s", buf.String())
	}
}

func TestGenerateConsoleReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	report := NewReport(nil, &ledger.Result{})
	if err := newGenerator(t, nil).GenerateReport(report, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No bills found in ledger") || !strings.Contains(buf.String(), "Snapshot:        unknown") {
		t.Errorf("unexpected empty report:\n%s", buf.String())
	}
}

func TestGenerateJSONReport(t *testing.T) {
	tests := []struct {
		name         string
		includeStats bool
	}{
		{"without stats", false},
		{"with stats", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := configFor(FormatJSON)
			config.IncludeStats = tt.includeStats

			var buf bytes.Buffer
			if err := newGenerator(t, config).GenerateReport(sampleReport(t), &buf); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var decoded struct {
				SnapshotTime   string `json:"snapshot_time"`
				AccountBalance string `json:"account_balance"`
				Groups         []struct {
					CycleKey    string            `json:"cycle_key"`
					Label       string            `json:"label"`
					Payments    []json.RawMessage `json:"payments"`
					PaidTotal   string            `json:"paid_total"`
					Outstanding string            `json:"outstanding"`
				} `json:"groups"`
				Stats *ledger.Stats `json:"stats"`
			}
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
			}

			if decoded.AccountBalance != "$10.00" || decoded.SnapshotTime != "2024-03-21T08:15:02" {
				t.Errorf("header fields not carried: %+v", decoded)
			}
			if len(decoded.Groups) != 3 {
				t.Fatalf("expected 3 groups, got %d", len(decoded.Groups))
			}

			first := decoded.Groups[0]
			if first.CycleKey != "2024-03-15" || first.Label != "Feb 14 - Mar 15, 2024" {
				t.Errorf("unexpected first group: %+v", first)
			}
			if len(first.Payments) != 2 || first.PaidTotal != "110.00" || first.Outstanding != "10.00" {
				t.Errorf("unexpected first group totals: %+v", first)
			}

			middle := decoded.Groups[1]
			if middle.Label != "2024-02-15" || middle.Payments == nil || len(middle.Payments) != 0 || middle.PaidTotal != "" {
				t.Errorf("expected empty payment list for middle group: %+v", middle)
			}

			if tt.includeStats != (decoded.Stats != nil) {
				t.Errorf("stats presence = %v, expected %v", decoded.Stats != nil, tt.includeStats)
			}
			if decoded.Stats != nil && decoded.Stats.Bills != 3 {
				t.Errorf("expected 3 bills in stats, got %d", decoded.Stats.Bills)
			}
		})
	}
}

func TestGenerateCSVReport(t *testing.T) {
	var buf bytes.Buffer
	if err := newGenerator(t, configFor(FormatCSV)).GenerateReport(sampleReport(t), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV output: %v", err)
	}

	// header, two payments for March, one empty row for February, one payment for January
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d: %v", len(records), records)
	}
	if records[0][0] != "Cycle_Key" || len(records[0]) != len(csvHeaders) {
		t.Errorf("unexpected header: %v", records[0])
	}

	expected := [][]string{
		{"2024-03-15", "Feb 14 - Mar 15, 2024", "$120.00", "2024-03-18", "2024-03-25", "Payment Received", "$50.00", "110.00", "10.00"},
		{"2024-03-15", "Feb 14 - Mar 15, 2024", "$120.00", "2024-03-18", "2024-03-20", "Payment Received", "$60.00", "110.00", "10.00"},
		{"2024-02-15", "2024-02-15", "$110.00", "", "", "", "", "", "110.00"},
		{"2024-01-15", "Dec 15 - Jan 15", "$100.00", "", "2024-01-20", "Payment Received", "$100.00", "100.00", "0.00"},
	}
	for i, want := range expected {
		got := records[i+1]
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("record %d:\nexpected %v\ngot      %v", i+1, want, got)
		}
	}
}

func TestGenerateCSVReport_NoHeaders(t *testing.T) {
	config := configFor(FormatCSV)
	config.CSVHeaders = false
	config.CSVDelimiter = ';'

	var buf bytes.Buffer
	if err := newGenerator(t, config).GenerateReport(sampleReport(t), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "Cycle_Key") {
		t.Error("expected no header row")
	}
	if !strings.HasPrefix(buf.String(), "2024-03-15;") {
		t.Errorf("expected semicolon separated rows, got %q", buf.String())
	}
}

func TestGenerateXLSXReport(t *testing.T) {
	config := configFor(FormatXLSX)
	config.IncludeStats = true

	var buf bytes.Buffer
	if err := newGenerator(t, config).GenerateReport(sampleReport(t), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("output is not a workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if strings.Join(sheets, ",") != "summary,cycles,payments" {
		t.Errorf("unexpected sheets: %v", sheets)
	}

	balance, err := f.GetCellValue(summarySheet, "B4")
	if err != nil || balance != "$10.00" {
		t.Errorf("expected account balance in summary, got %q (%v)", balance, err)
	}

	cycles, err := f.GetRows(cyclesSheet)
	if err != nil {
		t.Fatalf("failed to read cycles: %v", err)
	}
	if len(cycles) != 4 {
		t.Fatalf("expected header and 3 cycle rows, got %d", len(cycles))
	}
	if cycles[1][0] != "2024-03-15" || cycles[1][1] != "Feb 14 - Mar 15, 2024" || cycles[1][4] != "2" {
		t.Errorf("unexpected first cycle row: %v", cycles[1])
	}

	payments, err := f.GetRows(paymentsSheet)
	if err != nil {
		t.Fatalf("failed to read payments: %v", err)
	}
	if len(payments) != 4 {
		t.Fatalf("expected header and 3 payment rows, got %d", len(payments))
	}
	if payments[1][1] != "2024-03-25" || payments[1][2] != "Payment Received" {
		t.Errorf("unexpected first payment row: %v", payments[1])
	}
}

func TestGenerateReport_NilResult(t *testing.T) {
	generator := newGenerator(t, nil)
	if err := generator.GenerateReport(nil, &bytes.Buffer{}); err == nil {
		t.Error("expected error for nil report")
	}
	if err := generator.GenerateReport(&Report{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for report without result")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestSafeReportGenerator(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewSafeReportGenerator(&ReportConfig{Format: "pdf"}, quietLogger(t))
		ledgerErr, ok := errors.AsLedgerError(err)
		if !ok || ledgerErr.Category != errors.CategoryConfiguration {
			t.Errorf("expected configuration error, got %v", err)
		}
	})

	t.Run("write failure becomes report error", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(configFor(FormatJSON), quietLogger(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err = srg.GenerateReportSafely(sampleReport(t), failingWriter{})
		ledgerErr, ok := errors.AsLedgerError(err)
		if !ok || ledgerErr.Category != errors.CategoryReport || ledgerErr.GetExitCode() != 6 {
			t.Errorf("expected report error, got %v", err)
		}
	})

	t.Run("nil inputs", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(nil, quietLogger(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := srg.GenerateReportSafely(nil, &bytes.Buffer{}); !errors.IsLedgerError(err) {
			t.Errorf("expected ledger error for nil report, got %v", err)
		}
		if err := srg.GenerateReportSafely(sampleReport(t), nil); !errors.IsLedgerError(err) {
			t.Errorf("expected ledger error for nil writer, got %v", err)
		}
	})
}

func TestSafeReportGenerator_WriteToFile(t *testing.T) {
	srg, err := NewSafeReportGenerator(configFor(FormatXLSX), quietLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "reports", "march.xlsx")
	if err := srg.WriteToFile(sampleReport(t), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("written file is not a workbook: %v", err)
	}
	defer f.Close()

	if len(f.GetSheetList()) != 3 {
		t.Errorf("expected 3 sheets, got %v", f.GetSheetList())
	}

	emptyPath := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := srg.WriteToFile(NewReport(nil, nil), emptyPath); err == nil {
		t.Error("expected error for missing result")
	}
	if _, statErr := os.Stat(emptyPath); !os.IsNotExist(statErr) {
		t.Error("expected failed report file to be removed")
	}
}
