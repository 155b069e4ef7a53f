package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"utility-ledger/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xuri/excelize/v2"
)

var fixtureSnapshot = filepath.Join("..", "..", "..", "testdata", "snapshot.json")

// executeCommand runs the CLI with args against fresh flag and viper state
func executeCommand(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	viper.Reset()
	for _, c := range []*cobra.Command{rootCmd, reconcileCmd, changesCmd, versionCmd} {
		resetFlags(c.Flags())
		resetFlags(c.PersistentFlags())
	}

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	code := Execute(context.Background())
	return stdout.String(), stderr.String(), code
}

func resetFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func writeScraperDB(t *testing.T, rows ...[2]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scraper.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE scraped_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		data TEXT,
		status TEXT,
		error_message TEXT,
		screenshot_path TEXT
	)`); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	for _, row := range rows {
		if _, err := db.Exec(`INSERT INTO scraped_data (timestamp, data, status) VALUES (?, ?, 'success')`, row[0], row[1]); err != nil {
			t.Fatalf("failed to insert row: %v", err)
		}
	}
	return path
}

func TestValidateReconcileFlags(t *testing.T) {
	tmpDir := t.TempDir()
	snapshotFile := filepath.Join(tmpDir, "snapshot.json")
	if err := os.WriteFile(snapshotFile, []byte(`[]`), 0644); err != nil {
		t.Fatalf("failed to create snapshot file: %v", err)
	}

	tests := []struct {
		name       string
		setupFlags func()
		code       errors.ErrorCode
	}{
		{
			name: "valid input file",
			setupFlags: func() {
				viper.Set("input", snapshotFile)
				viper.Set("output-format", "console")
			},
		},
		{
			name: "valid database with xlsx file",
			setupFlags: func() {
				viper.Set("db", snapshotFile)
				viper.Set("output-format", "xlsx")
				viper.Set("output-file", filepath.Join(tmpDir, "out.xlsx"))
			},
		},
		{
			name:       "no source",
			setupFlags: func() {},
			code:       errors.CodeMissingConfig,
		},
		{
			name: "both sources",
			setupFlags: func() {
				viper.Set("input", snapshotFile)
				viper.Set("db", snapshotFile)
			},
			code: errors.CodeConfigConflict,
		},
		{
			name: "missing input",
			setupFlags: func() {
				viper.Set("input", filepath.Join(tmpDir, "absent.json"))
			},
			code: errors.CodeFileNotFound,
		},
		{
			name: "input is a directory",
			setupFlags: func() {
				viper.Set("input", tmpDir)
			},
			code: errors.CodeDirectoryError,
		},
		{
			name: "invalid output format",
			setupFlags: func() {
				viper.Set("input", snapshotFile)
				viper.Set("output-format", "pdf")
			},
			code: errors.CodeInvalidConfig,
		},
		{
			name: "xlsx to stdout",
			setupFlags: func() {
				viper.Set("input", snapshotFile)
				viper.Set("output-format", "xlsx")
			},
			code: errors.CodeMissingConfig,
		},
		{
			name: "output directory missing",
			setupFlags: func() {
				viper.Set("input", snapshotFile)
				viper.Set("output-file", filepath.Join(tmpDir, "missing", "out.json"))
			},
			code: errors.CodeDirectoryError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			tt.setupFlags()

			err := validateReconcileFlags(&cobra.Command{}, []string{})

			if tt.code == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			ledgerErr, ok := errors.AsLedgerError(err)
			if !ok {
				t.Fatalf("expected LedgerError, got %v", err)
			}
			if ledgerErr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, ledgerErr.Code)
			}
		})
	}
}

func TestReconcileCommand_JSONFromFile(t *testing.T) {
	stdout, stderr, code := executeCommand(t, "reconcile", "--input", fixtureSnapshot, "-f", "json", "--include-stats")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}

	var report struct {
		SnapshotTime   string `json:"snapshot_time"`
		AccountBalance string `json:"account_balance"`
		Groups         []struct {
			CycleKey string `json:"cycle_key"`
			Payments []struct {
				CycleEndDate string `json:"cycle_end_date"`
			} `json:"payments"`
		} `json:"groups"`
		Stats struct {
			DuplicatesDropped int `json:"duplicates_dropped"`
			Unattributed      int `json:"unattributed_payments"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}

	if report.SnapshotTime != "2024-03-21T08:15:02.118406" || report.AccountBalance != "$0.00" {
		t.Errorf("unexpected header: %q %q", report.SnapshotTime, report.AccountBalance)
	}

	wantKeys := []string{"2024-03-15", "2024-02-15", "2024-01-15"}
	wantPayments := []string{"2024-03-20", "2024-02-20", "2024-01-20"}
	if len(report.Groups) != len(wantKeys) {
		t.Fatalf("expected %d groups, got %d", len(wantKeys), len(report.Groups))
	}
	for i, g := range report.Groups {
		if g.CycleKey != wantKeys[i] {
			t.Errorf("group %d: expected cycle %s, got %s", i, wantKeys[i], g.CycleKey)
		}
		if len(g.Payments) != 1 || g.Payments[0].CycleEndDate != wantPayments[i] {
			t.Errorf("group %d: expected payment %s, got %+v", i, wantPayments[i], g.Payments)
		}
	}

	if report.Stats.DuplicatesDropped != 1 || report.Stats.Unattributed != 1 {
		t.Errorf("unexpected stats: %+v", report.Stats)
	}
}

func TestReconcileCommand_ConsoleFromDatabase(t *testing.T) {
	db := writeScraperDB(t,
		[2]string{"2024-02-21T08:00:00", `{"account_balance": "$110.00", "bill_history": {"ledger": []}}`},
		[2]string{"2024-03-21T08:00:00", `{"account_balance": "$120.00", "bill_history": {"ledger": [
			{"type": "bill", "bill_cycle_date": "2024-03-15", "month_range": "Feb 14 - Mar 15", "bill_total": "$120.00"}
		]}}`},
	)

	stdout, stderr, code := executeCommand(t, "reconcile", "--db", db)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}

	for _, want := range []string{"Snapshot:        2024-03-21T08:00:00", "Account Balance: $120.00", "Feb 14 - Mar 15 [2024-03-15]", "Outstanding: 120.00"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q\n%s", want, stdout)
		}
	}
}

func TestReconcileCommand_XLSXFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cycles.xlsx")

	_, stderr, code := executeCommand(t, "reconcile", "-i", fixtureSnapshot, "-f", "xlsx", "-o", out)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("output is not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("cycles")
	if err != nil || len(rows) != 4 {
		t.Errorf("expected header and 3 cycle rows, got %d (%v)", len(rows), err)
	}
}

func TestReconcileCommand_ExitCodes(t *testing.T) {
	tmpDir := t.TempDir()
	badJSON := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(badJSON, []byte(`{"rows": []}`), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	emptyDB := writeScraperDB(t)

	tests := []struct {
		name       string
		args       []string
		code       int
		stderrHint string
	}{
		{"missing input", []string{"reconcile", "--input", filepath.Join(tmpDir, "absent.json")}, 2, "file not found"},
		{"unreadable layout", []string{"reconcile", "--input", badJSON}, 3, "invalid format"},
		{"no source", []string{"reconcile"}, 4, "missing required configuration"},
		{"xlsx without file", []string{"reconcile", "--input", fixtureSnapshot, "-f", "xlsx"}, 4, "output-file"},
		{"bad log level", []string{"reconcile", "--input", fixtureSnapshot, "--log-level", "loud"}, 4, "log-level"},
		{"empty database", []string{"reconcile", "--db", emptyDB}, 5, "no snapshots found"},
		{"unknown flag", []string{"reconcile", "--frobnicate"}, 1, "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := executeCommand(t, tt.args...)
			if code != tt.code {
				t.Errorf("expected exit %d, got %d: %s", tt.code, code, stderr)
			}
			if !strings.Contains(stderr, tt.stderrHint) {
				t.Errorf("expected stderr to mention %q, got:\n%s", tt.stderrHint, stderr)
			}
		})
	}
}

func TestReconcileCommand_EnvironmentOverride(t *testing.T) {
	t.Setenv("LEDGER_OUTPUT_FORMAT", "csv")

	stdout, stderr, code := executeCommand(t, "reconcile", "--input", fixtureSnapshot)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "Cycle_Key,") {
		t.Errorf("expected CSV output from environment setting, got:\n%s", stdout)
	}
}

func TestReconcileCommandHelp(t *testing.T) {
	for _, name := range []string{"input", "db", "output-format", "output-file", "include-stats"} {
		if reconcileCmd.Flags().Lookup(name) == nil {
			t.Errorf("flag %q not found", name)
		}
	}

	var helpOutput bytes.Buffer
	reconcileCmd.SetOut(&helpOutput)
	defer reconcileCmd.SetOut(nil)
	reconcileCmd.Help()

	helpText := helpOutput.String()
	for _, section := range []string{"Usage:", "Examples:", "Flags:", "--input", "--db", "--output-format"} {
		if !strings.Contains(helpText, section) {
			t.Errorf("help text should contain '%s'", section)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2024-03-21")
	defer SetVersionInfo("dev", "unknown", "unknown")

	stdout, _, code := executeCommand(t, "version")
	if code != 0 || strings.TrimSpace(stdout) != "ledger 1.2.3" {
		t.Errorf("unexpected version output %q (exit %d)", stdout, code)
	}
}
