package reporter

import (
	"fmt"
	"io"

	"utility-ledger/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "summary"
	cyclesSheet   = "cycles"
	paymentsSheet = "payments"
)

// generateXLSXReport writes a workbook with a summary sheet, one row per
// cycle and one row per attributed payment.
func (rg *ReportGenerator) generateXLSXReport(report *Report, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if _, err := f.NewSheet(cyclesSheet); err != nil {
		return fmt.Errorf("failed to create cycles sheet: %w", err)
	}
	if _, err := f.NewSheet(paymentsSheet); err != nil {
		return fmt.Errorf("failed to create payments sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Ledger Reconciliation"},
		{},
		{"Snapshot", report.SnapshotTime},
		{"Account Balance", report.AccountBalance},
		{"Cycles", len(report.Result.Groups)},
	}
	if rg.config.IncludeStats {
		stats := report.Result.Stats
		summary = append(summary,
			[]interface{}{"Entries", stats.Entries},
			[]interface{}{"Bills", stats.Bills},
			[]interface{}{"Payments", stats.Payments},
			[]interface{}{"Ignored Entries", stats.IgnoredEntries},
			[]interface{}{"Date Fallbacks", stats.DateFallbacks},
			[]interface{}{"Duplicates Dropped", stats.DuplicatesDropped},
			[]interface{}{"Unattributed", stats.Unattributed},
		)
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	cycles := [][]interface{}{
		{"Cycle", "Label", "Bill Total", "Statement Date", "Payments", "Paid", "Outstanding"},
	}
	payments := [][]interface{}{
		{"Cycle", "Date", "Description", "Amount", "Payment Date"},
	}

	for _, g := range report.Result.Groups {
		s := summarize(g)
		row := []interface{}{g.CycleKey(), g.Label(), "", "", len(g.Payments), "", ""}
		if g.Bill != nil {
			row[2] = amountCell(g.Bill.Total)
			row[3] = g.Bill.StatementDate
		}
		if s.paidOK {
			row[5] = s.paid.InexactFloat64()
		}
		if s.totalOK {
			row[6] = s.outstanding.InexactFloat64()
		}
		cycles = append(cycles, row)

		for _, p := range g.Payments {
			payments = append(payments, []interface{}{
				g.CycleKey(), p.CycleEndDate, p.Description, amountCell(p.Amount), p.PaymentDate,
			})
		}
	}

	if err := writeRows(f, cyclesSheet, cycles); err != nil {
		return err
	}
	if err := writeRows(f, paymentsSheet, payments); err != nil {
		return err
	}

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("invalid cell position %d,%d: %w", j+1, i+1, err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

// amountCell stores parseable amounts as numbers and anything else as text
func amountCell(value string) interface{} {
	if amount, ok := models.ParseAmount(value); ok {
		return amount.InexactFloat64()
	}
	return value
}
