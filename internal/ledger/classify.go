package ledger

import (
	"utility-ledger/internal/models"
)

// Classify splits raw entries into bills and payments, keeping their input
// order. Entries whose type is neither bill nor payment are skipped.
func Classify(entries []models.RawEntry) ([]*models.Bill, []*models.Payment) {
	bills, payments, _ := classify(entries)
	return bills, payments
}

func classify(entries []models.RawEntry) ([]*models.Bill, []*models.Payment, int) {
	var bills []*models.Bill
	var payments []*models.Payment
	ignored := 0

	for _, raw := range entries {
		entry, ok := raw.Entry()
		if !ok {
			ignored++
			continue
		}

		switch e := entry.(type) {
		case *models.Bill:
			bills = append(bills, e)
		case *models.Payment:
			payments = append(payments, e)
		}
	}

	return bills, payments, ignored
}
