package ledger

import (
	"time"

	"utility-ledger/internal/models"
)

// matchPayments walks bills newest to oldest and gives each one the
// unclaimed payments posted after its cycle end and, for every bill but the
// newest, no later than the next newer bill's cycle end. Both slices must
// already be sorted newest first.
//
// A bill or payment whose own date did not resolve never matches: it is
// compared as an invalid date, not as the epoch. The neighbouring boundary
// uses the epoch fallback.
func matchPayments(bills []datedBill, payments []datedPayment) []models.BillGroup {
	claimed := make([]bool, len(payments))
	groups := make([]models.BillGroup, 0, len(bills))

	for i, b := range bills {
		var upper *time.Time
		if i > 0 {
			upper = &bills[i-1].at
		}

		var owned []datedPayment
		if b.valid {
			for j, p := range payments {
				if claimed[j] || !p.valid {
					continue
				}
				if inCycle(p.at, b.at, upper) {
					claimed[j] = true
					owned = append(owned, p)
				}
			}
		}

		sortPayments(owned)
		groups = append(groups, models.BillGroup{
			Bill:     b.bill,
			Payments: unwrapPayments(owned),
		})
	}

	return groups
}

// inCycle reports whether a payment posted at p falls in the half-open
// interval (cycleEnd, upper]. A nil upper leaves the interval unbounded.
func inCycle(p, cycleEnd time.Time, upper *time.Time) bool {
	if !p.After(cycleEnd) {
		return false
	}
	return upper == nil || !p.After(*upper)
}
