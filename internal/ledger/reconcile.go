// Package ledger turns a scraped utility ledger into billing cycles.
//
// The scraper yields a flat list of bills and payments in no reliable
// order. Reconciliation runs four stages over that list:
//
//   - Classify: split entries into bills and payments by their type
//   - Sort: order each side newest first by effective date (stable)
//   - Match: give every bill the payments posted after its cycle end and up
//     to the next newer bill's cycle end; each payment goes to at most one bill
//   - Deduplicate: collapse repeated scrapes of the same cycle, keeping the first
//
// Payments that fall outside every bill's interval (older than the oldest
// bill, or between bills when one is missing from the scrape) belong to no
// group and are left out of the result. They are only counted in Stats.
//
// Dates that are missing or cannot be parsed sort as the Unix epoch and are
// logged at warn level; reconciliation itself never fails.
//
// Example usage:
//
//	groups := ledger.Reconcile(snapshot.Ledger)
//	for _, g := range groups {
//		fmt.Println(g.Label(), len(g.Payments))
//	}
package ledger

import (
	"utility-ledger/internal/models"
	"utility-ledger/pkg/logger"
)

// Stats describes a single reconciliation run
type Stats struct {
	Entries           int `json:"entries"`
	Bills             int `json:"bills"`
	Payments          int `json:"payments"`
	IgnoredEntries    int `json:"ignored_entries"`
	DateFallbacks     int `json:"date_fallbacks"`
	DuplicatesDropped int `json:"duplicates_dropped"`
	Unattributed      int `json:"unattributed_payments"`
	Groups            int `json:"groups"`
}

// Result holds the reconciled groups and the run's statistics
type Result struct {
	Groups []models.BillGroup `json:"groups"`
	Stats  Stats              `json:"stats"`
}

// Reconciler runs reconciliation and reports date fallbacks to its logger.
// It holds no state between calls and is safe for concurrent use.
type Reconciler struct {
	logger logger.Logger
}

// NewReconciler creates a reconciler. A nil logger uses the global logger.
func NewReconciler(log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Reconciler{logger: log.WithComponent("ledger")}
}

// Reconcile is the package-level entry point; it uses the global logger.
func Reconcile(entries []models.RawEntry) []models.BillGroup {
	return NewReconciler(nil).Reconcile(entries).Groups
}

// Reconcile turns raw ledger entries into bill groups ordered newest first.
// It accepts any input, including nil, and always returns a non-nil result.
func (r *Reconciler) Reconcile(entries []models.RawEntry) *Result {
	stats := Stats{Entries: len(entries)}

	bills, payments, ignored := classify(entries)
	stats.Bills = len(bills)
	stats.Payments = len(payments)
	stats.IgnoredEntries = ignored

	datedBills := make([]datedBill, len(bills))
	for i, b := range bills {
		at, ok := BillDate(b)
		if !ok {
			stats.DateFallbacks++
			field, value := b.DateField()
			r.reportFallback(models.KindBill, field, value)
		}
		datedBills[i] = datedBill{bill: b, at: at, valid: ok}
	}

	datedPayments := make([]datedPayment, len(payments))
	for i, p := range payments {
		at, ok := PaymentDate(p)
		if !ok {
			stats.DateFallbacks++
			r.reportFallback(models.KindPayment, "cycle_end_date", p.CycleEndDate)
		}
		datedPayments[i] = datedPayment{payment: p, at: at, valid: ok}
	}

	sortBills(datedBills)
	sortPayments(datedPayments)

	groups, dropped := deduplicate(matchPayments(datedBills, datedPayments))
	stats.DuplicatesDropped = dropped
	stats.Groups = len(groups)

	attributed := 0
	for _, g := range groups {
		attributed += len(g.Payments)
	}
	stats.Unattributed = stats.Payments - attributed

	r.logger.WithFields(logger.Fields{
		"entries":            stats.Entries,
		"bills":              stats.Bills,
		"payments":           stats.Payments,
		"ignored":            stats.IgnoredEntries,
		"date_fallbacks":     stats.DateFallbacks,
		"duplicates_dropped": stats.DuplicatesDropped,
		"unattributed":       stats.Unattributed,
		"groups":             stats.Groups,
	}).Debug("Reconciled ledger")

	return &Result{Groups: groups, Stats: stats}
}

func (r *Reconciler) reportFallback(kind models.Kind, field, value string) {
	log := r.logger.WithFields(logger.Fields{
		"kind":  kind.String(),
		"field": field,
		"value": value,
	})
	if value == "" {
		log.Debug("Ledger entry has no date, using epoch")
		return
	}
	log.Warn("Failed to parse ledger date, using epoch")
}
