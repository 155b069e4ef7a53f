// Package changes compares two scrapes and reports which account readings
// moved between them. Readers poll this to decide whether a notification is
// worth sending.
package changes

import (
	"utility-ledger/internal/ledger"
	"utility-ledger/internal/models"
	"utility-ledger/pkg/logger"
)

// Readings are the values a scrape exposes to downstream consumers
type Readings struct {
	AccountBalance string          `json:"account_balance"`
	LatestBill     *models.Bill    `json:"latest_bill,omitempty"`
	PreviousBill   *models.Bill    `json:"previous_bill,omitempty"`
	LastPayment    *models.Payment `json:"last_payment,omitempty"`
}

// Changes flags which readings differ from the previous scrape
type Changes struct {
	AccountBalance bool `json:"account_balance"`
	LatestBill     bool `json:"latest_bill"`
	PreviousBill   bool `json:"previous_bill"`
	LastPayment    bool `json:"last_payment"`
}

// Any reports whether at least one reading changed
func (c Changes) Any() bool {
	return c.AccountBalance || c.LatestBill || c.PreviousBill || c.LastPayment
}

// Names lists the changed readings in a fixed order
func (c Changes) Names() []string {
	names := []string{}
	if c.AccountBalance {
		names = append(names, "account_balance")
	}
	if c.LatestBill {
		names = append(names, "latest_bill")
	}
	if c.PreviousBill {
		names = append(names, "previous_bill")
	}
	if c.LastPayment {
		names = append(names, "last_payment")
	}
	return names
}

// Detector extracts readings through ledger reconciliation
type Detector struct {
	reconciler *ledger.Reconciler
	logger     logger.Logger
}

// NewDetector creates a detector. A nil logger uses the global logger.
func NewDetector(log logger.Logger) *Detector {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Detector{
		reconciler: ledger.NewReconciler(log),
		logger:     log.WithComponent("changes"),
	}
}

// Detect compares current against previous using a detector on the global logger
func Detect(previous, current *models.Snapshot) Changes {
	return NewDetector(nil).Detect(previous, current)
}

// Readings extracts the reported values from a snapshot. The latest and
// previous bills are the first two reconciled cycles; the last payment is
// the newest payment by posting date, attributed or not.
func (d *Detector) Readings(snapshot *models.Snapshot) Readings {
	if snapshot == nil {
		return Readings{}
	}

	readings := Readings{AccountBalance: snapshot.AccountBalance}

	groups := d.reconciler.Reconcile(snapshot.Ledger).Groups
	if len(groups) > 0 {
		readings.LatestBill = groups[0].Bill
	}
	if len(groups) > 1 {
		readings.PreviousBill = groups[1].Bill
	}

	_, payments := ledger.Classify(snapshot.Ledger)
	if sorted := ledger.SortPayments(payments); len(sorted) > 0 {
		readings.LastPayment = sorted[0]
	}

	return readings
}

// Detect reports which readings of current differ from previous. A nil
// previous snapshot marks the balance and every present reading as changed.
// A reading that disappears is not a change.
func (d *Detector) Detect(previous, current *models.Snapshot) Changes {
	now := d.Readings(current)

	if previous == nil {
		changes := Changes{
			AccountBalance: true,
			LatestBill:     now.LatestBill != nil,
			PreviousBill:   now.PreviousBill != nil,
			LastPayment:    now.LastPayment != nil,
		}
		d.logger.WithField("changed", changes.Names()).Debug("No previous snapshot, treating readings as new")
		return changes
	}

	before := d.Readings(previous)
	changes := Changes{
		AccountBalance: now.AccountBalance != before.AccountBalance,
		LatestBill:     billChanged(before.LatestBill, now.LatestBill),
		PreviousBill:   billChanged(before.PreviousBill, now.PreviousBill),
		LastPayment:    paymentChanged(before.LastPayment, now.LastPayment),
	}

	d.logger.WithFields(logger.Fields{
		"previous_id": snapshotID(previous),
		"current_id":  snapshotID(current),
		"changed":     changes.Names(),
	}).Debug("Compared snapshots")

	return changes
}

func billChanged(before, now *models.Bill) bool {
	if now == nil {
		return false
	}
	if before == nil {
		return true
	}
	return before.Total != now.Total ||
		before.CycleEndDate != now.CycleEndDate ||
		before.StatementDate != now.StatementDate
}

func paymentChanged(before, now *models.Payment) bool {
	if now == nil {
		return false
	}
	if before == nil {
		return true
	}
	return before.Amount != now.Amount ||
		before.PaymentDate != now.PaymentDate ||
		before.CycleEndDate != now.CycleEndDate
}

func snapshotID(s *models.Snapshot) int64 {
	if s == nil {
		return 0
	}
	return s.ID
}
