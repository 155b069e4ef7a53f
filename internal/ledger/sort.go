package ledger

import (
	"sort"
	"time"

	"utility-ledger/internal/models"
)

type datedBill struct {
	bill  *models.Bill
	at    time.Time
	valid bool
}

type datedPayment struct {
	payment *models.Payment
	at      time.Time
	valid   bool
}

// SortBills returns the bills ordered newest first by effective date.
// Bills with equal dates keep their input order.
func SortBills(bills []*models.Bill) []*models.Bill {
	dated := make([]datedBill, len(bills))
	for i, b := range bills {
		at, ok := BillDate(b)
		dated[i] = datedBill{bill: b, at: at, valid: ok}
	}
	sortBills(dated)

	sorted := make([]*models.Bill, len(dated))
	for i, d := range dated {
		sorted[i] = d.bill
	}
	return sorted
}

// SortPayments returns the payments ordered newest first by posting date.
// Payments with equal dates keep their input order.
func SortPayments(payments []*models.Payment) []*models.Payment {
	dated := make([]datedPayment, len(payments))
	for i, p := range payments {
		at, ok := PaymentDate(p)
		dated[i] = datedPayment{payment: p, at: at, valid: ok}
	}
	sortPayments(dated)
	return unwrapPayments(dated)
}

func sortBills(bills []datedBill) {
	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].at.After(bills[j].at)
	})
}

func sortPayments(payments []datedPayment) {
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].at.After(payments[j].at)
	})
}

func unwrapPayments(dated []datedPayment) []*models.Payment {
	payments := make([]*models.Payment, len(dated))
	for i, d := range dated {
		payments[i] = d.payment
	}
	return payments
}
