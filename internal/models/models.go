package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the discriminant carried by every scraped ledger record
type Kind string

const (
	// KindBill marks a statement issued at the end of a billing cycle
	KindBill Kind = "bill"
	// KindPayment marks a payment posted to the account
	KindPayment Kind = "payment"
)

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is one the ledger understands
func (k Kind) IsValid() bool {
	return k == KindBill || k == KindPayment
}

// RawEntry is a ledger record exactly as the scraper stores it. Every field
// is optional; a missing field decodes to the empty string.
type RawEntry struct {
	Type          string `json:"type"`
	BillCycleDate string `json:"bill_cycle_date,omitempty"`
	BillDate      string `json:"bill_date,omitempty"`
	MonthRange    string `json:"month_range,omitempty"`
	BillTotal     string `json:"bill_total,omitempty"`
	Description   string `json:"description,omitempty"`
	Amount        string `json:"amount,omitempty"`
	PaymentDate   string `json:"payment_date,omitempty"`
}

// UnmarshalJSON decodes a record leniently: strings are taken as-is, numbers
// and booleans keep their literal text, and anything else becomes empty.
func (r *RawEntry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("ledger entry must be an object: %w", err)
	}

	*r = RawEntry{
		Type:          scalarString(fields["type"]),
		BillCycleDate: scalarString(fields["bill_cycle_date"]),
		BillDate:      scalarString(fields["bill_date"]),
		MonthRange:    scalarString(fields["month_range"]),
		BillTotal:     scalarString(fields["bill_total"]),
		Description:   scalarString(fields["description"]),
		Amount:        scalarString(fields["amount"]),
		PaymentDate:   scalarString(fields["payment_date"]),
	}
	return nil
}

func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strings.TrimSpace(string(raw))
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Kind returns the record's discriminant
func (r RawEntry) Kind() Kind {
	return Kind(strings.ToLower(strings.TrimSpace(r.Type)))
}

// Entry converts the raw record into its typed variant. The second return
// value is false when the discriminant is not recognised.
func (r RawEntry) Entry() (Entry, bool) {
	switch r.Kind() {
	case KindBill:
		return &Bill{
			CycleEndDate:  r.BillCycleDate,
			StatementDate: r.BillDate,
			MonthRange:    r.MonthRange,
			Total:         r.BillTotal,
		}, true
	case KindPayment:
		return &Payment{
			CycleEndDate: r.BillCycleDate,
			Description:  r.Description,
			Amount:       r.Amount,
			PaymentDate:  r.PaymentDate,
		}, true
	default:
		return nil, false
	}
}

// Entry is the closed set of ledger variants: *Bill and *Payment.
type Entry interface {
	Kind() Kind
	isEntry()
}

// Bill represents a statement closing one billing cycle
type Bill struct {
	// CycleEndDate is the end of the billed period and the preferred date
	CycleEndDate  string `json:"cycle_end_date,omitempty"`
	StatementDate string `json:"statement_date,omitempty"`
	MonthRange    string `json:"month_range,omitempty"`
	Total         string `json:"total,omitempty"`
}

// Kind implements Entry
func (b *Bill) Kind() Kind { return KindBill }

func (b *Bill) isEntry() {}

// DateField returns the name and raw value of the date field that decides
// the bill's position: cycle end date, else statement date.
func (b *Bill) DateField() (string, string) {
	if b.CycleEndDate != "" {
		return "cycle_end_date", b.CycleEndDate
	}
	if b.StatementDate != "" {
		return "statement_date", b.StatementDate
	}
	return "", ""
}

// CycleKey identifies the billing cycle for duplicate detection. It is the
// unparsed date string, or empty when the bill carries no date.
func (b *Bill) CycleKey() string {
	_, value := b.DateField()
	return value
}

// String returns a string representation of the Bill
func (b *Bill) String() string {
	return fmt.Sprintf("Bill{Cycle: %s, Range: %s, Total: %s}", b.CycleKey(), b.MonthRange, b.Total)
}

// Payment represents a payment posted to the account
type Payment struct {
	// CycleEndDate holds the payment's own posting date; the portal reuses
	// the cycle column for it.
	CycleEndDate string `json:"cycle_end_date,omitempty"`
	Description  string `json:"description,omitempty"`
	Amount       string `json:"amount,omitempty"`
	// PaymentDate is the date scraped from the description, display only
	PaymentDate string `json:"payment_date,omitempty"`
}

// Kind implements Entry
func (p *Payment) Kind() Kind { return KindPayment }

func (p *Payment) isEntry() {}

// String returns a string representation of the Payment
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{Date: %s, Amount: %s, Description: %s}", p.CycleEndDate, p.Amount, p.Description)
}

// BillGroup is one billing cycle: a bill and the payments attributed to it,
// newest first.
type BillGroup struct {
	Bill     *Bill      `json:"bill"`
	Payments []*Payment `json:"payments"`
}

// CycleKey returns the raw cycle key of the group's bill
func (g BillGroup) CycleKey() string {
	if g.Bill == nil {
		return ""
	}
	return g.Bill.CycleKey()
}

// Label returns the human-readable cycle range, falling back to the cycle key
func (g BillGroup) Label() string {
	if g.Bill != nil && strings.TrimSpace(g.Bill.MonthRange) != "" {
		return g.Bill.MonthRange
	}
	return g.CycleKey()
}
