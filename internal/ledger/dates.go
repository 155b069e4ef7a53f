package ledger

import (
	"strings"
	"time"

	"utility-ledger/internal/models"
)

// Epoch is the effective date of any entry whose date is missing or unparseable.
var Epoch = time.Unix(0, 0).UTC()

// dateLayouts lists the formats the portal has been seen to emit, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
}

// ParseDate parses a portal date string. Values without a zone are UTC.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// BillDate resolves a bill's effective date: cycle end date, else statement
// date, else Epoch. The boolean is false when the fallback was used.
func BillDate(b *models.Bill) (time.Time, bool) {
	_, value := b.DateField()
	return resolve(value)
}

// PaymentDate resolves a payment's effective date from its posting date
// field, falling back to Epoch.
func PaymentDate(p *models.Payment) (time.Time, bool) {
	return resolve(p.CycleEndDate)
}

func resolve(value string) (time.Time, bool) {
	if t, ok := ParseDate(value); ok {
		return t, true
	}
	return Epoch, false
}
