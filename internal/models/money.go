package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a display currency string such as "$1,234.56",
// "-$12.00" or "($12.00)" into a decimal. The boolean is false when the
// string holds no parseable amount.
func ParseAmount(s string) (decimal.Decimal, bool) {
	value := strings.TrimSpace(s)
	if value == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		negative = true
		value = strings.TrimSuffix(strings.TrimPrefix(value, "("), ")")
	}
	if strings.HasSuffix(strings.ToUpper(value), "CR") {
		negative = true
		value = strings.TrimSpace(value[:len(value)-2])
	}

	value = strings.NewReplacer("$", "", ",", "", " ", "").Replace(value)
	if strings.HasPrefix(value, "-") {
		negative = !negative
		value = strings.TrimPrefix(value, "-")
	}
	if value == "" {
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, true
}

// SumAmounts adds every parseable payment amount. The boolean reports
// whether at least one amount parsed.
func SumAmounts(payments []*Payment) (decimal.Decimal, bool) {
	total := decimal.Zero
	parsed := false
	for _, p := range payments {
		if amount, ok := ParseAmount(p.Amount); ok {
			total = total.Add(amount)
			parsed = true
		}
	}
	return total, parsed
}
