package source

import (
	"fmt"
	"strings"
)

// Config holds options for reading ledger files
type Config struct {
	Delimiter        rune              `json:"delimiter"`
	TrimLeadingSpace bool              `json:"trim_leading_space"`
	ValidateEncoding bool              `json:"validate_encoding"`
	ColumnAliases    map[string]string `json:"column_aliases,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		ValidateEncoding: true,
		ColumnAliases: map[string]string{
			"kind":           "type",
			"entry_type":     "type",
			"cycle_end_date": "bill_cycle_date",
			"cycle_date":     "bill_cycle_date",
			"date":           "bill_cycle_date",
			"statement_date": "bill_date",
			"total":          "bill_total",
			"months":         "month_range",
		},
	}
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Delimiter == 0 || c.Delimiter == '\n' || c.Delimiter == '\r' || c.Delimiter == '"' {
		return fmt.Errorf("invalid CSV delimiter %q", c.Delimiter)
	}
	for alias, column := range c.ColumnAliases {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(column) == "" {
			return fmt.Errorf("column aliases cannot be empty")
		}
	}
	return nil
}

// canonicalColumn maps a header cell to the scraper's field name
func (c *Config) canonicalColumn(header string) string {
	name := strings.TrimPrefix(header, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	if column, ok := c.ColumnAliases[name]; ok {
		return column
	}
	return name
}
