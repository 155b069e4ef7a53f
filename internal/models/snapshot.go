package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Snapshot is one scrape of the provider portal
type Snapshot struct {
	ID             int64      `json:"id,omitempty"`
	Timestamp      string     `json:"timestamp,omitempty"`
	Status         string     `json:"status,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ScreenshotPath string     `json:"screenshot_path,omitempty"`
	AccountBalance string     `json:"account_balance,omitempty"`
	ScrapedAt      string     `json:"scraped_at,omitempty"`
	Ledger         []RawEntry `json:"ledger"`
}

type scrapedData struct {
	AccountBalance json.RawMessage `json:"account_balance"`
	BillHistory    *billHistory    `json:"bill_history"`
}

type billHistory struct {
	Ledger    []RawEntry `json:"ledger"`
	ScrapedAt string     `json:"scraped_at"`
}

type envelope struct {
	ID             int64           `json:"id"`
	Timestamp      string          `json:"timestamp"`
	Status         string          `json:"status"`
	ErrorMessage   string          `json:"error_message"`
	ScreenshotPath string          `json:"screenshot_path"`
	Data           json.RawMessage `json:"data"`
}

// DecodeSnapshot accepts any of the shapes the scraper produces: a stored
// row ({"timestamp", "data": {...}}), the scraped data object itself
// ({"account_balance", "bill_history"}), a bill history ({"ledger": [...]})
// or a bare array of ledger entries.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("snapshot is empty")
	}

	if strings.HasPrefix(trimmed, "[") {
		var ledger []RawEntry
		if err := json.Unmarshal(data, &ledger); err != nil {
			return nil, fmt.Errorf("invalid ledger array: %w", err)
		}
		return &Snapshot{Ledger: ledger}, nil
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("snapshot must be a JSON object or array: %w", err)
	}

	switch {
	case keys["data"] != nil:
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("invalid snapshot envelope: %w", err)
		}
		snapshot, err := DecodeScrapedData(env.Data)
		if err != nil {
			return nil, err
		}
		snapshot.ID = env.ID
		snapshot.Timestamp = env.Timestamp
		snapshot.Status = env.Status
		snapshot.ErrorMessage = env.ErrorMessage
		snapshot.ScreenshotPath = env.ScreenshotPath
		return snapshot, nil
	case keys["bill_history"] != nil || keys["account_balance"] != nil:
		return DecodeScrapedData(data)
	case keys["ledger"] != nil:
		var history billHistory
		if err := json.Unmarshal(data, &history); err != nil {
			return nil, fmt.Errorf("invalid bill history: %w", err)
		}
		return &Snapshot{Ledger: history.Ledger, ScrapedAt: history.ScrapedAt}, nil
	default:
		return nil, fmt.Errorf("unrecognised snapshot layout: expected data, bill_history or ledger")
	}
}

// DecodeScrapedData decodes the scraper's data payload, the JSON stored in
// the data column of each scrape.
func DecodeScrapedData(data []byte) (*Snapshot, error) {
	snapshot := &Snapshot{}
	if len(data) == 0 || string(data) == "null" {
		return snapshot, nil
	}

	// Older rows were stored double-encoded as a JSON string.
	var encoded string
	if err := json.Unmarshal(data, &encoded); err == nil {
		data = []byte(encoded)
	}

	var payload scrapedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid scraped data: %w", err)
	}

	snapshot.AccountBalance = scalarString(payload.AccountBalance)
	if payload.BillHistory != nil {
		snapshot.Ledger = payload.BillHistory.Ledger
		snapshot.ScrapedAt = payload.BillHistory.ScrapedAt
	}
	return snapshot, nil
}
