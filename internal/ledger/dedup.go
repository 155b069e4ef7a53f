package ledger

import (
	"utility-ledger/internal/models"
)

// Deduplicate keeps the first group for each cycle key and drops the rest,
// preserving order. Groups must be in the order the bills were matched.
func Deduplicate(groups []models.BillGroup) []models.BillGroup {
	unique, _ := deduplicate(groups)
	return unique
}

func deduplicate(groups []models.BillGroup) ([]models.BillGroup, int) {
	seen := make(map[string]bool, len(groups))
	unique := make([]models.BillGroup, 0, len(groups))
	dropped := 0

	for _, group := range groups {
		key := group.CycleKey()
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		unique = append(unique, group)
	}

	return unique, dropped
}
