package testutil

import (
	"sort"
	"strings"

	"github.com/aafontoura/budget-notion/internal/model"
)

func sortByDateDesc(txns []model.Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.After(txns[j].Date)
		}
		return txns[i].ID.String() < txns[j].ID.String()
	})
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
