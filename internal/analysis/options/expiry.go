package options

import (
	"sort"

	"optionscope/pkg/models"
)

// SelectExpirations picks up to max distinct expiration dates from the chain,
// today or later, ascending. Dates are ISO yyyy-mm-dd so plain string
// comparison orders them correctly. It also returns the contracts whose
// expiration made the cut, preserving their original order.
func SelectExpirations(contracts []models.Contract, today string, max int) ([]string, []models.Contract) {
	seen := make(map[string]struct{})
	var dates []string
	for _, c := range contracts {
		d := c.ExpirationDate
		if d == "" || d < today {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if max > 0 && len(dates) > max {
		dates = dates[:max]
	}

	keep := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		keep[d] = struct{}{}
	}
	var kept []models.Contract
	for _, c := range contracts {
		if _, ok := keep[c.ExpirationDate]; ok {
			kept = append(kept, c)
		}
	}
	return dates, kept
}
