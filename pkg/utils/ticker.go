package utils

import "strings"

// NormalizeTicker cleans up a user-entered ticker symbol: trims whitespace,
// strips a leading "$" (people paste "$AAPL" from social media), and
// upper-cases. Returns "" for input that is empty after trimming.
func NormalizeTicker(ticker string) string {
	t := strings.TrimSpace(ticker)
	t = strings.TrimPrefix(t, "$")
	t = strings.TrimSpace(t)
	return strings.ToUpper(t)
}
