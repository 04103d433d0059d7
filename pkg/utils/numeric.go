package utils

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseNumber coerces a heterogeneous price-like value into a finite float64.
// Providers return the same field as a number on one endpoint version and a
// currency-formatted string ("$1,234.50") on another, so everything funnels
// through here. The second return value is false when no usable number exists;
// ParseNumber never panics and never returns NaN or ±Inf.
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return ParseNumber(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		return parseNumericString(n.String())
	case string:
		return parseNumericString(n)
	}
	return 0, false
}

// parseNumericString strips currency formatting and anything else that is not
// part of a decimal literal, then parses the remainder. Bare fragments like
// "-" or "." and words like "N/A" reduce to something strconv rejects, which
// is exactly the behavior we want: absent, not zero.
func parseNumericString(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == 'e', r == 'E', r == '+', r == '-', r == '.':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
