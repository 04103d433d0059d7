package polygon

import (
	"regexp"
	"sort"

	"optionscope/pkg/utils"
)

// The underlying-price resolver. Polygon's snapshot shape is endpoint- and
// version-dependent, so the current price is located by trying a fixed
// ladder of known field aliases and, when all of those miss, a bounded
// recursive scan for anything price-shaped. The first candidate that parses
// wins — this is a short-circuit, not a best-of.

// PriceCandidate is an extracted (possibly unparsed) value plus the dotted
// path it was read from. Used only for diagnostics; it never affects
// behavior.
type PriceCandidate struct {
	Path  string
	Value any
}

// Direct scalar aliases on the snapshot itself.
var directPriceAliases = []string{"price", "last_price", "close", "day_close", "c", "last"}

// Nested object names and the price fields probed inside each, in order.
var (
	lastTradeObjects = []string{"last_trade", "lastTrade"}
	lastTradeFields  = []string{"price", "p"}

	dayObjects = []string{"day"}
	dayFields  = []string{"close", "c", "last", "price"}

	// The quote object is a deliberate lossy fallback: when no trade or
	// close exists the resolver settles for one side of the book.
	lastQuoteObjects = []string{"last_quote", "lastQuote"}
	lastQuoteFields  = []string{"bid", "bid_price", "bp", "ask", "ask_price", "ap", "mid", "midpoint"}
)

// Patterns for the generic fallback scan. The exclusion guards against
// deriving the underlying price from strike or premium fields nested in the
// same payload.
var (
	priceLikeKey = regexp.MustCompile(`(?i)price|close|last|trade|bid|ask`)
	excludedKey  = regexp.MustCompile(`(?i)strike|premium|option`)
)

// maxScanDepth bounds the generic fallback traversal.
const maxScanDepth = 4

// ResolveUnderlyingPrice locates the best available current price for the
// underlying instrument in a snapshot of unknown shape. Returns false when
// no candidate parses.
func ResolveUnderlyingPrice(snapshot map[string]any) (float64, bool) {
	for _, cand := range PriceCandidates(snapshot) {
		if v, ok := utils.ParseNumber(cand.Value); ok {
			return v, true
		}
	}
	return 0, false
}

// PriceCandidates returns every value the resolver would consider, in
// priority order, with dotted paths for diagnostics.
func PriceCandidates(snapshot map[string]any) []PriceCandidate {
	if len(snapshot) == 0 {
		return nil
	}

	var cands []PriceCandidate

	// 1. Direct scalar fields.
	for _, key := range directPriceAliases {
		if v, ok := snapshot[key]; ok && v != nil {
			cands = append(cands, PriceCandidate{Path: key, Value: v})
		}
	}

	// 2–4. Known nested objects.
	cands = append(cands, nestedCandidates(snapshot, lastTradeObjects, lastTradeFields)...)
	cands = append(cands, nestedCandidates(snapshot, dayObjects, dayFields)...)
	cands = append(cands, nestedCandidates(snapshot, lastQuoteObjects, lastQuoteFields)...)

	// 5. Generic recursive fallback, tried only after all explicit
	// candidates fail.
	cands = append(cands, scanForPriceLike(snapshot, "", 0)...)

	return cands
}

// nestedCandidates probes each named object for each field, in order.
func nestedCandidates(snapshot map[string]any, objects, fields []string) []PriceCandidate {
	var cands []PriceCandidate
	for _, name := range objects {
		obj, ok := snapshot[name].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range fields {
			if v, ok := obj[field]; ok && v != nil {
				cands = append(cands, PriceCandidate{Path: name + "." + field, Value: v})
			}
		}
	}
	return cands
}

// scanForPriceLike walks the object graph to maxScanDepth collecting any
// scalar under a price-like, non-excluded key. Keys are visited in sorted
// order so the candidate sequence is deterministic.
func scanForPriceLike(obj map[string]any, prefix string, depth int) []PriceCandidate {
	if depth >= maxScanDepth {
		return nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var cands []PriceCandidate
	for _, k := range keys {
		v := obj[k]
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch child := v.(type) {
		case map[string]any:
			cands = append(cands, scanForPriceLike(child, path, depth+1)...)
		case []any:
			// Arrays of contract rows carry strikes and premiums, never
			// the underlying price. Skipped.
		default:
			if v == nil {
				continue
			}
			if priceLikeKey.MatchString(k) && !excludedKey.MatchString(k) {
				cands = append(cands, PriceCandidate{Path: path, Value: v})
			}
		}
	}
	return cands
}
