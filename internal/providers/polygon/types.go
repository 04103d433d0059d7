package polygon

import (
	"strings"

	"optionscope/pkg/models"
)

// --- Polygon wire types ---
//
// Snapshot rows are decoded with `any`-typed leaves wherever Polygon has
// been observed to flip between numbers and strings across endpoint
// versions. Nested quote objects are plain maps probed by alias.

// chainPage is one page of /v3/snapshot/options/{underlying}.
type chainPage struct {
	Results []contractRow `json:"results"`

	// NextURL is the pagination cursor. Decoded as `any` so a null or a
	// non-string value ends pagination instead of failing the decode.
	NextURL any `json:"next_url"`

	// UnderlyingAsset is the underlying sub-object embedded in the chain
	// response — a fallback source for the spot price.
	UnderlyingAsset map[string]any `json:"underlying_asset"`

	Status string `json:"status"`
}

// contractRow mirrors a single option row. Newer payloads nest the contract
// terms under "details"; older ones put them at the top level. Both shapes
// are accepted, details winning when present.
type contractRow struct {
	Details struct {
		Ticker           string `json:"ticker"`
		ContractType     string `json:"contract_type"`
		StrikePrice      any    `json:"strike_price"`
		ExpirationDate   string `json:"expiration_date"`
		UnderlyingTicker string `json:"underlying_ticker"`
	} `json:"details"`

	Ticker         string `json:"ticker"`
	ContractType   string `json:"contract_type"`
	StrikePrice    any    `json:"strike_price"`
	ExpirationDate string `json:"expiration_date"`

	LastQuote map[string]any `json:"last_quote"`
	LastTrade map[string]any `json:"last_trade"`
	Day       map[string]any `json:"day"`

	BreakEvenPrice  any            `json:"break_even_price"`
	UnderlyingAsset map[string]any `json:"underlying_asset"`
}

// Quote-field aliases per nested object, in lookup priority order.
var (
	rowBidAliases   = []string{"bid", "bid_price", "bp"}
	rowAskAliases   = []string{"ask", "ask_price", "ap"}
	rowMidAliases   = []string{"mid", "midpoint"}
	rowMarkAliases  = []string{"mark"}
	rowLastAliases  = []string{"price", "p"}
	rowCloseAliases = []string{"close", "c"}
)

// firstPresent returns the first value present under any of the alias keys.
// Presence is all that matters here; whether the value parses is decided at
// valuation time.
func firstPresent(obj map[string]any, aliases []string) any {
	for _, k := range aliases {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// contractType returns the row's contract type, details winning.
func (r *contractRow) contractType() string {
	if r.Details.ContractType != "" {
		return r.Details.ContractType
	}
	return r.ContractType
}

// isCall reports whether the row is a call contract (case-insensitive).
func (r *contractRow) isCall() bool {
	return strings.EqualFold(r.contractType(), "call")
}

// toContract flattens the row into the domain Contract, quote fields still
// uncoerced.
func (r *contractRow) toContract() models.Contract {
	c := models.Contract{
		Ticker:           r.Details.Ticker,
		UnderlyingTicker: r.Details.UnderlyingTicker,
		ContractType:     strings.ToLower(r.contractType()),
		ExpirationDate:   r.Details.ExpirationDate,
		StrikePrice:      r.Details.StrikePrice,
		BreakEvenPrice:   r.BreakEvenPrice,
		UnderlyingAsset:  r.UnderlyingAsset,
	}
	if c.Ticker == "" {
		c.Ticker = r.Ticker
	}
	if c.ExpirationDate == "" {
		c.ExpirationDate = r.ExpirationDate
	}
	if c.StrikePrice == nil {
		c.StrikePrice = r.StrikePrice
	}

	c.Bid = firstPresent(r.LastQuote, rowBidAliases)
	c.Ask = firstPresent(r.LastQuote, rowAskAliases)
	c.Mid = firstPresent(r.LastQuote, rowMidAliases)
	c.Mark = firstPresent(r.LastQuote, rowMarkAliases)
	c.LastPrice = firstPresent(r.LastTrade, rowLastAliases)
	c.DayClose = firstPresent(r.Day, rowCloseAliases)

	return c
}
