package models

// Contract is a single call-option row as accumulated from the provider's
// chain listing. Quote fields are kept exactly as the provider sent them
// (numbers or numeric strings) — coercion to float64 happens at valuation
// time so a malformed field drops one candidate, not the whole row.
type Contract struct {
	Ticker           string `json:"ticker"`
	UnderlyingTicker string `json:"underlying_ticker"`
	ContractType     string `json:"contract_type"`
	ExpirationDate   string `json:"expiration_date"` // YYYY-MM-DD
	StrikePrice      any    `json:"strike_price"`

	// Best-quote fields, each optional.
	Bid       any `json:"bid,omitempty"`
	Ask       any `json:"ask,omitempty"`
	Mid       any `json:"mid,omitempty"`
	Mark      any `json:"mark,omitempty"`
	LastPrice any `json:"last_price,omitempty"`
	DayClose  any `json:"day_close,omitempty"`

	// Provider-computed break-even, when present.
	BreakEvenPrice any `json:"break_even_price,omitempty"`

	// UnderlyingAsset is the raw underlying sub-object embedded in the row,
	// kept only as a last-resort source for the spot price.
	UnderlyingAsset map[string]any `json:"-"`
}

// ValuedContract is a Contract with derived valuation fields. Derived once,
// immutable afterward.
type ValuedContract struct {
	Ticker     string  `json:"ticker"`
	Strike     float64 `json:"strike"`
	Expiration string  `json:"expiration"`

	Premium   float64 `json:"premium"`
	Intrinsic float64 `json:"intrinsic"`
	Extrinsic float64 `json:"extrinsic"`
	BreakEven float64 `json:"breakEven"`

	// Underlying price required for the call's intrinsic value to equal
	// N times the premium paid.
	Target2x float64 `json:"target2x"`
	Target3x float64 `json:"target3x"`
	Target4x float64 `json:"target4x"`
}

// ChainData is the accumulated output of walking the provider's paginated
// chain listing: the retained call rows, the underlying sub-object from the
// chain response (a fallback source for the spot price), and how many pages
// were fetched.
type ChainData struct {
	Ticker             string         `json:"ticker"`
	Contracts          []Contract     `json:"contracts"`
	UnderlyingSnapshot map[string]any `json:"-"`
	Pages              int            `json:"pages"`
}

// ChainResult is the single externally consumed artifact of the pipeline:
// spot price (nil when unavailable), the bounded set of future expirations,
// and the valued contracts restricted to those expirations.
type ChainResult struct {
	Ticker          string           `json:"ticker"`
	UnderlyingPrice *float64         `json:"underlyingPrice"`
	Expirations     []string         `json:"expirations"`
	Options         []ValuedContract `json:"options"`
}
