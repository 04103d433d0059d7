package polygon

import (
	"context"
	"strings"
	"time"

	"optionscope/internal/provider"
)

// stockQuoteFetcher returns the raw per-ticker snapshot object from
// Polygon's dedicated quote endpoint. The snapshot is handed back as-is;
// extracting a price from it is the resolver's job.
type stockQuoteFetcher struct {
	provider.BaseFetcher
	prov *Provider
}

func newStockQuoteFetcher(p *Provider) *stockQuoteFetcher {
	return &stockQuoteFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelStockQuote,
			"Polygon per-ticker spot snapshot",
			[]string{provider.ParamSymbol},
			nil,
		),
		prov: p,
	}
}

func (f *stockQuoteFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	key, err := f.prov.requireKey()
	if err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(params[provider.ParamSymbol])
	rawURL := f.prov.baseURL + "/v2/snapshot/locale/us/markets/stocks/tickers/" + symbol
	fullURL, err := withAPIKey(rawURL, key)
	if err != nil {
		return nil, err
	}

	data, err := fetchJSON(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	var body map[string]any
	if err := decodeJSON(data, &body, "quote"); err != nil {
		return nil, err
	}

	return &provider.FetchResult{
		Data:      unwrapSnapshot(body),
		FetchedAt: time.Now(),
	}, nil
}

// unwrapSnapshot strips known single-object envelopes ("ticker", "results")
// so the resolver sees the snapshot itself, not the wrapper.
func unwrapSnapshot(body map[string]any) map[string]any {
	for _, envelope := range []string{"ticker", "results"} {
		if inner, ok := body[envelope].(map[string]any); ok {
			return inner
		}
	}
	return body
}
