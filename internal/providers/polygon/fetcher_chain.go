package polygon

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"optionscope/internal/provider"
	"optionscope/pkg/models"
)

// chainFetcher walks Polygon's cursor-paginated options-chain listing for a
// ticker, accumulating call contracts. Pagination follows next_url exactly
// as returned (credential re-asserted) until the cursor disappears or the
// hard page ceiling is reached — the ceiling bounds worst-case request
// volume against a misbehaving upstream.
type chainFetcher struct {
	provider.BaseFetcher
	prov *Provider
}

func newChainFetcher(p *Provider) *chainFetcher {
	return &chainFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelOptionsChain,
			"Polygon cursor-paginated call-options chain",
			[]string{provider.ParamSymbol},
			nil,
		),
		prov: p,
	}
}

func (f *chainFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
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
	chain, err := f.paginate(ctx, symbol, key)
	if err != nil {
		return nil, err
	}

	return &provider.FetchResult{
		Data:      chain,
		FetchedAt: time.Now(),
	}, nil
}

// firstPageURL builds the initial chain request: server-side filtered to
// calls, fixed page size.
func (f *chainFetcher) firstPageURL(symbol, key string) (string, error) {
	q := url.Values{}
	q.Set("contract_type", "call")
	q.Set("limit", strconv.Itoa(f.prov.pageSize))
	raw := fmt.Sprintf("%s/v3/snapshot/options/%s?%s", f.prov.baseURL, symbol, q.Encode())
	return withAPIKey(raw, key)
}

// paginate fetches up to maxPages pages and accumulates call rows. A
// non-success upstream status aborts immediately with no partial results;
// an unparsable next_url ends pagination normally with whatever has been
// accumulated so far.
func (f *chainFetcher) paginate(ctx context.Context, symbol, key string) (*models.ChainData, error) {
	log := f.prov.log.WithField("ticker", symbol)

	pageURL, err := f.firstPageURL(symbol, key)
	if err != nil {
		return nil, err
	}

	chain := &models.ChainData{Ticker: symbol}
	for page := 1; page <= f.prov.maxPages; page++ {
		data, err := fetchJSON(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		chain.Pages++

		var resp chainPage
		if err := decodeJSON(data, &resp, "options chain"); err != nil {
			return nil, err
		}

		for i := range resp.Results {
			row := &resp.Results[i]
			if !row.isCall() {
				log.WithFields(map[string]any{
					"page": page,
					"type": row.contractType(),
				}).Debug("skipping non-call contract row")
				continue
			}
			chain.Contracts = append(chain.Contracts, row.toContract())
		}

		if chain.UnderlyingSnapshot == nil && len(resp.UnderlyingAsset) > 0 {
			chain.UnderlyingSnapshot = resp.UnderlyingAsset
		}

		next, ok := resp.NextURL.(string)
		if !ok || next == "" {
			break
		}
		pageURL, err = withAPIKey(next, key)
		if err != nil {
			// A garbage cursor is treated as the end of the listing, not a
			// hard failure: the accumulated rows are still good.
			log.WithField("next_url", next).Debug("unparsable next_url, ending pagination")
			break
		}
	}

	log.WithFields(map[string]any{
		"pages":     chain.Pages,
		"contracts": len(chain.Contracts),
	}).Debug("chain pagination complete")

	return chain, nil
}
