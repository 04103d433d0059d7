package options

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"optionscope/internal/metrics"
	"optionscope/internal/provider"
	"optionscope/internal/providers/polygon"
	"optionscope/pkg/models"
)

// Pipeline orchestrates one chain request end to end: quote snapshot,
// paginated chain fetch, spot resolution with fallbacks, expiration
// selection, and per-contract valuation.
type Pipeline struct {
	Registry       *provider.Registry
	Log            *logrus.Logger
	Metrics        *metrics.Metrics
	MaxExpirations int

	// Now is the clock used to decide which expirations are in the future.
	// Injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// BuildChain fetches and values the call-options chain for ticker.
// A failed quote fetch degrades gracefully (spot falls back to the chain
// response, then to per-row data, then to nil); a failed chain fetch is
// fatal and is returned as-is.
func (p *Pipeline) BuildChain(ctx context.Context, ticker string) (*models.ChainResult, error) {
	log := p.Log.WithField("ticker", ticker)
	params := provider.QueryParams{provider.ParamSymbol: ticker}

	// Spot from the dedicated quote endpoint, when it cooperates.
	var spot float64
	var haveSpot bool
	if res, err := p.Registry.Fetch(ctx, provider.ModelStockQuote, params); err != nil {
		p.countUpstreamError(err)
		log.WithError(err).Warn("stock quote fetch failed, falling back to chain data for spot")
	} else if snap, ok := res.Data.(map[string]any); ok {
		spot, haveSpot = polygon.ResolveUnderlyingPrice(snap)
	}

	res, err := p.Registry.Fetch(ctx, provider.ModelOptionsChain, params)
	if err != nil {
		p.countUpstreamError(err)
		return nil, err
	}
	chain, ok := res.Data.(*models.ChainData)
	if !ok {
		return nil, fmt.Errorf("unexpected chain payload type %T from provider %s", res.Data, res.Provider)
	}
	if p.Metrics != nil {
		p.Metrics.UpstreamPagesTotal.WithLabelValues(res.Provider).Add(float64(chain.Pages))
	}

	if !haveSpot {
		spot, haveSpot = polygon.ResolveUnderlyingPrice(chain.UnderlyingSnapshot)
	}
	if !haveSpot {
		for _, c := range chain.Contracts {
			if spot, haveSpot = polygon.ResolveUnderlyingPrice(c.UnderlyingAsset); haveSpot {
				break
			}
		}
	}
	if !haveSpot {
		log.Warn("underlying price unavailable, intrinsic values will be zero")
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	today := now().UTC().Format("2006-01-02")
	expirations, kept := SelectExpirations(chain.Contracts, today, p.MaxExpirations)

	valued := make([]models.ValuedContract, 0, len(kept))
	for _, c := range kept {
		vc, reason, ok := Valuate(c, spot, ticker)
		if !ok {
			if p.Metrics != nil {
				p.Metrics.ContractsDiscarded.WithLabelValues(string(reason)).Inc()
			}
			log.WithFields(logrus.Fields{
				"contract": c.Ticker,
				"reason":   string(reason),
			}).Debug("contract discarded during valuation")
			continue
		}
		valued = append(valued, vc)
	}
	if p.Metrics != nil {
		p.Metrics.ContractsValued.Add(float64(len(valued)))
	}

	log.WithFields(logrus.Fields{
		"pages":       chain.Pages,
		"contracts":   len(valued),
		"expirations": len(expirations),
		"spot_found":  haveSpot,
	}).Info("chain built")

	result := &models.ChainResult{
		Ticker:      ticker,
		Expirations: expirations,
		Options:     valued,
	}
	if haveSpot {
		result.UnderlyingPrice = &spot
	}
	return result, nil
}

func (p *Pipeline) countUpstreamError(err error) {
	if p.Metrics == nil {
		return
	}
	var up *provider.ErrUpstream
	if errors.As(err, &up) {
		p.Metrics.UpstreamErrorsTotal.WithLabelValues(up.Provider, strconv.Itoa(up.Status)).Inc()
	}
}
