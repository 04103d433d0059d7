// Package polygon implements the Polygon.io market-data provider: a
// per-ticker spot-price snapshot and a cursor-paginated call-options chain.
// Polygon's payload shape drifts between endpoint versions (numbers become
// strings, fields get renamed, objects get nested), so everything read from
// it goes through defensive multi-alias lookup instead of a rigid schema.
package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"optionscope/internal/infra"
	"optionscope/internal/provider"
)

const (
	providerName   = "polygon"
	credAPIKey     = "api_key"
	defaultBaseURL = "https://api.polygon.io"

	// apiKeyParam is the query parameter Polygon authenticates with. It is
	// asserted exactly once on every request, including next_url cursors.
	apiKeyParam = "apiKey"
)

// Config holds provider construction options.
type Config struct {
	BaseURL  string
	PageSize int
	MaxPages int

	// RatePerSec caps outgoing requests per second; 0 keeps the fetcher
	// default.
	RatePerSec int

	// APIKey returns the credential at call time. Reading it per request
	// means rotation needs no restart and absence fails the request, not
	// the process.
	APIKey func() string

	Log *logrus.Logger
}

// Provider is the Polygon.io data provider.
type Provider struct {
	provider.BaseProvider

	baseURL  string
	pageSize int
	maxPages int
	apiKey   func() string
	log      *logrus.Logger
}

// New creates a Polygon provider and registers its fetchers.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 250
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 15
	}
	if cfg.APIKey == nil {
		cfg.APIKey = func() string { return "" }
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Polygon.io - stock snapshots and options chains",
			"https://polygon.io",
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "Polygon API key from polygon.io",
					Required:    false, // checked at request time, not startup
					EnvVar:      "POLYGON_API_KEY",
				},
			},
		),
		baseURL:  cfg.BaseURL,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
		apiKey:   cfg.APIKey,
		log:      cfg.Log,
	}

	quote := newStockQuoteFetcher(p)
	chain := newChainFetcher(p)
	if cfg.RatePerSec > 0 {
		quote.SetRateLimit(cfg.RatePerSec, time.Second)
		chain.SetRateLimit(cfg.RatePerSec, time.Second)
	}
	p.RegisterFetcher(quote)
	p.RegisterFetcher(chain)

	return p
}

// Ping verifies connectivity and the credential by requesting one quote.
func (p *Provider) Ping(ctx context.Context) error {
	f := p.Fetcher(provider.ModelStockQuote)
	_, err := f.Fetch(ctx, provider.QueryParams{provider.ParamSymbol: "AAPL"})
	return err
}

// requireKey returns the current credential or a typed error when the
// operator has not configured one.
func (p *Provider) requireKey() (string, error) {
	key := p.apiKey()
	if key == "" {
		return "", &provider.ErrInvalidCredentials{
			Provider: providerName,
			Detail:   "missing required credential: " + credAPIKey,
		}
	}
	return key, nil
}

// withAPIKey returns rawURL with the apiKey query parameter present exactly
// once: appended when missing, left untouched when the URL already carries
// one. A rawURL that fails to parse is returned as an error so callers can
// decide whether that is fatal.
func withAPIKey(rawURL, key string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	if q.Get(apiKeyParam) == "" {
		q.Set(apiKeyParam, key)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

var jsonHeaders = map[string]string{
	"Accept": "application/json",
}

// fetchJSON performs a GET against Polygon and returns the raw body bytes.
// A non-success status becomes an ErrUpstream carrying the upstream status
// and body verbatim.
func fetchJSON(ctx context.Context, fullURL string) ([]byte, error) {
	body, status, err := infra.DoGet(ctx, fullURL, jsonHeaders)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, &provider.ErrUpstream{
			Provider: providerName,
			Status:   status,
			Body:     string(data),
		}
	}
	return data, nil
}

// decodeJSON unmarshals with a wrapped error so logs name the endpoint.
func decodeJSON(data []byte, dst any, what string) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s response: %w", what, err)
	}
	return nil
}
