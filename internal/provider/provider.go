// Package provider defines the data-provider abstraction layer: a Provider
// interface, a Fetcher interface per standard model type, and a registry
// that routes fetch requests to the appropriate provider.
package provider

import (
	"context"
	"fmt"
	"time"
)

// ModelType identifies a standard data model a fetcher can produce.
type ModelType string

const (
	// ModelStockQuote is a spot-price snapshot for an underlying ticker.
	ModelStockQuote ModelType = "StockQuote"
	// ModelOptionsChain is the paginated call-options chain for a ticker.
	ModelOptionsChain ModelType = "OptionsChain"
)

// ProviderCredential describes a required credential for a provider.
type ProviderCredential struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"`
}

// ProviderInfo holds metadata about a registered provider.
type ProviderInfo struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
	Models      []ModelType          `json:"models"`
}

// Provider is the interface that all data providers must implement.
type Provider interface {
	// Info returns metadata about this provider.
	Info() ProviderInfo

	// Init initializes the provider with credentials. Returns an error if
	// required credentials are missing.
	Init(credentials map[string]string) error

	// Fetcher returns the fetcher for the given model type, or nil if
	// unsupported.
	Fetcher(model ModelType) Fetcher

	// SupportedModels returns all model types this provider can fetch.
	SupportedModels() []ModelType

	// Ping verifies the provider's connectivity and credentials.
	Ping(ctx context.Context) error
}

// QueryParams is the generic query parameter map passed to fetchers.
type QueryParams map[string]string

// Commonly used query parameter keys.
const (
	ParamSymbol   = "symbol"
	ParamProvider = "provider"
)

// FetchResult wraps a fetcher result with metadata.
type FetchResult struct {
	Provider  string    `json:"provider"`
	Model     ModelType `json:"model"`
	Data      any       `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Fetcher is the interface for fetching a specific data type.
type Fetcher interface {
	// ModelType returns the standard model type this fetcher handles.
	ModelType() ModelType

	// Description returns a human-readable description of this fetcher.
	Description() string

	// RequiredParams returns the parameter keys this fetcher requires.
	RequiredParams() []string

	// OptionalParams returns the parameter keys this fetcher optionally accepts.
	OptionalParams() []string

	// Fetch retrieves data for the given query parameters. The returned data
	// type depends on the model:
	//   - StockQuote   → map[string]any (raw snapshot)
	//   - OptionsChain → *models.ChainData
	Fetch(ctx context.Context, params QueryParams) (*FetchResult, error)
}

// ErrProviderNotFound is returned when a requested provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// ErrModelNotSupported is returned when a provider doesn't support a model type.
type ErrModelNotSupported struct {
	Provider string
	Model    ModelType
}

func (e *ErrModelNotSupported) Error() string {
	return fmt.Sprintf("provider %q does not support model %q", e.Provider, e.Model)
}

// ErrMissingParam is returned when a required query parameter is missing.
type ErrMissingParam struct {
	Param string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// ErrInvalidCredentials is returned when provider credentials are missing
// or invalid.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

// ErrUpstream is returned when the upstream provider answers with a
// non-success HTTP status. Status and Body carry the upstream response so
// callers can surface it verbatim.
type ErrUpstream struct {
	Provider string
	Status   int
	Body     string
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("%s upstream HTTP %d: %s", e.Provider, e.Status, e.Body)
}

// ValidateParams checks that all required parameters are present in params.
func ValidateParams(params QueryParams, required []string) error {
	for _, key := range required {
		if v, ok := params[key]; !ok || v == "" {
			return &ErrMissingParam{Param: key}
		}
	}
	return nil
}
