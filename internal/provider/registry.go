package provider

import (
	"context"
	"fmt"
	"sync"
)

// Registry is a thread-safe registry of data providers. It maps provider
// names to Provider instances and maintains an index of which providers
// support which model types.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	modelIdx  map[ModelType][]string // model → provider names (priority order)
	defaults  map[ModelType]string
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		modelIdx:  make(map[ModelType][]string),
		defaults:  make(map[ModelType]string),
	}
}

// Register adds a provider to the registry. Credentials should be set via
// Init() before calling Register. Duplicate registrations overwrite the
// previous entry.
func (r *Registry) Register(p Provider) error {
	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[info.Name] = p

	for _, model := range p.SupportedModels() {
		existing := r.modelIdx[model]
		found := false
		for _, name := range existing {
			if name == info.Name {
				found = true
				break
			}
		}
		if !found {
			r.modelIdx[model] = append(existing, info.Name)
		}
		if _, ok := r.defaults[model]; !ok {
			r.defaults[model] = info.Name
		}
	}

	return nil
}

// Get returns a registered provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// ProvidersFor returns the names of providers supporting the given model,
// in registration order.
func (r *Registry) ProvidersFor(model ModelType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.modelIdx[model]))
	copy(names, r.modelIdx[model])
	return names
}

// Fetch routes a fetch request to the named provider, or to the default
// provider for the model when params has no "provider" key.
func (r *Registry) Fetch(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	name := params[ParamProvider]
	if name == "" {
		r.mu.RLock()
		name = r.defaults[model]
		r.mu.RUnlock()
	}
	if name == "" {
		return nil, &ErrModelNotSupported{Provider: "(none)", Model: model}
	}

	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	f := p.Fetcher(model)
	if f == nil {
		return nil, &ErrModelNotSupported{Provider: name, Model: model}
	}

	if err := ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}

	res, err := f.Fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	res.Provider = name
	res.Model = model
	return res, nil
}
