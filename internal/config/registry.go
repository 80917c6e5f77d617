package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/assessly-ai/assessly/pkg/provider/eval"
	"github.com/assessly-ai/assessly/pkg/provider/live"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	liveProv map[string]func(ProviderEntry) (live.Provider, error)
	evalProv map[string]func(ProviderEntry) (eval.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		liveProv: make(map[string]func(ProviderEntry) (live.Provider, error)),
		evalProv: make(map[string]func(ProviderEntry) (eval.Provider, error)),
	}
}

// RegisterLive registers a realtime channel provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLive(name string, factory func(ProviderEntry) (live.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveProv[name] = factory
}

// RegisterEval registers an evaluation provider factory under name.
func (r *Registry) RegisterEval(name string, factory func(ProviderEntry) (eval.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evalProv[name] = factory
}

// CreateLive instantiates a realtime provider using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateLive(entry ProviderEntry) (live.Provider, error) {
	r.mu.RLock()
	factory, ok := r.liveProv[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: live/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEval instantiates an evaluation provider using the factory registered
// under entry.Name.
func (r *Registry) CreateEval(entry ProviderEntry) (eval.Provider, error) {
	r.mu.RLock()
	factory, ok := r.evalProv[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: eval/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
