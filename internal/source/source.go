// Package source defines the capability interface shared by all symbolic
// input producers (voice, emotion, simulated) and the registry that
// instantiates them from configuration.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayanero/mimik/internal/bus"
	"github.com/ayanero/mimik/internal/config"
)

// Source is one input pipeline. Run produces events onto the bus until ctx
// is cancelled. A hardware failure inside Run is fatal to that source only:
// implementations report it through their status topic and return the error,
// and the caller decides whether to treat it as fatal to the process
// (by default it is not).
type Source interface {
	// Name identifies the source in logs and status events.
	Name() string

	// Run blocks until ctx is cancelled or the source fails. Any acquired
	// device handle must be released before Run returns, even on
	// cancellation mid-iteration.
	Run(ctx context.Context) error
}

// Factory builds one source from the full configuration and the shared bus.
type Factory func(cfg *config.Config, b *bus.Bus) (Source, error)

// ErrNotRegistered is returned by Create when no factory has been registered
// under the requested source name.
var ErrNotRegistered = errors.New("source: not registered")

// Registry maps source names to their factories. It is safe for concurrent
// use.
type Registry struct {
	mu        sync.RWMutex
	factories map[config.SourceName]Factory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[config.SourceName]Factory)}
}

// Register registers a factory under name. Subsequent calls with the same
// name overwrite the previous registration.
func (r *Registry) Register(name config.SourceName, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates the source registered under name.
// Returns [ErrNotRegistered] if no factory has been registered for it.
func (r *Registry) Create(name config.SourceName, cfg *config.Config, b *bus.Bus) (Source, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return factory(cfg, b)
}
