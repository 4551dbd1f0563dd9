// Package loader holds the process-wide registry of deferred-loaded engine
// libraries. A library is fetched at most once: concurrent first requesters
// share a single in-flight load and every later request reuses the cached
// exported handle.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Library identifiers for the built-in engine kinds
const (
	LibraryHLS  = "hls"
	LibraryDASH = "dash"
)

// ErrUnknownLibrary is returned when no loader or handle is registered for
// an identifier
var ErrUnknownLibrary = errors.New("loader: unknown library")

// LoadFunc fetches an engine library and returns its exported handle
type LoadFunc func(ctx context.Context) (any, error)

// Registry maps library identifiers to ready-to-use exported handles,
// initialized lazily on first request. The registry is process-scoped, not
// per-session; handles live until process exit.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]LoadFunc
	handles map[string]any
	group   singleflight.Group
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		loaders: make(map[string]LoadFunc),
		handles: make(map[string]any),
	}
}

// RegisterLoader installs the fetch step for a library identifier
func (r *Registry) RegisterLoader(name string, load LoadFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = load
}

// RegisterHandle installs an already-resolved handle, bypassing loading
func (r *Registry) RegisterHandle(name string, handle any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[name] = handle
}

// Resolve returns the exported handle for a library, loading it on first
// request. A failed load is not cached; the next request retries.
func (r *Registry) Resolve(ctx context.Context, name string) (any, error) {
	r.mu.RLock()
	if handle, ok := r.handles[name]; ok {
		r.mu.RUnlock()
		return handle, nil
	}
	load, ok := r.loaders[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLibrary, name)
	}

	handle, err, _ := r.group.Do(name, func() (any, error) {
		// re-check: a concurrent Resolve may have stored the handle
		r.mu.RLock()
		cached, ok := r.handles[name]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load library %s: %w", name, err)
		}

		r.mu.Lock()
		r.handles[name] = loaded
		r.mu.Unlock()

		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Loaded reports whether a library handle is already cached
func (r *Registry) Loaded(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[name]
	return ok
}
