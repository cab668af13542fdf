package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"TweetWatch/internal/domain"
)

// Request carries all parameters required to execute a search.
type Request struct {
	Account string
	Query   string
	Limit   int
}

// Backend captures a single search implementation (JSON API, HTML frontend, etc.).
type Backend interface {
	Name() string
	Search(ctx context.Context, req Request) ([]domain.Tweet, error)
}

// Registry keeps a mapping from backend names to their implementations.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: map[string]Backend{}}
}

// Register adds or replaces a backend implementation.
func (r *Registry) Register(backend Backend) {
	if r.backends == nil {
		r.backends = map[string]Backend{}
	}
	r.backends[backend.Name()] = backend
}

// Resolve returns a backend by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Backend, error) {
	if backend, ok := r.backends[name]; ok {
		return backend, nil
	}
	return nil, fmt.Errorf("search backend %s is not registered (have: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists registered backends.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
