package integration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
)

// Type selects the reconciliation protocol a findings sync runs.
type Type string

const (
	TypeChecklist   Type = "checklist"
	TypeControlTest Type = "control_test"
)

// Params are free-form options passed through to the fetch methods.
type Params map[string]string

// Integration is a concrete scanner source. Fetch methods return lazy,
// finite, single-use sequences; a yielded error counts as one failed unit
// and iteration continues.
type Integration interface {
	Type() Type
	Title() string
	// AssetIdentifierField names the asset field IntegrationAsset.Identifier
	// joins against, e.g. "otherTrackingNumber".
	AssetIdentifierField() string
	FetchFindings(ctx context.Context, params Params) iter.Seq2[*IntegrationFinding, error]
	FetchAssets(ctx context.Context, params Params) iter.Seq2[*IntegrationAsset, error]
}

var ErrUnknownIntegration = errors.New("unknown integration")

// Factory builds an integration reading from source (a path, URL, etc.).
type Factory func(source string) (Integration, error)

// Registry maps integration names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds the named integration.
func (r *Registry) New(name, source string) (Integration, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntegration, name)
	}
	return f(source)
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
