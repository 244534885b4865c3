// Copyright 2025 Certen Protocol

package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sandhi-labs/aapi-vac/pkg/effect"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

// Registry holds the set of adapters available to the gateway pipeline
// and dispatches actions to the one registered for their domain.
type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]Adapter
	actionMap map[string]string // action -> domain
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters:  map[string]Adapter{},
		actionMap: map[string]string{},
	}
}

// Register adds an adapter, indexing each of its supported actions by
// domain. A later registration for the same domain replaces the
// earlier one.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	domain := a.Domain()
	for _, action := range a.SupportedActions() {
		r.actionMap[action] = domain
	}
	r.adapters[domain] = a
}

// Get returns the adapter registered for domain, if any.
func (r *Registry) Get(domain string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[domain]
	return a, ok
}

// GetForAction resolves the adapter that handles action, first by exact
// match and then by the action's "domain." prefix.
func (r *Registry) GetForAction(action string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if domain, ok := r.actionMap[action]; ok {
		a, ok := r.adapters[domain]
		return a, ok
	}

	if dot := strings.IndexByte(action, '.'); dot >= 0 {
		domain := action[:dot]
		a, ok := r.adapters[domain]
		return a, ok
	}

	return nil, false
}

// Domains lists every registered domain.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	domains := make([]string, 0, len(r.adapters))
	for d := range r.adapters {
		domains = append(domains, d)
	}
	return domains
}

// Actions lists every registered action.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actions := make([]string, 0, len(r.actionMap))
	for a := range r.actionMap {
		actions = append(actions, a)
	}
	return actions
}

// SupportsAction reports whether some registered adapter handles action.
func (r *Registry) SupportsAction(action string) bool {
	_, ok := r.GetForAction(action)
	return ok
}

// Info describes one registered adapter.
type Info struct {
	Domain  string   `json:"domain"`
	Version string   `json:"version"`
	Actions []string `json:"actions"`
}

// AdapterInfo summarizes every registered adapter.
func (r *Registry) AdapterInfo() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.adapters))
	for _, a := range r.adapters {
		infos = append(infos, Info{Domain: a.Domain(), Version: a.Version(), Actions: a.SupportedActions()})
	}
	return infos
}

// HealthCheckAll runs HealthCheck against every registered adapter.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	r.mu.RLock()
	adapters := make(map[string]Adapter, len(r.adapters))
	for domain, a := range r.adapters {
		adapters[domain] = a
	}
	r.mu.RUnlock()

	results := make(map[string]HealthStatus, len(adapters))
	for domain, a := range adapters {
		status, err := a.HealthCheck(ctx)
		if err != nil {
			results[domain] = Unhealthy(err.Error())
			continue
		}
		results[domain] = status
	}
	return results
}

// Dispatcher resolves and invokes the adapter for each envelope's
// action, and routes rollback requests back to the adapter that
// produced the effect being reversed.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher wraps a registry for dispatch.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch routes env to the adapter registered for its action and
// executes it.
func (d *Dispatcher) Dispatch(ctx context.Context, env *envelope.Envelope, execCtx *ExecutionContext) (*ExecutionResult, error) {
	a, ok := d.registry.GetForAction(env.Action.Name)
	if !ok {
		return nil, fmt.Errorf("%w: no adapter found for action: %s", ErrUnsupportedAction, env.Action.Name)
	}
	return a.Execute(ctx, env, execCtx)
}

// Rollback determines the owning adapter from the effect's target
// prefix (or its recorded target type) and asks it to undo the effect.
func (d *Dispatcher) Rollback(ctx context.Context, captured *effect.Captured) error {
	domain := ""
	if i := strings.IndexByte(captured.Target, ':'); i >= 0 {
		domain = captured.Target[:i]
	} else if captured.TargetType != "" {
		domain = captured.TargetType
	}
	if domain == "" {
		return fmt.Errorf("%w: cannot determine adapter for rollback", ErrRollbackFailed)
	}

	a, ok := d.registry.Get(domain)
	if !ok {
		return fmt.Errorf("%w: no adapter found for domain: %s", ErrRollbackFailed, domain)
	}
	return a.Rollback(ctx, captured)
}

// SupportsAction reports whether the wrapped registry handles action.
func (d *Dispatcher) SupportsAction(action string) bool { return d.registry.SupportsAction(action) }

// AdapterInfo summarizes every adapter in the wrapped registry.
func (d *Dispatcher) AdapterInfo() []Info { return d.registry.AdapterInfo() }

// HealthCheckAll runs a health check across every adapter in the
// wrapped registry.
func (d *Dispatcher) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	return d.registry.HealthCheckAll(ctx)
}

// RegistryBuilder assembles a pre-configured registry.
type RegistryBuilder struct {
	registry *Registry
}

// NewRegistryBuilder starts a fresh builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{registry: NewRegistry()}
}

func (b *RegistryBuilder) WithFileAdapter() *RegistryBuilder {
	b.registry.Register(NewFileAdapter())
	return b
}

func (b *RegistryBuilder) WithFileAdapterConfig(a *FileAdapter) *RegistryBuilder {
	b.registry.Register(a)
	return b
}

func (b *RegistryBuilder) WithHTTPAdapter() *RegistryBuilder {
	b.registry.Register(NewHTTPAdapter())
	return b
}

func (b *RegistryBuilder) WithHTTPAdapterConfig(a *HTTPAdapter) *RegistryBuilder {
	b.registry.Register(a)
	return b
}

func (b *RegistryBuilder) WithAdapter(a Adapter) *RegistryBuilder {
	b.registry.Register(a)
	return b
}

func (b *RegistryBuilder) Build() *Registry { return b.registry }

func (b *RegistryBuilder) BuildDispatcher() *Dispatcher { return NewDispatcher(b.registry) }

// DefaultRegistry returns a registry pre-loaded with the file and http
// adapters.
func DefaultRegistry() *Registry {
	return NewRegistryBuilder().WithFileAdapter().WithHTTPAdapter().Build()
}
