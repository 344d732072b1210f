package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

// Registry maps plugin names to plugins. Names are registered once at
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	// reserved names are consumed by the dispatcher and cannot be registered.
	reserved map[string]struct{}
}

func NewRegistry(reserved ...string) *Registry {
	r := &Registry{plugins: make(map[string]Plugin), reserved: make(map[string]struct{}, len(reserved))}
	for _, name := range reserved {
		r.reserved[name] = struct{}{}
	}
	return r
}

func (r *Registry) Register(p Plugin) error {
	name := p.Descriptor().Name
	if name == "" {
		return fmt.Errorf("register plugin: empty name")
	}
	if _, ok := r.reserved[name]; ok {
		return fmt.Errorf("register plugin %q: name is reserved", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[name]; ok {
		return fmt.Errorf("register plugin %q: already registered", name)
	}
	r.plugins[name] = p
	return nil
}

func (r *Registry) Resolve(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPluginNotFound, name)
	}
	return p, nil
}

// Menu lists the descriptors access may open, highest priority first and by
// name on ties. Plugins without a label are not listed.
func (r *Registry) Menu(access Access) []domain.PluginDescriptor {
	r.mu.RLock()
	out := make([]domain.PluginDescriptor, 0, len(r.plugins))
	for name, p := range r.plugins {
		d := p.Descriptor()
		if d.Label == "" || !access.IsAllowedPlugin(name) {
			continue
		}
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}
