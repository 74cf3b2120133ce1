// Package registry holds the action schemas served by the gateway.
// It detects duplicate actions and supports atomic replacement on reload.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/querywire/core/schema"
)

// Registry manages registered schemas keyed by action name.
type Registry struct {
	mu sync.RWMutex

	// schemas by action name
	schemas map[string]*schema.Schema
}

// New creates a new registry.
func New() *Registry {
	return &Registry{
		schemas: make(map[string]*schema.Schema),
	}
}

// Register registers a schema under its name.
// Returns an error if the name is empty or already registered.
func (r *Registry) Register(s *schema.Schema) error {
	if s == nil || s.Name() == "" {
		return fmt.Errorf("schema has no action name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[s.Name()]; exists {
		return fmt.Errorf("action %q already registered", s.Name())
	}
	r.schemas[s.Name()] = s
	return nil
}

// Unregister removes an action from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[name]; !exists {
		return fmt.Errorf("action %q not registered", name)
	}
	delete(r.schemas, name)
	return nil
}

// Get returns the schema registered for an action.
func (r *Registry) Get(name string) (*schema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[name]
	return s, ok
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// List returns all registered schemas sorted by action name.
func (r *Registry) List() []*schema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]*schema.Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		schemas = append(schemas, s)
	}

	// Sort by name for consistent ordering
	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Name() < schemas[j].Name()
	})

	return schemas
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all registered schemas as a map keyed by action name.
func (r *Registry) All() map[string]*schema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*schema.Schema, len(r.schemas))
	for name, s := range r.schemas {
		result[name] = s
	}
	return result
}

// Replace swaps the registered set for schemas in one step. If the new set
// is invalid the registry is left unchanged.
func (r *Registry) Replace(schemas []*schema.Schema) error {
	next, err := index(schemas)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.schemas = next
	r.mu.Unlock()
	return nil
}

// LoadDir parses every definition under dir and replaces the registered set
// with them. It returns the number of actions loaded.
func (r *Registry) LoadDir(dir string, opts ...schema.SchemaOption) (int, error) {
	schemas, err := schema.ParseDir(dir, opts...)
	if err != nil {
		return 0, fmt.Errorf("load schemas: %w", err)
	}
	if err := r.Replace(schemas); err != nil {
		return 0, err
	}
	return len(schemas), nil
}

func index(schemas []*schema.Schema) (map[string]*schema.Schema, error) {
	next := make(map[string]*schema.Schema, len(schemas))
	var dups []string
	for _, s := range schemas {
		if s == nil || s.Name() == "" {
			return nil, fmt.Errorf("schema has no action name")
		}
		if _, exists := next[s.Name()]; exists {
			dups = append(dups, s.Name())
			continue
		}
		next[s.Name()] = s
	}
	if len(dups) > 0 {
		return nil, &ConflictError{Actions: dups}
	}
	return next, nil
}

// ConflictError reports actions declared by more than one definition.
type ConflictError struct {
	Actions []string
}

// Error returns the conflict error message.
func (e *ConflictError) Error() string {
	var msgs []string
	for _, a := range e.Actions {
		msgs = append(msgs, fmt.Sprintf("action %q declared more than once", a))
	}
	return fmt.Sprintf("duplicate actions detected:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasConflicts returns true if there are any conflicts.
func (e *ConflictError) HasConflicts() bool {
	return len(e.Actions) > 0
}
