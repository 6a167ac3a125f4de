package contract

import (
	"fmt"
	"sort"
	"sync"
)

// ConditionDef describes a registered condition for discovery and
// construction from configuration.
type ConditionDef struct {
	// Name is the key contract files reference the condition by.
	Name string
	// Description is a one-line summary for help output.
	Description string
	// Build constructs the condition from its configuration options.
	Build func(options map[string]any) (Condition, error)
}

// TermDef describes a registered term for discovery and construction
// from configuration.
type TermDef struct {
	// Name is the key contract files reference the term by.
	Name string
	// Description is a one-line summary for help output.
	Description string
	// Build constructs the term from its configuration options.
	Build func(options map[string]any) (Term, error)
}

// globalRegistry is the single global registry for conditions and terms.
var globalRegistry = &registry{
	conditions: make(map[string]ConditionDef),
	terms:      make(map[string]TermDef),
}

type registry struct {
	mu         sync.RWMutex
	conditions map[string]ConditionDef
	terms      map[string]TermDef
}

// RegisterCondition adds a condition to the global registry.
// Call this from init() functions.
func RegisterCondition(def ConditionDef) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.conditions[def.Name] = def
}

// RegisterTerm adds a term to the global registry.
// Call this from init() functions.
func RegisterTerm(def TermDef) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.terms[def.Name] = def
}

// NewCondition builds a registered condition from configuration options.
func NewCondition(name string, options map[string]any) (Condition, error) {
	globalRegistry.mu.RLock()
	def, ok := globalRegistry.conditions[name]
	globalRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown condition %q", name)
	}

	cond, err := def.Build(options)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", name, err)
	}
	return cond, nil
}

// NewTerm builds a registered term from configuration options.
func NewTerm(name string, options map[string]any) (Term, error) {
	globalRegistry.mu.RLock()
	def, ok := globalRegistry.terms[name]
	globalRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown term %q", name)
	}

	term, err := def.Build(options)
	if err != nil {
		return nil, fmt.Errorf("term %q: %w", name, err)
	}
	return term, nil
}

// ConditionNames returns all registered condition names, sorted.
func ConditionNames() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	names := make([]string, 0, len(globalRegistry.conditions))
	for name := range globalRegistry.conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TermNames returns all registered term names, sorted.
func TermNames() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	names := make([]string, 0, len(globalRegistry.terms))
	for name := range globalRegistry.terms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TermByName returns a registered term definition.
func TermByName(name string) (TermDef, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	def, ok := globalRegistry.terms[name]
	return def, ok
}

// ConditionByName returns a registered condition definition.
func ConditionByName(name string) (ConditionDef, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	def, ok := globalRegistry.conditions[name]
	return def, ok
}
