package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a provider from its configuration map.
type Factory func(config map[string]any) (Provider, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterFactory registers a provider factory under a name. Called
// from provider init functions; a duplicate name panics early so a
// wiring mistake is caught at startup.
func RegisterFactory(name string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("provider factory %q registered twice", name))
	}
	factories[name] = factory
}

// New constructs the named provider from its configuration.
func New(name string, config map[string]any) (Provider, error) {
	factoryMu.RLock()
	factory, ok := factories[name]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", name, List())
	}
	return factory(config)
}

// List returns the registered provider names, sorted.
func List() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
