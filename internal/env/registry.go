package env

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a fresh, unstarted environment instance. The harness calls
// it once per worker and again when an episode is retried after a fault.
type Factory func() Environment

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func init() {
	MustRegister("paclite", func() Environment { return NewPaclite() })
}

// Register adds an environment constructor under a unique name.
func Register(name string, factory Factory) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if name == "" {
		return fmt.Errorf("environment name is required")
	}
	if factory == nil {
		return fmt.Errorf("environment factory is required")
	}
	if _, exists := registry[name]; exists {
		return fmt.Errorf("environment already registered: %s", name)
	}
	registry[name] = factory
	return nil
}

func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for a registered environment name.
func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown environment: %s", name)
	}
	return factory, nil
}

// Names lists the registered environments in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
