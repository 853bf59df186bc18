package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Opener constructs an Engine attached to the given target. The target
// string is adapter-specific (a pid, a binary path, a remote URL).
type Opener func(target string) (Engine, error)

var (
	adaptersMu sync.RWMutex
	adapters   = make(map[string]Opener)
)

// Register makes an engine adapter available under a name. External
// bindings call this from an init function, mirroring database/sql
// driver registration.
func Register(name string, open Opener) error {
	adaptersMu.Lock()
	defer adaptersMu.Unlock()

	if _, dup := adapters[name]; dup {
		return fmt.Errorf("%w: %q", ErrAdapterExists, name)
	}
	adapters[name] = open
	return nil
}

// Open attaches a registered adapter to a target.
func Open(name, target string) (Engine, error) {
	adaptersMu.RLock()
	open, ok := adapters[name]
	adaptersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrNoAdapter, name, Adapters())
	}
	return open(target)
}

// Adapters returns the sorted names of registered adapters.
func Adapters() []string {
	adaptersMu.RLock()
	defer adaptersMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
