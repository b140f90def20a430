package backend

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Backend)
)

// Register makes a backend available by name. It panics if Register is
// called twice with the same name or if b is nil.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if b == nil {
		panic("backend: Register backend is nil")
	}
	if _, dup := registry[b.Name()]; dup {
		panic("backend: Register called twice for backend " + b.Name())
	}
	registry[b.Name()] = b
}

// Lookup returns the registered backend with the given name.
func Lookup(name string) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (registered: %v)", name, namesLocked())
	}
	return b, nil
}

// Names returns the sorted names of the registered backends.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
