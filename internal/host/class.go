package host

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/syntheticore/skip/internal/ir"
)

// ErrUndefinedMethod is returned when a class has no method of that name.
var ErrUndefinedMethod = errors.New("undefined method")

// Class is a named method table. Methods can be rebound at any time;
// calls see the binding current at lookup.
type Class struct {
	name string

	mu      sync.RWMutex
	methods map[string]Callable
}

// NewClass creates an empty class.
func NewClass(name string) *Class {
	return &Class{name: name, methods: make(map[string]Callable)}
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Define binds method to fn, replacing any previous binding.
func (c *Class) Define(method string, fn Callable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[method] = fn
}

// Lookup returns the callable bound to method.
func (c *Class) Lookup(method string) (Callable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.methods[method]
	return fn, ok
}

// Call invokes method with args.
func (c *Class) Call(method string, args ...ir.Value) (ir.Value, error) {
	fn, ok := c.Lookup(method)
	if !ok {
		return nil, fmt.Errorf("%w '%s' for %s", ErrUndefinedMethod, method, c.name)
	}
	return fn.Call(args...)
}

// Methods returns the defined method names in sorted order.
func (c *Class) Methods() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
