package compiler

import (
	"sort"

	"github.com/syntheticore/skip/internal/backend"
)

// Env maps source variable names to builder bindings for one compile
// attempt. Unroll substitutions shadow bindings while an element
// iteration body is being lowered.
type Env struct {
	vars  map[string]backend.Value
	subst map[string]backend.Value
	slots map[string]int
}

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{
		vars:  make(map[string]backend.Value),
		subst: make(map[string]backend.Value),
		slots: make(map[string]int),
	}
}

// Lookup returns the binding for name.
func (e *Env) Lookup(name string) (backend.Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Bind sets the binding for name.
func (e *Env) Bind(name string, v backend.Value) {
	e.vars[name] = v
}

// Names returns the bound names in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slot returns the positional parameter slot registered for name.
func (e *Env) Slot(name string) (int, bool) {
	s, ok := e.slots[name]
	return s, ok
}

func (e *Env) bindParam(name string, slot int, v backend.Value) {
	e.slots[name] = slot
	e.vars[name] = v
}

// substitution returns the element value substituted for name.
func (e *Env) substitution(name string) (backend.Value, bool) {
	v, ok := e.subst[name]
	return v, ok
}

// substitute binds name to one unrolled element and returns a func
// restoring the previous state.
func (e *Env) substitute(name string, v backend.Value) func() {
	prev, had := e.subst[name]
	e.subst[name] = v
	return func() {
		if had {
			e.subst[name] = prev
		} else {
			delete(e.subst, name)
		}
	}
}

// shadow rebinds name and returns a func restoring the previous binding.
func (e *Env) shadow(name string, v backend.Value) func() {
	prev, had := e.vars[name]
	e.vars[name] = v
	return func() {
		if had {
			e.vars[name] = prev
		} else {
			delete(e.vars, name)
		}
	}
}
