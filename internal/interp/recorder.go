package interp

import (
	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/ir"
)

// Recorder captures what one evaluation observed: the array each element
// iteration node iterated over, and the widest type each variable held.
// The compiler uses it to unroll iterations and to type bindings.
type Recorder struct {
	arrays map[*ast.Node]ir.Array
	vars   map[string]ir.Type
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		arrays: make(map[*ast.Node]ir.Array),
		vars:   make(map[string]ir.Type),
	}
}

// Array returns the array first iterated by the each/map node n.
func (r *Recorder) Array(n *ast.Node) (ir.Array, bool) {
	if r == nil {
		return nil, false
	}
	arr, ok := r.arrays[n]
	return arr, ok
}

// VarType returns the widest type observed for variable name.
func (r *Recorder) VarType(name string) (ir.Type, bool) {
	if r == nil {
		return ir.Type{}, false
	}
	t, ok := r.vars[name]
	return t, ok
}

// Vars returns a copy of all observed variable types.
func (r *Recorder) Vars() map[string]ir.Type {
	out := make(map[string]ir.Type, len(r.vars))
	for k, v := range r.vars {
		out[k] = v
	}
	return out
}

func (r *Recorder) observeArray(n *ast.Node, arr ir.Array) {
	if r == nil {
		return
	}
	if _, seen := r.arrays[n]; !seen {
		r.arrays[n] = append(ir.Array(nil), arr...)
	}
}

func (r *Recorder) observeVar(name string, v ir.Value) {
	if r == nil {
		return
	}
	t, err := ir.TypeOf(v)
	if err != nil {
		return
	}
	prev, seen := r.vars[name]
	if !seen || (prev.Tag == ir.TagInt && t.Tag == ir.TagDouble) {
		r.vars[name] = t
	}
}
