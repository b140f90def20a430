// Package host models the runtime that owns the functions being optimized:
// callables with a declared arity, a reflection facility that yields their
// syntax trees, and classes whose method tables can be rebound.
package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/interp"
	"github.com/syntheticore/skip/internal/ir"
)

// Callable is anything the host can invoke positionally.
type Callable interface {
	Arity() int
	Call(args ...ir.Value) (ir.Value, error)
}

// Reflector is implemented by callables whose syntax tree can be obtained.
// Source returns nil when no tree is available.
type Reflector interface {
	Source() *ast.Node
}

// Observer is implemented by callables that can run under an
// interpreter recorder, exposing what the evaluation observed.
type Observer interface {
	CallObserved(ctx context.Context, rec *interp.Recorder, args []ir.Value) (ir.Value, error)
}

// ArityError reports a call with the wrong number of arguments.
type ArityError struct {
	Name string
	Want int
	Got  int
}

// Error implements the error interface.
func (e *ArityError) Error() string {
	return fmt.Sprintf("wrong number of arguments for %s (given %d, expected %d)", e.Name, e.Got, e.Want)
}

// IsArityError returns true if err is an ArityError.
// Uses errors.As to handle wrapped errors.
func IsArityError(err error) bool {
	var ae *ArityError
	return errors.As(err, &ae)
}

// CheckArity returns an *ArityError if len(args) differs from want.
func CheckArity(name string, want int, args []ir.Value) error {
	if len(args) != want {
		return &ArityError{Name: name, Want: want, Got: len(args)}
	}
	return nil
}

// Function is a callable backed by a syntax tree and run by the
// interpreter.
type Function struct {
	tree *ast.Node
	opts []interp.Option
}

// NewFunction wraps a function tree. opts configure every interpretation.
func NewFunction(tree *ast.Node, opts ...interp.Option) (*Function, error) {
	if tree == nil || tree.Kind() != ast.KindFunc {
		return nil, fmt.Errorf("host: function tree must be a func node")
	}
	return &Function{tree: tree, opts: opts}, nil
}

// Name returns the function name.
func (f *Function) Name() string { return f.tree.Name() }

// Arity returns the number of declared parameters.
func (f *Function) Arity() int { return f.tree.Arity() }

// Source returns the function tree.
func (f *Function) Source() *ast.Node { return f.tree }

// Call interprets the function.
func (f *Function) Call(args ...ir.Value) (ir.Value, error) {
	return f.CallContext(context.Background(), args...)
}

// CallContext interprets the function, honoring ctx cancellation.
func (f *Function) CallContext(ctx context.Context, args ...ir.Value) (ir.Value, error) {
	if err := CheckArity(f.Name(), f.Arity(), args); err != nil {
		return nil, err
	}
	return interp.Call(ctx, f.tree, args, f.opts...)
}

// CallObserved interprets the function with rec attached.
func (f *Function) CallObserved(ctx context.Context, rec *interp.Recorder, args []ir.Value) (ir.Value, error) {
	if err := CheckArity(f.Name(), f.Arity(), args); err != nil {
		return nil, err
	}
	opts := append(append([]interp.Option(nil), f.opts...), interp.WithRecorder(rec))
	return interp.Call(ctx, f.tree, args, opts...)
}

// NativeFunc is a Go implementation paired with the tree describing it.
// Calls run the Go code; the tree is only used for reflection.
type NativeFunc struct {
	name  string
	arity int
	fn    func(args ...ir.Value) (ir.Value, error)
	tree  *ast.Node
}

// Func creates a native callable. tree may be nil when the function has no
// reflectable source.
func Func(name string, arity int, fn func(args ...ir.Value) (ir.Value, error), tree *ast.Node) *NativeFunc {
	return &NativeFunc{name: name, arity: arity, fn: fn, tree: tree}
}

// Name returns the function name.
func (f *NativeFunc) Name() string { return f.name }

// Arity returns the declared parameter count.
func (f *NativeFunc) Arity() int { return f.arity }

// Source returns the describing tree, or nil.
func (f *NativeFunc) Source() *ast.Node { return f.tree }

// Call runs the Go implementation.
func (f *NativeFunc) Call(args ...ir.Value) (ir.Value, error) {
	if err := CheckArity(f.name, f.arity, args); err != nil {
		return nil, err
	}
	return f.fn(args...)
}

// Name returns a display name for c.
func Name(c Callable) string {
	if n, ok := c.(interface{ Name() string }); ok && n.Name() != "" {
		return n.Name()
	}
	if r, ok := c.(Reflector); ok && r.Source() != nil && r.Source().Name() != "" {
		return r.Source().Name()
	}
	return "anonymous"
}
