// Package compiler lowers syntax trees of the numeric subset into a
// backend function specialized for one signature.
//
// Lowering is a recursive, depth-first dispatch on node kind over a
// read-only tree. Element iteration over arrays known at compile time is
// unrolled by substitution; counted iteration and while loops become
// native pre-test loops. What cannot be lowered is reported as a
// Diagnostic and, depending on the Policy, either skipped or fatal.
package compiler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/ir"
)

// Options configures a compile.
type Options struct {
	Policy Policy

	// Observations from the witness run. May be nil.
	Observations Observations

	// Logger receives unsupported-node warnings. Nil means no logging.
	Logger *zap.Logger
}

// Report summarizes one compile.
type Report struct {
	Function    string       `json:"function"`
	Signature   ir.Signature `json:"-"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Loops       int          `json:"loops"`
	Unrolled    int          `json:"unrolled"`
	Locals      int          `json:"locals"`
}

// Clean reports whether every node was lowered.
func (r *Report) Clean() bool {
	return len(r.Diagnostics) == 0
}

// Compile lowers the function fn for sig and returns the finished
// artifact. Under the strict policy any diagnostic turns into a
// *CompileError and no artifact is produced.
func Compile(fn *ast.Node, sig ir.Signature, be backend.Backend, opts Options) (backend.Artifact, *Report, error) {
	if fn == nil || fn.Kind() != ast.KindFunc {
		return nil, nil, fmt.Errorf("[%s] compile root must be a function, got %v", ErrNotAFunction, kindOf(fn))
	}
	if fn.Arity() != sig.Arity() {
		return nil, nil, fmt.Errorf("compile %s: signature %s does not match arity %d", fn.Name(), sig, fn.Arity())
	}
	name := fn.Name()
	if name == "" {
		name = "anonymous"
	}

	b, err := be.NewFunction(name, sig)
	if err != nil {
		return nil, nil, fmt.Errorf("compile %s: %w", name, err)
	}
	l := NewLowerer(b, NewEnv(), sig.Arity(), opts)
	report := l.Report()
	report.Function = name

	v, err := l.Lower(fn)
	if err != nil {
		return nil, report, fmt.Errorf("compile %s: %w", name, err)
	}
	// The function yields its last value.
	if v == nil && !endsInReturn(fn.Body()) {
		l.diagnose(fn, ErrTypeMismatch, "function yields no value, signature wants %s", sig.Result())
	}
	if v, err = l.orZero(v, sig.Result()); err != nil {
		return nil, report, fmt.Errorf("compile %s: %w", name, err)
	}
	if backend.Assignable(sig.Result(), v.Type()) && !narrows(sig.Result(), v.Type()) {
		err = b.Return(v)
	} else {
		_, err = l.unsupported(fn, ErrTypeMismatch, "function yields %s, signature wants %s", v.Type(), sig.Result())
	}
	if err != nil {
		return nil, report, fmt.Errorf("compile %s: %w", name, err)
	}

	if opts.Policy == Strict && !report.Clean() {
		return nil, report, &CompileError{Function: name, Diagnostics: report.Diagnostics}
	}
	art, err := b.Finish()
	if err != nil {
		return nil, report, fmt.Errorf("compile %s: %w", name, err)
	}
	return art, report, nil
}

// endsInReturn reports whether body always leaves through its final
// return statement.
func endsInReturn(body *ast.Node) bool {
	if body == nil {
		return false
	}
	if body.Kind() == ast.KindBlock {
		return endsInReturn(body.Child(body.Len() - 1))
	}
	return body.Kind() == ast.KindReturn
}

func kindOf(n *ast.Node) any {
	if n == nil {
		return "nil"
	}
	return n.Kind()
}
