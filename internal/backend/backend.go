// Package backend defines the function-builder abstraction the lowering
// compiler emits into, plus the registry of available code generators.
//
// A Builder is single use: one function, built front to back, then
// Finish. Control flow is expressed with callbacks so a builder can keep
// its own notion of the current insertion point.
package backend

import (
	"errors"
	"fmt"

	"github.com/syntheticore/skip/internal/ir"
)

var (
	// ErrUnavailable means the code generation facility is missing.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrNotExecutable is returned by artifacts that can only be inspected.
	ErrNotExecutable = errors.New("artifact is not executable")

	// ErrDivisionByZero is raised at apply time by integer / and %.
	ErrDivisionByZero = errors.New("divided by 0")

	// ErrIntegerRange is raised at apply time when a DOUBLE that is NaN,
	// infinite or outside the int64 range is stored into an INT.
	ErrIntegerRange = errors.New("double out of integer range")

	// ErrUnsupportedSignature means the backend cannot build a function
	// for the requested signature.
	ErrUnsupportedSignature = errors.New("unsupported signature")

	// ErrArgumentMismatch means an artifact was applied to arguments that
	// do not match its signature.
	ErrArgumentMismatch = errors.New("arguments do not match signature")
)

// Value is a handle to an IR value inside one Builder.
type Value interface {
	Type() ir.Type
}

// Builder emits one function.
type Builder interface {
	Signature() ir.Signature

	// Param returns the assignable binding for positional parameter i.
	Param(i int) (Value, error)

	// Constant materializes a typed constant.
	Constant(v ir.Value) (Value, error)

	// Local allocates a zero-initialized, assignable binding.
	Local(t ir.Type) (Value, error)

	// Store assigns src to dst, converting between INT and DOUBLE.
	Store(dst, src Value) error

	// Binary emits an arithmetic or comparison instruction.
	Binary(op Op, x, y Value) (Value, error)

	// Tuple snapshots scalar values into a literal-sized array.
	Tuple(elems []Value) (Value, error)

	// If emits a single-arm conditional. then emits the body.
	If(cond Value, then func() error) error

	// While emits a pre-test loop. cond is emitted at the loop head and
	// runs before every iteration.
	While(cond func() (Value, error), body func() error) error

	// Return emits a return of v, converted to the signature's result type.
	Return(v Value) error

	// Finish seals the function and returns the artifact.
	Finish() (Artifact, error)
}

// Artifact is a compiled function owned by its backend.
type Artifact interface {
	Signature() ir.Signature
	Apply(args ...ir.Value) (ir.Value, error)
	String() string
}

// Backend creates builders.
type Backend interface {
	Name() string

	// Available returns nil if artifacts built by this backend can be
	// applied, or an error wrapping ErrUnavailable.
	Available() error

	NewFunction(name string, sig ir.Signature) (Builder, error)
}

// CheckSignature rejects signatures no backend can specialize for:
// array parameters and untyped slots.
func CheckSignature(sig ir.Signature) error {
	for i, p := range sig.Params() {
		if !p.IsScalar() {
			return fmt.Errorf("%w: parameter %d has type %s", ErrUnsupportedSignature, i, p)
		}
	}
	if r := sig.Result(); r.Tag == ir.TagInvalid || (r.Tag == ir.TagArray && !r.ElemType().IsScalar()) {
		return fmt.Errorf("%w: result type %s", ErrUnsupportedSignature, r)
	}
	return nil
}

// CheckArgs verifies args against sig before an artifact runs.
func CheckArgs(sig ir.Signature, args []ir.Value) error {
	if len(args) != sig.Arity() {
		return fmt.Errorf("%w: got %d arguments, want %d", ErrArgumentMismatch, len(args), sig.Arity())
	}
	if !sig.Matches(args) {
		return fmt.Errorf("%w: %s", ErrArgumentMismatch, sig)
	}
	return nil
}

type unavailable struct {
	reason string
}

// Unavailable returns a backend that is never available. It simulates a
// missing code generation facility.
func Unavailable(reason string) Backend {
	return &unavailable{reason: reason}
}

func (u *unavailable) Name() string { return "unavailable" }

func (u *unavailable) Available() error {
	return fmt.Errorf("%w: %s", ErrUnavailable, u.reason)
}

func (u *unavailable) NewFunction(string, ir.Signature) (Builder, error) {
	return nil, u.Available()
}
