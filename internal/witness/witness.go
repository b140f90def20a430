// Package witness runs a function once under its original semantics and
// captures what the compiler needs from that run: the result, the
// signature of the call, and the interpreter's observations.
package witness

import (
	"context"
	"errors"
	"fmt"

	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/interp"
	"github.com/syntheticore/skip/internal/ir"
)

// Result is the outcome of one witness run.
type Result struct {
	// Value is what the original semantics returned.
	Value ir.Value

	// Signature is the argument and result types of the run. It is the
	// zero Signature when the run had an untyped argument or result.
	Signature ir.Signature

	// Observations is nil when the callable cannot run under a recorder.
	Observations *interp.Recorder
}

// Run invokes fn exactly once with args.
//
// If the call itself fails, Run returns a nil Result and the call's error.
// If the call succeeds but an argument or the result has no type tag, Run
// returns the Result (with Value set) together with an error wrapping
// *ir.UnsupportedTypeError: the value is still the answer to the call.
func Run(ctx context.Context, fn host.Callable, args []ir.Value) (*Result, error) {
	var (
		res = &Result{}
		err error
	)
	if obs, ok := fn.(host.Observer); ok {
		res.Observations = interp.NewRecorder()
		res.Value, err = obs.CallObserved(ctx, res.Observations, args)
	} else {
		res.Value, err = fn.Call(args...)
	}
	if err != nil {
		return nil, err
	}
	sig, err := ir.SignatureOf(args, res.Value)
	if err != nil {
		return res, fmt.Errorf("witness %s: %w", host.Name(fn), err)
	}
	res.Signature = sig
	return res, nil
}

// MismatchError reports a compiled function that disagrees with the
// original semantics on the witness arguments.
type MismatchError struct {
	Function  string
	Signature ir.Signature
	Args      []ir.Value
	Want      ir.Value
	Got       ir.Value
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("compilation mismatch in %s %s: args %v: interpreted %s, compiled %s",
		e.Function, e.Signature, e.Args, e.Want, e.Got)
}

// IsMismatchError returns true if err is a MismatchError.
// Uses errors.As to handle wrapped errors.
func IsMismatchError(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// Verify re-invokes art on the witness arguments and compares the result
// with want by exact equality. Any difference is a *MismatchError.
func Verify(name string, art backend.Artifact, args []ir.Value, want ir.Value) error {
	got, err := art.Apply(args...)
	if err != nil {
		return fmt.Errorf("verify %s: %w", name, err)
	}
	if !ir.Equal(want, got) {
		return &MismatchError{
			Function:  name,
			Signature: art.Signature(),
			Args:      append([]ir.Value(nil), args...),
			Want:      want,
			Got:       got,
		}
	}
	return nil
}
