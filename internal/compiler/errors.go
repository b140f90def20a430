package compiler

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/syntheticore/skip/internal/ast"
)

// Lowering and validation codes (E200-E299)
const (
	ErrUnsupportedNode     = "E200" // node kind outside the supported subset
	ErrUnsupportedLiteral  = "E201" // literal without a type tag
	ErrUnsupportedOperator = "E202" // method outside the operator allow-list
	ErrUnsupportedReceiver = "E203" // iteration receiver of the wrong type
	ErrUnknownArray        = "E204" // element iteration over an array unknown at compile time
	ErrAssignIterParam     = "E205" // assignment to an unrolled iteration parameter
	ErrTypeMismatch        = "E206" // operands or binding of incompatible types
	ErrParamSlot           = "E207" // parameter without a positional slot
	ErrNotAFunction        = "E208" // compile root is not a function wrapper
)

// Diagnostic records one node the compiler could not lower. Under the
// lenient policy the node yields an absent value and compilation goes on.
type Diagnostic struct {
	Code    string   `json:"code"`
	Kind    ast.Kind `json:"-"`
	Node    string   `json:"node"`
	Message string   `json:"message"`
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Node, d.Message)
}

// CompileError rejects a whole compile under the strict policy.
type CompileError struct {
	Function    string
	Diagnostics []Diagnostic
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("compile %s rejected: %s", e.Function, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual diagnostics to errors.Is and errors.As.
func (e *CompileError) Unwrap() []error {
	var combined error
	for _, d := range e.Diagnostics {
		combined = multierr.Append(combined, d)
	}
	return multierr.Errors(combined)
}

// IsCompileError returns true if err is a CompileError.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
