package interp

import (
	"errors"
	"fmt"
)

// RuntimeError is raised by the interpreter while evaluating a tree.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the s-expression of the node being evaluated, if known.
	Node string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDivisionByZero indicates integer / or % by zero.
	ErrCodeDivisionByZero RuntimeErrorCode = "DIVISION_BY_ZERO"

	// ErrCodeTypeError indicates an operator applied to unsupported operands.
	ErrCodeTypeError RuntimeErrorCode = "TYPE_ERROR"

	// ErrCodeUndefinedOperator indicates a method the dialect does not define.
	ErrCodeUndefinedOperator RuntimeErrorCode = "UNDEFINED_OPERATOR"

	// ErrCodeStepsExceeded indicates the evaluation step budget ran out.
	ErrCodeStepsExceeded RuntimeErrorCode = "STEPS_EXCEEDED"

	// ErrCodeArgument indicates a call with the wrong number of arguments.
	ErrCodeArgument RuntimeErrorCode = "ARGUMENT_ERROR"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDivisionByZero returns true if err is a division by zero RuntimeError.
func IsDivisionByZero(err error) bool {
	return hasCode(err, ErrCodeDivisionByZero)
}

// IsStepsExceeded returns true if err is a step budget RuntimeError.
func IsStepsExceeded(err error) bool {
	return hasCode(err, ErrCodeStepsExceeded)
}

// IsTypeError returns true if err is a TYPE_ERROR or UNDEFINED_OPERATOR.
func IsTypeError(err error) bool {
	return hasCode(err, ErrCodeTypeError) || hasCode(err, ErrCodeUndefinedOperator)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func newError(code RuntimeErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}
