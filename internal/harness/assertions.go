package harness

import (
	"fmt"
	"strings"

	"github.com/syntheticore/skip/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		switch event.Type {
		case EventCall:
			outcome := fmt.Sprint(event.Result)
			if event.Error != "" {
				outcome = "error: " + event.Error
			}
			fmt.Fprintf(&buf, "  [%d] call %v -> %s (%s, %s)\n", i+1, event.Args, outcome, event.Path, event.State)
		case EventCompilation:
			fmt.Fprintf(&buf, "  [%d] compilation %s %s\n", i+1, event.State, event.Signature)
		}
	}
	return buf.String()
}

// assertWitnessRuns checks how often the call site ran the witness.
func assertWitnessRuns(result *Result, assertion Assertion) error {
	if result.Stats.WitnessRuns == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertWitnessRuns,
		Expected: fmt.Sprintf("%d witness runs", assertion.Count),
		Actual:   fmt.Sprintf("%d witness runs", result.Stats.WitnessRuns),
		Trace:    result.Trace,
	}
}

// assertState checks the final call site state.
func assertState(result *Result, assertion Assertion) error {
	if result.State == assertion.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertState,
		Expected: fmt.Sprintf("state %s", assertion.State),
		Actual:   fmt.Sprintf("state %s", result.State),
		Trace:    result.Trace,
	}
}

// assertMatchesInterpreted checks every successful call against the value
// the original semantics produce for the same arguments.
func assertMatchesInterpreted(result *Result) error {
	for i, call := range result.Calls() {
		if call.Error != "" {
			continue
		}
		if i >= len(result.Interpreted) || result.Interpreted[i] == nil {
			return &AssertionError{
				Type:     AssertMatchesInterpreted,
				Expected: fmt.Sprintf("call %d to be interpretable", i),
				Actual:   "interpreted call failed",
				Trace:    result.Trace,
			}
		}
		if want := result.Interpreted[i]; !ir.Equal(want, call.Result) {
			return &AssertionError{
				Type:     AssertMatchesInterpreted,
				Expected: fmt.Sprintf("call %d with args %v to return %s", i, call.Args, want),
				Actual:   fmt.Sprintf("%s via %s", call.Result, call.Path),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertDispatches checks how many calls took the given path.
func assertDispatches(result *Result, assertion Assertion) error {
	count := 0
	for _, call := range result.Calls() {
		if call.Path == assertion.Path {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDispatches,
		Expected: fmt.Sprintf("%d %s dispatches", assertion.Count, assertion.Path),
		Actual:   fmt.Sprintf("%d %s dispatches", count, assertion.Path),
		Trace:    result.Trace,
	}
}

// assertCompilations checks the number of journaled compilations.
func assertCompilations(result *Result, assertion Assertion) error {
	if result.Compilations == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCompilations,
		Expected: fmt.Sprintf("%d compilations", assertion.Count),
		Actual:   fmt.Sprintf("%d compilations", result.Compilations),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertWitnessRuns:
			err = assertWitnessRuns(result, assertion)
		case AssertState:
			err = assertState(result, assertion)
		case AssertMatchesInterpreted:
			err = assertMatchesInterpreted(result)
		case AssertDispatches:
			err = assertDispatches(result, assertion)
		case AssertCompilations:
			err = assertCompilations(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
