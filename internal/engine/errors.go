package engine

import (
	"errors"
	"fmt"
)

// ErrNoSource is returned when a callable has no reflectable syntax tree.
var ErrNoSource = errors.New("callable has no reflectable source")

// State is where a call site stands in one cache partition.
type State int32

const (
	// StateUncompiled: no witness run has completed yet.
	StateUncompiled State = iota

	// StateCompiling: a witness run is in progress.
	StateCompiling

	// StateCompiled: calls dispatch to the artifact.
	StateCompiled

	// StateRejected: the call site could not be specialized and runs
	// interpreted from now on.
	StateRejected

	// StateFailed: compilation failed or disagreed with the original
	// semantics. Calls return the stored error.
	StateFailed
)

var stateNames = [...]string{
	StateUncompiled: "UNCOMPILED",
	StateCompiling:  "COMPILING",
	StateCompiled:   "COMPILED",
	StateRejected:   "REJECTED",
	StateFailed:     "FAILED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// ParseState parses the String form of a State.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return StateUncompiled, fmt.Errorf("unknown state %q", s)
}

// Terminal reports whether no further compilation will happen.
func (s State) Terminal() bool {
	return s == StateCompiled || s == StateRejected || s == StateFailed
}
