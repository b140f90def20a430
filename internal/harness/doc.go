// Package harness runs conformance scenarios against the optimizer.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: add_compiled
//	description: "What this scenario validates"
//	source: ../cue          # CUE directory, relative to the scenario file
//	function: add           # or "Class#method"
//	options:
//	  backend: closure      # closure | llvm | unavailable
//	  validate: true
//	  policy: lenient       # lenient | strict
//	calls:
//	  - args: [2, 3]
//	    expect: 5
//	  - args: [1, 0]
//	    error: "divided by 0"
//	assertions:
//	  - type: witness_runs
//	    count: 1
//	  - type: state
//	    state: COMPILED
//
// # Assertion Types
//
//   - witness_runs: the call site ran the witness exactly count times
//   - state: the call site ended in the given state
//   - matches_interpreted: every successful call equals the interpreted value
//   - dispatches: exactly count calls took path (witness, native,
//     interpreted, passthrough or none)
//   - compilations: the journal holds exactly count compilation records
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory journal with sequential
// call site tokens ("site-1", ...) and a logical clock shared by the
// journal and the call trace, so traces are identical across runs and can
// be compared against golden files. Compile durations are left out of
// snapshots.
package harness
