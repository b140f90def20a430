// Package engine replaces host functions with self-specializing
// trampolines.
//
// Optimize wraps a callable whose syntax tree can be reflected. The
// first call through the trampoline is a witness run: the original
// semantics execute once, the argument and result types become the
// signature, and the tree is compiled for that signature. Every later call
// dispatches straight to the compiled artifact.
//
// STATES (per call site and cache partition):
//
//	UNCOMPILED -> COMPILING -> COMPILED
//	                        -> REJECTED  (runs interpreted forever)
//	                        -> FAILED    (returns the stored error)
//
// A call that arrives while its own call site is COMPILING (recursion
// during the witness run) is interpreted.
//
// PARTITIONS:
//
// Compiled state lives in a Cache keyed by call site token. Each
// trampoline owns a default Cache; Trampoline.With binds the same call
// site to another Cache. A Cache has no locks: give each goroutine its
// own partition.
//
// ARITY:
//
// The arity guard runs before anything else on every call, compiled or
// not, and fails with *host.ArityError.
package engine
