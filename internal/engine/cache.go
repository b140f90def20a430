package engine

import (
	"sort"

	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/ir"
)

// Stats counts how calls through one entry were served.
type Stats struct {
	WitnessRuns int `json:"witness_runs"`
	Native      int `json:"native"`
	Interpreted int `json:"interpreted"`
}

// Entry is the compiled state of one call site in one partition.
type Entry struct {
	state     State
	artifact  backend.Artifact
	signature ir.Signature
	report    *compiler.Report
	err       error
	stats     Stats
}

// State returns the entry's state.
func (e *Entry) State() State { return e.state }

// Artifact returns the compiled function, or nil unless COMPILED.
func (e *Entry) Artifact() backend.Artifact { return e.artifact }

// Signature returns the witness signature once a witness run produced one.
func (e *Entry) Signature() ir.Signature { return e.signature }

// Report returns the compile report, or nil if no compile ran.
func (e *Entry) Report() *compiler.Report { return e.report }

// Err returns the stored error of a FAILED entry, or the reason a
// REJECTED entry was rejected.
func (e *Entry) Err() error { return e.err }

// Stats returns the entry's dispatch counters.
func (e *Entry) Stats() Stats { return e.stats }

// Cache is one partition of compiled state, keyed by call site token.
// A Cache is not safe for concurrent use.
type Cache struct {
	entries map[string]*Entry
}

// NewCache creates an empty partition.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Lookup returns the entry for token.
func (c *Cache) Lookup(token string) (*Entry, bool) {
	e, ok := c.entries[token]
	return e, ok
}

// entry returns the entry for token, creating an UNCOMPILED one.
func (c *Cache) entry(token string) *Entry {
	e, ok := c.entries[token]
	if !ok {
		e = &Entry{}
		c.entries[token] = e
	}
	return e
}

// Len returns the number of call sites with an entry.
func (c *Cache) Len() int { return len(c.entries) }

// Tokens returns the tokens with an entry in sorted order.
func (c *Cache) Tokens() []string {
	tokens := make([]string, 0, len(c.entries))
	for tok := range c.entries {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}
