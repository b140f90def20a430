package harness

import (
	"github.com/syntheticore/skip/internal/engine"
	"github.com/syntheticore/skip/internal/ir"
)

// Trace event types.
const (
	EventCall        = "call"
	EventCallSite    = "call_site"
	EventCompilation = "compilation"
)

// TraceEvent is one entry of a scenario trace: a call made by the
// scenario or a record the optimizer journaled.
type TraceEvent struct {
	Type        string     `json:"type"`
	Seq         int64      `json:"seq"`
	Token       string     `json:"token,omitempty"`
	Args        []ir.Value `json:"args,omitempty"`
	Result      ir.Value   `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	Path        string     `json:"path,omitempty"`
	State       string     `json:"state,omitempty"`
	Signature   string     `json:"signature,omitempty"`
	Diagnostics []string   `json:"diagnostics,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every call matched its expectation
	// and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains calls and journal records in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final state of the call site.
	State string `json:"state"`

	// Stats are the call site's counters.
	Stats engine.Stats `json:"stats"`

	// Listing is the compiled artifact's listing, empty unless COMPILED.
	Listing string `json:"listing,omitempty"`

	// Interpreted holds the interpreted value of every call, nil where
	// the interpreted call raised.
	Interpreted []ir.Value `json:"-"`

	// Compilations counts the journaled compilation records.
	Compilations int `json:"compilations"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns the call events of the trace.
func (r *Result) Calls() []TraceEvent {
	var calls []TraceEvent
	for _, e := range r.Trace {
		if e.Type == EventCall {
			calls = append(calls, e)
		}
	}
	return calls
}
