package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/syntheticore/skip/internal/ir"
)

// TraceSnapshot captures the deterministic outcome of a scenario execution.
// Compile durations are not part of it.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Function     string       `json:"function,omitempty"`
	State        string       `json:"state"`
	Trace        []TraceEvent `json:"trace"`
	Listing      string       `json:"listing,omitempty"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(scenario *Scenario, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		Function:     scenario.Function,
		State:        result.State,
		Trace:        result.Trace,
		Listing:      result.Listing,
	}
}

// canonicalValue makes v acceptable to ir.MarshalCanonical, which forbids
// null.
func canonicalValue(v ir.Value) any {
	switch x := v.(type) {
	case nil, ir.Nil:
		return "nil"
	case ir.Array:
		items := make([]any, len(x))
		for i, e := range x {
			items[i] = canonicalValue(e)
		}
		return items
	}
	return v
}

func canonicalValues(vs []ir.Value) []any {
	items := make([]any, len(vs))
	for i, v := range vs {
		items[i] = canonicalValue(v)
	}
	return items
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
		}
		if event.Token != "" {
			eventMap["token"] = event.Token
		}
		if event.Args != nil {
			eventMap["args"] = canonicalValues(event.Args)
		}
		if event.Error == "" && event.Type != EventCallSite {
			eventMap["result"] = canonicalValue(event.Result)
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		if event.Path != "" {
			eventMap["path"] = event.Path
		}
		if event.State != "" {
			eventMap["state"] = event.State
		}
		if event.Signature != "" {
			eventMap["signature"] = event.Signature
		}
		if len(event.Diagnostics) > 0 {
			eventMap["diagnostics"] = event.Diagnostics
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"state":         s.State,
		"trace":         traceList,
	}
	if s.Function != "" {
		result["function"] = s.Function
	}
	if s.Listing != "" {
		result["listing"] = s.Listing
	}
	return result
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := NewSnapshot(scenario, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}

// AssertGolden compares the given result's snapshot against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(scenario, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
