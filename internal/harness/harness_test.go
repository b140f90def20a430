package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/syntheticore/skip/internal/ir"
)

const cueDir = "../../testdata/cue"

func addScenario() *Scenario {
	return &Scenario{
		Name:        "add",
		Description: "add two numbers",
		Source:      cueDir,
		Function:    "add",
		Calls: []CallStep{
			{Args: []any{2, 3}, Expect: 5},
			{Args: []any{10, 20}, Expect: 30},
		},
	}
}

func TestRun_Compiles(t *testing.T) {
	result, err := Run(addScenario())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "COMPILED", result.State)
	assert.Equal(t, 1, result.Stats.WitnessRuns)
	assert.Equal(t, 1, result.Stats.Native)
	assert.Equal(t, 1, result.Compilations)
	assert.Contains(t, result.Listing, "func add(INT, INT) -> INT")

	calls := result.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, PathWitness, calls[0].Path)
	assert.Equal(t, PathNative, calls[1].Path)
	assert.Equal(t, "site-1", calls[1].Token)
	assert.Equal(t, ir.Int(30), calls[1].Result)
}

func TestRun_TraceOrder(t *testing.T) {
	result, err := Run(addScenario())
	require.NoError(t, err)

	var types []string
	for i, e := range result.Trace {
		types = append(types, e.Type)
		assert.Equal(t, int64(i+1), e.Seq, "seq is dense and ordered")
	}
	assert.Equal(t, []string{EventCallSite, EventCompilation, EventCall, EventCall}, types)
	assert.Equal(t, "(INT, INT) -> INT", result.Trace[1].Signature)
	assert.Equal(t, []ir.Value{ir.Int(2), ir.Int(3)}, result.Trace[1].Args)
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(addScenario())
	require.NoError(t, err)
	second, err := Run(addScenario())
	require.NoError(t, err)

	a, err := NewSnapshot(addScenario(), first).MarshalCanonical()
	require.NoError(t, err)
	b, err := NewSnapshot(addScenario(), second).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ExpectMismatch(t *testing.T) {
	s := addScenario()
	s.Calls[1].Expect = 31

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "calls[1]: expected 31, got 30", result.Errors[0])
}

func TestRun_ExpectIsExact(t *testing.T) {
	s := addScenario()
	s.Calls[1].Expect = 30.0

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass, "30.0 is a DOUBLE, the result an INT")
}

func TestRun_ExpectedError(t *testing.T) {
	s := addScenario()
	s.Calls = append(s.Calls, CallStep{Args: []any{1}, Error: "wrong number of arguments"})

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	calls := result.Calls()
	assert.Equal(t, PathNone, calls[2].Path)
	assert.Contains(t, calls[2].Error, "given 1, expected 2")
}

func TestRun_UnexpectedError(t *testing.T) {
	s := addScenario()
	s.Function = "div"
	s.Calls = []CallStep{{Args: []any{1, 0}}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, "UNCOMPILED", result.State)
}

func TestRun_MissingErrorReported(t *testing.T) {
	s := addScenario()
	s.Calls[0].Expect = nil
	s.Calls[0].Error = "boom"

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, []string{`calls[0]: expected error containing "boom", got 5`}, result.Errors)
}

func TestRun_PassThrough(t *testing.T) {
	s := addScenario()
	s.Options.Backend = BackendUnavailable

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Equal(t, "UNCOMPILED", result.State)
	assert.Zero(t, result.Compilations)
	for _, c := range result.Calls() {
		assert.Equal(t, PathPassThrough, c.Path)
		assert.Empty(t, c.Token)
	}
}

func TestRun_ValidationOff(t *testing.T) {
	off := false
	s := addScenario()
	s.Function = "square"
	s.Options.Validate = &off
	s.Calls = []CallStep{{Args: []any{3}, Expect: 9}, {Args: []any{4}, Expect: 0}}
	s.Assertions = []Assertion{{Type: AssertMatchesInterpreted}}

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1, "only the interpreter disagrees")
	assert.Contains(t, result.Errors[0], "Assertion failed: matches_interpreted")
	assert.Contains(t, result.Errors[0], "to return 16")
	require.Len(t, result.Trace[1].Diagnostics, 1)
}

func TestRun_Method(t *testing.T) {
	s := addScenario()
	s.Function = "Vec#dot"
	s.Calls = []CallStep{{Args: []any{1, 2, 3, 4}, Expect: 11}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_TokenPrefix(t *testing.T) {
	s := addScenario()
	s.TokenPrefix = "add"

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, "add-1", result.Calls()[0].Token)
}

func TestRun_UnknownFunction(t *testing.T) {
	s := addScenario()
	s.Function = "missing"
	_, err := Run(s)
	assert.ErrorContains(t, err, `function "missing" not found`)
}

func TestRun_BadSource(t *testing.T) {
	s := addScenario()
	s.Source = "testdata/none"
	_, err := Run(s)
	assert.ErrorContains(t, err, "E005")
}

func TestRun_BadArgs(t *testing.T) {
	s := addScenario()
	s.Calls = []CallStep{{Args: []any{"two", 3}}}
	_, err := Run(s)
	assert.ErrorContains(t, err, "calls[0]: args[0]")
}

func TestRunWithLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	_, err := RunWithLogger(addScenario(), zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("call site compiled").Len())
	assert.Equal(t, 2, logs.FilterMessage("scenario call").Len())
}
