package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntheticore/skip/internal/ir"
)

func TestGolden_AddCompiled(t *testing.T) {
	s, err := LoadScenario("../../testdata/scenarios/add_compiled.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestGolden_AddPassThrough(t *testing.T) {
	s, err := LoadScenario("../../testdata/scenarios/add_passthrough.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, s, result))
}

func TestSnapshot_Canonical(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "s",
		State:        "REJECTED",
		Trace: []TraceEvent{
			{Type: EventCall, Seq: 1, Args: []ir.Value{ir.Array{ir.Int(1), ir.Double(2)}}, Result: ir.Nil{}, Path: PathWitness},
			{Type: EventCall, Seq: 2, Args: []ir.Value{}, Error: "boom", Path: PathNone},
		},
	}
	data, err := snap.MarshalCanonical()
	require.NoError(t, err)

	want := `{"scenario_name":"s","state":"REJECTED","trace":[` +
		`{"args":[[1,"2.0"]],"path":"witness","result":"nil","seq":1,"type":"call"},` +
		`{"args":[],"error":"boom","path":"none","seq":2,"type":"call"}]}`
	assert.Equal(t, want, string(data))
}

func TestSnapshot_OmitsEmpty(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "s",
		State:        "COMPILED",
		Trace:        []TraceEvent{{Type: EventCallSite, Seq: 1, Token: "site-1"}},
	}
	data, err := snap.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, `{"scenario_name":"s","state":"COMPILED","trace":[{"seq":1,"token":"site-1","type":"call_site"}]}`, string(data))
}
