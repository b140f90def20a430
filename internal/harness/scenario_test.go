package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario file whose source is the shared CUE
// fixture directory.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	src, err := filepath.Abs(cueDir)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	content := "source: " + src + "\n" + body
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ============================================================
// LoadScenario
// ============================================================

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("../../testdata/scenarios/square_unvalidated.yaml")
	require.NoError(t, err)

	assert.Equal(t, "square_unvalidated", s.Name)
	assert.Equal(t, "square", s.Function)
	assert.Equal(t, filepath.Join("../../testdata/scenarios", "../cue"), s.Source)
	require.NotNil(t, s.Options.Validate)
	assert.False(t, *s.Options.Validate)
	require.Len(t, s.Calls, 2)
	assert.Equal(t, []any{3}, s.Calls[0].Args)
	assert.Equal(t, 9, s.Calls[0].Expect)
	assert.Equal(t, []Assertion{{Type: AssertState, State: "COMPILED"}}, s.Assertions)
}

func TestLoadScenario_AbsoluteSource(t *testing.T) {
	path := writeScenario(t, `
name: abs
description: absolute source
function: add
calls:
  - args: [1, 2]
    expect: 3
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(s.Source))
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown field",
			body: "name: x\ndescription: d\nfunction: add\ncall:\n  - args: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			body: "description: d\nfunction: add\ncalls:\n  - args: []\n",
			want: "name is required",
		},
		{
			name: "missing function",
			body: "name: x\ndescription: d\ncalls:\n  - args: []\n",
			want: "function is required",
		},
		{
			name: "no calls",
			body: "name: x\ndescription: d\nfunction: add\n",
			want: "calls list is required",
		},
		{
			name: "missing args",
			body: "name: x\ndescription: d\nfunction: add\ncalls:\n  - expect: 1\n",
			want: "calls[0]: args is required",
		},
		{
			name: "expect and error",
			body: "name: x\ndescription: d\nfunction: add\ncalls:\n  - args: []\n    expect: 1\n    error: boom\n",
			want: "mutually exclusive",
		},
		{
			name: "unknown backend",
			body: "name: x\ndescription: d\nfunction: add\noptions:\n  backend: jit\ncalls:\n  - args: []\n",
			want: "options.backend",
		},
		{
			name: "unknown policy",
			body: "name: x\ndescription: d\nfunction: add\noptions:\n  policy: loose\ncalls:\n  - args: []\n",
			want: "options.policy",
		},
		{
			name: "unknown assertion",
			body: "name: x\ndescription: d\nfunction: add\ncalls:\n  - args: []\nassertions:\n  - type: fast\n",
			want: `unknown assertion type "fast"`,
		},
		{
			name: "bad state",
			body: "name: x\ndescription: d\nfunction: add\ncalls:\n  - args: []\nassertions:\n  - type: state\n    state: DONE\n",
			want: "assertions[0]",
		},
		{
			name: "bad path",
			body: "name: x\ndescription: d\nfunction: add\ncalls:\n  - args: []\nassertions:\n  - type: dispatches\n    path: jit\n",
			want: `unknown dispatch path "jit"`,
		},
		{
			name: "negative count",
			body: "name: x\ndescription: d\nfunction: add\ncalls:\n  - args: []\nassertions:\n  - type: witness_runs\n    count: -1\n",
			want: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	body := "name: x\ndescription: d\nsource: nowhere\nfunction: add\ncalls:\n  - args: []\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := LoadScenario(path)
	assert.ErrorContains(t, err, "source directory not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/missing.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")
}

// ============================================================
// LoadScenarios
// ============================================================

func TestLoadScenarios_Sorted(t *testing.T) {
	scenarios, err := LoadScenarios("../../testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for i := 1; i < len(scenarios); i++ {
		assert.Less(t, scenarios[i-1].Name, scenarios[i].Name)
	}
}

func TestLoadScenarios_NamesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: x\n"), 0o644))

	_, err := LoadScenarios(dir)
	assert.ErrorContains(t, err, "bad.yaml")
}
