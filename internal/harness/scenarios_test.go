package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario shipped in testdata/scenarios.
func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("../../testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 11)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Calls(), len(s.Calls))
		})
	}
}

func TestScenarios_Paths(t *testing.T) {
	tests := []struct {
		file  string
		paths []string
		state string
	}{
		{"add_compiled", []string{PathWitness, PathNative, PathNative}, "COMPILED"},
		{"square_mismatch", []string{PathWitness, PathNone}, "FAILED"},
		{"square_strict", []string{PathWitness, PathInterpreted, PathInterpreted}, "REJECTED"},
		{"div_retry", []string{PathWitness, PathWitness, PathNative}, "COMPILED"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			s, err := LoadScenario("../../testdata/scenarios/" + tt.file + ".yaml")
			require.NoError(t, err)
			result, err := Run(s)
			require.NoError(t, err)

			var paths []string
			for _, c := range result.Calls() {
				paths = append(paths, c.Path)
			}
			assert.Equal(t, tt.paths, paths)
			assert.Equal(t, tt.state, result.State)
		})
	}
}
