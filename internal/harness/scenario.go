package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/engine"
)

// Scenario defines a conformance scenario: a function loaded from CUE,
// optimized under the given options and called in order.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source is the CUE directory holding the function.
	// Relative paths are resolved against the scenario file location.
	Source string `yaml:"source"`

	// Function names the function, or "Class#method" for a method.
	Function string `yaml:"function"`

	// Options configure the optimizer.
	Options Options `yaml:"options,omitempty"`

	// Calls are made in order against the optimized callable.
	Calls []CallStep `yaml:"calls"`

	// Assertions validate the trace and the final call site state.
	Assertions []Assertion `yaml:"assertions"`

	// TokenPrefix prefixes the call site tokens. Defaults to "site".
	TokenPrefix string `yaml:"token_prefix,omitempty"`
}

// Options configure the optimizer for one scenario.
type Options struct {
	// Backend names a registered backend, or "unavailable".
	// Defaults to "closure".
	Backend string `yaml:"backend,omitempty"`

	// Validate turns post-compile verification on or off. Defaults to on.
	Validate *bool `yaml:"validate,omitempty"`

	// Policy is "lenient" (default) or "strict".
	Policy string `yaml:"policy,omitempty"`
}

// CallStep is one call of the optimized function.
type CallStep struct {
	// Args are converted with ir.FromAny: YAML ints are INT, floats DOUBLE.
	Args []any `yaml:"args"`

	// Expect is the expected return value. Compared by exact equality.
	Expect any `yaml:"expect,omitempty"`

	// Error is a substring of the expected error. Mutually exclusive
	// with Expect.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "witness_runs": the call site ran the witness exactly Count times
	// - "state": the call site ended in State
	// - "matches_interpreted": every successful call equals the interpreted value
	// - "dispatches": exactly Count calls took Path
	// - "compilations": the journal holds exactly Count compilation records
	Type string `yaml:"type"`

	// Count is the expected number (witness_runs, dispatches, compilations).
	Count int `yaml:"count,omitempty"`

	// State is the expected state name (state).
	State string `yaml:"state,omitempty"`

	// Path is the dispatch path (dispatches).
	Path string `yaml:"path,omitempty"`
}

// Assertion type constants.
const (
	AssertWitnessRuns        = "witness_runs"
	AssertState              = "state"
	AssertMatchesInterpreted = "matches_interpreted"
	AssertDispatches         = "dispatches"
	AssertCompilations       = "compilations"
)

// Dispatch paths recorded in the trace.
const (
	PathWitness     = "witness"
	PathNative      = "native"
	PathInterpreted = "interpreted"
	PathPassThrough = "passthrough"
	PathNone        = "none"
)

// BackendUnavailable is the backend name that simulates a missing code
// generator.
const BackendUnavailable = "unavailable"

// LoadScenario reads and parses a scenario YAML file, resolving the source
// directory relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the source directory relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Source != "" && !filepath.IsAbs(scenario.Source) && basePath != "" {
		scenario.Source = filepath.Join(basePath, scenario.Source)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file of dir in name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Source == "" {
		return fmt.Errorf("source is required")
	}
	if _, err := os.Stat(s.Source); os.IsNotExist(err) {
		return fmt.Errorf("source directory not found: %s", s.Source)
	}
	if s.Function == "" {
		return fmt.Errorf("function is required")
	}
	if len(s.Calls) == 0 {
		return fmt.Errorf("calls list is required and must be non-empty")
	}

	if err := validateOptions(s.Options); err != nil {
		return err
	}

	for i, call := range s.Calls {
		if call.Args == nil {
			return fmt.Errorf("calls[%d]: args is required (use [] if no args)", i)
		}
		if call.Expect != nil && call.Error != "" {
			return fmt.Errorf("calls[%d]: expect and error are mutually exclusive", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateOptions(o Options) error {
	if o.Backend != "" && o.Backend != BackendUnavailable {
		if _, err := backend.Lookup(o.Backend); err != nil {
			return fmt.Errorf("options.backend: %w", err)
		}
	}
	if _, err := compiler.ParsePolicy(o.Policy); err != nil {
		return fmt.Errorf("options.policy: %w", err)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertWitnessRuns, AssertCompilations:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertState:
		if _, err := engine.ParseState(a.State); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertDispatches:
		switch a.Path {
		case PathWitness, PathNative, PathInterpreted, PathPassThrough, PathNone:
		default:
			return fmt.Errorf("assertions[%d]: unknown dispatch path %q", index, a.Path)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for dispatches", index)
		}
	case AssertMatchesInterpreted:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
