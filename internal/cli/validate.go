package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/loader"
)

// Finding is one validation problem of a function.
type Finding struct {
	Function string `json:"function,omitempty"`
	Code     string `json:"code"`
	Path     string `json:"path,omitempty"`
	Node     string `json:"node,omitempty"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool      `json:"valid"`
	Functions int       `json:"functions"`
	Findings  []Finding `json:"findings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <dir>",
		Short: "Check functions against the compilable subset",
		Long: `Load the CUE files of dir and check every function and method
against the compilable subset without running anything.

Load problems (E0xx, E1xx) and subset violations (E2xx) are collected
rather than stopping at the first one.

Exit codes:
  0 - Every function is compilable
  1 - One or more findings
  2 - Command error (directory not found, no CUE files, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	defs, loadErrors := loader.Load(dir, loader.LoadModeCollectAll)
	if defs == nil && len(loadErrors) > 0 {
		code := errorCode(loadErrors[0])
		var le *loader.LoadError
		msg := loadErrors[0].Error()
		if errors.As(loadErrors[0], &le) {
			msg = le.Message
		}
		if err := formatter.Error(code, msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, msg))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", defs.FileCount, dir)

	var findings []Finding
	for _, err := range loadErrors {
		f := Finding{Code: errorCode(err), Message: err.Error()}
		var le *loader.LoadError
		if errors.As(err, &le) {
			f.Message = le.Message
			if le.Pos.IsValid() {
				f.Line = le.Pos.Line()
			}
		}
		findings = append(findings, f)
	}

	names := defs.Names()
	for _, name := range names {
		formatter.VerboseLog("Checking %s", name)
		tree, _ := defs.Function(name)
		for _, ve := range compiler.Check(tree) {
			findings = append(findings, Finding{
				Function: name,
				Code:     ve.Code,
				Path:     ve.Path,
				Node:     ve.Node,
				Message:  ve.Message,
			})
		}
	}

	result := ValidationResult{
		Valid:     len(findings) == 0,
		Functions: len(names),
		Findings:  findings,
	}
	if result.Valid {
		return formatter.Result(result, func(w io.Writer) {
			fmt.Fprintf(w, "✓ %d function(s) valid\n", result.Functions)
		})
	}

	msg := fmt.Sprintf("validation failed with %d finding(s)", len(findings))
	err := formatter.Failure(findings[0].Code, msg, result, func(w io.Writer) {
		for _, f := range findings {
			fmt.Fprintf(w, "✗ %s\n", formatFinding(f))
		}
		fmt.Fprintf(w, "\n%s\n", msg)
	})
	if err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

func formatFinding(f Finding) string {
	loc := f.Function
	if f.Path != "" {
		loc += "." + f.Path
	}
	if f.Line > 0 {
		loc = fmt.Sprintf("line %d", f.Line)
	}
	if loc == "" {
		return fmt.Sprintf("[%s] %s", f.Code, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Code, loc, f.Message)
}
