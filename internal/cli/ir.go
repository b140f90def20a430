package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/backend/closure"
	"github.com/syntheticore/skip/internal/backend/llvm"
	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/witness"
)

// IROptions holds flags for the ir command.
type IROptions struct {
	*RootOptions
	Listing bool // closure listing instead of LLVM IR
}

// IRResult is the output of the ir command.
type IRResult struct {
	Function    string   `json:"function"`
	Signature   string   `json:"signature"`
	Witness     string   `json:"witness"`
	Code        string   `json:"code"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Loops       int      `json:"loops"`
	Unrolled    int      `json:"unrolled"`
}

// NewIRCommand creates the ir command.
func NewIRCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IROptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ir <dir> <func> [args...]",
		Short: "Show the code compiled for a witness call",
		Long: `Run the function once on the given arguments and print the LLVM IR
module compiled for the signature of that call.

With --listing the executable closure backend is used instead and its
register listing is printed.

Examples:
  skip ir ./funcs stride 2 9999
  skip ir ./funcs scale '[1, 2, 3]' 5 --listing`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIR(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Listing, "listing", false, "print the closure backend listing")

	return cmd
}

func runIR(opts *IROptions, dir, name string, rawArgs []string, cmd *cobra.Command) error {
	args, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}
	_, fn, err := loadFunction(dir, name, opts.interpOptions()...)
	if err != nil {
		return err
	}
	policy, err := compiler.ParsePolicy(opts.Policy)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	res, err := witness.Run(cmd.Context(), fn, args)
	if err != nil {
		return WrapExitError(ExitFailure, "witness run failed", err)
	}

	var be backend.Backend = llvm.New()
	if opts.Listing {
		be = closure.New()
	}
	art, report, err := compiler.Compile(fn.Source(), res.Signature, be, compiler.Options{
		Policy:       policy,
		Observations: res.Observations,
		Logger:       opts.Logger(),
	})
	if err != nil {
		return WrapExitError(ExitFailure, "compile failed", err)
	}

	result := IRResult{
		Function:  name,
		Signature: res.Signature.String(),
		Witness:   res.Value.String(),
		Code:      art.String(),
		Loops:     report.Loops,
		Unrolled:  report.Unrolled,
	}
	for _, d := range report.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, d.Error())
	}

	return opts.formatter(cmd).Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "; %s %s = %s\n", name, result.Signature, result.Witness)
		for _, d := range result.Diagnostics {
			fmt.Fprintf(w, "; warning: %s\n", d)
		}
		fmt.Fprint(w, result.Code)
	})
}
