package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syntheticore/skip/internal/ast"
)

// ASTEntry is one function tree in the ast command output.
type ASTEntry struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Sexp string `json:"sexp"`
	Tree string `json:"-"`
}

// NewASTCommand creates the ast command.
func NewASTCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ast <dir> [func]",
		Short: "Print function trees",
		Long: `Print the syntax trees of the functions and methods loaded from dir.
Without func every function and every method (Class#method) is printed.

Examples:
  skip ast ./funcs
  skip ast ./funcs stride
  skip ast ./funcs Vec#dot --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return runAST(rootOpts, args[0], name, cmd)
		},
	}

	return cmd
}

func runAST(opts *RootOptions, dir, name string, cmd *cobra.Command) error {
	defs, err := loadSource(dir)
	if err != nil {
		return err
	}

	names := defs.Names()
	if name != "" {
		if _, ok := defs.Function(name); !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("function %q not found", name))
		}
		names = []string{name}
	}

	entries := make([]ASTEntry, 0, len(names))
	for _, n := range names {
		tree, _ := defs.Function(n)
		hash, err := ast.Hash(tree)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to hash "+n, err)
		}
		entries = append(entries, ASTEntry{
			Name: n,
			Hash: hash,
			Sexp: tree.String(),
			Tree: ast.Tree(tree),
		})
	}

	return opts.formatter(cmd).Result(entries, func(w io.Writer) {
		for i, e := range entries {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprint(w, e.Tree)
		}
	})
}
