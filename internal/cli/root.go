package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/syntheticore/skip/internal/backend"
	_ "github.com/syntheticore/skip/internal/backend/closure"
	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/engine"
	"github.com/syntheticore/skip/internal/interp"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Config    string
	LogLevel  string
	Backend   string
	Policy    string
	Validate  bool
	StepLimit int

	viper  *viper.Viper
	opts   []Opt
	logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the skip CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: newViper()}

	cmd := &cobra.Command{
		Use:   "skip",
		Short: "skip - witness-driven specializing compiler",
		Long: `Run functions under an interpreter, watch one call, and compile a
specialized version for the argument types that call used.

Functions are loaded from CUE files. Every option below can also be set
through a SKIP_ environment variable (SKIP_BACKEND, SKIP_LOG_LEVEL, ...)
or a config file passed with --config.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (yaml, toml or json)")
	opts.opts = []Opt{
		{DestP: &opts.Verbose, Flag: "verbose", Short: "v", Default: false, Desc: "verbose output"},
		NewOpt(&opts.Format, "format", "text", "output format (json|text)"),
		NewOpt(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)"),
		NewOpt(&opts.Backend, "backend", "closure", "compiler backend (closure|llvm)"),
		NewOpt(&opts.Policy, "policy", "lenient", "unsupported node policy (lenient|strict)"),
		NewOpt(&opts.Validate, "validate", true, "re-run compiled code on the witness arguments"),
		NewOpt(&opts.StepLimit, "step-limit", interp.DefaultStepLimit, "interpreter step budget per call (0 = unlimited)"),
	}
	BindOptions(opts.viper, cmd.PersistentFlags(), opts.opts)

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewIRCommand(opts))
	cmd.AddCommand(NewASTCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewBenchCommand(opts))

	return cmd
}

// init resolves options from flags, environment and config file and
// builds the logger.
func (o *RootOptions) init(cmd *cobra.Command) error {
	if err := readConfig(o.viper, o.Config); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	resolveOptions(o.viper, o.opts)

	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if _, err := compiler.ParsePolicy(o.Policy); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger, err := newLogger(cmd.ErrOrStderr(), o.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.logger = logger
	return nil
}

// Logger returns the configured logger, or a no-op logger before init.
func (o *RootOptions) Logger() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}

// formatter returns an output formatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// interpOptions returns the interpreter options for loaded functions.
func (o *RootOptions) interpOptions() []interp.Option {
	return []interp.Option{interp.WithStepLimit(o.StepLimit)}
}

// newOptimizer builds an optimizer from the configured backend, policy
// and validation setting. extra options are applied last.
func (o *RootOptions) newOptimizer(extra ...engine.Option) (*engine.Optimizer, error) {
	be, err := backend.Lookup(o.Backend)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	policy, err := compiler.ParsePolicy(o.Policy)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	opts := []engine.Option{
		engine.WithBackend(be),
		engine.WithPolicy(policy),
		engine.WithValidation(o.Validate),
		engine.WithLogger(o.Logger()),
	}
	return engine.New(append(opts, extra...)...), nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
