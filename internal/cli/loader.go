package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/interp"
	"github.com/syntheticore/skip/internal/ir"
	"github.com/syntheticore/skip/internal/loader"
)

// loadSource loads every function and class of dir. Any load error is a
// command error carrying the loader's code.
func loadSource(dir string) (*loader.Result, error) {
	result, errs := loader.Load(dir, loader.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load "+dir, loader.Combine(errs))
	}
	return result, nil
}

// loadFunction loads the named function of dir ("Class#method" names a
// method) as an interpreted host function.
func loadFunction(dir, name string, opts ...interp.Option) (*loader.Result, *host.Function, error) {
	defs, err := loadSource(dir)
	if err != nil {
		return nil, nil, err
	}
	fn, err := defs.NewFunction(name, opts...)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load function", err)
	}
	return defs, fn, nil
}

// parseArgs parses command line arguments: integers, doubles, booleans,
// nil and bracketed arrays.
func parseArgs(raw []string) ([]ir.Value, error) {
	args := make([]ir.Value, len(raw))
	for i, s := range raw {
		v, err := ir.ParseValue(s)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid argument %d", i), err)
		}
		args[i] = v
	}
	return args, nil
}

// errorCode returns the code of err when it is a load error.
func errorCode(err error) string {
	var le *loader.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// requireFile fails with a command error unless path exists.
func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found: "+path, err)
	}
	return nil
}
