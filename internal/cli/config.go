package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable the CLI reads:
// SKIP_BACKEND, SKIP_LOG_LEVEL, SKIP_STEP_LIMIT, ...
const EnvPrefix = "SKIP"

// Opt is a single persistent option that can also come from the
// environment or the config file.
type Opt struct {
	DestP   any // pointer to the destination
	Flag    string
	Short   string
	Default any
	Desc    string
}

// NewOpt creates a new command line option.
func NewOpt(destP any, flag string, dflt any, desc string) Opt {
	return Opt{
		DestP:   destP,
		Flag:    flag,
		Default: dflt,
		Desc:    desc,
	}
}

// newViper returns a viper instance reading SKIP_ prefixed variables.
// "-" in option names maps to "_" in variable names.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	return v
}

// BindOptions adds opts to flags and registers them with v. Values are
// resolved later by resolveOptions, once the config file is known.
func BindOptions(v *viper.Viper, flags *pflag.FlagSet, opts []Opt) {
	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			flags.StringVarP(destP, o.Flag, o.Short, d, o.Desc)
		case *int:
			var d int
			if o.Default != nil {
				d = o.Default.(int)
			}
			flags.IntVarP(destP, o.Flag, o.Short, d, o.Desc)
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			flags.BoolVarP(destP, o.Flag, o.Short, d, o.Desc)
		default:
			panic(fmt.Errorf("unknown destination type %T", o.DestP))
		}
		if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
			panic(err)
		}
	}
}

// resolveOptions copies the effective value of every option into its
// destination. Precedence: flag, environment, config file, default.
func resolveOptions(v *viper.Viper, opts []Opt) {
	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			*destP = v.GetString(o.Flag)
		case *int:
			*destP = v.GetInt(o.Flag)
		case *bool:
			*destP = v.GetBool(o.Flag)
		}
	}
}

// readConfig loads path into v. YAML, TOML and JSON are accepted; the
// format follows the file extension.
func readConfig(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// newLogger builds a console logger writing to w with RFC3339 UTC
// timestamps.
func newLogger(w io.Writer, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	config.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(config),
		zapcore.Lock(zapcore.AddSync(w)),
		lvl,
	)), nil
}
