package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"runtime/trace"

	"github.com/evanw/esmloader/internal/config"
	"github.com/evanw/esmloader/internal/exitcode"
	"github.com/evanw/esmloader/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type cli struct {
	v     *viper.Viper
	stdin io.Reader

	configFile     string
	traceFile      string
	cpuprofileFile string

	// Valid once the root command's pre-run hook has finished
	options config.Options

	stopProfiling []func()
}

func newRootCommand(stdin io.Reader) *cobra.Command {
	c := &cli{v: config.NewViper(), stdin: stdin}

	root := &cobra.Command{
		Use:   "esmloader",
		Short: "Load and run ECMAScript modules",
		Long: `esmloader compiles ECMAScript modules into scripts that a plain JavaScript
engine can run, resolves specifiers the way the loader does, and runs module
graphs with live bindings, cycles and dynamic import().

Examples:
  esmloader run main.mjs
  esmloader resolve lodash-es --from src/app.mjs
  esmloader compile src/app.mjs`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { c.teardown() },
	}
	root.SetFlagErrorFunc(usageError)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "read options from a YAML, JSON or TOML file")
	flags.String("cwd", "", "the working directory (default is the current directory)")
	flags.StringArray("module-root", nil, "a directory to search for bare specifiers (repeatable, default is node_modules)")
	flags.StringSlice("resolve-extensions", nil, "a comma-separated list of implicit extensions (default is .mjs,.js,.json)")
	flags.BoolP("verbose", "v", false, "log resolution and loading details")
	flags.String("color", "auto", "use color in diagnostics (auto, always, never)")
	flags.String("log-level", "info", "which diagnostics to show (info, warning, error, silent)")
	flags.StringVar(&c.traceFile, "trace", "", "write a Go execution trace to this file")
	flags.StringVar(&c.cpuprofileFile, "cpuprofile", "", "write a Go CPU profile to this file")
	flags.MarkHidden("trace")
	flags.MarkHidden("cpuprofile")

	for key, flag := range map[string]string{
		config.KeyCwd:        "cwd",
		config.KeyRoots:      "module-root",
		config.KeyExtensions: "resolve-extensions",
		config.KeyVerbose:    "verbose",
		config.KeyColor:      "color",
		config.KeyLogLevel:   "log-level",
	} {
		if err := c.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		c.newCompileCommand(),
		c.newResolveCommand(),
		c.newRunCommand(),
		c.newVersionCommand(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	options, err := config.Load(c.v, c.configFile)
	if err != nil {
		c.reportText(err.Error())
		return reported(exitcode.Set(err, exitcode.Usage))
	}
	c.options = options

	zapLogger, err := newZapLogger(options.Verbose)
	if err != nil {
		return err
	}
	logger.SetZap(zapLogger)
	c.stopProfiling = append(c.stopProfiling, func() { zapLogger.Sync() })

	// To view a trace, use "go tool trace [file]"
	if c.traceFile != "" {
		f, err := os.Create(c.traceFile)
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			return err
		}
		c.stopProfiling = append(c.stopProfiling, func() { trace.Stop(); f.Close() })
	}

	if c.cpuprofileFile != "" {
		f, err := os.Create(c.cpuprofileFile)
		if err != nil {
			return fmt.Errorf("failed to create cpuprofile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
		c.stopProfiling = append(c.stopProfiling, func() { pprof.StopCPUProfile(); f.Close() })
	}
	return nil
}

func (c *cli) teardown() {
	for i := len(c.stopProfiling) - 1; i >= 0; i-- {
		c.stopProfiling[i]()
	}
	c.stopProfiling = nil
}

// Verbose mode uses zap's human-readable development logger at debug level.
// Otherwise only warnings and errors about the loader itself are logged, as
// JSON, since diagnostics about user code are already printed.
func newZapLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Sampling = nil
	return cfg.Build()
}

// execute runs the command line and prints any error that a command didn't
// already report
func execute(ctx context.Context, root *cobra.Command, args []string) error {
	root.SetArgs(args)
	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return nil
	}
	var alreadyReported reportedError
	if !errors.As(err, &alreadyReported) {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err.Error())
	}
	return err
}

func usageError(cmd *cobra.Command, err error) error {
	return exitcode.Set(err, exitcode.Usage)
}

func argsOrUsage(args cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, list []string) error {
		return usageError(cmd, args(cmd, list))
	}
}
