package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/evanw/esmloader/internal/config"
	"github.com/evanw/esmloader/internal/exitcode"
	"github.com/evanw/esmloader/internal/logger"
	"github.com/evanw/esmloader/pkg/api"
	"github.com/spf13/cobra"
)

func (c *cli) newCompileCommand() *cobra.Command {
	var loaderName string
	var sourcefile string
	var errorLimit int

	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Print the script a module compiles to",
		Long: `Compile a module and print the resulting script. The module is read from
stdin when no file is given.`,
		Args: argsOrUsage(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var contents []byte
			var err error
			if len(args) == 1 {
				contents, err = os.ReadFile(c.absPath(args[0]))
				if sourcefile == "" {
					sourcefile = args[0]
				}
			} else {
				contents, err = io.ReadAll(c.stdin)
			}
			if err != nil {
				return err
			}

			loader := config.LoaderJS
			if loaderName != "" {
				if loader, err = config.ParseLoader(loaderName); err != nil {
					return exitcode.Set(err, exitcode.Usage)
				}
			} else if len(args) == 1 {
				if loader = c.options.LoaderForPath(args[0]); loader == config.LoaderNone {
					return exitcode.Set(fmt.Errorf("No loader is configured for %q files (use --loader)",
						filepath.Ext(args[0])), exitcode.Usage)
				}
			}

			result := api.Compile(string(contents), api.CompileOptions{
				Color:      apiColor(c.options.Color),
				ErrorLimit: errorLimit,
				LogLevel:   apiLogLevel(c.options.LogLevel),
				Sourcefile: sourcefile,
				Loader:     apiLoader(loader),
			})
			if len(result.Errors) > 0 {
				return reported(errors.New("compile failed"))
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(result.JS); err != nil {
				return err
			}
			_, err = io.WriteString(out, "\n")
			return err
		},
	}

	cmd.Flags().StringVar(&loaderName, "loader", "", "the loader to use (js, json), chosen by extension when omitted")
	cmd.Flags().StringVar(&sourcefile, "sourcefile", "", "the file name used in diagnostics")
	cmd.Flags().IntVar(&errorLimit, "error-limit", 10, "maximum error count or 0 to disable")
	return cmd
}

func (c *cli) newResolveCommand() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "resolve <specifier>",
		Short: "Print the file a specifier resolves to",
		Args:  argsOrUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			importer := ""
			if from != "" {
				importer = c.absPath(from)
			}
			id, err := api.Resolve(args[0], api.ResolveOptions{
				AbsWorkingDir:     c.options.AbsWorkingDir,
				ResolveExtensions: c.options.ExtensionOrder,
				ModuleRoots:       c.options.ModuleRoots,
				MainFields:        c.options.MainFields,
				Importer:          importer,
			})
			if err != nil {
				c.reportError(err)
				return reported(err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "resolve as if imported from this file")
	return cmd
}

func (c *cli) newRunCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Import a module and run it until it settles",
		Args:  argsOrUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := api.NewRuntime(api.RuntimeOptions{
				AbsWorkingDir:     c.options.AbsWorkingDir,
				ResolveExtensions: c.options.ExtensionOrder,
				ModuleRoots:       c.options.ModuleRoots,
				MainFields:        c.options.MainFields,
				Loaders:           apiLoaders(c.options.ExtensionToLoader),
				Stdout:            cmd.OutOrStdout(),
				Stderr:            cmd.ErrOrStderr(),
			})
			if err != nil {
				return exitcode.Set(err, exitcode.Usage)
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			if err := runtime.Run(ctx, c.absPath(args[0])); err != nil {
				c.reportError(err)
				return reported(err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "interrupt the module after this long (0 means no limit)")
	return cmd
}

func (c *cli) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  argsOrUsage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), esmloaderVersion)
			return err
		},
	}
}

func (c *cli) absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.options.AbsWorkingDir, path)
}

func apiColor(color logger.StderrColor) api.StderrColor {
	switch color {
	case logger.ColorNever:
		return api.ColorNever
	case logger.ColorAlways:
		return api.ColorAlways
	default:
		return api.ColorIfTerminal
	}
}

func apiLogLevel(level logger.LogLevel) api.LogLevel {
	switch level {
	case logger.LevelWarning:
		return api.LogLevelWarning
	case logger.LevelError:
		return api.LogLevelError
	case logger.LevelSilent:
		return api.LogLevelSilent
	default:
		return api.LogLevelInfo
	}
}

func apiLoader(loader config.Loader) api.Loader {
	switch loader {
	case config.LoaderJS:
		return api.LoaderJS
	case config.LoaderJSON:
		return api.LoaderJSON
	default:
		return api.LoaderDefault
	}
}

func apiLoaders(loaders map[string]config.Loader) map[string]api.Loader {
	result := make(map[string]api.Loader, len(loaders))
	for ext, loader := range loaders {
		result[ext] = apiLoader(loader)
	}
	return result
}
