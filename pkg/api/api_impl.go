package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/cache"
	"github.com/evanw/esmloader/internal/compiler"
	"github.com/evanw/esmloader/internal/config"
	"github.com/evanw/esmloader/internal/fs"
	"github.com/evanw/esmloader/internal/logger"
	"github.com/evanw/esmloader/internal/resolver"
)

func validateColor(value StderrColor) logger.StderrColor {
	switch value {
	case ColorIfTerminal:
		return logger.ColorIfTerminal
	case ColorNever:
		return logger.ColorNever
	case ColorAlways:
		return logger.ColorAlways
	default:
		panic("Invalid color")
	}
}

func validateLogLevel(value LogLevel) logger.LogLevel {
	switch value {
	case LogLevelInfo:
		return logger.LevelInfo
	case LogLevelWarning:
		return logger.LevelWarning
	case LogLevelError:
		return logger.LevelError
	case LogLevelSilent:
		return logger.LevelSilent
	default:
		panic("Invalid log level")
	}
}

func validateLoader(value Loader) config.Loader {
	switch value {
	case LoaderJS:
		return config.LoaderJS
	case LoaderJSON:
		return config.LoaderJSON
	default:
		panic("Invalid loader")
	}
}

func validateLoaders(loaders map[string]Loader) map[string]config.Loader {
	result := config.DefaultOptions().ExtensionToLoader
	for ext, loader := range loaders {
		if loader == LoaderDefault {
			delete(result, ext)
		} else {
			result[ext] = validateLoader(loader)
		}
	}
	return result
}

func validateOptions(realFS fs.FS, absWorkingDir string, extensions []string, roots []string, mainFields []string, loaders map[string]Loader) (config.Options, error) {
	options := config.DefaultOptions()
	if absWorkingDir != "" && !realFS.IsAbs(absWorkingDir) {
		return config.Options{}, fmt.Errorf("The working directory %q is not an absolute path", absWorkingDir)
	}
	options.AbsWorkingDir = realFS.Cwd()
	if extensions != nil {
		options.ExtensionOrder = extensions
	}
	if roots != nil {
		options.ModuleRoots = roots
	}
	if mainFields != nil {
		options.MainFields = mainFields
	}
	if loaders != nil {
		options.ExtensionToLoader = validateLoaders(loaders)
	}
	if err := options.Validate(); err != nil {
		return config.Options{}, err
	}
	return options, nil
}

func convertMessages(msgs []logger.Msg) []Message {
	var result []Message
	for _, msg := range msgs {
		var location *Location
		if loc := msg.Location; loc != nil {
			location = &Location{
				File:     loc.File,
				Line:     loc.Line,
				Column:   loc.Column,
				Length:   loc.Length,
				LineText: loc.LineText,
			}
		}
		result = append(result, Message{Text: msg.Text, Location: location})
	}
	return result
}

func compileImpl(input string, options CompileOptions) CompileResult {
	var log logger.Log
	if options.LogLevel == LogLevelSilent {
		log = logger.NewDeferLog()
	} else {
		log = logger.NewStderrLog(logger.StderrOptions{
			IncludeSource: true,
			ErrorLimit:    options.ErrorLimit,
			Color:         validateColor(options.Color),
			LogLevel:      validateLogLevel(options.LogLevel),
		})
	}

	sourcefile := options.Sourcefile
	if sourcefile == "" {
		sourcefile = "<stdin>"
	}
	loader := config.LoaderJS
	if options.Loader != LoaderDefault {
		loader = validateLoader(options.Loader)
	}

	source := logger.Source{KeyPath: sourcefile, PrettyPath: sourcefile, Contents: input}
	result, err := compiler.Compile(source, loader)

	var syntaxErr *compiler.SyntaxError
	switch {
	case errors.As(err, &syntaxErr):
		for _, msg := range syntaxErr.Msgs {
			log.AddMsg(msg)
		}
	case err != nil:
		log.AddMsg(logger.Msg{Kind: logger.Error, Text: err.Error()})
	default:
		for _, msg := range result.Warnings {
			log.AddMsg(msg)
		}
	}

	var errors []Message
	var warnings []Message
	for _, msg := range log.Done() {
		if msg.Kind == logger.Error {
			errors = append(errors, convertMessages([]logger.Msg{msg})...)
		} else {
			warnings = append(warnings, convertMessages([]logger.Msg{msg})...)
		}
	}

	if len(errors) > 0 {
		return CompileResult{Errors: errors, Warnings: warnings}
	}
	return CompileResult{
		Warnings: warnings,
		JS:       result.JS,
		Imports:  result.Info.Specifiers(),
		Exports:  result.Info.ExplicitExportNames(),
	}
}

func resolveImpl(specifier string, options ResolveOptions) (string, error) {
	realFS := fs.RealFS(fs.RealFSOptions{AbsWorkingDir: options.AbsWorkingDir})
	configOptions, err := validateOptions(realFS, options.AbsWorkingDir, options.ResolveExtensions, options.ModuleRoots, options.MainFields, nil)
	if err != nil {
		return "", err
	}
	importer := options.Importer
	if importer != "" && !realFS.IsAbs(importer) {
		importer = realFS.Join(configOptions.AbsWorkingDir, importer)
	}
	res := resolver.NewResolver(realFS, cache.MakeCacheSet(), &configOptions)
	id, err := res.Resolve(specifier, ast.ModuleID(importer))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Messages for the errors that come from a compiled file carry locations
func MessagesForError(err error) []Message {
	var syntaxErr *compiler.SyntaxError
	if errors.As(err, &syntaxErr) {
		var msgs []logger.Msg
		for _, msg := range syntaxErr.Msgs {
			if msg.Kind == logger.Error {
				msgs = append(msgs, msg)
			}
		}
		return convertMessages(msgs)
	}
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		return convertMessages([]logger.Msg{linkErr.Msg()})
	}
	return []Message{{Text: strings.TrimSpace(err.Error())}}
}
