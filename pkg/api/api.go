package api

import (
	"io"

	"github.com/evanw/esmloader/internal/compiler"
	"github.com/evanw/esmloader/internal/registry"
	"github.com/evanw/esmloader/internal/resolver"
)

type Loader uint8

const (
	LoaderDefault Loader = iota
	LoaderJS
	LoaderJSON
)

type Location struct {
	File     string
	Line     int // 1-based
	Column   int // 0-based, in bytes
	Length   int // in bytes
	LineText string
}

type Message struct {
	Text     string
	Location *Location
}

type StderrColor uint8

const (
	ColorIfTerminal StderrColor = iota
	ColorNever
	ColorAlways
)

type LogLevel uint8

const (
	LogLevelSilent LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
)

// The errors an import can fail with, besides whatever the module threw.
// Use errors.As to tell them apart.
type (
	ModuleNotFoundError = resolver.ModuleNotFoundError
	SyntaxError         = compiler.SyntaxError
	LinkError           = registry.LinkError
)

////////////////////////////////////////////////////////////////////////////////
// Compile API

type CompileOptions struct {
	Color      StderrColor
	ErrorLimit int
	LogLevel   LogLevel

	Sourcefile string
	Loader     Loader
}

type CompileResult struct {
	Errors   []Message
	Warnings []Message

	JS []byte

	// Static import specifiers in source order
	Imports []string

	// Names this module exports without following "export * from"
	Exports []string
}

func Compile(input string, options CompileOptions) CompileResult {
	return compileImpl(input, options)
}

////////////////////////////////////////////////////////////////////////////////
// Resolve API

type ResolveOptions struct {
	AbsWorkingDir     string
	ResolveExtensions []string
	ModuleRoots       []string
	MainFields        []string

	// The absolute path of the importing file. Specifiers resolve relative to
	// the working directory when this is empty.
	Importer string
}

// Resolve returns the module ID, which is an absolute file path, for a
// specifier. Failures are *ModuleNotFoundError.
func Resolve(specifier string, options ResolveOptions) (string, error) {
	return resolveImpl(specifier, options)
}

////////////////////////////////////////////////////////////////////////////////
// Runtime API

type RuntimeOptions struct {
	AbsWorkingDir     string
	ResolveExtensions []string
	ModuleRoots       []string
	MainFields        []string
	Loaders           map[string]Loader

	// Where "console" writes. Defaults to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// NewRuntime creates a JavaScript engine with its own module registry.
// Modules are evaluated at most once per runtime. A runtime must not be used
// from more than one goroutine at a time.
func NewRuntime(options RuntimeOptions) (*Runtime, error) {
	return newRuntimeImpl(options)
}
