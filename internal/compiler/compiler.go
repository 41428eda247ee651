package compiler

// The compiler turns the contents of one file into code the host can run
// plus the information the registry needs to link it. It never touches the
// file system and never resolves specifiers, so its results only depend on
// the file contents and the loader and may be cached by path.

import (
	"fmt"
	"strings"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/config"
	"github.com/evanw/esmloader/internal/js_parser"
	"github.com/evanw/esmloader/internal/js_printer"
	"github.com/evanw/esmloader/internal/logger"
	"go.uber.org/zap"
)

type Result struct {
	Source logger.Source
	JS     []byte
	Info   ast.ModuleInfo

	// Non-fatal diagnostics such as duplicate JSON keys
	Warnings []logger.Msg
}

// SyntaxError holds every diagnostic produced while compiling a file that
// failed to compile. Warnings are included for context.
type SyntaxError struct {
	Msgs []logger.Msg
}

func (e *SyntaxError) Error() string {
	var errors []logger.Msg
	for _, msg := range e.Msgs {
		if msg.Kind == logger.Error {
			errors = append(errors, msg)
		}
	}
	if len(errors) == 0 {
		return "syntax error"
	}
	text := strings.TrimSuffix(errors[0].String(logger.StderrOptions{}, logger.TerminalInfo{}), "\n")
	text = strings.TrimPrefix(text, "error: ")
	if len(errors) > 1 {
		text = fmt.Sprintf("%s (and %d more)", text, len(errors)-1)
	}
	return text
}

// First returns the first error, which is the one that stopped compilation
func (e *SyntaxError) First() logger.Msg {
	for _, msg := range e.Msgs {
		if msg.Kind == logger.Error {
			return msg
		}
	}
	return logger.Msg{Kind: logger.Error, Text: "syntax error"}
}

func Compile(source logger.Source, loader config.Loader) (Result, error) {
	log := logger.NewDeferLog()
	result := Result{Source: source}

	switch loader {
	case config.LoaderJS:
		tree, ok := js_parser.Parse(log, source)
		if !ok {
			return Result{}, fail(source, log)
		}
		printed := js_printer.Print(tree, source)
		result.JS = printed.JS
		result.Info = printed.Info

	case config.LoaderJSON:
		if ok := js_parser.ParseJSON(log, source); !ok {
			return Result{}, fail(source, log)
		}
		printed := js_printer.PrintJSON(source)
		result.JS = printed.JS
		result.Info = printed.Info

	default:
		return Result{}, &SyntaxError{Msgs: []logger.Msg{{
			Kind: logger.Error,
			Text: fmt.Sprintf("No loader is configured for %q files", source.PrettyPath),
		}}}
	}

	result.Warnings = log.Done()
	for _, msg := range result.Warnings {
		logger.Zap().Debug("compile warning", logger.MsgFields(msg)...)
	}
	return result, nil
}

func fail(source logger.Source, log logger.Log) error {
	msgs := log.Done()
	err := &SyntaxError{Msgs: msgs}
	logger.Zap().Debug("compile failed", zap.String("path", source.KeyPath), zap.Error(err))
	return err
}
