package exitcode

import (
	"context"
	"errors"
	"os"

	"github.com/evanw/esmloader/internal/resolver"
)

const (
	// Compile, link or evaluation failures
	Failure = 1

	// Bad flags, arguments or configuration
	Usage = 2

	// A specifier that didn't resolve to a file
	NotFound = 3

	// The command was interrupted, matching the shell's 128+SIGINT
	Interrupted = 130
)

// Coder is an interface to control what value Get returns.
type Coder interface {
	error
	ExitCode() int
}

// Get gets the exit code associated with an error. Cases:
//
//	nil => 0
//	errors implementing Coder => value returned by ExitCode
//	*resolver.ModuleNotFoundError => NotFound
//	context.Canceled => Interrupted
//	all other errors => Failure
func Get(err error) int {
	if err == nil {
		return 0
	}

	if coder := Coder(nil); errors.As(err, &coder) {
		return coder.ExitCode()
	}

	var notFound *resolver.ModuleNotFoundError
	if errors.As(err, &notFound) {
		return NotFound
	}

	if errors.Is(err, context.Canceled) {
		return Interrupted
	}

	return Failure
}

// Set wraps an error in a Coder, setting its error code.
func Set(err error, code int) error {
	if err == nil {
		return nil
	}
	return coder{err, code}
}

var _ Coder = coder{}

type coder struct {
	error
	int
}

func (co coder) ExitCode() int {
	return co.int
}

func (co coder) Unwrap() error {
	return co.error
}

// Exit is a convenience function that calls os.Exit
// with the exit code associated with err.
func Exit(err error) {
	os.Exit(Get(err))
}
