package main

import (
	"errors"

	"github.com/evanw/esmloader/internal/logger"
	"github.com/evanw/esmloader/pkg/api"
)

// An error whose diagnostics were already written to stderr
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

func reported(err error) error {
	return reportedError{err}
}

func (c *cli) newLog() logger.Log {
	return logger.NewStderrLog(logger.StderrOptions{
		IncludeSource: true,
		ErrorLimit:    10,
		Color:         c.options.Color,
		LogLevel:      c.options.LogLevel,
	})
}

// Syntax and link errors point into a file, everything else is reported as
// plain text
func (c *cli) reportError(err error) {
	log := c.newLog()
	var syntaxErr *api.SyntaxError
	var linkErr *api.LinkError
	switch {
	case errors.As(err, &syntaxErr):
		for _, msg := range syntaxErr.Msgs {
			log.AddMsg(msg)
		}
	case errors.As(err, &linkErr):
		log.AddMsg(linkErr.Msg())
	default:
		log.AddMsg(logger.Msg{Kind: logger.Error, Text: err.Error()})
	}
	log.Done()
}

func (c *cli) reportText(text string) {
	log := c.newLog()
	log.AddMsg(logger.Msg{Kind: logger.Error, Text: text})
	log.Done()
}
