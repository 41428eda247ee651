package js_host

import (
	"errors"

	"github.com/evanw/esmloader/internal/compiler"
	"github.com/evanw/esmloader/internal/loader"
	"github.com/evanw/esmloader/internal/registry"
	"github.com/evanw/esmloader/internal/resolver"
	"github.com/grafana/sobek"
)

// ToValue converts an error from loading a module into the value that
// JavaScript code sees. Errors thrown by module code come back as the
// original thrown value so every importer sees the same object.
func (h *Host) ToValue(err error) sobek.Value {
	var exception *sobek.Exception
	if errors.As(err, &exception) {
		return exception.Value()
	}

	var notFound *resolver.ModuleNotFoundError
	if errors.As(err, &notFound) {
		object := h.newError("Error", notFound.Error())
		object.Set("code", notFound.Code())
		return object
	}

	var attributeErr *loader.ImportAttributeError
	if errors.As(err, &attributeErr) {
		object := h.newError("TypeError", attributeErr.Error())
		object.Set("code", attributeErr.Code())
		return object
	}

	var syntaxErr *compiler.SyntaxError
	if errors.As(err, &syntaxErr) {
		return h.newError("SyntaxError", syntaxErr.Error())
	}

	var linkErr *registry.LinkError
	if errors.As(err, &linkErr) {
		return h.newError("SyntaxError", linkErr.Error())
	}

	var engineSyntaxErr *sobek.CompilerSyntaxError
	if errors.As(err, &engineSyntaxErr) {
		return h.newError("SyntaxError", engineSyntaxErr.Error())
	}

	var uninitialized *registry.UninitializedError
	if errors.As(err, &uninitialized) {
		return h.newError("ReferenceError", uninitialized.Error())
	}

	return h.vm.NewGoError(err)
}

// Creates an instance of one of the global error constructors
func (h *Host) newError(constructor string, message string) *sobek.Object {
	object, err := h.vm.New(h.vm.Get(constructor), h.vm.ToValue(message))
	if err != nil {
		panic(err)
	}
	return object
}
