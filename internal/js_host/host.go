// Package js_host runs compiled modules on the sobek JavaScript engine. Each
// module is a generator function: the first call to "next" runs everything
// before the "yield" (which binds exports and imports) and the second call
// runs the module body.
package js_host

import (
	"github.com/evanw/esmloader/internal/fs"
	"github.com/evanw/esmloader/internal/loader"
	"github.com/evanw/esmloader/internal/logger"
	"github.com/evanw/esmloader/internal/registry"
	"github.com/grafana/sobek"
	"go.uber.org/zap"
)

type Host struct {
	vm     *sobek.Runtime
	fs     fs.FS
	loader *loader.Loader

	preventExtensions sobek.Callable
}

// The generator for one module, stored in Record.HostData
type moduleInstance struct {
	generator *sobek.Object
	next      sobek.Callable
}

func New(vm *sobek.Runtime, fs fs.FS) *Host {
	object := vm.Get("Object").ToObject(vm)
	preventExtensions, ok := sobek.AssertFunction(object.Get("preventExtensions"))
	if !ok {
		panic("Internal error")
	}
	return &Host{
		vm:                vm,
		fs:                fs,
		preventExtensions: preventExtensions,
	}
}

// SetLoader must be called before any module is instantiated. The loader
// isn't passed to New because its registry needs the host first.
func (h *Host) SetLoader(l *loader.Loader) {
	h.loader = l
}

func (h *Host) Runtime() *sobek.Runtime {
	return h.vm
}

func (h *Host) registry() *registry.Registry {
	return h.loader.Registry()
}

func (h *Host) Instantiate(rec *registry.Record) error {
	program, err := sobek.Compile(rec.Source.PrettyPath, string(rec.JS), true)
	if err != nil {
		logger.Zap().Error("compiled module rejected by the engine",
			zap.String("id", rec.ID.String()), zap.Error(err))
		return err
	}
	value, err := h.vm.RunProgram(program)
	if err != nil {
		return err
	}
	body, ok := sobek.AssertFunction(value)
	if !ok {
		panic("Internal error")
	}

	value, err = body(sobek.Undefined(), h.newRuntimeObject(rec))
	if err != nil {
		return err
	}
	generator := value.ToObject(h.vm)
	next, ok := sobek.AssertFunction(generator.Get("next"))
	if !ok {
		panic("Internal error")
	}
	rec.HostData = &moduleInstance{generator: generator, next: next}

	// Run up to the "yield"
	_, err = next(generator)
	return err
}

func (h *Host) Evaluate(rec *registry.Record) error {
	instance := rec.HostData.(*moduleInstance)
	_, err := instance.next(instance.generator)
	return err
}
