package js_host

import (
	"context"

	"github.com/evanw/esmloader/internal/registry"
	"github.com/evanw/esmloader/internal/resolver"
	"github.com/grafana/sobek"
)

// Builds the "__esm" object passed to a module's generator function
func (h *Host) newRuntimeObject(rec *registry.Record) *sobek.Object {
	vm := h.vm
	esm := vm.NewObject()

	// __esm.export({"name": () => local, ...})
	esm.Set("export", func(call sobek.FunctionCall) sobek.Value {
		getters := make(map[string]func() (any, error))
		object := call.Argument(0).ToObject(vm)
		for _, name := range object.Keys() {
			getter, ok := sobek.AssertFunction(object.Get(name))
			if !ok {
				panic(vm.NewTypeError("The getter for export %q is not a function", name))
			}
			getters[name] = func() (any, error) {
				return getter(sobek.Undefined())
			}
		}
		if err := h.registry().BindExports(rec, getters); err != nil {
			panic(h.ToValue(err))
		}
		return sobek.Undefined()
	})

	// __esm.import("./dep.mjs", {"name": (_value) => { local = _value; }, ...})
	esm.Set("import", func(call sobek.FunctionCall) sobek.Value {
		specifier := call.Argument(0).String()
		index, ok := importRecordIndex(rec, specifier)
		if !ok {
			panic(vm.NewTypeError("Module %q has no import of %q", rec.ID.String(), specifier))
		}
		object := call.Argument(1).ToObject(vm)
		for _, alias := range object.Keys() {
			setter, ok := sobek.AssertFunction(object.Get(alias))
			if !ok {
				panic(vm.NewTypeError("The setter for import %q is not a function", alias))
			}
			if err := h.registry().Watch(rec, index, alias, func(value any) {
				setter(sobek.Undefined(), vm.ToValue(value))
			}); err != nil {
				panic(h.ToValue(err))
			}
		}
		return sobek.Undefined()
	})

	// __esm.update(local = value) returns the assigned value after telling
	// importers about it
	esm.Set("update", func(call sobek.FunctionCall) sobek.Value {
		h.registry().RunSetters(rec)
		return call.Argument(0)
	})

	// __esm.dynamicImport(specifier)
	esm.Set("dynamicImport", func(call sobek.FunctionCall) sobek.Value {
		specifier := call.Argument(0).String()
		promise, resolve, reject := vm.NewPromise()
		future := h.loader.ImportDynamic(context.Background(), specifier, rec.ID)
		future.Then(func(ns *registry.Namespace, err error) {
			if err != nil {
				reject(h.ToValue(err))
			} else {
				resolve(h.NamespaceValue(ns))
			}
		})
		return vm.ToValue(promise)
	})

	esm.Set("meta", h.newImportMeta(rec))
	return esm
}

func importRecordIndex(rec *registry.Record, specifier string) (uint32, bool) {
	for i, record := range rec.Info.ImportRecords {
		if record.Path == specifier {
			return uint32(i), true
		}
	}
	return 0, false
}

func (h *Host) newImportMeta(rec *registry.Record) *sobek.Object {
	meta := h.vm.NewObject()
	meta.SetPrototype(nil)
	path := rec.ID.String()
	meta.Set("url", resolver.FileURL(path, h.fs.Separator()))
	meta.Set("filename", path)
	meta.Set("dirname", h.fs.Dir(path))
	return meta
}
