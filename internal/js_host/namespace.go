package js_host

import (
	"github.com/evanw/esmloader/internal/registry"
	"github.com/grafana/sobek"
)

// NamespaceValue returns the JavaScript object for a namespace. There is one
// object per namespace so that importing the same module twice gives
// identical objects.
//
// The object has a null prototype and one enumerable getter per export, is
// tagged "Module" for Object.prototype.toString, and can't be extended.
func (h *Host) NamespaceValue(ns *registry.Namespace) any {
	if object, ok := ns.HostData.(*sobek.Object); ok {
		return object
	}

	vm := h.vm
	object := vm.NewObject()
	object.SetPrototype(nil)

	for _, key := range ns.Keys() {
		getter := vm.ToValue(func(call sobek.FunctionCall) sobek.Value {
			value, _, err := ns.Get(key)
			if err != nil {
				panic(h.ToValue(err))
			}
			return vm.ToValue(value)
		})
		if err := object.DefineAccessorProperty(key, getter, nil, sobek.FLAG_FALSE, sobek.FLAG_TRUE); err != nil {
			panic(err)
		}
	}

	object.DefineDataPropertySymbol(sobek.SymToStringTag, vm.ToValue("Module"), sobek.FLAG_FALSE, sobek.FLAG_FALSE, sobek.FLAG_FALSE)
	if _, err := h.preventExtensions(sobek.Undefined(), object); err != nil {
		panic(err)
	}

	ns.HostData = object
	return object
}
