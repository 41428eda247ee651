package registry

import (
	"sort"
)

// Namespace is the "import * as ns" view of a module. Its keys are fixed
// once created: every exported name that resolves to exactly one binding,
// in code unit order. Values are read through on every access so they are
// always current.
type Namespace struct {
	registry *Registry
	record   *Record
	keys     []string
	bindings map[string]ResolvedBinding

	// Owned by the host
	HostData any
}

// Namespace returns the namespace of a linked module, creating it the
// first time it's asked for
func (r *Registry) Namespace(rec *Record) *Namespace {
	if rec.namespace != nil {
		return rec.namespace
	}

	ns := &Namespace{
		registry: r,
		record:   rec,
		bindings: make(map[string]ResolvedBinding),
	}
	for _, name := range r.ExportedNames(rec) {
		// Ambiguous names are left out instead of causing an error
		if binding, ok := r.ResolveExport(rec, name); ok {
			ns.keys = append(ns.keys, name)
			ns.bindings[name] = binding
		}
	}

	// Export names are compared as UTF-16 code units. Sorting the UTF-8 bytes
	// gives the same order except for supplementary characters, which sort
	// after everything in the BMP here.
	sort.Strings(ns.keys)

	rec.namespace = ns
	return ns
}

func (ns *Namespace) Record() *Record {
	return ns.record
}

func (ns *Namespace) Keys() []string {
	return ns.keys
}

// Get returns the current value of an export. Reading an export that hasn't
// been initialized yet fails with an *UninitializedError.
func (ns *Namespace) Get(name string) (value any, found bool, err error) {
	binding, ok := ns.bindings[name]
	if !ok {
		return nil, false, nil
	}
	value, err = ns.registry.Read(binding)
	return value, true, err
}
