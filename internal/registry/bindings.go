package registry

import (
	"fmt"
)

// Slot holds one exported binding. The exporting module provides a getter
// and every importer of the binding registers a setter that copies the
// current value into its own local variable.
type Slot struct {
	getter   func() (any, error)
	watchers []func(any)
}

func (s *Slot) bound() bool {
	return s.getter != nil
}

// push hands the current value to every watcher. A getter that fails means
// the binding is still in its temporal dead zone, so there is nothing to
// push yet.
func (s *Slot) push() {
	if s.getter == nil {
		return
	}
	value, err := s.getter()
	if err != nil {
		return
	}
	for _, watcher := range s.watchers {
		watcher(value)
	}
}

// UninitializedError is returned when reading a binding before the module
// that declares it has run far enough to initialize it
type UninitializedError struct {
	Name string
}

func (e *UninitializedError) Error() string {
	return fmt.Sprintf("Cannot access %q before initialization", e.Name)
}

// BindExports installs the getters for a module's local exports. Getters is
// keyed by exported name. Importers that were registered before the module
// was instantiated get the current values right away, which is what makes
// hoisted functions visible across a cycle.
func (r *Registry) BindExports(rec *Record, getters map[string]func() (any, error)) error {
	for name, getter := range getters {
		slot, ok := rec.slots[name]
		if !ok {
			return fmt.Errorf("Module %q does not declare an export named %q", rec.ID, name)
		}
		slot.getter = getter
	}
	for _, slot := range rec.slots {
		slot.push()
	}
	return nil
}

// Watch connects an imported name of "importer" to the binding it resolves
// to. The setter is called now if the value is already available and again
// every time the exporting module updates it. The alias "*" asks for the
// namespace of the dependency.
func (r *Registry) Watch(importer *Record, importRecordIndex uint32, alias string, setter func(any)) error {
	if int(importRecordIndex) >= len(importer.deps) {
		return fmt.Errorf("Module %q has no import record %d", importer.ID, importRecordIndex)
	}
	dep := importer.deps[importRecordIndex]

	if alias == "*" {
		setter(r.ImportNamespace(importer, importRecordIndex))
		return nil
	}

	binding, status := r.resolveExport(dep, alias, nil)
	if status != resolveFound {
		// Linking checks every import before instantiating anything
		return &LinkError{
			Importer:  importer.ID,
			Specifier: importer.Info.ImportRecords[importRecordIndex].Path,
			Name:      alias,
			Ambiguous: status == resolveAmbiguous,
		}
	}

	if binding.IsNamespace {
		setter(r.host.NamespaceValue(r.Namespace(binding.Record)))
		return nil
	}

	slot := binding.Record.slots[binding.BindingName]
	slot.watchers = append(slot.watchers, setter)
	if slot.bound() {
		if value, err := slot.getter(); err == nil {
			setter(value)
		}
	}
	return nil
}

// ImportNamespace returns the host's namespace object for one of the
// importer's dependencies
func (r *Registry) ImportNamespace(importer *Record, importRecordIndex uint32) any {
	return r.host.NamespaceValue(r.Namespace(importer.deps[importRecordIndex]))
}

// RunSetters pushes the current value of every local export of "rec". It is
// called after every assignment to an exported variable.
func (r *Registry) RunSetters(rec *Record) {
	for _, export := range rec.Info.LocalExports {
		rec.slots[export.Name].push()
	}
}

// Read returns the current value of a resolved binding
func (r *Registry) Read(binding ResolvedBinding) (any, error) {
	if binding.IsNamespace {
		return r.host.NamespaceValue(r.Namespace(binding.Record)), nil
	}
	slot := binding.Record.slots[binding.BindingName]
	if !slot.bound() {
		return nil, &UninitializedError{Name: binding.BindingName}
	}
	return slot.getter()
}
