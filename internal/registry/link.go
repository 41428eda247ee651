package registry

import (
	"fmt"
	"strings"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/logger"
	"go.uber.org/zap"
)

// LinkError reports an import that doesn't match exactly one export
type LinkError struct {
	Importer  ast.ModuleID
	Specifier string
	Name      string
	Ambiguous bool

	// Points at the imported name in the importing module
	Location *logger.MsgLocation
}

func (e *LinkError) Text() string {
	if e.Ambiguous {
		return fmt.Sprintf("The requested module %q contains conflicting star exports for name %q", e.Specifier, e.Name)
	}
	return fmt.Sprintf("The requested module %q does not provide an export named %q", e.Specifier, e.Name)
}

func (e *LinkError) Error() string {
	if loc := e.Location; loc != nil {
		return fmt.Sprintf("%s:%d:%d: error: %s", loc.File, loc.Line, loc.Column, e.Text())
	}
	return e.Text()
}

// Msg returns the error as a diagnostic so it can be printed like a syntax
// error
func (e *LinkError) Msg() logger.Msg {
	return logger.Msg{Kind: logger.Error, Text: e.Text(), Location: e.Location}
}

// ResolvedBinding is where an exported name ends up after following
// re-exports. Either a local export of Record or the namespace of Record.
type ResolvedBinding struct {
	Record      *Record
	BindingName string
	IsNamespace bool
}

type resolveStatus uint8

const (
	resolveFound resolveStatus = iota
	resolveNotFound
	resolveAmbiguous
)

type resolveSetElement struct {
	record *Record
	name   string
}

// ResolveExport follows re-exports and star exports to find the binding
// for "name". It returns false if there is no such binding or if star
// exports provide more than one.
func (r *Registry) ResolveExport(rec *Record, name string) (ResolvedBinding, bool) {
	binding, status := r.resolveExport(rec, name, nil)
	return binding, status == resolveFound
}

func (r *Registry) resolveExport(rec *Record, name string, resolveSet []resolveSetElement) (ResolvedBinding, resolveStatus) {
	for _, element := range resolveSet {
		if element.record == rec && element.name == name {
			// This is a circular import request
			return ResolvedBinding{}, resolveNotFound
		}
	}
	resolveSet = append(resolveSet, resolveSetElement{record: rec, name: name})

	for _, export := range rec.Info.LocalExports {
		if export.Name == name {
			return ResolvedBinding{Record: rec, BindingName: name}, resolveFound
		}
	}

	for _, export := range rec.Info.ReExports {
		if export.Name != name {
			continue
		}
		dep := rec.deps[export.ImportRecordIndex]
		if export.Alias == "*" {
			return ResolvedBinding{Record: dep, IsNamespace: true}, resolveFound
		}
		return r.resolveExport(dep, export.Alias, resolveSet)
	}

	// "default" is never provided by "export * from"
	if name == "default" {
		return ResolvedBinding{}, resolveNotFound
	}

	var starResolution *ResolvedBinding
	for _, index := range rec.Info.ExportStars {
		binding, status := r.resolveExport(rec.deps[index], name, resolveSet)
		switch status {
		case resolveAmbiguous:
			return ResolvedBinding{}, resolveAmbiguous
		case resolveFound:
			if starResolution == nil {
				starResolution = &binding
			} else if *starResolution != binding {
				return ResolvedBinding{}, resolveAmbiguous
			}
		}
	}
	if starResolution == nil {
		return ResolvedBinding{}, resolveNotFound
	}
	return *starResolution, resolveFound
}

// ExportedNames returns every name the module exports including names
// provided through "export * from", in no particular order. Names provided
// by more than one star export are included and only fail when resolved.
func (r *Registry) ExportedNames(rec *Record) []string {
	return r.exportedNames(rec, make(map[*Record]bool))
}

func (r *Registry) exportedNames(rec *Record, exportStarSet map[*Record]bool) []string {
	if exportStarSet[rec] {
		// This is a circular "export *"
		return nil
	}
	exportStarSet[rec] = true

	names := rec.Info.ExplicitExportNames()
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		seen[name] = true
	}

	for _, index := range rec.Info.ExportStars {
		for _, name := range r.exportedNames(rec.deps[index], exportStarSet) {
			if name != "default" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// Link checks every import of every module reachable from "root" and
// instantiates each module that hasn't been instantiated yet. Cycles are
// fine. On failure every record that was being linked goes back to being
// unlinked.
func (r *Registry) Link(root *Record) error {
	var stack []*Record
	if _, err := r.innerLink(root, &stack, 0); err != nil {
		for _, rec := range stack {
			rec.setState(StateUnlinked)
		}
		return err
	}
	return nil
}

func (r *Registry) innerLink(rec *Record, stack *[]*Record, index int) (int, error) {
	switch rec.state {
	case StateNew:
		panic("Internal error")
	case StateUnlinked:
	default:
		return index, nil
	}

	rec.setState(StateLinking)
	rec.dfsIndex = index
	rec.dfsAncestorIndex = index
	index++
	*stack = append(*stack, rec)

	for _, dep := range rec.deps {
		var err error
		if index, err = r.innerLink(dep, stack, index); err != nil {
			return index, err
		}
		if dep.state == StateLinking && dep.dfsAncestorIndex < rec.dfsAncestorIndex {
			rec.dfsAncestorIndex = dep.dfsAncestorIndex
		}
	}

	if err := r.checkImports(rec); err != nil {
		return index, err
	}

	if !rec.instantiated {
		rec.instantiated = true
		if err := r.host.Instantiate(rec); err != nil {
			return index, err
		}
	}

	if rec.dfsAncestorIndex == rec.dfsIndex {
		for {
			last := len(*stack) - 1
			top := (*stack)[last]
			*stack = (*stack)[:last]
			top.setState(StateLinked)
			if top == rec {
				break
			}
		}
	}
	return index, nil
}

func (r *Registry) checkImports(rec *Record) error {
	check := func(index uint32, name string, loc logger.Loc) error {
		if name == "*" {
			return nil
		}
		dep := rec.deps[index]
		if _, status := r.resolveExport(dep, name, nil); status != resolveFound {
			// Only underline the name when it's spelled out at this location
			nameRange := logger.Range{Loc: loc}
			if strings.HasPrefix(rec.Source.Contents[loc.Start:], name) {
				nameRange.Len = int32(len(name))
			}
			return &LinkError{
				Importer:  rec.ID,
				Specifier: rec.Info.ImportRecords[index].Path,
				Name:      name,
				Ambiguous: status == resolveAmbiguous,
				Location:  logger.LocationOrNil(&rec.Source, nameRange),
			}
		}
		return nil
	}

	for _, named := range rec.Info.NamedImports {
		if err := check(named.ImportRecordIndex, named.Alias, named.AliasLoc); err != nil {
			return err
		}
	}
	for _, export := range rec.Info.ReExports {
		if err := check(export.ImportRecordIndex, export.Alias, export.Loc); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate runs the body of every module reachable from "root" that hasn't
// run yet, dependencies first. A module that throws is never run again:
// it and every module that depends on it keep failing with the same error.
func (r *Registry) Evaluate(root *Record) error {
	var stack []*Record
	if _, err := r.innerEvaluate(root, &stack, 0); err != nil {
		for _, rec := range stack {
			rec.err = err
			rec.setState(StateErrored)
		}
		logger.Zap().Info("module evaluation failed",
			zap.String("id", root.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (r *Registry) innerEvaluate(rec *Record, stack *[]*Record, index int) (int, error) {
	switch rec.state {
	case StateEvaluating, StateEvaluated:
		return index, nil
	case StateErrored:
		return index, rec.err
	case StateLinked:
	default:
		panic("Internal error")
	}

	rec.setState(StateEvaluating)
	rec.dfsIndex = index
	rec.dfsAncestorIndex = index
	index++
	*stack = append(*stack, rec)

	for _, dep := range rec.deps {
		var err error
		if index, err = r.innerEvaluate(dep, stack, index); err != nil {
			return index, err
		}
		if dep.state == StateEvaluating && dep.dfsAncestorIndex < rec.dfsAncestorIndex {
			rec.dfsAncestorIndex = dep.dfsAncestorIndex
		}
	}

	if err := r.host.Evaluate(rec); err != nil {
		return index, err
	}

	// Importers now see the final values of everything this module exports
	r.RunSetters(rec)

	if rec.dfsAncestorIndex == rec.dfsIndex {
		for {
			last := len(*stack) - 1
			top := (*stack)[last]
			*stack = (*stack)[:last]
			top.setState(StateEvaluated)
			if top == rec {
				break
			}
		}
	}
	return index, nil
}
