package ast

// This file contains the data structures shared by the compiler, the registry
// and the loader. The compiler fills in a ModuleInfo for each module and the
// registry links modules together using it. Neither side needs the other's
// internals.

import (
	"github.com/evanw/esmloader/internal/logger"
)

// ModuleID is the canonical identity of a module: the absolute path of the
// file it was loaded from, without any query or fragment. Two specifiers that
// name the same file always produce the same ModuleID.
type ModuleID string

func (id ModuleID) String() string {
	return string(id)
}

type ImportRecordFlags uint8

const (
	// If true, "with { type: 'json' }" was present
	AssertTypeJSON ImportRecordFlags = 1 << iota
)

func (flags ImportRecordFlags) Has(flag ImportRecordFlags) bool {
	return (flags & flag) != 0
}

// One record per distinct static specifier, in source order. Several
// statements that name the same specifier share a record.
type ImportRecord struct {
	Path  string
	Range logger.Range
	Flags ImportRecordFlags
}

// "import {a as b} from" has alias "a" and local name "b". A namespace import
// has the alias "*".
type NamedImport struct {
	Alias             string
	LocalName         string
	AliasLoc          logger.Loc
	ImportRecordIndex uint32
}

// "export {b as a}" has name "a" and local name "b". A default export of an
// expression has the generated local name chosen by the printer.
type LocalExport struct {
	Name      string
	LocalName string
	Loc       logger.Loc
}

// "export {a as b} from" has alias "a" and name "b". "export * as ns from"
// has alias "*" and name "ns".
type ReExport struct {
	Name              string
	Alias             string
	Loc               logger.Loc
	ImportRecordIndex uint32
}

// ModuleInfo is everything the registry needs to link a module without
// looking at its code.
type ModuleInfo struct {
	ImportRecords []ImportRecord
	NamedImports  []NamedImport
	LocalExports  []LocalExport
	ReExports     []ReExport

	// Import record indices of "export * from" statements
	ExportStars []uint32
}

// Specifiers returns the static dependency specifiers in source order
func (info *ModuleInfo) Specifiers() []string {
	specifiers := make([]string, len(info.ImportRecords))
	for i, record := range info.ImportRecords {
		specifiers[i] = record.Path
	}
	return specifiers
}

// ExplicitExportNames returns the names this module exports without looking
// through "export * from" statements
func (info *ModuleInfo) ExplicitExportNames() []string {
	names := make([]string, 0, len(info.LocalExports)+len(info.ReExports))
	for _, export := range info.LocalExports {
		names = append(names, export.Name)
	}
	for _, export := range info.ReExports {
		names = append(names, export.Name)
	}
	return names
}
