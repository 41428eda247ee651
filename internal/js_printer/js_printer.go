package js_printer

// The printer turns a module into a generator function expression that a
// plain script engine can run. Module syntax is removed or replaced in place
// and everything else is copied through byte for byte. The generated
// prologue is placed on the first line and every removed range keeps its
// line breaks, so line numbers in stack traces match the original file.
//
//   (function* (__esm) {"use strict";__esm.export({...});let a;__esm.import("./a.mjs", {...});yield;<body>
//   })
//
// The host calls "next()" once to run the prologue when the module is linked
// and a second time to run the body when the module is evaluated.

import (
	"fmt"
	"sort"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/helpers"
	"github.com/evanw/esmloader/internal/js_ast"
	"github.com/evanw/esmloader/internal/logger"
)

type PrintResult struct {
	JS   []byte
	Info ast.ModuleInfo
}

type edit struct {
	start int32
	end   int32
	text  string
	rank  editRank
}

// Edits that start at the same spot are applied in this order
type editRank uint8

const (
	rankClose editRank = iota
	rankInsert
	rankReplace
)

type printer struct {
	source      logger.Source
	tree        js_ast.AST
	used        map[string]bool
	runtimeName string
	defaultName string
	valueName   string
	info        ast.ModuleInfo
	edits       []edit
}

func Print(tree js_ast.AST, source logger.Source) PrintResult {
	p := &printer{
		source: source,
		tree:   tree,
		used:   make(map[string]bool, len(tree.UsedNames)),
	}
	for name := range tree.UsedNames {
		p.used[name] = true
	}
	p.runtimeName = p.generateName("__esm")
	p.defaultName = p.generateName("_default")
	p.valueName = p.generateName("_value")

	p.computeModuleInfo()
	p.computeEdits()

	j := helpers.Joiner{}
	p.printPrologue(&j)
	p.printBody(&j)
	j.AddString("\n})")

	return PrintResult{
		JS:   j.Done(),
		Info: p.info,
	}
}

func (p *printer) generateName(base string) string {
	name := base
	for i := 2; p.used[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	p.used[name] = true
	return name
}

type importedBinding struct {
	alias  string
	record uint32
}

func (p *printer) computeModuleInfo() {
	p.info.ImportRecords = p.tree.ImportRecords
	imported := make(map[string]importedBinding)

	// Imports are hoisted so they are collected before any export refers to them
	for _, stmt := range p.tree.Stmts {
		if stmt.Kind != js_ast.SImport {
			continue
		}
		add := func(alias string, local string, loc logger.Loc) {
			p.info.NamedImports = append(p.info.NamedImports, ast.NamedImport{
				Alias:             alias,
				LocalName:         local,
				AliasLoc:          loc,
				ImportRecordIndex: stmt.ImportRecordIndex,
			})
			imported[local] = importedBinding{alias: alias, record: stmt.ImportRecordIndex}
		}
		if stmt.DefaultName != nil {
			add("default", stmt.DefaultName.Name, stmt.DefaultName.Loc)
		}
		if stmt.NamespaceName != nil {
			add("*", stmt.NamespaceName.Name, stmt.NamespaceName.Loc)
		}
		for _, item := range stmt.Items {
			add(item.Name, item.Alias, item.NameLoc)
		}
	}

	for _, stmt := range p.tree.Stmts {
		switch stmt.Kind {
		case js_ast.SExportClause:
			for _, item := range stmt.Items {
				if binding, ok := imported[item.Name]; ok {
					// Exporting an import forwards the binding
					p.info.ReExports = append(p.info.ReExports, ast.ReExport{
						Name:              item.Alias,
						Alias:             binding.alias,
						Loc:               item.AliasLoc,
						ImportRecordIndex: binding.record,
					})
				} else {
					p.info.LocalExports = append(p.info.LocalExports, ast.LocalExport{
						Name:      item.Alias,
						LocalName: item.Name,
						Loc:       item.AliasLoc,
					})
				}
			}

		case js_ast.SExportFrom:
			for _, item := range stmt.Items {
				p.info.ReExports = append(p.info.ReExports, ast.ReExport{
					Name:              item.Alias,
					Alias:             item.Name,
					Loc:               item.AliasLoc,
					ImportRecordIndex: stmt.ImportRecordIndex,
				})
			}

		case js_ast.SExportStar:
			p.info.ExportStars = append(p.info.ExportStars, stmt.ImportRecordIndex)

		case js_ast.SExportStarAs:
			p.info.ReExports = append(p.info.ReExports, ast.ReExport{
				Name:              stmt.NamespaceName.Name,
				Alias:             "*",
				Loc:               stmt.NamespaceName.Loc,
				ImportRecordIndex: stmt.ImportRecordIndex,
			})

		case js_ast.SExportDecl:
			for _, name := range stmt.DeclNames {
				p.info.LocalExports = append(p.info.LocalExports, ast.LocalExport{
					Name:      name.Name,
					LocalName: name.Name,
					Loc:       name.Loc,
				})
			}

		case js_ast.SExportDefault:
			local := p.defaultName
			if stmt.DefaultLocal != nil {
				local = stmt.DefaultLocal.Name
			}
			p.info.LocalExports = append(p.info.LocalExports, ast.LocalExport{
				Name:      "default",
				LocalName: local,
				Loc:       stmt.KeywordRange.Loc,
			})
		}
	}
}

func (p *printer) computeEdits() {
	if p.tree.Hashbang.Len > 0 {
		p.remove(p.tree.Hashbang)
	}

	for _, stmt := range p.tree.Stmts {
		switch stmt.Kind {
		case js_ast.SExportDecl:
			p.remove(stmt.KeywordRange)

		case js_ast.SExportDefault:
			switch stmt.DefaultKind {
			case js_ast.DefaultExpr:
				p.replace(stmt.KeywordRange, fmt.Sprintf("const %s =", p.defaultName))
			default:
				p.remove(stmt.KeywordRange)
				if stmt.DefaultLocal == nil {
					p.insert(stmt.NameInsertLoc, " "+p.defaultName, rankInsert)
				}
			}

		default:
			p.remove(stmt.Range)
		}
	}

	for _, r := range p.tree.DynamicImports {
		p.replace(r, p.runtimeName+".dynamicImport")
	}
	for _, r := range p.tree.ImportMetas {
		p.replace(r, p.runtimeName)
	}

	// Writes to exported variables notify importers after they happen
	exported := make(map[string]bool)
	for _, export := range p.info.LocalExports {
		exported[export.LocalName] = true
	}
	isExported := func(targets []js_ast.Binding) bool {
		for _, target := range targets {
			if exported[target.Name] {
				return true
			}
		}
		return false
	}
	for _, loop := range p.tree.LoopWrites {
		if !isExported(loop.Targets) {
			continue
		}
		if loop.IsBlock {
			p.insert(logger.Loc{Start: loop.Body.Start + 1}, p.runtimeName+".update();", rankInsert)
		} else {
			p.insert(loop.Body, "if ("+p.runtimeName+".update(), true) ", rankInsert)
		}
	}
	for _, write := range p.tree.Writes {
		if isExported(write.Targets) && write.End.Start > write.Start.Start {
			p.insert(write.Start, p.runtimeName+".update(", rankInsert)
			p.insert(write.End, ")", rankClose)
		}
	}

	sort.SliceStable(p.edits, func(i int, j int) bool {
		a, b := p.edits[i], p.edits[j]
		if a.start != b.start {
			return a.start < b.start
		}
		return a.rank < b.rank
	})
}

func (p *printer) remove(r logger.Range) {
	p.replace(r, "")
}

func (p *printer) replace(r logger.Range, text string) {
	p.edits = append(p.edits, edit{start: r.Loc.Start, end: r.End(), text: text, rank: rankReplace})
}

func (p *printer) insert(loc logger.Loc, text string, rank editRank) {
	p.edits = append(p.edits, edit{start: loc.Start, end: loc.Start, text: text, rank: rank})
}

func (p *printer) printPrologue(j *helpers.Joiner) {
	j.AddString(fmt.Sprintf("(function* (%s) {\"use strict\";", p.runtimeName))

	if len(p.info.LocalExports) > 0 {
		j.AddString(p.runtimeName + ".export({")
		for i, export := range p.info.LocalExports {
			if i > 0 {
				j.AddString(", ")
			}
			j.AddBytes(helpers.QuoteForJSON(export.Name))
			j.AddString(": () => " + export.LocalName)
		}
		j.AddString("});")
	}

	if len(p.info.NamedImports) == 0 {
		j.AddString("yield;")
		return
	}

	// Import bindings are variables that the exporting module assigns to
	j.AddString("let ")
	declared := make(map[string]bool)
	for _, named := range p.info.NamedImports {
		if declared[named.LocalName] {
			continue
		}
		if len(declared) > 0 {
			j.AddString(", ")
		}
		declared[named.LocalName] = true
		j.AddString(named.LocalName)
	}
	j.AddString(";")

	// One call per dependency, with one setter per imported name
	for index, record := range p.info.ImportRecords {
		var aliases []string
		locals := make(map[string][]string)
		for _, named := range p.info.NamedImports {
			if named.ImportRecordIndex != uint32(index) {
				continue
			}
			if _, ok := locals[named.Alias]; !ok {
				aliases = append(aliases, named.Alias)
			}
			locals[named.Alias] = append(locals[named.Alias], named.LocalName)
		}
		if len(aliases) == 0 {
			continue
		}

		j.AddString(p.runtimeName + ".import(")
		j.AddBytes(helpers.QuoteForJSON(record.Path))
		j.AddString(", {")
		for i, alias := range aliases {
			if i > 0 {
				j.AddString(", ")
			}
			j.AddBytes(helpers.QuoteForJSON(alias))
			j.AddString(fmt.Sprintf(": (%s) => {", p.valueName))
			for _, local := range locals[alias] {
				j.AddString(fmt.Sprintf(" %s = %s;", local, p.valueName))
			}
			j.AddString(" }")
		}
		j.AddString("});")
	}

	j.AddString("yield;")
}

func (p *printer) printBody(j *helpers.Joiner) {
	contents := p.source.Contents
	pos := int32(0)

	for _, e := range p.edits {
		if e.start < pos {
			// Overlapping edits can't happen for well-formed input
			continue
		}
		j.AddString(contents[pos:e.start])
		j.AddString(e.text)
		j.AddString(lineBreaks(contents[e.start:e.end]))
		pos = e.end
	}

	j.AddString(contents[pos:])
}

// Removed text still contributes its line terminators
func lineBreaks(text string) string {
	var breaks []rune
	for _, c := range text {
		switch c {
		case '\r', '\n', '\u2028', '\u2029':
			breaks = append(breaks, c)
		}
	}
	return string(breaks)
}

// PrintJSON wraps an already validated JSON file as a module with a single
// default export. The text is parsed by the engine at evaluation time, so a
// "__proto__" key stays an own property instead of setting the prototype.
func PrintJSON(source logger.Source) PrintResult {
	j := helpers.Joiner{}
	j.AddString("(function* (__esm) {\"use strict\";__esm.export({\"default\": () => _default});yield;const _default = JSON.parse(")
	j.AddBytes(helpers.QuoteForJSON(source.Contents))
	j.AddString(");\n})")

	return PrintResult{
		JS: j.Done(),
		Info: ast.ModuleInfo{
			LocalExports: []ast.LocalExport{{Name: "default", LocalName: "_default"}},
		},
	}
}
