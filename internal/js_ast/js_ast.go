package js_ast

// The scanner does not build a tree of the whole program. It records the
// places where module syntax appears and the facts needed to rewrite them:
// which statements to remove, which keywords to replace, and which
// assignments need to notify importers. Everything else in the file is
// copied through unchanged by the printer.

import (
	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/logger"
)

type StmtKind uint8

const (
	// import x, {a as b}, * as ns from "path"
	SImport StmtKind = iota

	// export {a, b as c}
	SExportClause

	// export {a, b as c} from "path"
	SExportFrom

	// export * from "path"
	SExportStar

	// export * as ns from "path"
	SExportStarAs

	// export var/let/const/function/class
	SExportDecl

	// export default ...
	SExportDefault
)

type DefaultKind uint8

const (
	DefaultExpr DefaultKind = iota
	DefaultFunction
	DefaultClass
)

// For imports, Name is the imported name and Alias is the local binding. For
// exports, Name is the local name (or the imported name for re-exports) and
// Alias is the exported name.
type ClauseItem struct {
	Name     string
	Alias    string
	NameLoc  logger.Loc
	AliasLoc logger.Loc
}

type Binding struct {
	Name string
	Loc  logger.Loc
}

type ModuleStmt struct {
	Kind StmtKind

	// The whole statement including a trailing semicolon. Import statements
	// and all export statements without a declaration are removed entirely.
	Range logger.Range

	// "export" for SExportDecl and "export default" for SExportDefault
	KeywordRange logger.Range

	ImportRecordIndex uint32
	Items             []ClauseItem

	// "import x from"
	DefaultName *Binding

	// "import * as ns from" and "export * as ns from"
	NamespaceName *Binding

	// Names declared by "export var/let/const/function/class"
	DeclNames []Binding

	// For SExportDefault. A named function or class keeps its own name in
	// DefaultLocal. Anonymous ones get a generated name inserted at
	// NameInsertLoc.
	DefaultKind   DefaultKind
	DefaultLocal  *Binding
	NameInsertLoc logger.Loc
}

// An assignment or update expression whose target is a plain identifier or a
// destructuring pattern. The printer wraps the expression from Start to End
// when any of the targets names an exported binding.
type Write struct {
	// One identifier, or every identifier a destructuring pattern assigns to
	Targets    []Binding
	Start      logger.Loc
	End        logger.Loc
	InFunction bool
}

// A "for (x in o)" or "for (x of a)" loop that assigns to existing variables
// instead of declaring new ones. The printer notifies importers at the start
// of each iteration when any of the targets is exported.
type LoopWrite struct {
	Targets []Binding

	// The first token of the loop body. IsBlock is true when that token is "{".
	Body       logger.Loc
	IsBlock    bool
	InFunction bool
}

type AST struct {
	// Empty when the file has no "#!" line
	Hashbang logger.Range

	ImportRecords []ast.ImportRecord
	Stmts         []ModuleStmt

	// The "import" keyword of each "import(...)" call
	DynamicImports []logger.Range

	// The "import" keyword of each "import.meta" expression
	ImportMetas []logger.Range

	Writes     []Write
	LoopWrites []LoopWrite

	// Every identifier that appears in the file. Generated names avoid these.
	UsedNames map[string]bool
}

// ImportedNames returns every local name bound by an import statement
func (tree *AST) ImportedNames() map[string]bool {
	names := make(map[string]bool)
	for _, stmt := range tree.Stmts {
		if stmt.Kind != SImport {
			continue
		}
		if stmt.DefaultName != nil {
			names[stmt.DefaultName.Name] = true
		}
		if stmt.NamespaceName != nil {
			names[stmt.NamespaceName.Name] = true
		}
		for _, item := range stmt.Items {
			names[item.Alias] = true
		}
	}
	return names
}
