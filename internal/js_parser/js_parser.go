package js_parser

// This scanner understands just enough JavaScript to find module syntax. It
// walks the token stream once and tracks a stack of syntactic contexts, which
// is what decides whether "/" starts a regular expression, whether "{" is a
// block or an object literal, and whether an identifier is a variable
// reference, a binding, or a property name. Nothing outside of import and
// export statements is validated beyond what the lexer checks. The engine
// that eventually runs the rewritten code reports everything else.

import (
	"fmt"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/helpers"
	"github.com/evanw/esmloader/internal/js_ast"
	"github.com/evanw/esmloader/internal/js_lexer"
	"github.com/evanw/esmloader/internal/logger"
)

type frameKind uint8

const (
	frameModule frameKind = iota
	frameBlock
	frameFunctionBody
	frameObject
	frameClass
	frameTemplate
	frameParen
	frameParenStmt
	frameBracket
	frameDynamicImport
	frameObjectPattern
	frameArrayPattern
)

type declaration struct {
	active        bool
	expectBinding bool

	// Index into "tree.Stmts" of the "export" statement that owns this
	// declaration, or -1
	exportStmt int
}

type frame struct {
	kind    frameKind
	openLoc logger.Loc

	// For function and class bodies: whether the "}" ends an expression
	isExpr bool

	// The "(" after "for"
	isForHead bool

	// The number of writes recorded before this frame was opened
	writeCount int

	// Array and object literals: the identifiers that would be assigned to
	// if the literal turns out to be the target of a destructuring assignment
	targets []js_ast.Binding

	// Brackets: an array literal, not a member access or a computed key
	isArrayLiteral bool

	// An array or object literal at the start of a for-in/of head
	isLoopTarget bool

	// For heads: an identifier right after "(" and what "in" or "of" assigns
	headRef     *js_ast.Binding
	loopTargets []js_ast.Binding

	// Unmatched "?" operators
	ternaries int

	decl declaration

	// Destructuring patterns only
	declFrame   int
	bindingNext bool
	shorthand   *js_ast.Binding
}

type pendingClose struct {
	depth     int
	ternaries int
	write     int
}

type pendingBody struct {
	depth  int
	isExpr bool
}

type prefixUpdate struct {
	opLoc logger.Loc
	ref   js_ast.Binding
}

type parenIntent uint8

const (
	parenNone parenIntent = iota
	parenStmt
	parenFor
)

type parser struct {
	log         logger.Log
	source      logger.Source
	lexer       js_lexer.Lexer
	tree        js_ast.AST
	recordIndex map[string]uint32

	frames    []frame
	funcDepth int
	closes    []pendingClose

	// What the previous token left behind
	prevToken      js_lexer.T
	exprAllowed    bool
	stmtStart      bool
	keyPosition    bool
	ref            *js_ast.Binding
	refIsElement   bool
	closedTargets  []js_ast.Binding
	lastClosed     frame
	prefixLoc      *logger.Loc
	prefix         *prefixUpdate
	pendingLet     bool
	asyncStmtStart bool

	// Set by a keyword and consumed by a later "(" or "{"
	nextParen       parenIntent
	pendingClass    *pendingBody
	pendingFunction *pendingBody
}

// Parse scans a module and returns the locations of its module syntax. The
// result is only meaningful when "ok" is true. Errors go to the log.
func Parse(log logger.Log, source logger.Source) (result js_ast.AST, ok bool) {
	ok = true
	defer func() {
		r := recover()
		if _, isLexerPanic := r.(js_lexer.LexerPanic); isLexerPanic {
			ok = false
		} else if r != nil {
			panic(r)
		}
	}()

	p := &parser{
		log:         log,
		source:      source,
		lexer:       js_lexer.NewLexer(log, source),
		recordIndex: make(map[string]uint32),
		tree: js_ast.AST{
			UsedNames: make(map[string]bool),
		},
	}

	p.scanModule()
	ok = p.validate()
	result = p.tree
	return
}

func (p *parser) scanModule() {
	p.frames = []frame{{kind: frameModule, decl: declaration{exportStmt: -1}}}
	p.exprAllowed = true
	p.stmtStart = true

	if p.lexer.Token == js_lexer.THashbang {
		p.tree.Hashbang = p.lexer.Range()
		p.lexer.Next()
	}

	for {
		p.retokenize()
		if p.lexer.Token == js_lexer.TEndOfFile {
			break
		}
		p.scanToken()
	}

	if len(p.frames) > 1 {
		p.lexer.Expected(closingToken(p.top().kind))
	}
	if p.prefix != nil {
		p.addWrite([]js_ast.Binding{p.prefix.ref}, p.prefix.opLoc, p.lexer.PrevTokenEnd())
		p.prefix = nil
	}
	p.closeWrites(0)
}

// The lexer can't tell these apart on its own
func (p *parser) retokenize() {
	switch p.lexer.Token {
	case js_lexer.TSlash, js_lexer.TSlashEquals:
		if p.exprAllowed {
			p.lexer.ScanRegExp()
		}

	case js_lexer.TCloseBrace:
		if p.top().kind == frameTemplate {
			p.closeWrites(len(p.frames))
			p.popFrame()
			p.lexer.RescanCloseBraceAsTemplateToken()
		}
	}
}

func (p *parser) top() *frame {
	return &p.frames[len(p.frames)-1]
}

func (p *parser) pushFrame(kind frameKind) *frame {
	p.frames = append(p.frames, frame{
		kind:       kind,
		openLoc:    p.lexer.Loc(),
		writeCount: len(p.tree.Writes),
		decl:       declaration{exportStmt: -1},
	})
	if kind == frameFunctionBody {
		p.funcDepth++
	}
	return p.top()
}

func (p *parser) popFrame() frame {
	f := p.frames[len(p.frames)-1]
	p.frames = p.frames[:len(p.frames)-1]
	if f.kind == frameFunctionBody {
		p.funcDepth--
	}
	return f
}

func (p *parser) closeFrame(closer js_lexer.T) frame {
	if closingToken(p.top().kind) != closer || len(p.frames) == 1 {
		p.lexer.Unexpected()
	}
	p.closeWrites(len(p.frames))
	p.lastClosed = p.popFrame()
	return p.lastClosed
}

func closingToken(kind frameKind) js_lexer.T {
	switch kind {
	case frameParen, frameParenStmt, frameDynamicImport:
		return js_lexer.TCloseParen
	case frameBracket, frameArrayPattern:
		return js_lexer.TCloseBracket
	default:
		return js_lexer.TCloseBrace
	}
}

func isStatementList(kind frameKind) bool {
	return kind == frameModule || kind == frameBlock || kind == frameFunctionBody
}

func (p *parser) next(exprAllowed bool) {
	p.prevToken = p.lexer.Token
	p.exprAllowed = exprAllowed
	p.lexer.Next()
}

func (p *parser) scanToken() {
	t := p.lexer.Token
	ref := p.ref
	p.ref = nil
	refIsElement := p.refIsElement
	p.refIsElement = false
	closedTargets := p.closedTargets
	p.closedTargets = nil
	stmtStart := p.stmtStart
	p.stmtStart = false
	keyPosition := p.keyPosition
	p.keyPosition = false
	prefixLoc := p.prefixLoc
	p.prefixLoc = nil
	asyncStmtStart := p.asyncStmtStart
	p.asyncStmtStart = false
	nextParen := p.nextParen
	p.nextParen = parenNone

	// "++x" updates "x" unless it turns out to be "++x.y" or "++x[y]"
	if p.prefix != nil {
		if !continuesMemberExpression(t) {
			p.addWrite([]js_ast.Binding{p.prefix.ref}, p.prefix.opLoc, p.lexer.PrevTokenEnd())
		}
		p.prefix = nil
	}

	// "{a}" and "{a = b}" bind "a" but "{a: b}" binds "b"
	if top := p.top(); top.shorthand != nil {
		switch {
		case top.kind == frameObjectPattern && t != js_lexer.TColon:
			p.addBinding(top.declFrame, *top.shorthand)
		case top.kind == frameObject && endsElement(t):
			top.targets = append(top.targets, *top.shorthand)
		}
		top.shorthand = nil
	}

	// "[a, [b]]" and "{c: d, e: {f}}" might be followed by "="
	if top := p.top(); (top.kind == frameBracket || top.kind == frameObject) && endsElement(t) {
		if ref != nil && refIsElement {
			top.targets = append(top.targets, *ref)
		}
		top.targets = append(top.targets, closedTargets...)
	}

	// "for (x of a)" and "for ([x, y] in o)"
	if top := p.top(); top.isForHead && top.loopTargets == nil &&
		(t == js_lexer.TIn || p.lexer.IsContextualKeyword("of")) {
		top.loopTargets = p.loopTargets(top, ref)
	}

	if p.pendingLet {
		p.pendingLet = false
		if t == js_lexer.TIdentifier || t == js_lexer.TOpenBracket || t == js_lexer.TOpenBrace {
			p.startDeclaration(-1)
			ref = nil
		}
	}

	// Automatic semicolon insertion
	if p.lexer.HasNewlineBefore && !p.exprAllowed && startsNewStatement(t) {
		if top := p.top(); isStatementList(top.kind) || top.kind == frameClass {
			p.closeWrites(len(p.frames))
			top.decl = declaration{exportStmt: -1}
			top.ternaries = 0
			if top.kind == frameClass {
				keyPosition = true
			} else {
				stmtStart = true
			}
			ref = nil
		}
	}

	// Property names
	if (p.prevToken == js_lexer.TDot || p.prevToken == js_lexer.TQuestionDot) &&
		(p.lexer.IsIdentifierOrKeyword() || t == js_lexer.TPrivateIdentifier) {
		p.next(false)
		return
	}

	// Object literal keys and class members
	if keyPosition {
		switch {
		case p.lexer.IsIdentifierOrKeyword():
			name := p.lexer.Identifier
			if top := p.top(); top.kind == frameObjectPattern || (top.kind == frameObject && t == js_lexer.TIdentifier) {
				top.shorthand = &js_ast.Binding{Name: name, Loc: p.lexer.Loc()}
			}
			if t == js_lexer.TIdentifier && isMemberModifier(name) {
				p.keyPosition = true
			}
			p.tree.UsedNames[name] = true
			p.next(false)
			return

		case t == js_lexer.TStringLiteral, t == js_lexer.TNumericLiteral,
			t == js_lexer.TBigIntegerLiteral, t == js_lexer.TPrivateIdentifier:
			p.next(false)
			return

		case t == js_lexer.TAsterisk:
			p.keyPosition = true
			p.next(true)
			return
		}
	}

	switch t {
	case js_lexer.TIdentifier, js_lexer.TEscapedKeyword:
		if p.lexer.IsContextualKeyword("await") {
			// "for await ("
			p.nextParen = nextParen
		}
		p.scanIdentifier(stmtStart, prefixLoc)

	case js_lexer.TPrivateIdentifier, js_lexer.TStringLiteral, js_lexer.TNumericLiteral,
		js_lexer.TBigIntegerLiteral, js_lexer.TNoSubstitutionTemplateLiteral, js_lexer.TRegExp,
		js_lexer.TTemplateTail, js_lexer.TThis, js_lexer.TSuper, js_lexer.TNull,
		js_lexer.TTrue, js_lexer.TFalse:
		p.next(false)

	case js_lexer.TTemplateHead, js_lexer.TTemplateMiddle:
		p.pushFrame(frameTemplate)
		p.next(true)

	case js_lexer.TImport:
		p.scanImport(stmtStart)

	case js_lexer.TExport:
		if !p.atModuleItem(stmtStart) {
			p.lexer.Unexpected()
		}
		p.parseExport()

	case js_lexer.TVar, js_lexer.TConst:
		if stmtStart || p.atForHeadStart() {
			p.startDeclaration(-1)
		}
		p.next(true)

	case js_lexer.TFunction:
		isDecl := stmtStart || (asyncStmtStart && !p.lexer.HasNewlineBefore)
		p.pendingFunction = &pendingBody{depth: len(p.frames), isExpr: !isDecl}
		p.next(true)

	case js_lexer.TClass:
		p.pendingClass = &pendingBody{depth: len(p.frames), isExpr: !stmtStart}
		p.next(true)

	case js_lexer.TReturn:
		if p.funcDepth == 0 {
			p.lexer.AddRangeErrorAndPanic(p.lexer.Range(), "A return statement cannot be used here")
		}
		p.next(true)

	case js_lexer.TIf, js_lexer.TWhile, js_lexer.TWith, js_lexer.TSwitch:
		p.nextParen = parenStmt
		p.next(true)

	case js_lexer.TCatch:
		p.nextParen = parenStmt
		p.next(true)

		// "catch {" has no parameter
		p.stmtStart = p.lexer.Token == js_lexer.TOpenBrace

	case js_lexer.TFor:
		p.nextParen = parenFor
		p.next(true)

	case js_lexer.TDo, js_lexer.TElse, js_lexer.TTry, js_lexer.TFinally:
		p.next(true)
		p.stmtStart = true

	case js_lexer.TIn:
		if top := p.top(); top.isForHead {
			top.decl = declaration{exportStmt: -1}
		}
		p.next(true)

	case js_lexer.TOpenParen:
		kind := frameParen
		if nextParen != parenNone {
			kind = frameParenStmt
		}
		f := p.pushFrame(kind)
		f.isForHead = nextParen == parenFor
		p.next(true)

	case js_lexer.TCloseParen:
		closed := p.closeFrame(t)
		p.next(closed.kind == frameParenStmt)
		p.stmtStart = closed.kind == frameParenStmt
		if len(closed.loopTargets) > 0 {
			p.tree.LoopWrites = append(p.tree.LoopWrites, js_ast.LoopWrite{
				Targets:    closed.loopTargets,
				Body:       p.lexer.Loc(),
				IsBlock:    p.lexer.Token == js_lexer.TOpenBrace,
				InFunction: p.funcDepth > 0,
			})
		}

	case js_lexer.TOpenBracket:
		kind := frameBracket
		declFrame, isPattern := p.bindingTarget()
		if isPattern {
			kind = frameArrayPattern
		}
		isArrayLiteral := !isPattern && p.exprAllowed && p.top().kind != frameClass
		isLoopTarget := isArrayLiteral && p.atForHeadStart()
		f := p.pushFrame(kind)
		f.isArrayLiteral = isArrayLiteral
		f.isLoopTarget = isLoopTarget
		if isPattern {
			f.declFrame = declFrame
			f.bindingNext = true
		}
		p.next(true)

	case js_lexer.TCloseBracket:
		if closed := p.closeFrame(t); closed.kind == frameBracket {
			p.closedTargets = closed.targets
		}
		p.next(false)

	case js_lexer.TOpenBrace:
		p.scanOpenBrace(stmtStart)

	case js_lexer.TCloseBrace:
		p.scanCloseBrace()

	case js_lexer.TSemicolon:
		p.closeWrites(len(p.frames))
		top := p.top()
		top.decl = declaration{exportStmt: -1}
		top.ternaries = 0
		p.next(true)
		p.stmtStart = isStatementList(top.kind)
		p.keyPosition = top.kind == frameClass

	case js_lexer.TComma:
		top := p.top()
		if top.kind == frameDynamicImport {
			p.lexer.Expected(js_lexer.TCloseParen)
		}
		p.closeWrites(len(p.frames))
		if top.decl.active {
			top.decl.expectBinding = true
		}
		p.next(true)
		switch top.kind {
		case frameObject, frameObjectPattern:
			p.keyPosition = true
		case frameArrayPattern:
			top.bindingNext = true
		}

	case js_lexer.TColon:
		p.scanColon()

	case js_lexer.TQuestion:
		p.top().ternaries++
		p.next(true)

	case js_lexer.TEqualsGreaterThan:
		// Default values in arrow function parameters aren't assignments
		if p.prevToken == js_lexer.TCloseParen && p.lastClosed.kind == frameParen {
			p.discardWrites(p.lastClosed.writeCount)
		}
		p.next(true)

	case js_lexer.TPlusPlus, js_lexer.TMinusMinus:
		if ref != nil && !p.lexer.HasNewlineBefore {
			p.addWrite([]js_ast.Binding{*ref}, ref.Loc, logger.Loc{Start: p.lexer.Range().End()})
			p.next(false)
		} else {
			loc := p.lexer.Loc()
			p.next(true)
			p.prefixLoc = &loc
		}

	case js_lexer.TDotDotDot:
		if top := p.top(); top.kind == frameObjectPattern || top.kind == frameArrayPattern {
			top.bindingNext = true
		}
		p.next(true)

	case js_lexer.TDot, js_lexer.TQuestionDot:
		p.next(false)

	default:
		if t.IsAssign() {
			p.scanAssign(ref)
			return
		}
		p.next(true)
	}
}

func (p *parser) scanIdentifier(stmtStart bool, prefixLoc *logger.Loc) {
	name := p.lexer.Identifier
	binding := js_ast.Binding{Name: name, Loc: p.lexer.Loc()}
	p.tree.UsedNames[name] = true

	if p.lexer.Token == js_lexer.TIdentifier {
		switch name {
		case "let":
			if stmtStart || p.atForHeadStart() {
				p.pendingLet = true
				p.next(true)
				return
			}

		case "yield":
			if p.funcDepth == 0 {
				p.lexer.AddRangeErrorAndPanic(p.lexer.Range(), "Cannot use \"yield\" outside a generator function")
			}
			p.next(true)
			return

		case "await":
			if p.funcDepth == 0 {
				p.lexer.AddRangeErrorAndPanic(p.lexer.Range(), "Top-level await is not supported")
			}
			p.next(true)
			return

		case "async":
			p.asyncStmtStart = stmtStart
		}
	}

	top := p.top()
	if top.decl.expectBinding {
		top.decl.expectBinding = false
		p.addBinding(len(p.frames)-1, binding)
		p.next(false)
		return
	}
	if (top.kind == frameObjectPattern || top.kind == frameArrayPattern) && top.bindingNext {
		top.bindingNext = false
		p.addBinding(top.declFrame, binding)
		p.next(false)
		return
	}
	if p.atForHeadStart() {
		top.headRef = &binding
	}

	isElement := p.atElementStart()
	p.next(false)
	p.ref = &binding
	p.refIsElement = isElement
	if prefixLoc != nil {
		p.prefix = &prefixUpdate{opLoc: *prefixLoc, ref: binding}
	}
}

func (p *parser) scanAssign(ref *js_ast.Binding) {
	switch {
	case p.lexer.Token == js_lexer.TEquals &&
		((p.prevToken == js_lexer.TCloseBracket && p.lastClosed.isArrayLiteral) ||
			(p.prevToken == js_lexer.TCloseBrace && p.lastClosed.kind == frameObject)):
		// A destructuring assignment. Default values inside the pattern can't
		// be wrapped on their own, so their targets join the pattern's.
		pattern := p.lastClosed
		targets := append([]js_ast.Binding{}, pattern.targets...)
		for _, write := range p.tree.Writes[min(pattern.writeCount, len(p.tree.Writes)):] {
			targets = append(targets, write.Targets...)
		}
		p.discardWrites(pattern.writeCount)
		if len(targets) > 0 {
			p.startWrite(targets, pattern.openLoc)
		}

	case ref != nil:
		p.startWrite([]js_ast.Binding{*ref}, ref.Loc)
	}
	p.next(true)
}

// The write ends with the enclosing expression, which "closeWrites" and
// "scanColon" work out later
func (p *parser) startWrite(targets []js_ast.Binding, start logger.Loc) {
	index := p.addWrite(targets, start, logger.Loc{})
	p.closes = append(p.closes, pendingClose{
		depth:     len(p.frames),
		ternaries: p.top().ternaries,
		write:     index,
	})
}

// Returns what the "in" or "of" of a for head assigns to on each iteration
func (p *parser) loopTargets(head *frame, ref *js_ast.Binding) []js_ast.Binding {
	switch {
	case ref != nil && head.headRef != nil && ref.Loc == head.headRef.Loc:
		return []js_ast.Binding{*ref}

	case (p.prevToken == js_lexer.TCloseBracket || p.prevToken == js_lexer.TCloseBrace) && p.lastClosed.isLoopTarget:
		return p.lastClosed.targets
	}
	return nil
}

// Whether an identifier here is a whole element of an array literal or a
// whole property value of an object literal
func (p *parser) atElementStart() bool {
	switch p.top().kind {
	case frameBracket:
		return p.prevToken == js_lexer.TOpenBracket || p.prevToken == js_lexer.TComma || p.prevToken == js_lexer.TDotDotDot
	case frameObject:
		return p.prevToken == js_lexer.TColon || p.prevToken == js_lexer.TDotDotDot
	}
	return false
}

func endsElement(t js_lexer.T) bool {
	switch t {
	case js_lexer.TComma, js_lexer.TCloseBracket, js_lexer.TCloseBrace, js_lexer.TEquals:
		return true
	}
	return false
}

func (p *parser) scanColon() {
	top := p.top()
	wasTernary := top.ternaries > 0

	// The assignment "x = a ? b : c" continues past the colon but the one in
	// "a ? x = b : c" doesn't
	end := p.lexer.PrevTokenEnd()
	n := len(p.closes)
	for n > 0 && p.closes[n-1].depth == len(p.frames) && p.closes[n-1].ternaries >= top.ternaries {
		n--
		p.tree.Writes[p.closes[n].write].End = end
	}
	p.closes = p.closes[:n]
	if wasTernary {
		top.ternaries--
	}

	p.next(true)
	switch {
	case top.kind == frameObjectPattern:
		top.bindingNext = true
	case isStatementList(top.kind) && !wasTernary:
		// Labels and "case x:"
		p.stmtStart = true
	}
}

func (p *parser) scanOpenBrace(stmtStart bool) {
	kind := frameBlock
	isExpr := false
	declFrame, isPattern := 0, false
	depth := len(p.frames)

	switch {
	case p.pendingClass != nil && p.pendingClass.depth == depth:
		kind, isExpr = frameClass, p.pendingClass.isExpr
		p.pendingClass = nil

	case p.prevToken == js_lexer.TCloseParen && p.lastClosed.kind == frameParen:
		// Default values in function parameters aren't assignments
		p.discardWrites(p.lastClosed.writeCount)
		kind = frameFunctionBody
		if p.pendingFunction != nil && p.pendingFunction.depth == depth {
			isExpr = p.pendingFunction.isExpr
		} else {
			isExpr = p.top().kind == frameObject
		}
		p.pendingFunction = nil

	case p.prevToken == js_lexer.TEqualsGreaterThan:
		kind, isExpr = frameFunctionBody, true

	case stmtStart:
		kind = frameBlock

	case p.top().kind == frameClass:
		// "static { ... }"
		kind = frameBlock

	default:
		if declFrame, isPattern = p.bindingTarget(); isPattern {
			kind = frameObjectPattern
		} else if p.exprAllowed {
			kind = frameObject
		}
	}

	isLoopTarget := kind == frameObject && p.atForHeadStart()
	f := p.pushFrame(kind)
	f.isExpr = isExpr
	f.declFrame = declFrame
	f.isLoopTarget = isLoopTarget
	p.next(true)

	switch kind {
	case frameObject, frameClass, frameObjectPattern:
		p.keyPosition = true
	case frameBlock, frameFunctionBody:
		p.stmtStart = true
	}
}

func (p *parser) scanCloseBrace() {
	closed := p.closeFrame(js_lexer.TCloseBrace)
	parent := p.top()

	switch closed.kind {
	case frameBlock, frameFunctionBody, frameClass:
		if closed.isExpr {
			p.next(false)
		} else {
			p.next(true)
			p.stmtStart = isStatementList(parent.kind)
		}
		if parent.kind == frameClass {
			p.keyPosition = true
		}

	default:
		if closed.kind == frameObject {
			p.closedTargets = closed.targets
		}
		p.next(false)
	}
}

func (p *parser) scanImport(stmtStart bool) {
	importRange := p.lexer.Range()
	p.lexer.Next()

	switch p.lexer.Token {
	case js_lexer.TOpenParen:
		p.tree.DynamicImports = append(p.tree.DynamicImports, importRange)
		p.pushFrame(frameDynamicImport)
		p.next(true)
		if p.lexer.Token == js_lexer.TCloseParen || p.lexer.Token == js_lexer.TDotDotDot {
			p.lexer.Unexpected()
		}

	case js_lexer.TDot:
		p.lexer.Next()
		if !p.lexer.IsContextualKeyword("meta") {
			p.lexer.ExpectedString("\"meta\"")
		}
		p.tree.ImportMetas = append(p.tree.ImportMetas, importRange)
		p.next(false)

	default:
		if !p.atModuleItem(stmtStart) {
			p.lexer.AddRangeErrorAndPanic(importRange, "Unexpected \"import\"")
		}
		p.parseImportStatement(importRange.Loc)
	}
}

// Import and export declarations can't be the body of "if", "else", a loop,
// or a label
func (p *parser) atModuleItem(stmtStart bool) bool {
	if !stmtStart || len(p.frames) != 1 {
		return false
	}
	switch p.prevToken {
	case js_lexer.TElse, js_lexer.TDo, js_lexer.TColon:
		return false
	case js_lexer.TCloseParen:
		return p.lastClosed.kind != frameParenStmt
	}
	return true
}

func (p *parser) atForHeadStart() bool {
	return p.prevToken == js_lexer.TOpenParen && p.top().isForHead
}

func (p *parser) startDeclaration(exportStmt int) {
	p.top().decl = declaration{
		active:        true,
		expectBinding: true,
		exportStmt:    exportStmt,
	}
}

// Returns the frame of the declaration that the next "{" or "[" destructures
func (p *parser) bindingTarget() (int, bool) {
	top := p.top()
	if top.decl.expectBinding {
		top.decl.expectBinding = false
		return len(p.frames) - 1, true
	}
	if (top.kind == frameObjectPattern || top.kind == frameArrayPattern) && top.bindingNext {
		top.bindingNext = false
		return top.declFrame, true
	}
	return 0, false
}

func (p *parser) addBinding(declFrame int, binding js_ast.Binding) {
	if index := p.frames[declFrame].decl.exportStmt; index >= 0 {
		stmt := &p.tree.Stmts[index]
		stmt.DeclNames = append(stmt.DeclNames, binding)
	}
}

func (p *parser) addWrite(targets []js_ast.Binding, start logger.Loc, end logger.Loc) int {
	p.tree.Writes = append(p.tree.Writes, js_ast.Write{
		Targets:    targets,
		Start:      start,
		End:        end,
		InFunction: p.funcDepth > 0,
	})
	return len(p.tree.Writes) - 1
}

// Ends every assignment expression that started at this depth or deeper
func (p *parser) closeWrites(depth int) {
	end := p.lexer.PrevTokenEnd()
	n := len(p.closes)
	for n > 0 && p.closes[n-1].depth >= depth {
		n--
		p.tree.Writes[p.closes[n].write].End = end
	}
	p.closes = p.closes[:n]
}

func (p *parser) discardWrites(count int) {
	if count >= len(p.tree.Writes) {
		return
	}
	p.tree.Writes = p.tree.Writes[:count]
	n := len(p.closes)
	for n > 0 && p.closes[n-1].write >= count {
		n--
	}
	p.closes = p.closes[:n]
}

func startsNewStatement(t js_lexer.T) bool {
	switch t {
	case js_lexer.TIdentifier, js_lexer.TEscapedKeyword, js_lexer.TPrivateIdentifier,
		js_lexer.TStringLiteral, js_lexer.TNumericLiteral, js_lexer.TBigIntegerLiteral,
		js_lexer.TOpenBrace, js_lexer.TPlusPlus, js_lexer.TMinusMinus,
		js_lexer.TExclamation, js_lexer.TTilde, js_lexer.TAt:
		return true

	case js_lexer.TIn, js_lexer.TInstanceof:
		return false
	}
	return t.IsKeyword()
}

func continuesMemberExpression(t js_lexer.T) bool {
	switch t {
	case js_lexer.TDot, js_lexer.TQuestionDot, js_lexer.TOpenBracket, js_lexer.TOpenParen,
		js_lexer.TNoSubstitutionTemplateLiteral, js_lexer.TTemplateHead:
		return true
	}
	return false
}

func isMemberModifier(name string) bool {
	switch name {
	case "get", "set", "async", "static", "accessor":
		return true
	}
	return false
}

func (p *parser) validate() bool {
	ok := true

	seen := make(map[string]bool)
	checkExport := func(name string, loc logger.Loc) {
		if seen[name] {
			p.log.AddRangeError(&p.source, p.nameRange(loc, name),
				fmt.Sprintf("Multiple exports with the same name %q", name))
			ok = false
		}
		seen[name] = true
	}

	for _, stmt := range p.tree.Stmts {
		switch stmt.Kind {
		case js_ast.SExportClause, js_ast.SExportFrom:
			for _, item := range stmt.Items {
				checkExport(item.Alias, item.AliasLoc)
			}

		case js_ast.SExportStarAs:
			checkExport(stmt.NamespaceName.Name, stmt.NamespaceName.Loc)

		case js_ast.SExportDecl:
			for _, name := range stmt.DeclNames {
				checkExport(name.Name, name.Loc)
			}

		case js_ast.SExportDefault:
			checkExport("default", stmt.KeywordRange.Loc)
		}
	}

	// Import bindings are immutable. Writes inside functions may refer to a
	// shadowing local so they are left for the engine to report.
	imported := p.tree.ImportedNames()
	checkTargets := func(targets []js_ast.Binding, inFunction bool) {
		if inFunction {
			return
		}
		for _, target := range targets {
			if imported[target.Name] {
				p.log.AddRangeError(&p.source, p.nameRange(target.Loc, target.Name),
					fmt.Sprintf("Cannot assign to import %q", target.Name))
				ok = false
			}
		}
	}
	for _, write := range p.tree.Writes {
		checkTargets(write.Targets, write.InFunction)
	}
	for _, loop := range p.tree.LoopWrites {
		checkTargets(loop.Targets, loop.InFunction)
	}

	return ok
}

func (p *parser) nameRange(loc logger.Loc, name string) logger.Range {
	if int(loc.Start) < len(p.source.Contents) {
		if c := p.source.Contents[loc.Start]; c == '"' || c == '\'' {
			return p.source.RangeOfString(loc)
		}
	}
	return logger.Range{Loc: loc, Len: int32(len(name))}
}

// Names that can't be bound in strict mode code
var strictModeReservedWords = map[string]bool{
	"arguments":  true,
	"await":      true,
	"eval":       true,
	"implements": true,
	"interface":  true,
	"let":        true,
	"package":    true,
	"private":    true,
	"protected":  true,
	"public":     true,
	"static":     true,
	"yield":      true,
}

func (p *parser) parseBindingIdentifier() js_ast.Binding {
	if p.lexer.Token != js_lexer.TIdentifier {
		p.lexer.Expected(js_lexer.TIdentifier)
	}
	name := p.lexer.Identifier
	if strictModeReservedWords[name] {
		p.lexer.AddRangeErrorAndPanic(p.lexer.Range(), fmt.Sprintf("Cannot use %q as an identifier here", name))
	}
	binding := js_ast.Binding{Name: name, Loc: p.lexer.Loc()}
	p.tree.UsedNames[name] = true
	p.lexer.Next()
	return binding
}

// Export names may be identifiers, keywords, or string literals. The result
// reports whether the name could also be used as a local variable.
func (p *parser) parseModuleExportName() (string, logger.Loc, bool) {
	loc := p.lexer.Loc()

	if p.lexer.Token == js_lexer.TStringLiteral {
		name, _, ok := helpers.UTF16ToStringWithValidation(p.lexer.StringLiteral)
		if !ok {
			p.lexer.AddRangeErrorAndPanic(p.lexer.Range(), "An export name cannot include an unpaired surrogate")
		}
		p.lexer.Next()
		return name, loc, false
	}

	if p.lexer.IsIdentifierOrKeyword() {
		name := p.lexer.Identifier
		isIdentifier := p.lexer.Token == js_lexer.TIdentifier
		p.lexer.Next()
		return name, loc, isIdentifier
	}

	p.lexer.Expected(js_lexer.TIdentifier)
	return "", loc, false
}

func (p *parser) parseModuleSpecifier() uint32 {
	var flags ast.ImportRecordFlags
	if p.lexer.Token != js_lexer.TStringLiteral {
		p.lexer.Expected(js_lexer.TStringLiteral)
	}
	path := helpers.UTF16ToString(p.lexer.StringLiteral)
	r := p.lexer.Range()
	p.lexer.Next()

	if p.lexer.Token == js_lexer.TWith || (p.lexer.IsContextualKeyword("assert") && !p.lexer.HasNewlineBefore) {
		if p.parseImportAttributes() {
			flags |= ast.AssertTypeJSON
		}
	}

	index, ok := p.recordIndex[path]
	if !ok {
		index = uint32(len(p.tree.ImportRecords))
		p.recordIndex[path] = index
		p.tree.ImportRecords = append(p.tree.ImportRecords, ast.ImportRecord{
			Path:  path,
			Range: r,
		})
	}
	p.tree.ImportRecords[index].Flags |= flags
	return index
}

// Returns true for "with { type: 'json' }"
func (p *parser) parseImportAttributes() bool {
	isJSON := false
	p.lexer.Next()
	p.lexer.Expect(js_lexer.TOpenBrace)

	for p.lexer.Token != js_lexer.TCloseBrace {
		var key string
		keyRange := p.lexer.Range()
		if p.lexer.Token == js_lexer.TStringLiteral {
			key = helpers.UTF16ToString(p.lexer.StringLiteral)
		} else if p.lexer.IsIdentifierOrKeyword() {
			key = p.lexer.Identifier
		} else {
			p.lexer.Expected(js_lexer.TIdentifier)
		}
		p.lexer.Next()
		p.lexer.Expect(js_lexer.TColon)

		if p.lexer.Token != js_lexer.TStringLiteral {
			p.lexer.Expected(js_lexer.TStringLiteral)
		}
		value := helpers.UTF16ToString(p.lexer.StringLiteral)
		if key != "type" {
			p.lexer.AddRangeErrorAndPanic(keyRange, fmt.Sprintf("Import attribute %q is not supported", key))
		}
		if value != "json" {
			p.lexer.AddRangeErrorAndPanic(p.lexer.Range(), fmt.Sprintf("Import attribute type %q is not supported", value))
		}
		isJSON = true
		p.lexer.Next()

		if p.lexer.Token != js_lexer.TComma {
			break
		}
		p.lexer.Next()
	}

	p.lexer.Expect(js_lexer.TCloseBrace)
	return isJSON
}

func (p *parser) finishModuleStmt(stmt js_ast.ModuleStmt, start logger.Loc) {
	end := p.lexer.PrevTokenEnd()
	if p.lexer.Token == js_lexer.TSemicolon {
		end.Start = p.lexer.Range().End()
		p.lexer.Next()
	} else {
		p.lexer.ExpectOrInsertSemicolon()
	}

	stmt.Range = logger.Range{Loc: start, Len: end.Start - start.Start}
	p.tree.Stmts = append(p.tree.Stmts, stmt)
	p.prevToken = js_lexer.TSemicolon
	p.exprAllowed = true
	p.stmtStart = true
}

func (p *parser) parseImportStatement(start logger.Loc) {
	stmt := js_ast.ModuleStmt{Kind: js_ast.SImport}

	switch p.lexer.Token {
	case js_lexer.TStringLiteral:
		// "import 'path'"

	case js_lexer.TAsterisk:
		stmt.NamespaceName = p.parseNamespaceBinding()
		p.lexer.ExpectContextualKeyword("from")

	case js_lexer.TOpenBrace:
		stmt.Items = p.parseImportClause()
		p.lexer.ExpectContextualKeyword("from")

	case js_lexer.TIdentifier:
		binding := p.parseBindingIdentifier()
		stmt.DefaultName = &binding

		if p.lexer.Token == js_lexer.TComma {
			p.lexer.Next()
			switch p.lexer.Token {
			case js_lexer.TAsterisk:
				stmt.NamespaceName = p.parseNamespaceBinding()

			case js_lexer.TOpenBrace:
				stmt.Items = p.parseImportClause()

			default:
				p.lexer.Unexpected()
			}
		}
		p.lexer.ExpectContextualKeyword("from")

	default:
		p.lexer.Unexpected()
	}

	stmt.ImportRecordIndex = p.parseModuleSpecifier()
	p.finishModuleStmt(stmt, start)
}

func (p *parser) parseNamespaceBinding() *js_ast.Binding {
	p.lexer.Expect(js_lexer.TAsterisk)
	p.lexer.ExpectContextualKeyword("as")
	binding := p.parseBindingIdentifier()
	return &binding
}

func (p *parser) parseImportClause() []js_ast.ClauseItem {
	items := []js_ast.ClauseItem{}
	p.lexer.Expect(js_lexer.TOpenBrace)

	for p.lexer.Token != js_lexer.TCloseBrace {
		nameRange := p.lexer.Range()
		name, nameLoc, isIdentifier := p.parseModuleExportName()
		item := js_ast.ClauseItem{Name: name, Alias: name, NameLoc: nameLoc, AliasLoc: nameLoc}

		if p.lexer.IsContextualKeyword("as") {
			p.lexer.Next()
			binding := p.parseBindingIdentifier()
			item.Alias = binding.Name
			item.AliasLoc = binding.Loc
		} else if !isIdentifier {
			p.lexer.AddRangeErrorAndPanic(nameRange,
				fmt.Sprintf("Expected \"as\" after %s", p.source.TextForRange(nameRange)))
		} else if strictModeReservedWords[name] {
			p.lexer.AddRangeErrorAndPanic(nameRange, fmt.Sprintf("Cannot use %q as an identifier here", name))
		} else {
			p.tree.UsedNames[name] = true
		}

		items = append(items, item)
		if p.lexer.Token != js_lexer.TComma {
			break
		}
		p.lexer.Next()
	}

	p.lexer.Expect(js_lexer.TCloseBrace)
	return items
}

// Also returns the range of the first name that isn't an identifier, which
// is only allowed when the clause is followed by "from"
func (p *parser) parseExportClause() ([]js_ast.ClauseItem, *logger.Range) {
	items := []js_ast.ClauseItem{}
	var nonIdentifier *logger.Range
	p.lexer.Expect(js_lexer.TOpenBrace)

	for p.lexer.Token != js_lexer.TCloseBrace {
		nameRange := p.lexer.Range()
		name, nameLoc, isIdentifier := p.parseModuleExportName()
		if !isIdentifier && nonIdentifier == nil {
			nonIdentifier = &nameRange
		}
		if isIdentifier {
			p.tree.UsedNames[name] = true
		}
		item := js_ast.ClauseItem{Name: name, Alias: name, NameLoc: nameLoc, AliasLoc: nameLoc}

		if p.lexer.IsContextualKeyword("as") {
			p.lexer.Next()
			alias, aliasLoc, _ := p.parseModuleExportName()
			item.Alias = alias
			item.AliasLoc = aliasLoc
		}

		items = append(items, item)
		if p.lexer.Token != js_lexer.TComma {
			break
		}
		p.lexer.Next()
	}

	p.lexer.Expect(js_lexer.TCloseBrace)
	return items, nonIdentifier
}

func (p *parser) parseExport() {
	exportRange := p.lexer.Range()
	p.lexer.Next()

	switch p.lexer.Token {
	case js_lexer.TAsterisk:
		p.lexer.Next()
		stmt := js_ast.ModuleStmt{Kind: js_ast.SExportStar}
		if p.lexer.IsContextualKeyword("as") {
			p.lexer.Next()
			name, loc, _ := p.parseModuleExportName()
			stmt.Kind = js_ast.SExportStarAs
			stmt.NamespaceName = &js_ast.Binding{Name: name, Loc: loc}
		}
		p.lexer.ExpectContextualKeyword("from")
		stmt.ImportRecordIndex = p.parseModuleSpecifier()
		p.finishModuleStmt(stmt, exportRange.Loc)

	case js_lexer.TOpenBrace:
		items, nonIdentifier := p.parseExportClause()
		if p.lexer.IsContextualKeyword("from") {
			p.lexer.Next()
			stmt := js_ast.ModuleStmt{Kind: js_ast.SExportFrom, Items: items}
			stmt.ImportRecordIndex = p.parseModuleSpecifier()
			p.finishModuleStmt(stmt, exportRange.Loc)
			return
		}
		if nonIdentifier != nil {
			p.lexer.AddRangeErrorAndPanic(*nonIdentifier,
				fmt.Sprintf("Expected identifier but found %q", p.source.TextForRange(*nonIdentifier)))
		}
		p.finishModuleStmt(js_ast.ModuleStmt{Kind: js_ast.SExportClause, Items: items}, exportRange.Loc)

	case js_lexer.TDefault:
		p.parseExportDefault(exportRange)

	case js_lexer.TVar, js_lexer.TConst:
		p.startExportDeclaration(exportRange)

	case js_lexer.TIdentifier:
		switch {
		case p.lexer.IsContextualKeyword("let"):
			p.startExportDeclaration(exportRange)

		case p.lexer.IsContextualKeyword("async"):
			p.lexer.Next()
			if p.lexer.Token != js_lexer.TFunction || p.lexer.HasNewlineBefore {
				p.lexer.Expected(js_lexer.TFunction)
			}
			p.exportFunctionOrClass(exportRange)

		default:
			p.lexer.Unexpected()
		}

	case js_lexer.TFunction, js_lexer.TClass:
		p.exportFunctionOrClass(exportRange)

	default:
		p.lexer.Unexpected()
	}
}

func (p *parser) startExportDeclaration(exportRange logger.Range) {
	index := len(p.tree.Stmts)
	p.tree.Stmts = append(p.tree.Stmts, js_ast.ModuleStmt{
		Kind:         js_ast.SExportDecl,
		Range:        exportRange,
		KeywordRange: exportRange,
	})
	p.startDeclaration(index)
	p.next(true)
}

func (p *parser) exportFunctionOrClass(exportRange logger.Range) {
	isClass := p.lexer.Token == js_lexer.TClass
	p.lexer.Next()
	if !isClass && p.lexer.Token == js_lexer.TAsterisk {
		p.lexer.Next()
	}
	name := p.parseBindingIdentifier()
	p.tree.Stmts = append(p.tree.Stmts, js_ast.ModuleStmt{
		Kind:         js_ast.SExportDecl,
		Range:        exportRange,
		KeywordRange: exportRange,
		DeclNames:    []js_ast.Binding{name},
	})
	p.expectBody(isClass)
}

func (p *parser) parseExportDefault(exportRange logger.Range) {
	defaultRange := p.lexer.Range()
	p.lexer.Next()
	keywordRange := logger.Range{Loc: exportRange.Loc, Len: defaultRange.End() - exportRange.Loc.Start}
	stmt := js_ast.ModuleStmt{
		Kind:         js_ast.SExportDefault,
		Range:        keywordRange,
		KeywordRange: keywordRange,
	}

	if p.lexer.IsContextualKeyword("async") {
		p.tree.UsedNames["async"] = true
		p.lexer.Next()
		if p.lexer.Token != js_lexer.TFunction || p.lexer.HasNewlineBefore {
			// "export default async" or an async arrow function
			p.tree.Stmts = append(p.tree.Stmts, stmt)
			p.prevToken = js_lexer.TIdentifier
			p.exprAllowed = false
			return
		}
	}

	switch p.lexer.Token {
	case js_lexer.TFunction, js_lexer.TClass:
		isClass := p.lexer.Token == js_lexer.TClass
		stmt.DefaultKind = js_ast.DefaultFunction
		if isClass {
			stmt.DefaultKind = js_ast.DefaultClass
		}
		p.lexer.Next()
		if !isClass && p.lexer.Token == js_lexer.TAsterisk {
			p.lexer.Next()
		}
		if p.lexer.Token == js_lexer.TIdentifier {
			name := p.parseBindingIdentifier()
			stmt.DefaultLocal = &name
		} else {
			stmt.NameInsertLoc = p.lexer.PrevTokenEnd()
		}
		p.tree.Stmts = append(p.tree.Stmts, stmt)
		p.expectBody(isClass)

	default:
		// The rest of the statement is an ordinary expression
		stmt.DefaultKind = js_ast.DefaultExpr
		p.tree.Stmts = append(p.tree.Stmts, stmt)
		p.prevToken = js_lexer.TEquals
		p.exprAllowed = true
	}
}

// The next "{" at this depth starts the body of a declaration
func (p *parser) expectBody(isClass bool) {
	body := &pendingBody{depth: len(p.frames)}
	if isClass {
		p.pendingClass = body
	} else {
		p.pendingFunction = body
	}
	p.prevToken = js_lexer.TIdentifier
	p.exprAllowed = false
}
