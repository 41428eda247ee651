package js_parser

import (
	"strings"
	"testing"

	"github.com/evanw/esmloader/internal/js_printer"
	"github.com/evanw/esmloader/internal/logger"
	"github.com/evanw/esmloader/internal/test"
)

func msgText(msgs []logger.Msg) string {
	text := ""
	for _, msg := range msgs {
		text += msg.String(logger.StderrOptions{}, logger.TerminalInfo{})
	}
	return text
}

func expectParseError(t *testing.T, contents string, expected string) {
	t.Helper()
	t.Run(contents, func(t *testing.T) {
		t.Helper()
		log := logger.NewDeferLog()
		_, ok := Parse(log, test.SourceForTest(contents))
		test.AssertEqual(t, msgText(log.Done()), expected)
		test.AssertEqual(t, ok, expected == "")
	})
}

// Only compares the rewritten module body, which comes after the prologue
func expectPrinted(t *testing.T, contents string, expected string) {
	t.Helper()
	t.Run(contents, func(t *testing.T) {
		t.Helper()
		log := logger.NewDeferLog()
		source := test.SourceForTest(contents)
		tree, ok := Parse(log, source)
		test.AssertEqualWithDiff(t, msgText(log.Done()), "")
		if !ok {
			t.Fatal("Parse error")
		}
		js := string(js_printer.Print(tree, source).JS)
		body := js[strings.Index(js, "yield;")+len("yield;") : len(js)-len("\n})")]
		test.AssertEqualWithDiff(t, body, expected)
	})
}

func TestExportDeclarations(t *testing.T) {
	expectPrinted(t, "export let a = 1", " let a = 1")
	expectPrinted(t, "export const a = 1, b = 2;", " const a = 1, b = 2;")
	expectPrinted(t, "export var a", " var a")
	expectPrinted(t, "export function f() {}", " function f() {}")
	expectPrinted(t, "export async function f() {}", " async function f() {}")
	expectPrinted(t, "export function* f() {}", " function* f() {}")
	expectPrinted(t, "export class A {}", " class A {}")
	expectPrinted(t, "export const {a, b: [c]} = o", " const {a, b: [c]} = o")

	expectParseError(t, "export foo", "<stdin>:1:7: error: Unexpected \"foo\"\n")
	expectParseError(t, "export function() {}", "<stdin>:1:15: error: Expected identifier but found \"(\"\n")
}

func TestExportDefault(t *testing.T) {
	expectPrinted(t, "export default 123", "const _default = 123")
	expectPrinted(t, "export default {a: 1}", "const _default = {a: 1}")
	expectPrinted(t, "export default (1, 2)", "const _default = (1, 2)")
	expectPrinted(t, "export default async", "const _default = async")
	expectPrinted(t, "export default async () => {}", "const _default = async () => {}")
	expectPrinted(t, "export default function () {}", " function _default () {}")
	expectPrinted(t, "export default function() {}", " function _default() {}")
	expectPrinted(t, "export default async function() {}", " async function _default() {}")
	expectPrinted(t, "export default function* () {}", " function* _default () {}")
	expectPrinted(t, "export default function foo() {}", " function foo() {}")
	expectPrinted(t, "export default class {}", " class _default {}")
	expectPrinted(t, "export default class extends A {}", " class _default extends A {}")
	expectPrinted(t, "export default class Foo {}", " class Foo {}")
	expectPrinted(t, "let _default; export default 1", "let _default; const _default2 = 1")

	expectParseError(t, "export default 1; export default 2",
		"<stdin>:1:18: error: Multiple exports with the same name \"default\"\n")
}

func TestExportClause(t *testing.T) {
	expectPrinted(t, "export {}", "")
	expectPrinted(t, "let a; export {a}", "let a; ")
	expectPrinted(t, "let a; export {a as b, a as default};", "let a; ")
	expectPrinted(t, "let a; export {a as \"b c\"}", "let a; ")
	expectPrinted(t, "export {a, b as c} from './x.mjs'", "")
	expectPrinted(t, "export {\"a b\" as c, default} from './x.mjs'", "")
	expectPrinted(t, "export * from './x.mjs'", "")
	expectPrinted(t, "export * as ns from './x.mjs'", "")
	expectPrinted(t, "export * as \"n s\" from './x.mjs'", "")

	expectParseError(t, "export {\"a\"}", "<stdin>:1:8: error: Expected identifier but found \"\\\"a\\\"\"\n")
	expectParseError(t, "export {default}", "<stdin>:1:8: error: Expected identifier but found \"default\"\n")
	expectParseError(t, "export {\"\\uD800\" as x} from 'y'",
		"<stdin>:1:8: error: An export name cannot include an unpaired surrogate\n")
	expectParseError(t, "let a; export {a, a}", "<stdin>:1:18: error: Multiple exports with the same name \"a\"\n")
	expectParseError(t, "export let a; export let a", "<stdin>:1:25: error: Multiple exports with the same name \"a\"\n")
	expectParseError(t, "export * as a from 'x'; export {a} from 'y'",
		"<stdin>:1:32: error: Multiple exports with the same name \"a\"\n")
	expectParseError(t, "export * 'x'", "<stdin>:1:9: error: Expected \"from\" but found \"'x'\"\n")
}

func TestImportStatements(t *testing.T) {
	expectPrinted(t, "import './x.mjs'", "")
	expectPrinted(t, "import './x.mjs';", "")
	expectPrinted(t, "import x from './x.mjs'\nx()", "\nx()")
	expectPrinted(t, "import {a, b as c} from './x.mjs'; c()", " c()")
	expectPrinted(t, "import {\"a b\" as c, default as d} from './x.mjs'", "")
	expectPrinted(t, "import * as ns from './x.mjs'", "")
	expectPrinted(t, "import x, * as ns from './x.mjs'", "")
	expectPrinted(t, "import x, {y} from './x.mjs'", "")
	expectPrinted(t, "import from from './x.mjs'", "")
	expectPrinted(t, "import json from './x.json' with { type: 'json' }", "")
	expectPrinted(t, "import json from './x.json' assert { type: 'json' }", "")

	// Line breaks inside removed statements are kept
	expectPrinted(t, "import {\n  a,\n  b\n} from './x.mjs'\nconsole.log(a)", "\n\n\n\nconsole.log(a)")
	expectPrinted(t, "import {a}\r\nfrom './x.mjs'", "\r\n")

	expectParseError(t, "import {\"a\"} from 'x'", "<stdin>:1:8: error: Expected \"as\" after \"a\"\n")
	expectParseError(t, "import {default} from 'x'", "<stdin>:1:8: error: Expected \"as\" after default\n")
	expectParseError(t, "import {a as 'b'} from 'x'", "<stdin>:1:13: error: Expected identifier but found \"'b'\"\n")
	expectParseError(t, "import yield from 'x'", "<stdin>:1:7: error: Cannot use \"yield\" as an identifier here\n")
	expectParseError(t, "import x 'x'", "<stdin>:1:9: error: Expected \"from\" but found \"'x'\"\n")
	expectParseError(t, "import x from y", "<stdin>:1:14: error: Expected string but found \"y\"\n")
	expectParseError(t, "import x from 'x' y", "<stdin>:1:18: error: Expected \";\" but found \"y\"\n")
	expectParseError(t, "import x from 'x' with { type: 'css' }",
		"<stdin>:1:31: error: Import attribute type \"css\" is not supported\n")
	expectParseError(t, "import x from 'x' with { mode: 'json' }",
		"<stdin>:1:25: error: Import attribute \"mode\" is not supported\n")
	expectParseError(t, "{ import x from 'x' }", "<stdin>:1:2: error: Unexpected \"import\"\n")
	expectParseError(t, "function f() { export let a }", "<stdin>:1:15: error: Unexpected \"export\"\n")
	expectParseError(t, "if (a) export let a", "<stdin>:1:7: error: Unexpected \"export\"\n")
}

func TestAssignToImport(t *testing.T) {
	expectParseError(t, "import x from 'y'; x = 1", "<stdin>:1:19: error: Cannot assign to import \"x\"\n")
	expectParseError(t, "import x from 'y'; x++", "<stdin>:1:19: error: Cannot assign to import \"x\"\n")
	expectParseError(t, "import * as ns from 'y'; ns += 1", "<stdin>:1:25: error: Cannot assign to import \"ns\"\n")
	expectParseError(t, "x = 1; import {x} from 'y'", "<stdin>:1:0: error: Cannot assign to import \"x\"\n")
	expectParseError(t, "import {x} from 'y'; [x] = [1]", "<stdin>:1:22: error: Cannot assign to import \"x\"\n")
	expectParseError(t, "import {x} from 'y'; ({x} = o)", "<stdin>:1:23: error: Cannot assign to import \"x\"\n")
	expectParseError(t, "import {x} from 'y'; ({a: x} = o)", "<stdin>:1:26: error: Cannot assign to import \"x\"\n")
	expectParseError(t, "import {x} from 'y'; for (x of a) {}", "<stdin>:1:26: error: Cannot assign to import \"x\"\n")
	expectParseError(t, "import {x} from 'y'; for ([x] in o) {}", "<stdin>:1:27: error: Cannot assign to import \"x\"\n")

	// Functions may shadow the import
	expectPrinted(t, "import x from 'y'; function f(x) { x = 1 }", " function f(x) { x = 1 }")
	expectPrinted(t, "import x from 'y'; o.x = 1", " o.x = 1")
	expectPrinted(t, "import x from 'y'; o = {x: 1}", " o = {x: 1}")
	expectPrinted(t, "import x from 'y'; [a] = [x]", " [a] = [x]")
	expectPrinted(t, "import x from 'y'; function f() { [x] = [1] }", " function f() { [x] = [1] }")
}

func TestDynamicImport(t *testing.T) {
	expectPrinted(t, "import('./x.mjs')", "__esm.dynamicImport('./x.mjs')")
	expectPrinted(t, "import(`./${x}.mjs`)", "__esm.dynamicImport(`./${x}.mjs`)")
	expectPrinted(t, "import(a + b)", "__esm.dynamicImport(a + b)")
	expectPrinted(t, "import /* a */ (\n'./x.mjs' // b\n)", "__esm.dynamicImport /* a */ (\n'./x.mjs' // b\n)")
	expectPrinted(t, "let p = import('./x.mjs').then(m => m)", "let p = __esm.dynamicImport('./x.mjs').then(m => m)")
	expectPrinted(t, "async function f() { await import('x') }", "async function f() { await __esm.dynamicImport('x') }")
	expectPrinted(t, "function* f() { yield import('x') }", "function* f() { yield __esm.dynamicImport('x') }")
	expectPrinted(t, "o.import('x'); o = {import: 1}", "o.import('x'); o = {import: 1}")
	expectPrinted(t, "import(f(a, b))", "__esm.dynamicImport(f(a, b))")
	expectPrinted(t, "try {} catch { import('./x') }", "try {} catch { __esm.dynamicImport('./x') }")
	expectPrinted(t, "try {} catch (e) { import('./x') }", "try {} catch (e) { __esm.dynamicImport('./x') }")

	expectParseError(t, "import()", "<stdin>:1:7: error: Unexpected \")\"\n")
	expectParseError(t, "import(...a)", "<stdin>:1:7: error: Unexpected \"...\"\n")
	expectParseError(t, "import(a, b)", "<stdin>:1:8: error: Expected \")\" but found \",\"\n")
	expectParseError(t, "try {} catch { import(a, b) }", "<stdin>:1:23: error: Expected \")\" but found \",\"\n")
	expectParseError(t, "import(a,)", "<stdin>:1:8: error: Expected \")\" but found \",\"\n")
	expectParseError(t, "import('x'", "<stdin>:1:10: error: Expected \")\" but found end of file\n")
	expectParseError(t, "import.then()", "<stdin>:1:7: error: Expected \"meta\" but found \"then\"\n")
	expectParseError(t, "x = import", "<stdin>:1:4: error: Unexpected \"import\"\n")
}

func TestImportMeta(t *testing.T) {
	expectPrinted(t, "import.meta", "__esm.meta")
	expectPrinted(t, "f(import.meta.url)", "f(__esm.meta.url)")
	expectPrinted(t, "import . meta", "__esm . meta")
}

func TestHashbang(t *testing.T) {
	expectPrinted(t, "#!/usr/bin/env node\nexport let a", "\n let a")
	expectPrinted(t, "#!/usr/bin/env node", "")
}

func TestLiveBindingUpdates(t *testing.T) {
	expectPrinted(t, "export let x; x = 1", " let x; __esm.update(x = 1)")
	expectPrinted(t, "export let x; x = 1; x += 2;", " let x; __esm.update(x = 1); __esm.update(x += 2);")
	expectPrinted(t, "export let x; x ??= 1, y = 2", " let x; __esm.update(x ??= 1), y = 2")
	expectPrinted(t, "export let x; x = y = 1", " let x; __esm.update(x = y = 1)")
	expectPrinted(t, "export let x, y; x = y = 1", " let x, y; __esm.update(x = __esm.update(y = 1))")
	expectPrinted(t, "export let x; x++", " let x; __esm.update(x++)")
	expectPrinted(t, "export let x; x--; --x", " let x; __esm.update(x--); __esm.update(--x)")
	expectPrinted(t, "export let x; ++x.y; ++x[0]", " let x; ++x.y; ++x[0]")
	expectPrinted(t, "export let x; f(x = 1)", " let x; f(__esm.update(x = 1))")
	expectPrinted(t, "export let x; f([x = 1], {a: x = 2})", " let x; f([__esm.update(x = 1)], {a: __esm.update(x = 2)})")
	expectPrinted(t, "export let x; f(`${x = 1}`)", " let x; f(`${__esm.update(x = 1)}`)")
	expectPrinted(t, "export let x; x = a ? b : c", " let x; __esm.update(x = a ? b : c)")
	expectPrinted(t, "export let x; a ? x = 1 : x = 2", " let x; a ? __esm.update(x = 1) : __esm.update(x = 2)")
	expectPrinted(t, "export let x; x = a ? b ? c : d : e", " let x; __esm.update(x = a ? b ? c : d : e)")
	expectPrinted(t, "export let x; x = function() {}\nf()", " let x; __esm.update(x = function() {})\nf()")
	expectPrinted(t, "export let x; x = () => {}\nf()", " let x; __esm.update(x = () => {})\nf()")
	expectPrinted(t, "export let x; x = class {}\nf()", " let x; __esm.update(x = class {})\nf()")
	expectPrinted(t, "export let x\nx = 1\nf()", " let x\n__esm.update(x = 1)\nf()")
	expectPrinted(t, "export let x\nx\n++y", " let x\nx\n++y")
	expectPrinted(t, "export let x; for (x = 0; x < 1; x++) {}", " let x; for (__esm.update(x = 0); x < 1; __esm.update(x++)) {}")
	expectPrinted(t, "export let x; if (a) x = 1\nelse x = 2", " let x; if (a) __esm.update(x = 1)\nelse __esm.update(x = 2)")
	expectPrinted(t, "export function f() { f = null }", " function f() { __esm.update(f = null) }")
	expectPrinted(t, "let x; export {x as y}; x = 1", "let x;  __esm.update(x = 1)")
	expectPrinted(t, "export default function f() {} f = 1", " function f() {} __esm.update(f = 1)")
	expectPrinted(t, "export let x; try {} catch { x = 1 }", " let x; try {} catch { __esm.update(x = 1) }")

	// Destructuring assignments
	expectPrinted(t, "export let x; ({x = 1} = o)", " let x; (__esm.update({x = 1} = o))")
	expectPrinted(t, "export let x; [x = 1] = a", " let x; __esm.update([x = 1] = a)")
	expectPrinted(t, "export let x, y; [x, y] = [1, 2]", " let x, y; __esm.update([x, y] = [1, 2])")
	expectPrinted(t, "export let x; ({a: x, ...r} = o)", " let x; (__esm.update({a: x, ...r} = o))")
	expectPrinted(t, "export let x; [a.b, [, x]] = v", " let x; __esm.update([a.b, [, x]] = v)")
	expectPrinted(t, "export let x; ({a: {b: [x]}} = o)", " let x; (__esm.update({a: {b: [x]}} = o))")
	expectPrinted(t, "export let x; [a = (x = 1)] = v", " let x; __esm.update([a = (x = 1)] = v)")
	expectPrinted(t, "export let x; [...x] = v", " let x; __esm.update([...x] = v)")
	expectPrinted(t, "export let x; f([x] = v)", " let x; f(__esm.update([x] = v))")

	// Loops that assign on every iteration
	expectPrinted(t, "export let x; for (x of a) f(x)", " let x; for (x of a) if (__esm.update(), true) f(x)")
	expectPrinted(t, "export let x; for (x in o) { f(x) }", " let x; for (x in o) {__esm.update(); f(x) }")
	expectPrinted(t, "export let x; for ([k, x] of m) {}", " let x; for ([k, x] of m) {__esm.update();}")
	expectPrinted(t, "export let x; for ({x} of a) {}", " let x; for ({x} of a) {__esm.update();}")
	expectPrinted(t, "export let x; function f() { for (x of a) {} }", " let x; function f() { for (x of a) {__esm.update();} }")
	expectPrinted(t, "export let x; for (x of a) { import('./y') }", " let x; for (x of a) {__esm.update(); __esm.dynamicImport('./y') }")

	// Not writes to the exported variable
	expectPrinted(t, "export let x; o.x = 1; o?.x = 1", " let x; o.x = 1; o?.x = 1")
	expectPrinted(t, "export let x; let y = 1", " let x; let y = 1")
	expectPrinted(t, "export let x; function f(x = 1) {}", " let x; function f(x = 1) {}")
	expectPrinted(t, "export let x; let f = (x = 1) => x", " let x; let f = (x = 1) => x")
	expectPrinted(t, "export let x; let f = async (x = 1) => {}", " let x; let f = async (x = 1) => {}")
	expectPrinted(t, "export let x; class A { x = 1; static x = 2 }", " let x; class A { x = 1; static x = 2 }")
	expectPrinted(t, "export let x; class A {\n  x = 1\n  x = 2\n}", " let x; class A {\n  x = 1\n  x = 2\n}")
	expectPrinted(t, "export let x; o = {x: 1}", " let x; o = {x: 1}")
	expectPrinted(t, "export let x; [a, b] = v", " let x; [a, b] = v")
	expectPrinted(t, "export let x; [x] == v; ({x} == o)", " let x; [x] == v; ({x} == o)")
	expectPrinted(t, "export let x; [x][0] = v", " let x; [x][0] = v")
	expectPrinted(t, "export let x; a[x] = v; f()[x] = v", " let x; a[x] = v; f()[x] = v")
	expectPrinted(t, "export let x; class A { [x] = 1; static [x] = 2 }", " let x; class A { [x] = 1; static [x] = 2 }")
	expectPrinted(t, "export let x; a[x = 1] = v", " let x; a[__esm.update(x = 1)] = v")
	expectPrinted(t, "export let x; ({x: a} = o)", " let x; ({x: a} = o)")
	expectPrinted(t, "export let x; for (let x of a) {}", " let x; for (let x of a) {}")
	expectPrinted(t, "export let x; for (y of a) {}", " let x; for (y of a) {}")
	expectPrinted(t, "export let x; for (x.y of a) {}", " let x; for (x.y of a) {}")
	expectPrinted(t, "export let x; for ([x][0] of a) {}", " let x; for ([x][0] of a) {}")
	expectPrinted(t, "export let x; x == 1", " let x; x == 1")
	expectPrinted(t, "export let x; for (let x = 0;;) {}", " let x; for (let x = 0;;) {}")
}

func TestDeclarations(t *testing.T) {
	expectPrinted(t, "export let x; let y = 1, z = x", " let x; let y = 1, z = x")
	expectPrinted(t, "export let x; let y = (1, x = 2)", " let x; let y = (1, __esm.update(x = 2))")
	expectPrinted(t, "export let x; let y = 1\nx = 2", " let x; let y = 1\n__esm.update(x = 2)")
	expectPrinted(t, "export let x; let y = a ? b : c, x2 = 1", " let x; let y = a ? b : c, x2 = 1")
	expectPrinted(t, "export let x; let {a, b: [c = x = 1]} = o", " let x; let {a, b: [c = __esm.update(x = 1)]} = o")
	expectPrinted(t, "export let x; const f = () => {}, g = 1", " let x; const f = () => {}, g = 1")
}

func TestRegExpAndDivision(t *testing.T) {
	expectPrinted(t, "a = b / c / d", "a = b / c / d")
	expectPrinted(t, "a = /=>/g", "a = /=>/g")
	expectPrinted(t, "a = /[/]import(/", "a = /[/]import(/")
	expectPrinted(t, "a = b /= c", "a = b /= c")
	expectPrinted(t, "if (a) /x/.test(b)", "if (a) /x/.test(b)")
	expectPrinted(t, "a = (b) / c", "a = (b) / c")
	expectPrinted(t, "a = b[0] / c", "a = b[0] / c")
	expectPrinted(t, "{}\n/x/.test(b)", "{}\n/x/.test(b)")
	expectPrinted(t, "function f() {}\n/x/.test(b)", "function f() {}\n/x/.test(b)")
	expectPrinted(t, "a = {} / 1", "a = {} / 1")
	expectPrinted(t, "a = x++ / 2", "a = x++ / 2")
	expectPrinted(t, "return_ = typeof /x/", "return_ = typeof /x/")
	expectPrinted(t, "a = `${b}` / 2", "a = `${b}` / 2")
	expectPrinted(t, "a = `${ {b: 1}.b }` / 2", "a = `${ {b: 1}.b }` / 2")
}

func TestStatementErrors(t *testing.T) {
	expectParseError(t, "return 1", "<stdin>:1:0: error: A return statement cannot be used here\n")
	expectParseError(t, "yield 1", "<stdin>:1:0: error: Cannot use \"yield\" outside a generator function\n")
	expectParseError(t, "await x", "<stdin>:1:0: error: Top-level await is not supported\n")
	expectParseError(t, "f(", "<stdin>:1:2: error: Expected \")\" but found end of file\n")
	expectParseError(t, "a = [1", "<stdin>:1:6: error: Expected \"]\" but found end of file\n")
	expectParseError(t, "{", "<stdin>:1:1: error: Expected \"}\" but found end of file\n")
	expectParseError(t, ")", "<stdin>:1:0: error: Unexpected \")\"\n")
	expectParseError(t, "f(]", "<stdin>:1:2: error: Unexpected \"]\"\n")

	expectPrinted(t, "function f() { return 1 }", "function f() { return 1 }")
	expectPrinted(t, "async function f() { await x }", "async function f() { await x }")
	expectPrinted(t, "o.await = o.yield", "o.await = o.yield")
}
