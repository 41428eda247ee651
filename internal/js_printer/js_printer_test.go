package js_printer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/js_parser"
	"github.com/evanw/esmloader/internal/logger"
	"github.com/evanw/esmloader/internal/test"
)

func printForTest(t *testing.T, contents string) PrintResult {
	t.Helper()
	log := logger.NewDeferLog()
	source := test.SourceForTest(contents)
	tree, ok := js_parser.Parse(log, source)
	if !ok {
		t.Fatalf("Parse error: %v", log.Done())
	}
	return Print(tree, source)
}

func expectPrinted(t *testing.T, contents string, expected string) {
	t.Helper()
	t.Run(contents, func(t *testing.T) {
		t.Helper()
		test.AssertEqualWithDiff(t, string(printForTest(t, contents).JS), expected)
	})
}

func expectInfo(t *testing.T, contents string, expected string) {
	t.Helper()
	t.Run(contents, func(t *testing.T) {
		t.Helper()
		test.AssertEqualWithDiff(t, describeInfo(printForTest(t, contents).Info), expected)
	})
}

func describeInfo(info ast.ModuleInfo) string {
	sb := strings.Builder{}
	for _, record := range info.ImportRecords {
		sb.WriteString(fmt.Sprintf("record %s\n", record.Path))
	}
	for _, named := range info.NamedImports {
		sb.WriteString(fmt.Sprintf("import %s as %s from %d\n", named.Alias, named.LocalName, named.ImportRecordIndex))
	}
	for _, export := range info.LocalExports {
		sb.WriteString(fmt.Sprintf("export %s as %s\n", export.LocalName, export.Name))
	}
	for _, export := range info.ReExports {
		sb.WriteString(fmt.Sprintf("reexport %s as %s from %d\n", export.Alias, export.Name, export.ImportRecordIndex))
	}
	for _, star := range info.ExportStars {
		sb.WriteString(fmt.Sprintf("star from %d\n", star))
	}
	return sb.String()
}

func TestPrologue(t *testing.T) {
	expectPrinted(t, "", "(function* (__esm) {\"use strict\";yield;\n})")
	expectPrinted(t, "f()\n// end", "(function* (__esm) {\"use strict\";yield;f()\n// end\n})")

	expectPrinted(t, "export let a = 1; export default a",
		"(function* (__esm) {\"use strict\";__esm.export({\"a\": () => a, \"default\": () => _default});"+
			"yield; let a = 1; const _default = a\n})")

	expectPrinted(t, "import d, {x as y, \"s p\" as z} from './m.mjs'; import * as ns from './m.mjs'; import './side.mjs'",
		"(function* (__esm) {\"use strict\";let d, y, z, ns;__esm.import(\"./m.mjs\", {"+
			"\"default\": (_value) => { d = _value; }, "+
			"\"x\": (_value) => { y = _value; }, "+
			"\"s p\": (_value) => { z = _value; }, "+
			"\"*\": (_value) => { ns = _value; }});yield;  \n})")

	// One name imported twice gets one setter
	expectPrinted(t, "import {a, a as b} from './a.mjs'",
		"(function* (__esm) {\"use strict\";let a, b;__esm.import(\"./a.mjs\", {"+
			"\"a\": (_value) => { a = _value; b = _value; }});yield;\n})")

	// Exporting an import doesn't make a getter
	expectPrinted(t, "import {a} from './a.mjs'; export {a as b}",
		"(function* (__esm) {\"use strict\";let a;__esm.import(\"./a.mjs\", {"+
			"\"a\": (_value) => { a = _value; }});yield; \n})")
}

func TestGeneratedNames(t *testing.T) {
	expectPrinted(t, "let __esm = 1; export default 2",
		"(function* (__esm2) {\"use strict\";__esm2.export({\"default\": () => _default});"+
			"yield;let __esm = 1; const _default = 2\n})")
	expectPrinted(t, "import _value from './v.mjs'; export let x; x = _value",
		"(function* (__esm) {\"use strict\";__esm.export({\"x\": () => x});let _value;"+
			"__esm.import(\"./v.mjs\", {\"default\": (_value2) => { _value = _value2; }});"+
			"yield;  let x; __esm.update(x = _value)\n})")
	expectPrinted(t, "export default function() { __esm() }",
		"(function* (__esm2) {\"use strict\";__esm2.export({\"default\": () => _default});"+
			"yield; function _default() { __esm() }\n})")
}

func TestExportNamesAreQuoted(t *testing.T) {
	expectPrinted(t, "let a; export {a as \"\\u2028\"}",
		"(function* (__esm) {\"use strict\";__esm.export({\"\\u2028\": () => a});yield;let a; \n})")
	expectPrinted(t, "let a; export {a as \"quote\\\"\"}",
		"(function* (__esm) {\"use strict\";__esm.export({\"quote\\\"\": () => a});yield;let a; \n})")
}

func TestLineNumbersArePreserved(t *testing.T) {
	contents := "import {\n  a\n} from './a.mjs'\nexport {\n  b\n}\nlet b = new Error().stack"
	js := string(printForTest(t, contents).JS)
	test.AssertEqual(t, strings.Count(js, "\n"), strings.Count(contents, "\n")+1)
	lines := strings.Split(js, "\n")
	test.AssertEqual(t, lines[6], "let b = new Error().stack")
}

func TestModuleInfo(t *testing.T) {
	expectInfo(t, "import a from './a.mjs'; import {b} from './a.mjs'; import './c.mjs'",
		"record ./a.mjs\nrecord ./c.mjs\nimport default as a from 0\nimport b as b from 0\n")

	expectInfo(t, "export let a, b; export function f() {} export class C {}",
		"export a as a\nexport b as b\nexport f as f\nexport C as C\n")

	expectInfo(t, "export default 1", "export _default as default\n")
	expectInfo(t, "export default function foo() {}", "export foo as default\n")
	expectInfo(t, "let x; export {x as y, x as default}", "export x as y\nexport x as default\n")

	expectInfo(t, "export {a as b, default} from './a.mjs'",
		"record ./a.mjs\nreexport a as b from 0\nreexport default as default from 0\n")
	expectInfo(t, "export * from './a.mjs'; export * as ns from './b.mjs'",
		"record ./a.mjs\nrecord ./b.mjs\nreexport * as ns from 1\nstar from 0\n")

	// Imports are hoisted above the exports that forward them
	expectInfo(t, "export {a, ns}; import {x as a} from './a.mjs'; import * as ns from './b.mjs'",
		"record ./a.mjs\nrecord ./b.mjs\nimport x as a from 0\nimport * as ns from 1\n"+
			"reexport x as a from 0\nreexport * as ns from 1\n")
}

func TestImportRecordFlags(t *testing.T) {
	result := printForTest(t, "import './a.mjs'; import * as ns from './b.mjs'; export * from './c.mjs'; import j from './d.json' with {type: 'json'}")
	records := result.Info.ImportRecords
	test.AssertEqual(t, len(records), 4)
	test.AssertEqual(t, records[0].Flags.Has(ast.AssertTypeJSON), false)
	test.AssertEqual(t, records[2].Flags.Has(ast.AssertTypeJSON), false)
	test.AssertEqual(t, records[3].Flags.Has(ast.AssertTypeJSON), true)

	// The attribute sticks when the same specifier appears again without it
	result = printForTest(t, "import a from './d.json' with {type: 'json'}; export {b} from './d.json'")
	test.AssertEqual(t, len(result.Info.ImportRecords), 1)
	test.AssertEqual(t, result.Info.ImportRecords[0].Flags.Has(ast.AssertTypeJSON), true)
}

func TestPrintJSON(t *testing.T) {
	result := PrintJSON(test.SourceForTest("{\"a\": [1, \"\\u2028\"],\n\"__proto__\": null}"))
	test.AssertEqualWithDiff(t, string(result.JS),
		"(function* (__esm) {\"use strict\";__esm.export({\"default\": () => _default});yield;"+
			"const _default = JSON.parse(\"{\\\"a\\\": [1, \\\"\\\\u2028\\\"],\\n\\\"__proto__\\\": null}\");\n})")
	test.AssertEqual(t, describeInfo(result.Info), "export _default as default\n")
}
