package js_host

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/evanw/esmloader/internal/cache"
	"github.com/evanw/esmloader/internal/config"
	"github.com/evanw/esmloader/internal/eventloop"
	"github.com/evanw/esmloader/internal/fs"
	"github.com/evanw/esmloader/internal/loader"
	"github.com/evanw/esmloader/internal/registry"
	"github.com/evanw/esmloader/internal/resolver"
	"github.com/evanw/esmloader/internal/test"
	"github.com/grafana/sobek"
)

var fixtures = map[string]string{
	"/repo/fixture/export/abc.mjs": `
		export const a = "a", b = "b", c = "c"
		export default "default"
	`,
	"/repo/fixture/live.mjs": `
		export let value = 0
		export function reset() { value = 0 }
		export function add(x) { value += x }
	`,
	"/repo/node_modules/pkg/index.mjs": `export const name = "pkg"`,
}

type harness struct {
	host   *Host
	loop   *eventloop.Loop
	loader *loader.Loader
	logs   []string
	counts int
}

func newHarness(files map[string]string) *harness {
	all := make(map[string]string)
	for path, contents := range fixtures {
		all[path] = contents
	}
	for path, contents := range files {
		all[path] = contents
	}

	mock := fs.MockFS(all, fs.MockUnix, "/repo")
	options := config.DefaultOptions()
	options.AbsWorkingDir = mock.Cwd()
	caches := cache.MakeCacheSet()
	vm := sobek.New()
	host := New(vm, mock)
	loop := eventloop.New()
	ld := loader.New(mock, resolver.NewResolver(mock, caches, &options), caches, &options, registry.New(host), loop)
	host.SetLoader(ld)

	h := &harness{host: host, loop: loop, loader: ld}
	vm.Set("log", func(call sobek.FunctionCall) sobek.Value {
		h.logs = append(h.logs, call.Argument(0).String())
		return sobek.Undefined()
	})
	vm.Set("count", func(call sobek.FunctionCall) sobek.Value {
		h.counts++
		return sobek.Undefined()
	})
	return h
}

func (h *harness) run(t *testing.T, specifier string) error {
	t.Helper()
	ctx := context.Background()
	future := h.loader.ImportDynamic(ctx, specifier, "")
	if err := h.loop.Run(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := future.Wait(ctx)
	return err
}

func expectLogs(t *testing.T, entry string, files map[string]string, expected string) *harness {
	t.Helper()
	if files == nil {
		files = make(map[string]string)
	}
	files["/repo/entry.mjs"] = entry
	h := newHarness(files)
	if err := h.run(t, "./entry.mjs"); err != nil {
		t.Fatal(err)
	}
	test.AssertEqualWithDiff(t, strings.Join(h.logs, "\n"), expected)
	return h
}

const show = `const show = (ns) => Object.keys(ns).map((k) => k + "=" + ns[k]).join(",")
`

func TestLiveBinding(t *testing.T) {
	expectLogs(t, `
		import("./fixture/live.mjs").then((ns) => {
			ns.reset()
			log(String(ns.value))
			ns.add(2)
			log(String(ns.value))
		}).catch((e) => log("error: " + e))
	`, nil, "0\n2")
}

func TestNamedImportsAreLive(t *testing.T) {
	expectLogs(t, `
		import {value, add, reset} from "./fixture/live.mjs"
		reset()
		log(String(value))
		add(2)
		log(String(value))
		add(3)
		log(String(value))
	`, nil, "0\n2\n5")
}

func TestSpecifierForms(t *testing.T) {
	abc := "a=a,b=b,c=c,default=default"
	expectLogs(t, show+`
		const abcId = "./fixture/export/abc.mjs"
		const ids = [
			abcId,
			`+"`${abcId}`"+`,
			(() => abcId)(),
			"file:///repo/fixture/export/abc.mjs",
			"file://localhost/repo/fixture/export/abc.mjs",
			abcId + "?a",
			abcId + "#a",
			abcId.replace("abc", "%61%62%63"),
		]
		Promise.all(ids.map((id) => import(id))).then((namespaces) => {
			for (const ns of namespaces) log(show(ns))
			log(String(namespaces.every((ns) => ns === namespaces[0])))
		}).then(() =>
			import
			/* comment */
			(
			// comment
			"./fixture/export/abc.mjs"
			)
		).then((ns) => log("whitespace " + show(ns))).catch((e) => log("error: " + e))
	`, nil, strings.Repeat(abc+"\n", 8)+"true\nwhitespace "+abc)
}

func TestImportReturnsPromise(t *testing.T) {
	expectLogs(t, `
		const p = import("./fixture/export/abc.mjs")
		log(String(p instanceof Promise))
		function f() {
			return import("./fixture/export/abc.mjs")
		}
		log(String(f() instanceof Promise))
		function* g() {
			yield import("./fixture/export/abc.mjs")
		}
		log(String(g().next().value instanceof Promise))
	`, nil, "true\ntrue\ntrue")
}

func TestModuleNotFound(t *testing.T) {
	expectLogs(t, `
		const abcId = "./fixture/export/abc.mjs"
		const ids = [
			abcId.replace("/", "%2f"),
			abcId.replace("/", "%2F"),
			"./fixture%2fexport/abc.mjs",
			"./fixture%2Fexport/abc.mjs",
			"home-node-libraries",
			"home-node-modules",
			"node-path",
			"prefix-path",
		]
		Promise.all(ids.map((id) => import(id).then(
			() => "resolved",
			(e) => e.code + " " + (e instanceof Error)
		))).then((results) => results.forEach((r) => log(r)))
	`, nil, strings.TrimSuffix(strings.Repeat("MODULE_NOT_FOUND true\n", 8), "\n"))
}

func TestBareSpecifier(t *testing.T) {
	expectLogs(t, `
		import {name} from "pkg"
		log(name)
	`, nil, "pkg")
}

func TestSyntaxErrors(t *testing.T) {
	expectLogs(t, `
		import("./bad.mjs")
			.catch((e) => log(String(e instanceof SyntaxError)))
			.then(() => import("./link.mjs"))
			.catch((e) => log(e.name + ": " + e.message))
	`, map[string]string{
		"/repo/bad.mjs":  `import()`,
		"/repo/link.mjs": `import {nope} from "./fixture/export/abc.mjs"`,
	}, "true\nSyntaxError: link.mjs:1:8: error: The requested module \"./fixture/export/abc.mjs\" does not provide an export named \"nope\"")
}

func TestCycle(t *testing.T) {
	expectLogs(t, `
		import("./a.mjs").then(() => log("done"))
	`, map[string]string{
		"/repo/a.mjs": `
			import {b, fromA} from "./b.mjs"
			export function a() { return "a" }
			export let late = 1
			log("a sees " + b() + " " + fromA)
		`,
		"/repo/b.mjs": `
			import {a} from "./a.mjs"
			import * as ns from "./a.mjs"
			export function b() { return "b" }
			export const fromA = a()
			try { ns.late } catch (e) { log("b: " + e.name) }
			log("b keys " + Object.keys(ns).join(","))
		`,
	}, "b: ReferenceError\nb keys a,late\na sees b a\ndone")
}

func TestNamedImportBeforeInitialization(t *testing.T) {
	expectLogs(t, `
		import "./a.mjs"
		import {get} from "./b.mjs"
		log("after " + get())
	`, map[string]string{
		"/repo/a.mjs": `
			import "./b.mjs"
			export let late = 1
		`,
		"/repo/b.mjs": `
			import {late} from "./a.mjs"
			import * as ns from "./a.mjs"
			log(typeof late)
			try { ns.late } catch (e) { log(e.name) }
			export function get() { return late }
		`,
	}, "undefined\nReferenceError\nafter 1")
}

func TestDestructuringUpdatesImporters(t *testing.T) {
	expectLogs(t, `
		import {value, array, object, loop, keys} from "./writer.mjs"
		array()
		log(String(value))
		object()
		log(String(value))
		loop(() => log("loop " + value))
		log(String(value))
		keys({k: 1})
		log(value)
	`, map[string]string{
		"/repo/writer.mjs": `
			export let value = 0
			export function array() { [value] = [66] }
			export function object() { ({value} = {value: 77}) }
			export function loop(f) { for (value of [7, 8]) f() }
			export function keys(o) { for (value in o) {} }
		`,
	}, "66\n77\nloop 7\nloop 8\n8\nk")
}

func TestCatchWithoutBinding(t *testing.T) {
	expectLogs(t, `
		import {caught, fail} from "./catcher.mjs"
		fail()
		log(String(caught))
		try { throw 1 } catch { import("./fixture/export/abc.mjs").then((ns) => log(ns.a)) }
	`, map[string]string{
		"/repo/catcher.mjs": `
			export let caught = false
			export function fail() {
				try { throw 1 } catch { caught = true }
			}
		`,
	}, "true\na")
}

func TestEvaluationError(t *testing.T) {
	h := expectLogs(t, `
		const catchIt = (p) => p.then(() => null, (e) => e)
		Promise.all([catchIt(import("./i1.mjs")), catchIt(import("./i2.mjs"))]).then(([e1, e2]) => {
			log(e1.message)
			log(String(e1 === e2))
			return catchIt(import("./thrower.mjs"))
		}).then((e3) => log(String(e3 instanceof Error)))
	`, map[string]string{
		"/repo/thrower.mjs": `count(); throw new Error("boom")`,
		"/repo/i1.mjs":      `import "./thrower.mjs"`,
		"/repo/i2.mjs":      `import "./thrower.mjs"`,
	}, "boom\ntrue\ntrue")
	test.AssertEqual(t, h.counts, 1)

	// The Go side sees the thrown value too
	err := h.run(t, "./i1.mjs")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Expected the thrown error but got %v", err)
	}
}

func TestEvaluatedOnce(t *testing.T) {
	h := expectLogs(t, `
		Promise.all([
			import("./counted.mjs"),
			import("./counted.mjs?x"),
			import("file:///repo/counted.mjs"),
		]).then(([a, b, c]) => log(String(a === b && b === c)))
	`, map[string]string{
		"/repo/counted.mjs": `count()`,
	}, "true")
	test.AssertEqual(t, h.counts, 1)
}

func TestNamespaceObject(t *testing.T) {
	expectLogs(t, `
		import("./fixture/export/abc.mjs").then((ns) => {
			log(Object.prototype.toString.call(ns))
			log(String(Object.getPrototypeOf(ns) === null))
			log(String(Object.isExtensible(ns)))
			log(String(Object.getOwnPropertyDescriptor(ns, "a").enumerable))
			try { ns.x = 1 } catch (e) { log(e.name) }
			log(String("x" in ns))
		})
	`, nil, "[object Module]\ntrue\nfalse\ntrue\nTypeError\nfalse")
}

func TestJSON(t *testing.T) {
	expectLogs(t, `
		import data from "./data.json"
		log(String(data.x[1]))
		import("./data.json").then((ns) => log(String(ns.default === data)))
	`, map[string]string{
		"/repo/data.json": `{"x": [1, 2]}`,
	}, "2\ntrue")
}

func TestJSONImportAttribute(t *testing.T) {
	expectLogs(t, `
		import data from "./data.json" with {type: "json"}
		log(String(data.x[0]))
		import("./attr.mjs").catch((e) => log(e.name + " " + e.code + " " + (e instanceof TypeError)))
	`, map[string]string{
		"/repo/data.json": `{"x": [1, 2]}`,
		"/repo/attr.mjs":  `import abc from "./fixture/export/abc.mjs" with {type: "json"}`,
	}, "1\nTypeError ERR_IMPORT_ATTRIBUTE_TYPE_INCOMPATIBLE true")
}

func TestImportMeta(t *testing.T) {
	expectLogs(t, `
		log(import.meta.url)
		log(import.meta.filename)
		log(import.meta.dirname)
	`, nil, "file:///repo/entry.mjs\n/repo/entry.mjs\n/repo")
}

func TestConsole(t *testing.T) {
	var stdout, stderr bytes.Buffer
	h := newHarness(map[string]string{
		"/repo/entry.mjs": `console.log("a", 1); console.error("b")`,
	})
	h.host.InstallConsole(&stdout, &stderr)
	if err := h.run(t, "./entry.mjs"); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, stdout.String(), "a 1\n")
	test.AssertEqual(t, stderr.String(), "b\n")
}
