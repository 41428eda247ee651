package resolver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/cache"
	"github.com/evanw/esmloader/internal/config"
	"github.com/evanw/esmloader/internal/fs"
	"github.com/evanw/esmloader/internal/test"
)

var files = map[string]string{
	"/repo/src/entry.mjs":                                     "",
	"/repo/src/fixture/export/abc.mjs":                        "",
	"/repo/src/data.json":                                     "{}",
	"/repo/src/dir/index.js":                                  "",
	"/repo/src/pkgdir/package.json":                           `{"module": "./lib/m.mjs", "main": "./lib/main.js"}`,
	"/repo/src/pkgdir/lib/m.mjs":                              "",
	"/repo/src/pkgdir/lib/main.js":                            "",
	"/repo/src/broken/package.json":                           `{"main": }`,
	"/repo/src/broken/index.mjs":                              "",
	"/repo/node_modules/pkg/package.json":                     `{"main": "dist/index", "module": 123}`,
	"/repo/node_modules/pkg/dist/index.js":                    "",
	"/repo/node_modules/pkg/sub.mjs":                          "",
	"/repo/node_modules/@scope/name/index.mjs":                "",
	"/repo/node_modules/..dots/index.mjs":                     "",
	"/repo/vendor/vendored/index.mjs":                         "",
	"/home/user/.node_modules/home-node-modules/index.js":     "",
	"/home/user/.node_libraries/home-node-libraries/index.js": "",
	"/usr/lib/node/prefix-path/index.js":                      "",
}

func newResolver(kind fs.MockKind, moduleRoots ...string) *Resolver {
	options := config.DefaultOptions()
	if len(moduleRoots) > 0 {
		options.ModuleRoots = moduleRoots
	}
	mock := fs.MockFS(files, kind, "/repo")
	options.AbsWorkingDir = mock.Cwd()
	return NewResolver(mock, cache.MakeCacheSet(), &options)
}

func expectResolved(t *testing.T, r *Resolver, referer ast.ModuleID, specifier string, expected string) {
	t.Helper()
	t.Run(specifier, func(t *testing.T) {
		t.Helper()
		id, err := r.Resolve(specifier, referer)
		if err != nil {
			t.Fatal(err)
		}
		test.AssertEqual(t, string(id), expected)
	})
}

func expectNotFound(t *testing.T, r *Resolver, referer ast.ModuleID, specifier string) {
	t.Helper()
	t.Run(specifier, func(t *testing.T) {
		t.Helper()
		id, err := r.Resolve(specifier, referer)
		if err == nil {
			t.Fatalf("Expected %q to fail but it resolved to %q", specifier, id)
		}
		var notFound *ModuleNotFoundError
		if !errors.As(fmt.Errorf("import failed: %w", err), &notFound) {
			t.Fatalf("Expected a ModuleNotFoundError but got %T", err)
		}
		test.AssertEqual(t, notFound.Code(), "MODULE_NOT_FOUND")
		test.AssertEqual(t, notFound.Specifier, specifier)
	})
}

const entry = ast.ModuleID("/repo/src/entry.mjs")

func TestRelativeSpecifiers(t *testing.T) {
	r := newResolver(fs.MockUnix)
	abc := "/repo/src/fixture/export/abc.mjs"

	expectResolved(t, r, entry, "./fixture/export/abc.mjs", abc)
	expectResolved(t, r, entry, "./fixture/export/abc", abc)
	expectResolved(t, r, entry, "./fixture/./export/../export/abc.mjs", abc)
	expectResolved(t, r, entry, "../src/data", "/repo/src/data.json")
	expectResolved(t, r, entry, "/repo/src/data.json", "/repo/src/data.json")
	expectResolved(t, r, "/repo/src/dir/x.mjs", ".", "/repo/src/dir/index.js")
	expectResolved(t, r, "", "./src/entry.mjs", "/repo/src/entry.mjs")

	expectNotFound(t, r, entry, "./missing.mjs")
	expectNotFound(t, r, entry, "./fixture/export")
}

func TestURLSpecifiers(t *testing.T) {
	r := newResolver(fs.MockUnix)
	abc := "/repo/src/fixture/export/abc.mjs"

	expectResolved(t, r, entry, "./fixture/export/abc.mjs?a", abc)
	expectResolved(t, r, entry, "./fixture/export/abc.mjs#a", abc)
	expectResolved(t, r, entry, "./fixture/export/%61%62%63.mjs", abc)
	expectResolved(t, r, entry, "file:///repo/src/fixture/export/abc.mjs", abc)
	expectResolved(t, r, entry, "file://localhost/repo/src/fixture/export/abc.mjs", abc)
	expectResolved(t, r, entry, "file:/repo/src/fixture/export/abc.mjs?x#y", abc)

	// Encoded separators are never decoded
	expectNotFound(t, r, entry, "./fixture%2fexport/abc.mjs")
	expectNotFound(t, r, entry, "./fixture%2Fexport/abc.mjs")
	expectNotFound(t, r, entry, "file:///repo/src/fixture%2Fexport/abc.mjs")

	expectNotFound(t, r, entry, "./fixture/export/%zz.mjs")
	expectNotFound(t, r, entry, "file://example.com/repo/src/entry.mjs")
	expectNotFound(t, r, entry, "file:src/entry.mjs")
	expectNotFound(t, r, entry, "http://example.com/abc.mjs")
	expectNotFound(t, r, entry, "data:text/javascript,export default 1")
	expectNotFound(t, r, entry, "node:fs")
}

func TestDirectories(t *testing.T) {
	r := newResolver(fs.MockUnix)

	expectResolved(t, r, entry, "./dir", "/repo/src/dir/index.js")
	expectResolved(t, r, entry, "./dir/", "/repo/src/dir/index.js")
	expectResolved(t, r, entry, "./pkgdir", "/repo/src/pkgdir/lib/m.mjs")

	// A broken "package.json" file is ignored
	expectResolved(t, r, entry, "./broken", "/repo/src/broken/index.mjs")
}

func TestMainFieldOrder(t *testing.T) {
	options := config.DefaultOptions()
	options.MainFields = []string{"main"}
	mock := fs.MockFS(files, fs.MockUnix, "/repo")
	r := NewResolver(mock, cache.MakeCacheSet(), &options)
	expectResolved(t, r, entry, "./pkgdir", "/repo/src/pkgdir/lib/main.js")
}

func TestBareSpecifiers(t *testing.T) {
	r := newResolver(fs.MockUnix)

	expectResolved(t, r, entry, "pkg", "/repo/node_modules/pkg/dist/index.js")
	expectResolved(t, r, entry, "pkg/sub", "/repo/node_modules/pkg/sub.mjs")
	expectResolved(t, r, entry, "@scope/name", "/repo/node_modules/@scope/name/index.mjs")

	expectNotFound(t, r, entry, "@scope")
	expectNotFound(t, r, entry, "vendored")
	expectNotFound(t, r, entry, "pkg/../../src/data.json")
	expectNotFound(t, r, entry, "pkg/../..")

	// A directory whose name starts with ".." is still inside the root
	expectResolved(t, r, entry, "pkg/../..dots", "/repo/node_modules/..dots/index.mjs")

	// Nothing outside the module roots is searched
	expectNotFound(t, r, entry, "home-node-libraries")
	expectNotFound(t, r, entry, "home-node-modules")
	expectNotFound(t, r, entry, "node-path")
	expectNotFound(t, r, entry, "prefix-path")
}

func TestModuleRoots(t *testing.T) {
	r := newResolver(fs.MockUnix, "vendor", "/repo/node_modules")
	expectResolved(t, r, entry, "vendored", "/repo/vendor/vendored/index.mjs")
	expectResolved(t, r, entry, "pkg/sub", "/repo/node_modules/pkg/sub.mjs")

	r = newResolver(fs.MockUnix, "vendor")
	expectNotFound(t, r, entry, "pkg")
}

func TestWindows(t *testing.T) {
	r := newResolver(fs.MockWindows)
	winEntry := ast.ModuleID("C:\\repo\\src\\entry.mjs")
	abc := "C:\\repo\\src\\fixture\\export\\abc.mjs"

	expectResolved(t, r, winEntry, "./fixture/export/abc.mjs", abc)
	expectResolved(t, r, winEntry, "./fixture/export/%61%62%63", abc)
	expectResolved(t, r, winEntry, "file:///C:/repo/src/fixture/export/abc.mjs", abc)
	expectResolved(t, r, winEntry, "C:\\repo\\src\\fixture\\export\\abc.mjs", abc)
	expectResolved(t, r, winEntry, "/repo/src/data.json", "C:\\repo\\src\\data.json")
	expectResolved(t, r, winEntry, "pkg", "C:\\repo\\node_modules\\pkg\\dist\\index.js")

	expectNotFound(t, r, winEntry, "./fixture%2fexport/abc.mjs")
	expectNotFound(t, r, winEntry, "./fixture%5cexport/abc.mjs")
	expectNotFound(t, r, winEntry, "./fixture%5Cexport/abc.mjs")
}

func TestErrorMessage(t *testing.T) {
	r := newResolver(fs.MockUnix)
	_, err := r.Resolve("./missing.mjs", entry)
	test.AssertEqual(t, err.Error(), "Cannot find module \"./missing.mjs\" imported from \"/repo/src/entry.mjs\"")
	_, err = r.Resolve("./missing.mjs", "")
	test.AssertEqual(t, err.Error(), "Cannot find module \"./missing.mjs\"")
}

func TestIsPackagePath(t *testing.T) {
	test.AssertEqual(t, IsPackagePath("pkg"), true)
	test.AssertEqual(t, IsPackagePath("pkg/sub/path"), true)
	test.AssertEqual(t, IsPackagePath("@scope/name"), true)
	test.AssertEqual(t, IsPackagePath("@scope"), false)
	test.AssertEqual(t, IsPackagePath("@/name"), false)
	test.AssertEqual(t, IsPackagePath("./pkg"), false)
	test.AssertEqual(t, IsPackagePath("/pkg"), false)
	test.AssertEqual(t, IsPackagePath(""), false)
}

func TestFileURL(t *testing.T) {
	test.AssertEqual(t, FileURL("/repo/src/entry.mjs", '/'), "file:///repo/src/entry.mjs")
	test.AssertEqual(t, FileURL("/repo/a b/%.mjs", '/'), "file:///repo/a%20b/%25.mjs")
	test.AssertEqual(t, FileURL("C:\\repo\\entry.mjs", '\\'), "file:///C:/repo/entry.mjs")

	// The URL resolves back to the same module
	r := newResolver(fs.MockUnix)
	expectResolved(t, r, entry, FileURL("/repo/src/fixture/export/abc.mjs", '/'), "/repo/src/fixture/export/abc.mjs")
}
