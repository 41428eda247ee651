package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esmloader/internal/logger"
	"github.com/evanw/esmloader/internal/test"
)

func writeConfig(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	dir := t.TempDir()
	v := NewViper()
	v.Set(KeyCwd, dir)
	options, err := Load(v, "")
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, options.AbsWorkingDir, dir)
	test.AssertEqual(t, strings.Join(options.ExtensionOrder, " "), ".mjs .js .json")
	test.AssertEqual(t, strings.Join(options.ModuleRoots, " "), "node_modules")
	test.AssertEqual(t, strings.Join(options.MainFields, " "), "module main")
	test.AssertEqual(t, options.LogLevel, logger.LevelInfo)
	test.AssertEqual(t, options.Color, logger.ColorIfTerminal)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "esmloader.toml", `
cwd = "`+filepath.ToSlash(dir)+`"
module-roots = ["lib", "vendor"]
log-level = "warning"

[loaders]
cjs = "js"
data = "json"
`)
	options, err := Load(NewViper(), path)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, options.AbsWorkingDir, filepath.Clean(dir))
	test.AssertEqual(t, strings.Join(options.ModuleRoots, " "), "lib vendor")
	test.AssertEqual(t, options.LogLevel, logger.LevelWarning)
	test.AssertEqual(t, options.LoaderForPath("/a/b.cjs"), LoaderJS)
	test.AssertEqual(t, options.LoaderForPath("/a/b.data"), LoaderJSON)
	test.AssertEqual(t, options.LoaderForPath("/a/b.mjs"), LoaderJS)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "esmloader.json", `{"main-fields": ["main"], "color": "never"}`)
	options, err := Load(NewViper(), path)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, strings.Join(options.MainFields, " "), "main")
	test.AssertEqual(t, options.Color, logger.ColorNever)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ESMLOADER_RESOLVE_EXTENSIONS", ".js,.mjs")
	t.Setenv("ESMLOADER_MODULE_ROOTS", "deps")
	options, err := Load(NewViper(), "")
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, strings.Join(options.ExtensionOrder, " "), ".js .mjs")
	test.AssertEqual(t, strings.Join(options.ModuleRoots, " "), "deps")
}

func TestInvalidOptions(t *testing.T) {
	expectError := func(name string, contents string, expected string) {
		t.Helper()
		t.Run(name, func(t *testing.T) {
			t.Helper()
			_, err := Load(NewViper(), writeConfig(t, name, contents))
			if err == nil {
				t.Fatal("Expected an error")
			}
			test.AssertEqual(t, err.Error(), expected)
		})
	}

	expectError("typo.toml", "[loaders]\nmjs = \"jsn\"",
		"invalid loaders entry for \".mjs\": invalid loader \"jsn\" (did you mean \"json\"?)")
	expectError("unknown.toml", "[loaders]\nmjs = \"css\"",
		"invalid loaders entry for \".mjs\": invalid loader \"css\" (valid: \"js\", \"json\")")
	expectError("ext.toml", "resolve-extensions = [\"js\"]",
		"invalid resolve-extensions entry \"js\": must start with \".\"")
	expectError("level.toml", "log-level = \"debug\"",
		"invalid log-level \"debug\" (valid: \"info\", \"warning\", \"error\", \"silent\")")
}

func TestLoaderForPath(t *testing.T) {
	options := DefaultOptions()
	options.ExtensionToLoader[".d.json"] = LoaderJS
	test.AssertEqual(t, options.LoaderForPath("/x/a.d.json"), LoaderJS)
	test.AssertEqual(t, options.LoaderForPath("/x/a.json"), LoaderJSON)
	test.AssertEqual(t, options.LoaderForPath("/x/a.txt"), LoaderNone)
	test.AssertEqual(t, options.LoaderForPath("/x/Makefile"), LoaderNone)
}
