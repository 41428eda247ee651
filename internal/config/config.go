package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esmloader/internal/logger"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, so "module-roots"
// is read from "ESMLOADER_MODULE_ROOTS".
const EnvPrefix = "ESMLOADER"

type Loader uint8

const (
	LoaderNone Loader = iota
	LoaderJS
	LoaderJSON
)

var loaderNames = map[string]Loader{
	"js":   LoaderJS,
	"json": LoaderJSON,
}

func (loader Loader) String() string {
	switch loader {
	case LoaderNone:
		return "none"
	case LoaderJS:
		return "js"
	case LoaderJSON:
		return "json"
	default:
		panic("Internal error")
	}
}

func ParseLoader(text string) (Loader, error) {
	if loader, ok := loaderNames[text]; ok {
		return loader, nil
	}
	valid := make([]string, 0, len(loaderNames))
	for name := range loaderNames {
		valid = append(valid, name)
	}
	sort.Strings(valid)
	for _, name := range valid {
		if len(name) > 3 && isOneEditAway(text, name) {
			return LoaderNone, fmt.Errorf("invalid loader %q (did you mean %q?)", text, name)
		}
	}
	quoted := make([]string, len(valid))
	for i, name := range valid {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	return LoaderNone, fmt.Errorf("invalid loader %q (valid: %s)", text, strings.Join(quoted, ", "))
}

// Reports whether deleting one character from the longer string makes them
// equal
func isOneEditAway(a string, b string) bool {
	if a == b {
		return true
	}
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(a) != len(b)+1 {
		return false
	}
	for i := range a {
		if a[:i]+a[i+1:] == b {
			return true
		}
	}
	return false
}

type Options struct {
	// Bare specifiers and relative "module-roots" entries are resolved from
	// here. Always absolute after Load.
	AbsWorkingDir string

	// Suffixes tried in order when a specifier names a file without one, and
	// after "index" when it names a directory
	ExtensionOrder []string

	// Directories searched for bare specifiers, in order. Nothing outside
	// these is ever searched.
	ModuleRoots []string

	// "package.json" fields consulted when a specifier names a directory
	MainFields []string

	ExtensionToLoader map[string]Loader

	LogLevel logger.LogLevel
	Color    logger.StderrColor
	Verbose  bool
}

func DefaultOptions() Options {
	return Options{
		ExtensionOrder: []string{".mjs", ".js", ".json"},
		ModuleRoots:    []string{"node_modules"},
		MainFields:     []string{"module", "main"},
		ExtensionToLoader: map[string]Loader{
			".mjs":  LoaderJS,
			".js":   LoaderJS,
			".json": LoaderJSON,
		},
		LogLevel: logger.LevelInfo,
		Color:    logger.ColorIfTerminal,
	}
}

// LoaderForPath picks a loader from the longest matching extension so
// "file.data.json" and "file.json" can be configured separately
func (options *Options) LoaderForPath(path string) Loader {
	base := filepath.Base(path)
	for {
		i := strings.IndexByte(base, '.')
		if i < 0 {
			break
		}
		if loader, ok := options.ExtensionToLoader[base[i:]]; ok {
			return loader
		}
		base = base[i+1:]
	}
	return LoaderNone
}

// The keys accepted in a config file, in the environment, and as flags
const (
	KeyCwd        = "cwd"
	KeyExtensions = "resolve-extensions"
	KeyRoots      = "module-roots"
	KeyMainFields = "main-fields"
	KeyLoaders    = "loaders"
	KeyLogLevel   = "log-level"
	KeyColor      = "color"
	KeyVerbose    = "verbose"
)

// NewViper returns a viper instance with the defaults and environment
// bindings installed. Callers may bind flags to it before calling Load.
func NewViper() *viper.Viper {
	defaults := DefaultOptions()
	v := viper.New()
	v.SetDefault(KeyCwd, "")
	v.SetDefault(KeyExtensions, defaults.ExtensionOrder)
	v.SetDefault(KeyRoots, defaults.ModuleRoots)
	v.SetDefault(KeyMainFields, defaults.MainFields)
	v.SetDefault(KeyLoaders, map[string]string{})
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyColor, "auto")
	v.SetDefault(KeyVerbose, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at "path" into "v" and returns the
// validated options. TOML files are decoded separately and merged so they
// keep the same precedence as YAML and JSON files.
func Load(v *viper.Viper, path string) (Options, error) {
	if path != "" {
		if err := readConfigFile(v, path); err != nil {
			return Options{}, err
		}
	}

	options := DefaultOptions()

	cwd := v.GetString(KeyCwd)
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			return Options{}, fmt.Errorf("failed to get the working directory: %w", err)
		}
	}
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return Options{}, fmt.Errorf("invalid %s %q: %w", KeyCwd, cwd, err)
	}
	options.AbsWorkingDir = abs

	options.ExtensionOrder = splitList(v.GetStringSlice(KeyExtensions))
	options.ModuleRoots = splitList(v.GetStringSlice(KeyRoots))
	options.MainFields = splitList(v.GetStringSlice(KeyMainFields))
	options.Verbose = v.GetBool(KeyVerbose)

	// Keys are written without the leading dot since viper splits keys on "."
	for ext, name := range v.GetStringMapString(KeyLoaders) {
		ext = "." + strings.TrimPrefix(ext, ".")
		loader, err := ParseLoader(name)
		if err != nil {
			return Options{}, fmt.Errorf("invalid %s entry for %q: %w", KeyLoaders, ext, err)
		}
		options.ExtensionToLoader[ext] = loader
	}

	if options.LogLevel, err = ParseLogLevel(v.GetString(KeyLogLevel)); err != nil {
		return Options{}, err
	}
	if options.Color, err = ParseColor(v.GetString(KeyColor)); err != nil {
		return Options{}, err
	}

	if err := options.Validate(); err != nil {
		return Options{}, err
	}
	return options, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		var values map[string]any
		if err := toml.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("failed to parse config file %q: %w", path, err)
		}
		if err := v.MergeConfigMap(values); err != nil {
			return fmt.Errorf("failed to merge config file %q: %w", path, err)
		}
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	return nil
}

// Environment variables arrive as a single comma-separated string
func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

func (options *Options) Validate() error {
	for _, ext := range options.ExtensionOrder {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("invalid %s entry %q: must start with \".\"", KeyExtensions, ext)
		}
	}
	for ext := range options.ExtensionToLoader {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("invalid %s key %q: must start with \".\"", KeyLoaders, ext)
		}
	}
	for _, root := range options.ModuleRoots {
		if root == "" {
			return fmt.Errorf("invalid %s entry: must not be empty", KeyRoots)
		}
	}
	if len(options.MainFields) == 0 {
		return fmt.Errorf("%s must not be empty", KeyMainFields)
	}
	return nil
}

func ParseLogLevel(text string) (logger.LogLevel, error) {
	switch text {
	case "info":
		return logger.LevelInfo, nil
	case "warning":
		return logger.LevelWarning, nil
	case "error":
		return logger.LevelError, nil
	case "silent":
		return logger.LevelSilent, nil
	}
	return logger.LevelNone, fmt.Errorf("invalid %s %q (valid: \"info\", \"warning\", \"error\", \"silent\")", KeyLogLevel, text)
}

func ParseColor(text string) (logger.StderrColor, error) {
	switch text {
	case "auto":
		return logger.ColorIfTerminal, nil
	case "true", "always":
		return logger.ColorAlways, nil
	case "false", "never":
		return logger.ColorNever, nil
	}
	return logger.ColorIfTerminal, fmt.Errorf("invalid %s %q (valid: \"auto\", \"always\", \"never\")", KeyColor, text)
}
