package resolver

// The resolver turns a specifier into the ModuleID of the file it names.
// Relative, absolute and "file:" specifiers are treated as URL references:
// they are split on "/", percent-decoded and resolved against the directory
// of the importing module. Bare specifiers are only looked up in the
// configured module roots. Every other URL scheme is rejected.
//
// There is deliberately no walk up the directory tree looking for
// "node_modules" and no search of global directories, so a module can only
// depend on code inside the project.

import (
	"fmt"
	"strings"
	"sync"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/cache"
	"github.com/evanw/esmloader/internal/config"
	"github.com/evanw/esmloader/internal/fs"
	"github.com/evanw/esmloader/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ModuleNotFoundError is returned for every specifier that can't be turned
// into a file, whatever the reason
type ModuleNotFoundError struct {
	Specifier string

	// Empty for entry points
	Referer ast.ModuleID
}

func (e *ModuleNotFoundError) Error() string {
	if e.Referer == "" {
		return fmt.Sprintf("Cannot find module %q", e.Specifier)
	}
	return fmt.Sprintf("Cannot find module %q imported from %q", e.Specifier, e.Referer)
}

func (e *ModuleNotFoundError) Code() string {
	return "MODULE_NOT_FOUND"
}

type Resolver struct {
	fs     fs.FS
	caches *cache.CacheSet

	options     config.Options
	moduleRoots []string

	// This cache maps a directory path to information about that directory
	dirCache map[string]*dirInfo

	// Successful results keyed by the importing directory and the specifier.
	// Failures are not remembered so a later import can try again.
	results map[resultKey]ast.ModuleID

	// Guards both caches for the whole resolve operation
	mutex sync.Mutex
}

type resultKey struct {
	sourceDir string
	specifier string
}

type resolverQuery struct {
	*Resolver
	debugLogs *debugLogs
}

func NewResolver(fs fs.FS, caches *cache.CacheSet, options *config.Options) *Resolver {
	cwd := options.AbsWorkingDir
	if cwd == "" {
		cwd = fs.Cwd()
	}

	moduleRoots := make([]string, 0, len(options.ModuleRoots))
	for _, root := range options.ModuleRoots {
		if !fs.IsAbs(root) {
			root = fs.Join(cwd, root)
		}
		moduleRoots = append(moduleRoots, root)
	}

	res := &Resolver{
		fs:          fs,
		caches:      caches,
		options:     *options,
		moduleRoots: moduleRoots,
		dirCache:    make(map[string]*dirInfo),
		results:     make(map[resultKey]ast.ModuleID),
	}
	res.options.AbsWorkingDir = cwd
	return res
}

// Resolve returns the canonical identity of the module that "specifier"
// names when imported from "referer". An empty referer resolves relative to
// the working directory.
func (res *Resolver) Resolve(specifier string, referer ast.ModuleID) (ast.ModuleID, error) {
	sourceDir := res.options.AbsWorkingDir
	if referer != "" {
		sourceDir = res.fs.Dir(string(referer))
	}

	res.mutex.Lock()
	defer res.mutex.Unlock()

	key := resultKey{sourceDir: sourceDir, specifier: specifier}
	if id, ok := res.results[key]; ok {
		return id, nil
	}

	r := resolverQuery{Resolver: res}
	if logger.Zap().Core().Enabled(zapcore.DebugLevel) {
		r.debugLogs = &debugLogs{what: fmt.Sprintf(
			"Resolving import %q in directory %q", specifier, sourceDir)}
	}

	path, ok := r.resolveWithoutCache(sourceDir, specifier)
	if !ok {
		r.flushDebugLogs(flushDueToFailure)
		return "", &ModuleNotFoundError{Specifier: specifier, Referer: referer}
	}

	r.flushDebugLogs(flushDueToSuccess)
	id := ast.ModuleID(path)
	res.results[key] = id
	return id, nil
}

func (r resolverQuery) resolveWithoutCache(sourceDir string, specifier string) (string, bool) {
	if specifier == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(specifier, "file:"):
		path, ok := r.filePathFromFileURL(specifier[len("file:"):], sourceDir)
		if !ok {
			return "", false
		}
		return r.loadAsFileOrDirectory(path)

	case IsRelativePath(specifier) || strings.HasPrefix(specifier, "/"):
		path, ok := r.resolveURLReference(sourceDir, specifier)
		if !ok {
			return "", false
		}
		return r.loadAsFileOrDirectory(path)

	case r.isWindowsAbsPath(specifier):
		// "C:\\dir\\file.mjs" is a plain path, not a URL
		return r.loadAsFileOrDirectory(r.fs.Join(specifier))

	case hasURLScheme(specifier):
		if r.debugLogs != nil {
			r.debugLogs.addNote("Only \"file:\" URLs are supported")
		}
		return "", false
	}

	return r.loadModuleRoots(specifier)
}

// IsRelativePath reports whether a specifier is resolved against the
// importing module's directory
func IsRelativePath(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".."
}

func (r resolverQuery) isWindowsAbsPath(specifier string) bool {
	return r.fs.Separator() == '\\' && len(specifier) >= 3 && isDriveLetter(specifier[:2]) &&
		(specifier[2] == '\\' || specifier[2] == '/')
}

func isDriveLetter(text string) bool {
	return len(text) == 2 && text[1] == ':' &&
		((text[0] >= 'a' && text[0] <= 'z') || (text[0] >= 'A' && text[0] <= 'Z'))
}

// "scheme:" per RFC 3986. A single letter is a drive letter on Windows and
// is handled before this is called.
func hasURLScheme(specifier string) bool {
	colon := strings.IndexByte(specifier, ':')
	if colon < 1 {
		return false
	}
	for i := 0; i < colon; i++ {
		c := specifier[i]
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if i == 0 && !isAlpha {
			return false
		}
		if !isAlpha && (c < '0' || c > '9') && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func (r resolverQuery) loadModuleRoots(specifier string) (string, bool) {
	if !IsPackagePath(specifier) {
		if r.debugLogs != nil {
			r.debugLogs.addNote(fmt.Sprintf("The specifier %q is not a valid package name", specifier))
		}
		return "", false
	}

	if r.debugLogs != nil {
		r.debugLogs.addNote(fmt.Sprintf("Searching for %q in the module roots", specifier))
		r.debugLogs.increaseIndent()
		defer r.debugLogs.decreaseIndent()
	}

	parts := strings.Split(specifier, "/")
	for _, root := range r.moduleRoots {
		path := r.fs.Join(append([]string{root}, parts...)...)

		// "pkg/../../x" must not escape the root
		if rel, ok := r.fs.Rel(root, path); !ok || rel == ".." || strings.HasPrefix(rel, ".."+string(r.fs.Separator())) {
			continue
		}

		if absolute, ok := r.loadAsFileOrDirectory(path); ok {
			return absolute, true
		}
	}

	if r.debugLogs != nil {
		r.debugLogs.addNote(fmt.Sprintf("Failed to find %q in any module root", specifier))
	}
	return "", false
}

// IsPackagePath reports whether "specifier" looks like "name" or
// "@scope/name", optionally followed by a subpath
func IsPackagePath(specifier string) bool {
	if specifier == "" || specifier[0] == '.' || specifier[0] == '/' || strings.ContainsRune(specifier, '\\') {
		return false
	}
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") {
		return len(parts) >= 2 && len(parts[0]) > 1 && parts[1] != ""
	}
	return parts[0] != ""
}

type dirInfo struct {
	absPath     string
	entries     fs.DirEntries
	packageJSON *packageJSON // Is there a "package.json" file in this directory?
}

func (r resolverQuery) dirInfoCached(path string) *dirInfo {
	// First, check the cache
	cached, ok := r.dirCache[path]

	// Cache miss: read the info
	if !ok {
		cached = r.dirInfoUncached(path)
		r.dirCache[path] = cached
	}

	if r.debugLogs != nil {
		if cached == nil {
			r.debugLogs.addNote(fmt.Sprintf("Failed to read directory %q", path))
		} else {
			count := cached.entries.Len()
			entries := "entries"
			if count == 1 {
				entries = "entry"
			}
			r.debugLogs.addNote(fmt.Sprintf("Read %d %s for directory %q", count, entries, path))
		}
	}

	return cached
}

func (r resolverQuery) dirInfoUncached(path string) *dirInfo {
	entries, err := r.fs.ReadDirectory(path)
	if err != nil {
		return nil
	}

	info := &dirInfo{
		absPath: path,
		entries: entries,
	}

	// Record if this directory has a package.json file
	if entry := entries.Get("package.json"); entry != nil && entry.Kind() == fs.FileEntry {
		info.packageJSON = r.parsePackageJSON(path)
	}

	return info
}

func (r resolverQuery) loadAsFile(path string) (string, bool) {
	if r.debugLogs != nil {
		r.debugLogs.addNote(fmt.Sprintf("Attempting to load %q as a file", path))
		r.debugLogs.increaseIndent()
		defer r.debugLogs.decreaseIndent()
	}

	dirPath := r.fs.Dir(path)
	dirInfo := r.dirInfoCached(dirPath)
	if dirInfo == nil {
		return "", false
	}

	tryFile := func(base string) (string, bool) {
		if r.debugLogs != nil {
			r.debugLogs.addNote(fmt.Sprintf("Checking for file %q", base))
		}
		if entry := dirInfo.entries.Get(base); entry != nil && entry.Kind() == fs.FileEntry {
			if r.debugLogs != nil {
				r.debugLogs.addNote(fmt.Sprintf("Found file %q", base))
			}
			if symlink := entry.Symlink(); symlink != "" {
				return symlink, true
			}
			return r.fs.Join(dirPath, base), true
		}
		return "", false
	}

	base := r.fs.Base(path)

	// Try the plain path without any extensions
	if absolute, ok := tryFile(base); ok {
		return absolute, true
	}

	// Try the path with extensions
	for _, ext := range r.options.ExtensionOrder {
		if absolute, ok := tryFile(base + ext); ok {
			return absolute, true
		}
	}

	if r.debugLogs != nil {
		r.debugLogs.addNote(fmt.Sprintf("Failed to find file %q", base))
	}
	return "", false
}

func (r resolverQuery) loadAsIndex(dirInfo *dirInfo) (string, bool) {
	// Try the "index" file with extensions
	for _, ext := range r.options.ExtensionOrder {
		base := "index" + ext
		if entry := dirInfo.entries.Get(base); entry != nil && entry.Kind() == fs.FileEntry {
			if r.debugLogs != nil {
				r.debugLogs.addNote(fmt.Sprintf("Found file %q", r.fs.Join(dirInfo.absPath, base)))
			}
			if symlink := entry.Symlink(); symlink != "" {
				return symlink, true
			}
			return r.fs.Join(dirInfo.absPath, base), true
		}
		if r.debugLogs != nil {
			r.debugLogs.addNote(fmt.Sprintf("Failed to find file %q", r.fs.Join(dirInfo.absPath, base)))
		}
	}

	return "", false
}

func (r resolverQuery) loadAsFileOrDirectory(path string) (string, bool) {
	// Is this a file?
	if absolute, ok := r.loadAsFile(path); ok {
		return absolute, true
	}

	// Is this a directory?
	if r.debugLogs != nil {
		r.debugLogs.addNote(fmt.Sprintf("Attempting to load %q as a directory", path))
		r.debugLogs.increaseIndent()
		defer r.debugLogs.decreaseIndent()
	}
	dirInfo := r.dirInfoCached(path)
	if dirInfo == nil {
		return "", false
	}

	// Try using the main field(s) from "package.json"
	if absolute, ok := r.loadAsMainField(dirInfo); ok {
		return absolute, true
	}

	// Look for an "index" file with known extensions
	return r.loadAsIndex(dirInfo)
}

func (r resolverQuery) loadAsMainField(dirInfo *dirInfo) (string, bool) {
	if dirInfo.packageJSON == nil {
		return "", false
	}

	if r.debugLogs != nil {
		r.debugLogs.addNote(fmt.Sprintf("Searching for main fields in %q", r.fs.Join(dirInfo.absPath, "package.json")))
		r.debugLogs.increaseIndent()
		defer r.debugLogs.decreaseIndent()
	}

	for _, field := range r.options.MainFields {
		relPath, ok := dirInfo.packageJSON.mainFields[field]
		if !ok {
			if r.debugLogs != nil {
				r.debugLogs.addNote(fmt.Sprintf("Did not find main field %q", field))
			}
			continue
		}
		if r.debugLogs != nil {
			r.debugLogs.addNote(fmt.Sprintf("Found main field %q with path %q", field, relPath))
		}

		fieldAbsPath := r.fs.Join(dirInfo.absPath, relPath)

		// Is this a file?
		if absolute, ok := r.loadAsFile(fieldAbsPath); ok {
			return absolute, true
		}

		// Is it a directory with an index?
		if fieldDirInfo := r.dirInfoCached(fieldAbsPath); fieldDirInfo != nil {
			if absolute, ok := r.loadAsIndex(fieldDirInfo); ok {
				return absolute, true
			}
		}
	}

	return "", false
}

type debugLogs struct {
	what   string
	indent string
	notes  []string
}

func (d *debugLogs) addNote(text string) {
	if d.indent != "" {
		text = d.indent + text
	}
	d.notes = append(d.notes, text)
}

func (d *debugLogs) increaseIndent() {
	d.indent += "  "
}

func (d *debugLogs) decreaseIndent() {
	d.indent = d.indent[2:]
}

type flushMode uint8

const (
	flushDueToFailure flushMode = iota
	flushDueToSuccess
)

func (r resolverQuery) flushDebugLogs(mode flushMode) {
	if r.debugLogs != nil {
		outcome := "resolved"
		if mode == flushDueToFailure {
			outcome = "not found"
		}
		logger.Zap().Debug(r.debugLogs.what,
			zap.String("outcome", outcome),
			zap.Strings("trace", r.debugLogs.notes))
	}
}
