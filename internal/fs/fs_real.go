package fs

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
)

type realFS struct {
	// Stores the file entries for directories we've listed before
	entriesMutex sync.Mutex
	entries      map[string]entriesOrErr

	cwd string
}

type entriesOrErr struct {
	entries DirEntries
	err     error
}

type RealFSOptions struct {
	// Used instead of the process working directory when not empty
	AbsWorkingDir string
}

func RealFS(options RealFSOptions) FS {
	fs := &realFS{entries: make(map[string]entriesOrErr)}

	cwd := options.AbsWorkingDir
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			cwd = string(filepath.Separator)
		}
	}

	// Resolve symlinks in the working directory so relative paths computed
	// for diagnostics match the absolute paths of resolved files. Errors are
	// ignored since a broken working directory will surface later anyway.
	if path, err := filepath.EvalSymlinks(cwd); err == nil {
		fs.cwd = path
	} else {
		fs.cwd = cwd
	}

	return fs
}

func (fs *realFS) ReadDirectory(dir string) (DirEntries, error) {
	// First, check the cache
	fs.entriesMutex.Lock()
	cached, ok := fs.entries[dir]
	fs.entriesMutex.Unlock()

	// Cache hit: stop now
	if ok {
		return cached.entries, cached.err
	}

	// Cache miss: read the directory entries
	names, err := readdir(dir)
	entries := MakeEmptyDirEntries(dir)
	if err == nil {
		for _, name := range names {
			symlink, kind := fs.kind(dir, name)
			if kind == 0 {
				continue
			}
			entries.data[name] = &Entry{
				base:    name,
				kind:    kind,
				symlink: symlink,
			}
		}
	}

	// Update the cache unconditionally. Even if the read failed, we don't want to
	// retry again later. The directory is inaccessible so trying again is wasted.
	if err != nil {
		entries.data = nil
	}
	fs.entriesMutex.Lock()
	fs.entries[dir] = entriesOrErr{entries: entries, err: err}
	fs.entriesMutex.Unlock()
	return entries, err
}

func (fs *realFS) ReadFile(path string) (string, error) {
	buffer, err := os.ReadFile(path)

	// Unwrap to get the underlying error
	if pathErr, ok := err.(*os.PathError); ok {
		err = pathErr.Unwrap()
	}

	// Windows returns ENOTDIR here even though nothing we've done yet has asked
	// for a directory. This really means ENOENT on Windows. Return ENOENT here
	// so callers that check for ENOENT will successfully detect this file as
	// missing.
	if err == syscall.ENOTDIR {
		return "", syscall.ENOENT
	}

	return string(buffer), err
}

func (fs *realFS) ModKey(path string) (ModKey, error) {
	return modKey(path)
}

func (fs *realFS) IsAbs(p string) bool {
	return filepath.IsAbs(p)
}

func (fs *realFS) Abs(p string) (string, bool) {
	abs, err := filepath.Abs(p)
	return abs, err == nil
}

func (fs *realFS) Dir(p string) string {
	return filepath.Dir(p)
}

func (fs *realFS) Base(p string) string {
	return filepath.Base(p)
}

func (fs *realFS) Ext(p string) string {
	return filepath.Ext(p)
}

func (fs *realFS) Join(parts ...string) string {
	return filepath.Clean(filepath.Join(parts...))
}

func (fs *realFS) Cwd() string {
	return fs.cwd
}

func (fs *realFS) Rel(base string, target string) (string, bool) {
	if rel, err := filepath.Rel(base, target); err == nil {
		return rel, true
	}
	return "", false
}

func (fs *realFS) Separator() byte {
	return filepath.Separator
}

func readdir(dirname string) ([]string, error) {
	f, err := os.Open(dirname)

	// Unwrap to get the underlying error
	if pathErr, ok := err.(*os.PathError); ok {
		err = pathErr.Unwrap()
	}

	// Windows returns ENOTDIR here even though nothing we've done yet has asked
	// for a directory. This really means ENOENT on Windows. Return ENOENT here
	// so callers that check for ENOENT will successfully detect this directory
	// as missing.
	if err == syscall.ENOTDIR {
		return nil, syscall.ENOENT
	}

	// Stop now if there was an error
	if err != nil {
		return nil, err
	}

	defer f.Close()
	entries, err := f.Readdirnames(-1)

	// Unwrap to get the underlying error
	if syscallErr, ok := err.(*os.SyscallError); ok {
		err = syscallErr.Unwrap()
	}

	// Don't convert ENOTDIR to ENOENT here. ENOTDIR is a legitimate error
	// condition for Readdirnames() on non-Windows platforms.

	sort.Strings(entries)
	return entries, err
}

func (fs *realFS) kind(dir string, base string) (symlink string, kind EntryKind) {
	entryPath := filepath.Join(dir, base)

	// Use "lstat" since we want information about symbolic links
	stat, err := os.Lstat(entryPath)
	if err != nil {
		return
	}
	mode := stat.Mode()

	// Follow symlinks now so the cache contains the translation
	if (mode & os.ModeSymlink) != 0 {
		link, err := filepath.EvalSymlinks(entryPath)
		if err != nil {
			return // Skip over this entry
		}
		symlink = filepath.Clean(link)

		stat2, err2 := os.Stat(symlink)
		if err2 != nil {
			return // Skip over this entry
		}
		mode = stat2.Mode()
	}

	// We consider the entry either a directory or a file
	if (mode & os.ModeDir) != 0 {
		kind = DirEntry
	} else {
		kind = FileEntry
	}
	return
}
