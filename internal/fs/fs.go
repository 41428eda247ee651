package fs

import (
	"errors"
	"sort"
	"strings"
)

type EntryKind uint8

const (
	DirEntry  EntryKind = 1
	FileEntry EntryKind = 2
)

type Entry struct {
	symlink string
	base    string
	kind    EntryKind
}

func (e *Entry) Kind() EntryKind {
	return e.kind
}

// Symlink returns the resolved target path when this entry is a symbolic
// link, or "" otherwise.
func (e *Entry) Symlink() string {
	return e.symlink
}

type DirEntries struct {
	data map[string]*Entry
	dir  string
}

func MakeEmptyDirEntries(dir string) DirEntries {
	return DirEntries{dir: dir, data: make(map[string]*Entry)}
}

func (entries DirEntries) Len() int {
	return len(entries.data)
}

func (entries DirEntries) Get(query string) *Entry {
	if entries.data != nil {
		return entries.data[query]
	}
	return nil
}

func (entries DirEntries) SortedKeys() (keys []string) {
	if entries.data != nil {
		keys = make([]string, 0, len(entries.data))
		for _, entry := range entries.data {
			keys = append(keys, entry.base)
		}
		sort.Strings(keys)
	}
	return
}

type FS interface {
	// The returned entries are immutable and may be cached across invocations.
	// Do not mutate them.
	ReadDirectory(path string) (entries DirEntries, err error)
	ReadFile(path string) (contents string, err error)

	// This is a key made from the information returned by "stat". It is
	// intended to be different if the file has been edited, and to otherwise
	// be equal if the file has not been edited.
	ModKey(path string) (ModKey, error)

	// This is part of the interface because the mock interface used for tests
	// should not depend on file system behavior (i.e. different slashes for
	// Windows) while the real interface should.
	IsAbs(path string) bool
	Abs(path string) (string, bool)
	Dir(path string) string
	Base(path string) string
	Ext(path string) string
	Join(parts ...string) string
	Cwd() string
	Rel(base string, target string) (string, bool)

	// The byte that separates path segments: '/' or '\\'
	Separator() byte
}

type ModKey struct {
	// What gets filled in here is OS-dependent
	inode      uint64
	size       int64
	mtime_sec  int64
	mtime_nsec int64
	mode       uint32
	uid        uint32
}

// Some file systems have a time resolution of only a few seconds. If a mtime
// value is too new, we won't be able to tell if it has been recently modified
// or not. So we only use mtimes for comparison if they are sufficiently old.
// Apparently the FAT file system has a resolution of two seconds according to
// this article: https://en.wikipedia.org/wiki/Stat_(system_call).
const modKeySafetyGap = 3 // In seconds
var modKeyUnusable = errors.New("The modification key is unusable")

// IsModKeyUnusable reports whether the error only means that the file is too
// new for its modification key to be trusted.
func IsModKeyUnusable(err error) bool {
	return err == modKeyUnusable
}

// PrettyPath returns a path suitable for diagnostics: relative to the working
// directory when the file is inside it, with forward slashes.
func PrettyPath(fs FS, path string) string {
	if rel, ok := fs.Rel(fs.Cwd(), path); ok && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	if fs.Separator() == '\\' {
		path = strings.ReplaceAll(path, "\\", "/")
	}
	return path
}
