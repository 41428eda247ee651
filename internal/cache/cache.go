package cache

import (
	"github.com/evanw/esmloader/internal/fs"
)

// This is a cache of file contents and of compiled modules. Entries are only
// reused while the data they were computed from is unchanged:
//
//   - File contents are reused when the file's modification key is the same
//     as when it was read. File systems without usable modification keys
//     (such as the mock file system used in tests) always read again.
//
//   - Compiled output is reused when both the file contents and the loader
//     are the same as last time. Compiled output never depends on any file
//     other than the one being compiled, so nothing else needs checking.
//
// Results in the cache must be considered immutable since they are shared
// between every module record that loads the same file.
type CacheSet struct {
	FSCache      FSCache
	CompileCache CompileCache
}

func MakeCacheSet() *CacheSet {
	return &CacheSet{
		FSCache: FSCache{
			entries: make(map[string]*fsEntry),
		},
		CompileCache: CompileCache{
			entries: make(map[string]*compileCacheEntry),
		},
	}
}

// ReadFile is a convenience wrapper for callers that hold a CacheSet
func (c *CacheSet) ReadFile(fs fs.FS, path string) (string, error) {
	return c.FSCache.ReadFile(fs, path)
}
