package cache

import (
	"sync"

	"github.com/evanw/esmloader/internal/compiler"
	"github.com/evanw/esmloader/internal/config"
	"github.com/evanw/esmloader/internal/logger"
)

// This cache avoids compiling a file again when its contents and its loader
// are the same as last time. The contents are compared in full. When the
// contents came from the file cache they are usually the same string, which
// makes the comparison cheap.

type CompileCache struct {
	mutex   sync.Mutex
	entries map[string]*compileCacheEntry

	// Only used by tests
	misses int
}

type compileCacheEntry struct {
	source logger.Source
	loader config.Loader
	result compiler.Result
	err    error
}

func (c *CompileCache) Compile(source logger.Source, loader config.Loader) (compiler.Result, error) {
	// Check the cache
	entry := func() *compileCacheEntry {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		return c.entries[source.KeyPath]
	}()

	// Cache hit
	if entry != nil && entry.source == source && entry.loader == loader {
		return entry.result, entry.err
	}

	// Cache miss
	result, err := compiler.Compile(source, loader)

	// Save for next time
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.misses++
	c.entries[source.KeyPath] = &compileCacheEntry{
		source: source,
		loader: loader,
		result: result,
		err:    err,
	}
	return result, err
}
