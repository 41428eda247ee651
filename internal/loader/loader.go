package loader

// Loading a module graph happens in two phases:
//
//   1. Off the event loop, every module reachable from the imported one that
//      isn't in the registry yet is resolved, read and compiled. Each module
//      gets its own goroutine, and concurrent loads of the same module are
//      merged into one.
//
//   2. On the event loop, the new modules are added to the registry, then the
//      imported module is linked and evaluated and its namespace is returned.
//
// Nothing is added to the registry unless the whole graph loaded, so a
// failed import leaves no trace and trying again starts from scratch.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/cache"
	"github.com/evanw/esmloader/internal/compiler"
	"github.com/evanw/esmloader/internal/config"
	"github.com/evanw/esmloader/internal/fs"
	"github.com/evanw/esmloader/internal/logger"
	"github.com/evanw/esmloader/internal/registry"
	"github.com/evanw/esmloader/internal/resolver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Scheduler runs tasks on the thread that owns the registry. The returned
// function must be called exactly once, from any goroutine.
type Scheduler interface {
	Reserve() func(task func())
}

type Loader struct {
	fs        fs.FS
	resolver  *resolver.Resolver
	caches    *cache.CacheSet
	options   *config.Options
	registry  *registry.Registry
	scheduler Scheduler

	loads singleflight.Group
}

func New(
	fs fs.FS,
	res *resolver.Resolver,
	caches *cache.CacheSet,
	options *config.Options,
	reg *registry.Registry,
	scheduler Scheduler,
) *Loader {
	return &Loader{
		fs:        fs,
		resolver:  res,
		caches:    caches,
		options:   options,
		registry:  reg,
		scheduler: scheduler,
	}
}

func (l *Loader) Registry() *registry.Registry {
	return l.registry
}

// ImportAttributeError reports an import with "type: 'json'" of a module
// that isn't loaded as JSON
type ImportAttributeError struct {
	Importer  ast.ModuleID
	Specifier string
}

func (e *ImportAttributeError) Error() string {
	return fmt.Sprintf("Module %q imported from %q is not of type \"json\"", e.Specifier, e.Importer)
}

func (e *ImportAttributeError) Code() string {
	return "ERR_IMPORT_ATTRIBUTE_TYPE_INCOMPATIBLE"
}

// A module that has been compiled but not added to the registry yet
type loadedModule struct {
	id     ast.ModuleID
	result compiler.Result
	deps   []ast.ModuleID
}

// ImportDynamic starts importing "specifier" as if by "import()" in the
// module "referer" and returns right away. An empty referer resolves
// relative to the working directory. The context only limits how long the
// caller is willing to wait, so it is not used to cancel loading.
func (l *Loader) ImportDynamic(ctx context.Context, specifier string, referer ast.ModuleID) *Future {
	future := newFuture()
	enqueue := l.scheduler.Reserve()
	start := time.Now()

	go func() {
		rootID, graph, err := l.loadGraph(context.WithoutCancel(ctx), specifier, referer)
		enqueue(func() {
			var ns *registry.Namespace
			if err == nil {
				ns, err = l.instantiate(rootID, graph)
			}
			fields := []zap.Field{
				zap.String("specifier", specifier),
				zap.String("referer", referer.String()),
				zap.String("id", rootID.String()),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Zap().Debug("import failed", append(fields, zap.Error(err))...)
			} else {
				logger.Zap().Debug("import", fields...)
			}
			future.settle(ns, err)
		})
	}()

	return future
}

// Resolves, reads and compiles every module reachable from "specifier" that
// isn't already in the registry
func (l *Loader) loadGraph(ctx context.Context, specifier string, referer ast.ModuleID) (ast.ModuleID, map[ast.ModuleID]*loadedModule, error) {
	rootID, err := l.resolver.Resolve(specifier, referer)
	if err != nil {
		return "", nil, err
	}

	group, ctx := errgroup.WithContext(ctx)
	var mutex sync.Mutex
	graph := make(map[ast.ModuleID]*loadedModule)
	visited := make(map[ast.ModuleID]bool)

	var visit func(id ast.ModuleID)
	visit = func(id ast.ModuleID) {
		mutex.Lock()
		defer mutex.Unlock()
		if visited[id] {
			return
		}
		visited[id] = true
		if _, ok := l.registry.Get(id); ok {
			return
		}

		group.Go(func() error {
			// Stop early if another module in the graph already failed
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err, _ := l.loads.Do(id.String(), func() (any, error) {
				return l.loadModule(id)
			})
			if err != nil {
				return err
			}
			module := value.(*loadedModule)

			mutex.Lock()
			graph[id] = module
			mutex.Unlock()

			for _, dep := range module.deps {
				visit(dep)
			}
			return nil
		})
	}

	visit(rootID)
	if err := group.Wait(); err != nil {
		return rootID, nil, err
	}
	return rootID, graph, nil
}

func (l *Loader) loadModule(id ast.ModuleID) (*loadedModule, error) {
	path := id.String()
	contents, err := l.caches.ReadFile(l.fs, path)
	if err != nil {
		logger.Zap().Debug("cannot read module", zap.String("id", path), zap.Error(err))
		return nil, &resolver.ModuleNotFoundError{Specifier: path}
	}

	source := logger.Source{
		KeyPath:    path,
		PrettyPath: fs.PrettyPath(l.fs, path),
		Contents:   contents,
	}
	result, err := l.caches.CompileCache.Compile(source, l.options.LoaderForPath(path))
	if err != nil {
		return nil, err
	}

	deps := make([]ast.ModuleID, len(result.Info.ImportRecords))
	for i, record := range result.Info.ImportRecords {
		dep, err := l.resolver.Resolve(record.Path, id)
		if err != nil {
			return nil, err
		}
		if record.Flags.Has(ast.AssertTypeJSON) && l.options.LoaderForPath(dep.String()) != config.LoaderJSON {
			return nil, &ImportAttributeError{Importer: id, Specifier: record.Path}
		}
		deps[i] = dep
	}

	return &loadedModule{id: id, result: result, deps: deps}, nil
}

// Runs on the event loop
func (l *Loader) instantiate(rootID ast.ModuleID, graph map[ast.ModuleID]*loadedModule) (*registry.Namespace, error) {
	for id, module := range graph {
		rec, _ := l.registry.GetOrCreate(id)

		// Another import may have added this module since it was loaded
		if rec.State() != registry.StateNew {
			continue
		}

		deps := make([]*registry.Record, len(module.deps))
		for i, dep := range module.deps {
			deps[i], _ = l.registry.GetOrCreate(dep)
		}
		rec.SetModule(module.result, deps)
	}

	root, ok := l.registry.Get(rootID)
	if !ok {
		panic(fmt.Sprintf("Internal error: module %q was not loaded", rootID))
	}
	if err := l.registry.Link(root); err != nil {
		return nil, err
	}
	if err := l.registry.Evaluate(root); err != nil {
		return nil, err
	}
	return l.registry.Namespace(root), nil
}
