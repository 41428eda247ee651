package api

import (
	"context"
	"errors"
	"os"

	"github.com/evanw/esmloader/internal/cache"
	"github.com/evanw/esmloader/internal/eventloop"
	"github.com/evanw/esmloader/internal/fs"
	"github.com/evanw/esmloader/internal/js_host"
	"github.com/evanw/esmloader/internal/loader"
	"github.com/evanw/esmloader/internal/registry"
	"github.com/evanw/esmloader/internal/resolver"
	"github.com/grafana/sobek"
)

type Runtime struct {
	host   *js_host.Host
	loop   *eventloop.Loop
	loader *loader.Loader
}

// Namespace is the module namespace of an imported module. Reading an export
// that hasn't been initialized yet fails with a ReferenceError.
type Namespace struct {
	runtime   *Runtime
	namespace *registry.Namespace
}

func newRuntimeImpl(options RuntimeOptions) (*Runtime, error) {
	realFS := fs.RealFS(fs.RealFSOptions{AbsWorkingDir: options.AbsWorkingDir})
	configOptions, err := validateOptions(realFS, options.AbsWorkingDir, options.ResolveExtensions, options.ModuleRoots, options.MainFields, options.Loaders)
	if err != nil {
		return nil, err
	}

	stdout := options.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := options.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	caches := cache.MakeCacheSet()
	vm := sobek.New()
	host := js_host.New(vm, realFS)
	loop := eventloop.New()
	ld := loader.New(
		realFS,
		resolver.NewResolver(realFS, caches, &configOptions),
		caches,
		&configOptions,
		registry.New(host),
		loop,
	)
	host.SetLoader(ld)
	host.InstallConsole(stdout, stderr)

	return &Runtime{host: host, loop: loop, loader: ld}, nil
}

// VM returns the underlying engine, for installing globals before importing
func (r *Runtime) VM() *sobek.Runtime {
	return r.host.Runtime()
}

// Import loads, links and evaluates the module a specifier names, relative to
// the working directory. It returns once the event loop has no more work,
// including promise callbacks scheduled by the module. Canceling the context
// interrupts running JavaScript.
func (r *Runtime) Import(ctx context.Context, specifier string) (*Namespace, error) {
	vm := r.host.Runtime()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(context.Cause(ctx))
	})
	defer func() {
		if !stop() {
			vm.ClearInterrupt()
		}
	}()

	future := r.loader.ImportDynamic(ctx, specifier, "")
	if err := r.loop.Run(ctx); err != nil {
		return nil, err
	}
	ns, err := future.Wait(ctx)
	if err != nil {
		var interrupted *sobek.InterruptedError
		if errors.As(err, &interrupted) && ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, err
	}
	return &Namespace{runtime: r, namespace: ns}, nil
}

// Run imports a module for its side effects
func (r *Runtime) Run(ctx context.Context, specifier string) error {
	_, err := r.Import(ctx, specifier)
	return err
}

// ID returns the absolute path of the module
func (ns *Namespace) ID() string {
	return ns.namespace.Record().ID.String()
}

// Keys returns the export names in sorted order
func (ns *Namespace) Keys() []string {
	return ns.namespace.Keys()
}

// Get returns an export converted to a Go value
func (ns *Namespace) Get(name string) (any, error) {
	value, found, err := ns.namespace.Get(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if v, ok := value.(sobek.Value); ok {
		return v.Export(), nil
	}
	return value, nil
}

// Object returns the namespace object as JavaScript code sees it
func (ns *Namespace) Object() *sobek.Object {
	return ns.runtime.host.NamespaceValue(ns.namespace).(*sobek.Object)
}
