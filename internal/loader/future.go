package loader

import (
	"context"
	"sync"

	"github.com/evanw/esmloader/internal/registry"
)

// Future is the result of one dynamic import. It settles on the event loop
// with either the module's namespace or an error.
type Future struct {
	mutex     sync.Mutex
	done      chan struct{}
	settled   bool
	namespace *registry.Namespace
	err       error
	callbacks []func(*registry.Namespace, error)
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Then registers a callback to run when the future settles. Callbacks run on
// the event loop in registration order. If the future has already settled
// the callback runs right away on the caller's goroutine, so callers off the
// loop should use Wait instead.
func (f *Future) Then(callback func(ns *registry.Namespace, err error)) {
	f.mutex.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, callback)
		f.mutex.Unlock()
		return
	}
	ns, err := f.namespace, f.err
	f.mutex.Unlock()
	callback(ns, err)
}

// Wait blocks until the future settles or the context ends. Ending the
// context doesn't stop the import itself.
func (f *Future) Wait(ctx context.Context) (*registry.Namespace, error) {
	select {
	case <-f.done:
		return f.namespace, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) Settled() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.settled
}

func (f *Future) settle(ns *registry.Namespace, err error) {
	f.mutex.Lock()
	if f.settled {
		f.mutex.Unlock()
		panic("Internal error")
	}
	f.settled = true
	f.namespace = ns
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mutex.Unlock()

	for _, callback := range callbacks {
		callback(ns, err)
	}
}
