// Package eventloop runs tasks one at a time on the goroutine that calls Run.
// Everything that touches the JavaScript engine or the module registry's
// link and evaluate state goes through here. Other goroutines hand work back
// to the loop with the function returned by Reserve, which also keeps the
// loop alive until that work arrives.
package eventloop

import (
	"context"
	"sync"

	"github.com/evanw/esmloader/internal/logger"
	"go.uber.org/zap"
)

type Loop struct {
	mutex    sync.Mutex
	queue    []func()
	reserved int

	// Signaled when the queue or the reservation count changes
	wakeup chan struct{}
}

func New() *Loop {
	return &Loop{wakeup: make(chan struct{}, 1)}
}

// Reserve keeps the loop running until the returned function is called.
// That function queues its task and releases the reservation. It must be
// called exactly once.
func (l *Loop) Reserve() func(task func()) {
	l.mutex.Lock()
	l.reserved++
	l.mutex.Unlock()

	called := false
	return func(task func()) {
		l.mutex.Lock()
		if called {
			l.mutex.Unlock()
			panic("Internal error")
		}
		called = true
		l.reserved--
		if task != nil {
			l.queue = append(l.queue, task)
		}
		l.mutex.Unlock()
		l.signal()
	}
}

func (l *Loop) signal() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// Run executes queued tasks in order until the queue is empty and nothing
// is reserved. It returns the context's error if the context ends first,
// leaving any remaining tasks queued.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			l.logStop(err)
			return err
		}

		l.mutex.Lock()
		if len(l.queue) == 0 {
			reserved := l.reserved
			l.mutex.Unlock()
			if reserved == 0 {
				return nil
			}
			select {
			case <-l.wakeup:
			case <-ctx.Done():
				l.logStop(ctx.Err())
				return ctx.Err()
			}
			continue
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mutex.Unlock()

		task()
	}
}

func (l *Loop) logStop(err error) {
	l.mutex.Lock()
	queued, reserved := len(l.queue), l.reserved
	l.mutex.Unlock()
	logger.Zap().Debug("event loop stopped",
		zap.Error(err),
		zap.Int("queued", queued),
		zap.Int("reserved", reserved))
}
