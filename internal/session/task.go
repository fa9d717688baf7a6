package session

import (
	"context"
	"sync"
)

// Kind identifies what a Task fetches.
type Kind string

const (
	KindPosts Kind = "posts"
	KindUsers Kind = "users"
	KindUser  Kind = "user"
)

// Task is the handle for one in-flight fetch. The fetch outcome lands in the
// session state; the handle only lets the caller wait for it or cancel it.
type Task struct {
	kind   Kind
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	settled  bool
	canceled bool
	err      error
}

func newTask(parent context.Context, kind Kind) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		kind:   kind,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (t *Task) Kind() Kind { return t.kind }

// Done is closed once the outcome has been applied to the session.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task settles or ctx ends. It returns the fetch error,
// if any, for convenience; the session state already records it.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the fetch error once Done is closed. Before that it is nil.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancel abandons the fetch. A canceled task never applies its result, even
// when the response has already arrived. Canceling a settled task is a no-op.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return
	}
	t.canceled = true
	t.mu.Unlock()
	t.cancel()
}

// Canceled reports whether the task was abandoned, either through Cancel or
// because its parent context ended before the result was applied.
func (t *Task) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// settle fixes the outcome. After it returns, Cancel has no effect.
func (t *Task) settle(err error) (canceled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		t.canceled = true
	}
	t.err = err
	if t.canceled {
		t.err = context.Canceled
		if cerr := t.ctx.Err(); cerr != nil {
			t.err = cerr
		}
	}
	t.settled = true
	return t.canceled
}
