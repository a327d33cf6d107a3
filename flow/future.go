package flow

import (
	"context"

	"go.uber.org/atomic"
)

func zero[T any]() (_ T) { return }

type future interface {
	Wait()
	OK() bool
	Err() error
}

// Futures joins a group of task results in order.
type Futures[T any] []*Future[T]

// Await waits for every future and returns the errors in the order the
// futures were added.
func (futures *Futures[T]) Await() []error {
	var errs []error

	for _, f := range *futures {
		if err := f.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Future is the result of an asynchronous task: a value or an error, set
// exactly once.
type Future[T any] struct {
	ctx   context.Context
	name  string
	ch    chan struct{}
	value T
	err   error
	done  *atomic.Bool
}

func NewFuture[T any](ctx context.Context, name string) *Future[T] {
	return &Future[T]{
		ctx:  ctx,
		name: name,
		ch:   make(chan struct{}),
		done: atomic.NewBool(false),
	}
}

func (future *Future[T]) Name() string {
	return future.name
}

// Resolve sets both the value and the error, as returned by a task that may
// report partial progress alongside a failure.
func (future *Future[T]) Resolve(value T, err error) {
	if future.done.Swap(true) {
		return
	}
	future.value = value
	future.err = err
	close(future.ch)
}

func (future *Future[T]) SetValue(value T) {
	future.Resolve(value, nil)
}

func (future *Future[T]) SetError(err error) {
	future.Resolve(zero[T](), err)
}

func (future *Future[T]) Context() context.Context {
	return future.ctx
}

func (future *Future[T]) Wait() {
	select {
	case <-future.ctx.Done():
		return
	case <-future.ch:
		return
	}
}

// Await returns the result and error of the async task.
func (future *Future[T]) Await() (T, error) {
	select {
	case <-future.ch:
		return future.value, future.err
	case <-future.ctx.Done():
		return zero[T](), future.ctx.Err()
	}
}

// Done indicates if the task has finished.
func (future *Future[T]) Done() bool {
	return future.done.Load()
}

// False if error occurred,
// true otherwise.
func (future *Future[T]) OK() bool {
	select {
	case <-future.ch:
		return future.err == nil
	case <-future.ctx.Done():
		return false
	}
}

// Return the error of the async task,
// nil if no error.
func (future *Future[T]) Err() error {
	select {
	case <-future.ch:
		return future.err
	case <-future.ctx.Done():
		return future.ctx.Err()
	}
}

// Return a read-only channel,
// which will be closed if the async task completes.
func (future *Future[T]) Inner() <-chan struct{} {
	return future.ch
}

var _ future = (*Future[any])(nil)
