// Package future provides a single-assignment asynchronous result.
//
// A Future is resolved exactly once, either with a value or with an error.
// Callers either wait on it (Await, Get), poll it (Now), or compose it with
// continuations (Then, OnComplete).
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInterrupted is returned by Await when the caller's context ends before
// the future resolves. The underlying operation may still complete later.
var ErrInterrupted = errors.New("wait interrupted")

// Future is a single-assignment result of an asynchronous operation.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New creates an unresolved future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future already resolved with value.
func Completed[T any](value T) *Future[T] {
	f := New[T]()
	f.Complete(value)
	return f
}

// Failed returns a future already resolved with err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Complete resolves the future with value.
// Returns false if the future was already resolved.
func (f *Future[T]) Complete(value T) bool {
	return f.resolve(value, nil)
}

// Fail resolves the future with err.
// Returns false if the future was already resolved.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.resolve(zero, err)
}

func (f *Future[T]) resolve(value T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		resolved = true
		close(f.done)
	})
	return resolved
}

// Done returns a channel that is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future is resolved.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Now returns the result without blocking. ok is false while unresolved.
func (f *Future[T]) Now() (value T, ok bool, err error) {
	if !f.IsDone() {
		return value, false, nil
	}
	return f.value, true, f.err
}

// Get blocks until the future is resolved.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await blocks until the future is resolved or ctx ends.
// When ctx ends first the returned error matches both ErrInterrupted and
// ctx.Err() under errors.Is.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
}

// OnComplete registers fn to run once the future resolves.
// fn runs on its own goroutine, or inline if the future is already resolved.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	if f.IsDone() {
		fn(f.value, f.err)
		return
	}
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}

// Then returns a future resolved with fn applied to the value of f.
// Errors from f are propagated unchanged and fn is not called.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	next := New[U]()
	f.OnComplete(func(value T, err error) {
		if err != nil {
			next.Fail(err)
			return
		}
		out, err := fn(value)
		if err != nil {
			next.Fail(err)
			return
		}
		next.Complete(out)
	})
	return next
}
