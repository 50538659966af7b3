package blockingdeque

import (
	"context"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/pkg/future"
)

// DrainToAsync atomically removes every element and appends them, head
// first, to *dst once the store replies. *dst must not be touched until the
// future resolves. The result is the number of elements appended.
func (d *Deque[V]) DrainToAsync(ctx context.Context, dst *[]V) *future.Future[int] {
	if dst == nil {
		return future.Failed[int](ErrNilDestination)
	}
	return d.drainAll(ctx).into(dst)
}

// DrainTo atomically removes every element and appends them, head first,
// to *dst. It returns the number appended.
//
// If an element fails to decode, the elements decoded before it are still
// appended and the error is returned; the rest are gone from the store.
func (d *Deque[V]) DrainTo(ctx context.Context, dst *[]V) (int, error) {
	if dst == nil {
		return 0, ErrNilDestination
	}
	vals, err := d.drainAll(ctx).Await(ctx)
	*dst = append(*dst, vals...)
	return len(vals), err
}

// DrainToMaxAsync atomically removes up to maxElements head elements and
// appends them to *dst. A non-positive maxElements resolves to 0 without
// contacting the store.
func (d *Deque[V]) DrainToMaxAsync(ctx context.Context, dst *[]V, maxElements int) *future.Future[int] {
	if maxElements <= 0 {
		return future.Completed(0)
	}
	if dst == nil {
		return future.Failed[int](ErrNilDestination)
	}
	return d.drainBounded(ctx, maxElements).into(dst)
}

// DrainToMax atomically removes min(maxElements, size) head elements and
// appends them to *dst in head to tail order.
func (d *Deque[V]) DrainToMax(ctx context.Context, dst *[]V, maxElements int) (int, error) {
	if maxElements <= 0 {
		return 0, nil
	}
	if dst == nil {
		return 0, ErrNilDestination
	}
	vals, err := d.drainBounded(ctx, maxElements).Await(ctx)
	*dst = append(*dst, vals...)
	return len(vals), err
}

func (d *Deque[V]) drainAll(ctx context.Context) *drained[V] {
	f := d.executor.ExecuteScript(ctx, d.name, core.DrainAllScript, []string{d.name})
	return &drained[V]{reply: f, decode: d.decodeAll}
}

func (d *Deque[V]) drainBounded(ctx context.Context, maxElements int) *drained[V] {
	f := d.executor.ExecuteScript(ctx, d.name, core.DrainBoundedScript, []string{d.name}, maxElements)
	return &drained[V]{reply: f, decode: d.decodeAll}
}

// drained pairs a drain reply with its decoder. Unlike future.Then it keeps
// the elements decoded before a failure, since the store already removed them.
type drained[V any] struct {
	reply  *future.Future[core.Reply]
	decode func(core.Reply) ([]V, error)
}

func (r *drained[V]) Await(ctx context.Context) ([]V, error) {
	reply, err := r.reply.Await(ctx)
	if err != nil {
		return nil, err
	}
	return r.decode(reply)
}

// into appends the decoded elements to *dst when the reply arrives.
func (r *drained[V]) into(dst *[]V) *future.Future[int] {
	next := future.New[int]()
	r.reply.OnComplete(func(reply core.Reply, err error) {
		if err != nil {
			next.Fail(err)
			return
		}
		vals, err := r.decode(reply)
		*dst = append(*dst, vals...)
		if err != nil {
			next.Fail(err)
			return
		}
		next.Complete(len(vals))
	})
	return next
}
