package blockingdeque

import (
	"context"
	"fmt"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/pkg/future"
)

// SizeAsync returns the number of elements.
func (d *Deque[V]) SizeAsync(ctx context.Context) *future.Future[int64] {
	return core.Write(ctx, d.executor, d.name, core.Command[int64]{Name: core.CommandLLen, Decode: core.ReplyInt}, d.name)
}

// Size returns the number of elements. A missing list has size 0.
func (d *Deque[V]) Size(ctx context.Context) (int64, error) {
	return d.SizeAsync(ctx).Await(ctx)
}

// PeekFirstAsync reads the head element without removing it.
func (d *Deque[V]) PeekFirstAsync(ctx context.Context) *future.Future[Polled[V]] {
	return d.peek(ctx, 0)
}

// PeekFirst reads the head element without removing it.
func (d *Deque[V]) PeekFirst(ctx context.Context) (v V, ok bool, err error) {
	return d.unwrap(d.PeekFirstAsync(ctx).Await(ctx))
}

// PeekLastAsync reads the tail element without removing it.
func (d *Deque[V]) PeekLastAsync(ctx context.Context) *future.Future[Polled[V]] {
	return d.peek(ctx, -1)
}

// PeekLast reads the tail element without removing it.
func (d *Deque[V]) PeekLast(ctx context.Context) (v V, ok bool, err error) {
	return d.unwrap(d.PeekLastAsync(ctx).Await(ctx))
}

// ReadAllAsync returns every element, head first, leaving the list intact.
func (d *Deque[V]) ReadAllAsync(ctx context.Context) *future.Future[[]V] {
	cmd := core.Command[[]V]{Name: core.CommandLRange, Decode: d.decodeAll}
	return core.Write(ctx, d.executor, d.name, cmd, d.name, 0, -1)
}

// ReadAll returns every element, head first, leaving the list intact.
func (d *Deque[V]) ReadAll(ctx context.Context) ([]V, error) {
	return d.ReadAllAsync(ctx).Await(ctx)
}

// RemoveAsync removes the first element equal to v, comparing encoded forms.
func (d *Deque[V]) RemoveAsync(ctx context.Context, v V) *future.Future[bool] {
	data, err := d.codec.Encode(v)
	if err != nil {
		return future.Failed[bool](fmt.Errorf("queue %s: %w", d.name, err))
	}
	cmd := core.Command[bool]{Name: core.CommandLRem, Decode: positive}
	return core.Write(ctx, d.executor, d.name, cmd, d.name, 1, data)
}

// Remove removes the first element equal to v, scanning from the head.
// It reports whether an element was removed.
func (d *Deque[V]) Remove(ctx context.Context, v V) (bool, error) {
	return d.RemoveAsync(ctx, v).Await(ctx)
}

// DeleteAsync deletes the whole list.
func (d *Deque[V]) DeleteAsync(ctx context.Context) *future.Future[bool] {
	return core.Write(ctx, d.executor, d.name, core.Command[bool]{Name: core.CommandDel, Decode: positive}, d.name)
}

// Delete deletes the whole list and reports whether it existed.
func (d *Deque[V]) Delete(ctx context.Context) (bool, error) {
	return d.DeleteAsync(ctx).Await(ctx)
}

func (d *Deque[V]) peek(ctx context.Context, index int64) *future.Future[Polled[V]] {
	decode := func(r core.Reply) (Polled[V], error) { return d.decodeElement(d.name, r) }
	return core.Write(ctx, d.executor, d.name, core.Command[Polled[V]]{Name: core.CommandLIndex, Decode: decode}, d.name, index)
}

func positive(r core.Reply) (bool, error) {
	n, err := core.ReplyInt(r)
	return n > 0, err
}
