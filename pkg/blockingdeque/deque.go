package blockingdeque

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/internal/metrics"
	"github.com/rzpsarthak13/redis-deque/pkg/codec"
	"github.com/rzpsarthak13/redis-deque/pkg/future"
)

var (
	// ErrNilDestination is returned by the drain operations for a nil
	// destination slice. No command is sent to the store.
	ErrNilDestination = errors.New("drain destination cannot be nil")

	// ErrInterrupted is returned by synchronous operations when the caller's
	// context ends before the store replies. The command may still take
	// effect on the store afterwards.
	ErrInterrupted = future.ErrInterrupted

	// ErrExecutorClosed is returned for operations issued after the client closed.
	ErrExecutorClosed = core.ErrExecutorClosed
)

// End selects one end of a queue.
type End int

const (
	// Head is the first element, where PutFirst pushes and Poll pops.
	Head End = iota
	// Tail is the last element, where Put and PutLast push.
	Tail
)

// Polled is the outcome of a pop. OK is false when no element was
// available within the timeout, which is not an error. Queue names the
// queue the element was taken from.
type Polled[V any] struct {
	Value V
	Queue string
	OK    bool
}

// Deque is a distributed blocking double-ended queue backed by a list in the
// remote store. It holds no local state: every call is a fresh round trip and
// all atomicity comes from the store executing each command or script as a
// unit. A Deque is safe for concurrent use.
//
// Every operation comes in two forms. The Async form dispatches the command
// and returns a future. The plain form waits on that future with the
// caller's context; cancelling the context returns ErrInterrupted but does
// not cancel the command on the store.
type Deque[V any] struct {
	name     string
	codec    codec.Codec[V]
	executor core.CommandExecutor
	metrics  *metrics.Metrics // observed by workers; may be nil
}

func newDeque[V any](executor core.CommandExecutor, name string, c codec.Codec[V]) *Deque[V] {
	return &Deque[V]{name: name, codec: c, executor: executor}
}

// Name returns the key of the backing list.
func (d *Deque[V]) Name() string {
	return d.name
}

// RemainingCapacity always reports math.MaxInt. The list is bounded only by
// store memory, which is not tracked here.
func (d *Deque[V]) RemainingCapacity() int {
	return math.MaxInt
}

// PutAsync appends v to the tail.
func (d *Deque[V]) PutAsync(ctx context.Context, v V) *future.Future[struct{}] {
	return future.Then(d.push(ctx, Tail, v), discard)
}

// Put appends v to the tail. It never waits for capacity.
func (d *Deque[V]) Put(ctx context.Context, v V) error {
	_, err := d.PutAsync(ctx, v).Await(ctx)
	return err
}

// PutFirstAsync pushes v to the head.
func (d *Deque[V]) PutFirstAsync(ctx context.Context, v V) *future.Future[struct{}] {
	return future.Then(d.push(ctx, Head, v), discard)
}

// PutFirst pushes v to the head.
func (d *Deque[V]) PutFirst(ctx context.Context, v V) error {
	_, err := d.PutFirstAsync(ctx, v).Await(ctx)
	return err
}

// PutLastAsync appends v to the tail.
func (d *Deque[V]) PutLastAsync(ctx context.Context, v V) *future.Future[struct{}] {
	return future.Then(d.push(ctx, Tail, v), discard)
}

// PutLast appends v to the tail.
func (d *Deque[V]) PutLast(ctx context.Context, v V) error {
	_, err := d.PutLastAsync(ctx, v).Await(ctx)
	return err
}

// OfferAsync appends v to the tail and resolves to true.
func (d *Deque[V]) OfferAsync(ctx context.Context, v V) *future.Future[bool] {
	return future.Then(d.push(ctx, Tail, v), accepted)
}

// Offer appends v to the tail. The list never rejects a push, so the result
// is true whenever err is nil.
func (d *Deque[V]) Offer(ctx context.Context, v V) (bool, error) {
	return d.OfferAsync(ctx, v).Await(ctx)
}

// OfferFirstAsync pushes v to the head and resolves to true.
func (d *Deque[V]) OfferFirstAsync(ctx context.Context, v V) *future.Future[bool] {
	return future.Then(d.push(ctx, Head, v), accepted)
}

// OfferFirst pushes v to the head.
func (d *Deque[V]) OfferFirst(ctx context.Context, v V) (bool, error) {
	return d.OfferFirstAsync(ctx, v).Await(ctx)
}

// OfferLastAsync appends v to the tail and resolves to true.
func (d *Deque[V]) OfferLastAsync(ctx context.Context, v V) *future.Future[bool] {
	return future.Then(d.push(ctx, Tail, v), accepted)
}

// OfferLast appends v to the tail.
func (d *Deque[V]) OfferLast(ctx context.Context, v V) (bool, error) {
	return d.OfferLastAsync(ctx, v).Await(ctx)
}

// OfferTimeout is Offer. The timeout is accepted and ignored because a push
// is never refused.
func (d *Deque[V]) OfferTimeout(ctx context.Context, v V, timeout time.Duration) (bool, error) {
	return d.Offer(ctx, v)
}

// OfferFirstTimeout is OfferFirst; the timeout has no effect.
func (d *Deque[V]) OfferFirstTimeout(ctx context.Context, v V, timeout time.Duration) (bool, error) {
	return d.OfferFirst(ctx, v)
}

// OfferLastTimeout is OfferLast; the timeout has no effect.
func (d *Deque[V]) OfferLastTimeout(ctx context.Context, v V, timeout time.Duration) (bool, error) {
	return d.OfferLast(ctx, v)
}

// push is the single implementation behind Put*, Offer*.
func (d *Deque[V]) push(ctx context.Context, end End, v V) *future.Future[int64] {
	data, err := d.codec.Encode(v)
	if err != nil {
		return future.Failed[int64](fmt.Errorf("queue %s: %w", d.name, err))
	}
	name := core.CommandRPush
	if end == Head {
		name = core.CommandLPush
	}
	cmd := core.Command[int64]{Name: name, Decode: core.ReplyInt}
	return core.Write(ctx, d.executor, d.name, cmd, d.name, data)
}

// decodeElement turns a bulk reply into a Polled taken from queue.
func (d *Deque[V]) decodeElement(queue string, r core.Reply) (Polled[V], error) {
	data, ok, err := core.ReplyBytes(r)
	if err != nil || !ok {
		return Polled[V]{}, err
	}
	v, err := d.codec.Decode(data)
	if err != nil {
		return Polled[V]{}, fmt.Errorf("queue %s: %w", queue, err)
	}
	return Polled[V]{Value: v, Queue: queue, OK: true}, nil
}

// decodeKeyed turns a [key, value] reply into a Polled.
func (d *Deque[V]) decodeKeyed(r core.Reply) (Polled[V], error) {
	key, data, ok, err := core.ReplyKeyValue(r)
	if err != nil || !ok {
		return Polled[V]{}, err
	}
	v, err := d.codec.Decode(data)
	if err != nil {
		return Polled[V]{}, fmt.Errorf("queue %s: %w", key, err)
	}
	return Polled[V]{Value: v, Queue: key, OK: true}, nil
}

func (d *Deque[V]) decodeAll(r core.Reply) ([]V, error) {
	items, err := core.ReplyArray(r)
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, len(items))
	for i, item := range items {
		data, _, err := core.ReplyBytes(item)
		if err != nil {
			return out, err
		}
		v, err := d.codec.Decode(data)
		if err != nil {
			return out, fmt.Errorf("queue %s: element %d of %d: %w", d.name, i, len(items), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func discard(int64) (struct{}, error) { return struct{}{}, nil }

func accepted(int64) (bool, error) { return true, nil }
