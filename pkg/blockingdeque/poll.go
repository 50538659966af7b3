package blockingdeque

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/pkg/future"
)

// waitForever is the timeout sent with a blocking pop that never expires.
const waitForever int64 = 0

var errEmptyTake = errors.New("blocking take returned no element")

// TakeAsync removes the head element, waiting as long as needed.
func (d *Deque[V]) TakeAsync(ctx context.Context) *future.Future[V] {
	return d.take(ctx, Head)
}

// Take removes the head element, waiting until one exists or ctx ends.
func (d *Deque[V]) Take(ctx context.Context) (V, error) {
	return d.TakeAsync(ctx).Await(ctx)
}

// TakeFirstAsync removes the head element, waiting as long as needed.
func (d *Deque[V]) TakeFirstAsync(ctx context.Context) *future.Future[V] {
	return d.take(ctx, Head)
}

// TakeFirst removes the head element, waiting until one exists or ctx ends.
func (d *Deque[V]) TakeFirst(ctx context.Context) (V, error) {
	return d.TakeFirstAsync(ctx).Await(ctx)
}

// TakeLastAsync removes the tail element, waiting as long as needed.
func (d *Deque[V]) TakeLastAsync(ctx context.Context) *future.Future[V] {
	return d.take(ctx, Tail)
}

// TakeLast removes the tail element, waiting until one exists or ctx ends.
func (d *Deque[V]) TakeLast(ctx context.Context) (V, error) {
	return d.TakeLastAsync(ctx).Await(ctx)
}

// PollAsync removes the head element, waiting up to timeout.
func (d *Deque[V]) PollAsync(ctx context.Context, timeout time.Duration) *future.Future[Polled[V]] {
	return d.poll(ctx, Head, timeout, nil)
}

// Poll removes the head element, waiting up to timeout. ok is false when
// the queue stayed empty. Timeouts are sent in whole seconds; a positive
// sub-second remainder rounds up. A timeout of zero or less does not wait.
func (d *Deque[V]) Poll(ctx context.Context, timeout time.Duration) (v V, ok bool, err error) {
	return d.unwrap(d.PollAsync(ctx, timeout).Await(ctx))
}

// PollFirstAsync removes the head element, waiting up to timeout.
func (d *Deque[V]) PollFirstAsync(ctx context.Context, timeout time.Duration) *future.Future[Polled[V]] {
	return d.poll(ctx, Head, timeout, nil)
}

// PollFirst removes the head element, waiting up to timeout.
func (d *Deque[V]) PollFirst(ctx context.Context, timeout time.Duration) (v V, ok bool, err error) {
	return d.unwrap(d.PollFirstAsync(ctx, timeout).Await(ctx))
}

// PollLastAsync removes the tail element, waiting up to timeout.
func (d *Deque[V]) PollLastAsync(ctx context.Context, timeout time.Duration) *future.Future[Polled[V]] {
	return d.poll(ctx, Tail, timeout, nil)
}

// PollLast removes the tail element, waiting up to timeout.
func (d *Deque[V]) PollLast(ctx context.Context, timeout time.Duration) (v V, ok bool, err error) {
	return d.unwrap(d.PollLastAsync(ctx, timeout).Await(ctx))
}

// PollFromAnyAsync removes the head element of the first non-empty queue
// among this one and others, in that order, waiting up to timeout.
// The result names the queue the element came from.
func (d *Deque[V]) PollFromAnyAsync(ctx context.Context, timeout time.Duration, others ...string) *future.Future[Polled[V]] {
	return d.poll(ctx, Head, timeout, others)
}

// PollFromAny removes the head element of the first non-empty queue among
// this one and others. Ties are broken by argument order at the moment the
// store runs the command.
func (d *Deque[V]) PollFromAny(ctx context.Context, timeout time.Duration, others ...string) (v V, ok bool, err error) {
	return d.unwrap(d.PollFromAnyAsync(ctx, timeout, others...).Await(ctx))
}

// PollFirstFromAnyAsync is PollFromAnyAsync.
func (d *Deque[V]) PollFirstFromAnyAsync(ctx context.Context, timeout time.Duration, others ...string) *future.Future[Polled[V]] {
	return d.poll(ctx, Head, timeout, others)
}

// PollFirstFromAny is PollFromAny.
func (d *Deque[V]) PollFirstFromAny(ctx context.Context, timeout time.Duration, others ...string) (v V, ok bool, err error) {
	return d.unwrap(d.PollFirstFromAnyAsync(ctx, timeout, others...).Await(ctx))
}

// PollLastFromAnyAsync removes the tail element of the first non-empty
// queue among this one and others.
func (d *Deque[V]) PollLastFromAnyAsync(ctx context.Context, timeout time.Duration, others ...string) *future.Future[Polled[V]] {
	return d.poll(ctx, Tail, timeout, others)
}

// PollLastFromAny removes the tail element of the first non-empty queue
// among this one and others.
func (d *Deque[V]) PollLastFromAny(ctx context.Context, timeout time.Duration, others ...string) (v V, ok bool, err error) {
	return d.unwrap(d.PollLastFromAnyAsync(ctx, timeout, others...).Await(ctx))
}

// PollLastAndOfferFirstToAsync atomically moves the tail element of this
// queue to the head of queue dest, waiting up to timeout for one to exist.
func (d *Deque[V]) PollLastAndOfferFirstToAsync(ctx context.Context, dest string, timeout time.Duration) *future.Future[Polled[V]] {
	decode := func(r core.Reply) (Polled[V], error) { return d.decodeElement(d.name, r) }
	if timeout <= 0 {
		cmd := core.Command[Polled[V]]{Name: core.CommandRPopLPush, Decode: decode}
		return core.Write(ctx, d.executor, d.name, cmd, d.name, dest)
	}
	cmd := core.Command[Polled[V]]{Name: core.CommandBRPopLPush, Decode: decode}
	return core.Write(ctx, d.executor, d.name, cmd, d.name, dest, toSeconds(timeout))
}

// PollLastAndOfferFirstTo atomically moves the tail element of this queue
// to the head of dest and returns it. The element is never observable in
// neither or both queues.
func (d *Deque[V]) PollLastAndOfferFirstTo(ctx context.Context, dest string, timeout time.Duration) (v V, ok bool, err error) {
	return d.unwrap(d.PollLastAndOfferFirstToAsync(ctx, dest, timeout).Await(ctx))
}

func (d *Deque[V]) take(ctx context.Context, end End) *future.Future[V] {
	return future.Then(d.blockingPop(ctx, end, waitForever, nil), func(p Polled[V]) (V, error) {
		if !p.OK {
			return p.Value, fmt.Errorf("queue %s: %w", d.name, errEmptyTake)
		}
		return p.Value, nil
	})
}

// poll is the single implementation behind Poll*, Poll*FromAny.
func (d *Deque[V]) poll(ctx context.Context, end End, timeout time.Duration, others []string) *future.Future[Polled[V]] {
	if timeout > 0 {
		return d.blockingPop(ctx, end, toSeconds(timeout), others)
	}

	if len(others) == 0 {
		name := core.CommandRPop
		if end == Head {
			name = core.CommandLPop
		}
		decode := func(r core.Reply) (Polled[V], error) { return d.decodeElement(d.name, r) }
		return core.Write(ctx, d.executor, d.name, core.Command[Polled[V]]{Name: name, Decode: decode}, d.name)
	}

	direction := "rpop"
	if end == Head {
		direction = "lpop"
	}
	return core.Eval(ctx, d.executor, d.name, core.PollAnyScript, d.decodeKeyed, d.keys(others), direction)
}

func (d *Deque[V]) blockingPop(ctx context.Context, end End, seconds int64, others []string) *future.Future[Polled[V]] {
	keys := d.keys(others)
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		args = append(args, k)
	}
	args = append(args, seconds)

	name := core.CommandBRPop
	if end == Head {
		name = core.CommandBLPop
	}
	return core.Write(ctx, d.executor, d.name, core.Command[Polled[V]]{Name: name, Decode: d.decodeKeyed}, args...)
}

func (d *Deque[V]) keys(others []string) []string {
	keys := make([]string, 0, len(others)+1)
	keys = append(keys, d.name)
	return append(keys, others...)
}

func (d *Deque[V]) unwrap(p Polled[V], err error) (V, bool, error) {
	if err != nil {
		var zero V
		return zero, false, err
	}
	return p.Value, p.OK, nil
}

// toSeconds converts a positive timeout to whole seconds, rounding up so a
// wait is never shorter than requested and never becomes the infinite 0.
func toSeconds(timeout time.Duration) int64 {
	secs := int64(timeout / time.Second)
	if timeout%time.Second != 0 {
		secs++
	}
	return secs
}
