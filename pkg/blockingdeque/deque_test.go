package blockingdeque

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/internal/kvstore"
	"github.com/rzpsarthak13/redis-deque/pkg/codec"
	"github.com/rzpsarthak13/redis-deque/pkg/future"
)

type job struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newMemoryDeque[V any](t *testing.T, name string, c codec.Codec[V]) (*Deque[V], *kvstore.MemoryExecutor) {
	t.Helper()
	m := kvstore.NewMemoryExecutor()
	t.Cleanup(func() { m.Close() })
	return newDeque(m, name, c), m
}

// recordingExecutor captures dispatched commands and replies with nil.
type recordingExecutor struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingExecutor) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recordingExecutor) Execute(ctx context.Context, key string, name string, args ...any) *future.Future[core.Reply] {
	r.record(join(append([]any{name}, args...)...))
	return future.Completed[core.Reply](nil)
}

func (r *recordingExecutor) ExecuteScript(ctx context.Context, key string, script core.Script, keys []string, args ...any) *future.Future[core.Reply] {
	r.record(join(script.Name, keys, args))
	return future.Completed[core.Reply](nil)
}

func (r *recordingExecutor) Close() error { return nil }

func join(parts ...any) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = fmt.Sprint(p)
	}
	return strings.Join(out, " ")
}

func (r *recordingExecutor) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatalf("no command dispatched")
	}
	return r.calls[len(r.calls)-1]
}

func TestCommandArguments(t *testing.T) {
	ctx := context.Background()
	rec := &recordingExecutor{}
	d := newDeque(rec, "q1", codec.String())

	tests := []struct {
		name string
		call func()
		want string
	}{
		{"put", func() { d.Put(ctx, "a") }, "RPUSH q1 [97]"},
		{"put first", func() { d.PutFirst(ctx, "a") }, "LPUSH q1 [97]"},
		{"offer last", func() { d.OfferLast(ctx, "a") }, "RPUSH q1 [97]"},
		{"take sends zero", func() { d.TakeAsync(ctx) }, "BLPOP q1 0"},
		{"take last", func() { d.TakeLastAsync(ctx) }, "BRPOP q1 0"},
		{"poll rounds up", func() { d.Poll(ctx, 1500*time.Millisecond) }, "BLPOP q1 2"},
		{"poll sub-second", func() { d.PollLast(ctx, time.Millisecond) }, "BRPOP q1 1"},
		{"poll zero is non-blocking", func() { d.Poll(ctx, 0) }, "LPOP q1"},
		{"poll from any keeps order", func() { d.PollFromAny(ctx, 3*time.Second, "q2", "q3") }, "BLPOP q1 q2 q3 3"},
		{"poll last from any", func() { d.PollLastFromAny(ctx, time.Second, "q2") }, "BRPOP q1 q2 1"},
		{"poll from any zero", func() { d.PollFromAny(ctx, 0, "q2") }, "poll_any [q1 q2] [lpop]"},
		{"move", func() { d.PollLastAndOfferFirstTo(ctx, "q9", 2*time.Second) }, "BRPOPLPUSH q1 q9 2"},
		{"move zero", func() { d.PollLastAndOfferFirstTo(ctx, "q9", 0) }, "RPOPLPUSH q1 q9"},
		{"drain", func() { d.DrainTo(ctx, new([]string)) }, "drain_all [q1] []"},
		{"drain max", func() { d.DrainToMax(ctx, new([]string), 7) }, "drain_bounded [q1] [7]"},
		{"size", func() { d.Size(ctx) }, "LLEN q1"},
		{"peek last", func() { d.PeekLast(ctx) }, "LINDEX q1 -1"},
		{"remove", func() { d.Remove(ctx, "a") }, "LREM q1 1 [97]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.call()
			if got := rec.last(t); got != tt.want {
				t.Fatalf("dispatched %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{time.Nanosecond, 1},
		{999 * time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{10 * time.Second, 10},
	}
	for _, tt := range tests {
		if got := toSeconds(tt.in); got != tt.want {
			t.Fatalf("toSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPutPollOrder(t *testing.T) {
	ctx := context.Background()
	d, _ := newMemoryDeque(t, "jobs", codec.JSON[job]())

	for i := 1; i <= 3; i++ {
		if err := d.Put(ctx, job{ID: i}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if err := d.PutFirst(ctx, job{ID: 0}); err != nil {
		t.Fatalf("put first: %v", err)
	}

	for want := 0; want <= 3; want++ {
		got, ok, err := d.Poll(ctx, time.Second)
		if err != nil || !ok {
			t.Fatalf("poll: ok=%v err=%v", ok, err)
		}
		if got.ID != want {
			t.Fatalf("poll = %d, want %d", got.ID, want)
		}
	}
}

func TestOfferAlwaysAccepted(t *testing.T) {
	ctx := context.Background()
	d, _ := newMemoryDeque(t, "q", codec.String())

	for _, offer := range []func() (bool, error){
		func() (bool, error) { return d.Offer(ctx, "a") },
		func() (bool, error) { return d.OfferFirstTimeout(ctx, "b", time.Hour) },
		func() (bool, error) { return d.OfferLastTimeout(ctx, "c", -time.Second) },
	} {
		ok, err := offer()
		if err != nil || !ok {
			t.Fatalf("offer = %v, %v", ok, err)
		}
	}
	all, err := d.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if !reflect.DeepEqual(all, []string{"b", "a", "c"}) {
		t.Fatalf("contents = %v", all)
	}
	if d.RemainingCapacity() != math.MaxInt {
		t.Fatalf("remaining capacity = %d", d.RemainingCapacity())
	}
}

func TestPollEmpty(t *testing.T) {
	ctx := context.Background()
	d, _ := newMemoryDeque(t, "empty", codec.String())

	start := time.Now()
	v, ok, err := d.Poll(ctx, 0)
	if err != nil || ok || v != "" {
		t.Fatalf("non-blocking poll = %q, %v, %v", v, ok, err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("zero timeout waited %v", time.Since(start))
	}

	start = time.Now()
	_, ok, err = d.PollLast(ctx, 10*time.Millisecond)
	if err != nil || ok {
		t.Fatalf("timed poll = %v, %v", ok, err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("poll returned after %v, timeout rounds up to 1s", elapsed)
	}
}

func TestTakeWaitsForPut(t *testing.T) {
	ctx := context.Background()
	d, _ := newMemoryDeque(t, "q", codec.String())

	f := d.TakeAsync(ctx)
	time.Sleep(50 * time.Millisecond)
	if f.IsDone() {
		t.Fatalf("take resolved on an empty queue")
	}
	if err := d.Put(ctx, "x"); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := f.Await(ctx)
	if err != nil || v != "x" {
		t.Fatalf("take = %q, %v", v, err)
	}
}

func TestConcurrentTakeDeliversOnce(t *testing.T) {
	ctx := context.Background()
	d, _ := newMemoryDeque(t, "q", codec.String())

	const n = 20
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := d.Take(ctx)
			if err != nil {
				t.Errorf("take: %v", err)
				return
			}
			results <- v
		}()
	}
	for i := 0; i < n; i++ {
		if err := d.Put(ctx, fmt.Sprint(i)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for v := range results {
		if seen[v] {
			t.Fatalf("%s delivered twice", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("delivered %d of %d", len(seen), n)
	}
}

// assertDeliveredOnce fills d with n elements, then empties it with pollers
// and bounded drainers racing each other. Every element must come out
// exactly once and the queue must end empty.
func assertDeliveredOnce(t *testing.T, d *Deque[string], n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := d.Put(ctx, fmt.Sprint(i)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	var mu sync.Mutex
	counts := make(map[string]int)
	record := func(vs ...string) {
		mu.Lock()
		defer mu.Unlock()
		for _, v := range vs {
			counts[v]++
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for {
				v, ok, err := d.Poll(ctx, 0)
				if err != nil {
					t.Errorf("poll: %v", err)
					return
				}
				if !ok {
					return
				}
				record(v)
			}
		}()
		go func() {
			defer wg.Done()
			for {
				var batch []string
				got, err := d.DrainToMax(ctx, &batch, 7)
				if err != nil {
					t.Errorf("drain: %v", err)
					return
				}
				if got == 0 {
					return
				}
				record(batch...)
			}
		}()
	}
	wg.Wait()

	if len(counts) != n {
		t.Fatalf("delivered %d distinct elements of %d", len(counts), n)
	}
	for v, c := range counts {
		if c != 1 {
			t.Fatalf("%s delivered %d times", v, c)
		}
	}
	if size, err := d.Size(ctx); err != nil || size != 0 {
		t.Fatalf("size after race = %d, %v", size, err)
	}
}

func TestConcurrentDrainAndPollDeliverOnce(t *testing.T) {
	d, _ := newMemoryDeque(t, "q", codec.String())
	assertDeliveredOnce(t, d, 500)
}

func TestPollFromAnyReportsQueue(t *testing.T) {
	ctx := context.Background()
	m := kvstore.NewMemoryExecutor()
	t.Cleanup(func() { m.Close() })
	q1 := newDeque(m, "q1", codec.String())
	q3 := newDeque(m, "q3", codec.String())

	if err := q3.Put(ctx, "from-q3"); err != nil {
		t.Fatalf("put: %v", err)
	}
	for _, timeout := range []time.Duration{0, time.Second} {
		if err := q3.Put(ctx, "again"); err != nil {
			t.Fatalf("put: %v", err)
		}
		p, err := q1.PollFromAnyAsync(ctx, timeout, "q2", "q3").Await(ctx)
		if err != nil || !p.OK {
			t.Fatalf("poll from any (timeout %v) = %+v, %v", timeout, p, err)
		}
		if p.Queue != "q3" {
			t.Fatalf("queue = %s, want q3", p.Queue)
		}
	}
}

func TestPollFromAnyPrefersArgumentOrder(t *testing.T) {
	ctx := context.Background()
	m := kvstore.NewMemoryExecutor()
	t.Cleanup(func() { m.Close() })
	q1 := newDeque(m, "q1", codec.String())
	q2 := newDeque(m, "q2", codec.String())

	q2.Put(ctx, "two")
	q1.Put(ctx, "one")
	v, ok, err := q1.PollFromAny(ctx, time.Second, "q2")
	if err != nil || !ok || v != "one" {
		t.Fatalf("poll from any = %q, %v, %v", v, ok, err)
	}
}

func TestPollLastAndOfferFirstTo(t *testing.T) {
	ctx := context.Background()
	m := kvstore.NewMemoryExecutor()
	t.Cleanup(func() { m.Close() })
	src := newDeque(m, "src", codec.String())
	dst := newDeque(m, "dst", codec.String())

	for _, v := range []string{"a", "b", "c"} {
		src.Put(ctx, v)
	}
	dst.Put(ctx, "z")

	v, ok, err := src.PollLastAndOfferFirstTo(ctx, "dst", time.Second)
	if err != nil || !ok || v != "c" {
		t.Fatalf("move = %q, %v, %v", v, ok, err)
	}
	if all, _ := src.ReadAll(ctx); !reflect.DeepEqual(all, []string{"a", "b"}) {
		t.Fatalf("src = %v", all)
	}
	if all, _ := dst.ReadAll(ctx); !reflect.DeepEqual(all, []string{"c", "z"}) {
		t.Fatalf("dst = %v", all)
	}

	empty := newDeque(m, "empty", codec.String())
	if _, ok, err := empty.PollLastAndOfferFirstTo(ctx, "dst", 0); ok || err != nil {
		t.Fatalf("move from empty = %v, %v", ok, err)
	}
}

func TestDrainTo(t *testing.T) {
	ctx := context.Background()
	d, m := newMemoryDeque(t, "q", codec.JSON[int]())
	for i := 1; i <= 5; i++ {
		d.Put(ctx, i)
	}

	dst := []int{0}
	n, err := d.DrainToMax(ctx, &dst, 3)
	if err != nil || n != 3 {
		t.Fatalf("drain max = %d, %v", n, err)
	}
	if !reflect.DeepEqual(dst, []int{0, 1, 2, 3}) {
		t.Fatalf("dst = %v", dst)
	}

	n, err = d.DrainToMax(ctx, &dst, 10)
	if err != nil || n != 2 {
		t.Fatalf("drain rest = %d, %v", n, err)
	}
	if size, _ := d.Size(ctx); size != 0 {
		t.Fatalf("size after drain = %d", size)
	}

	d.Put(ctx, 9)
	var all []int
	if n, err := d.DrainTo(ctx, &all); err != nil || n != 1 || all[0] != 9 {
		t.Fatalf("drain all = %d, %v, %v", n, err, all)
	}

	calls := m.Calls()
	if n, err := d.DrainToMax(ctx, &all, 0); n != 0 || err != nil {
		t.Fatalf("drain max 0 = %d, %v", n, err)
	}
	if n, err := d.DrainToMaxAsync(ctx, nil, -1).Await(ctx); n != 0 || err != nil {
		t.Fatalf("async drain max -1 = %d, %v", n, err)
	}
	if _, err := d.DrainTo(ctx, nil); !errors.Is(err, ErrNilDestination) {
		t.Fatalf("nil destination = %v", err)
	}
	if _, err := d.DrainToAsync(ctx, nil).Await(ctx); !errors.Is(err, ErrNilDestination) {
		t.Fatalf("async nil destination = %v", err)
	}
	if m.Calls() != calls {
		t.Fatalf("precondition failures reached the store: %d calls", m.Calls()-calls)
	}
}

func TestDrainToAsyncAppends(t *testing.T) {
	ctx := context.Background()
	d, _ := newMemoryDeque(t, "q", codec.String())
	d.Put(ctx, "a")
	d.Put(ctx, "b")

	var dst []string
	n, err := d.DrainToAsync(ctx, &dst).Await(ctx)
	if err != nil || n != 2 {
		t.Fatalf("drain = %d, %v", n, err)
	}
	if !reflect.DeepEqual(dst, []string{"a", "b"}) {
		t.Fatalf("dst = %v", dst)
	}
}

func TestDrainKeepsDecodedElements(t *testing.T) {
	ctx := context.Background()
	m := kvstore.NewMemoryExecutor()
	t.Cleanup(func() { m.Close() })
	raw := newDeque(m, "q", codec.String())
	typed := newDeque(m, "q", codec.JSON[int]())

	for _, v := range []string{"1", "2", "oops", "4"} {
		raw.Put(ctx, v)
	}
	var dst []int
	n, err := typed.DrainTo(ctx, &dst)
	if err == nil || !strings.Contains(err.Error(), "queue q") {
		t.Fatalf("want decode error naming the queue, got %v", err)
	}
	if n != 2 || !reflect.DeepEqual(dst, []int{1, 2}) {
		t.Fatalf("kept %d: %v", n, dst)
	}
}

func TestDecodeErrorNamesQueue(t *testing.T) {
	ctx := context.Background()
	m := kvstore.NewMemoryExecutor()
	t.Cleanup(func() { m.Close() })
	newDeque(m, "orders", codec.String()).Put(ctx, "{not json")

	_, _, err := newDeque(m, "orders", codec.JSON[job]()).Poll(ctx, 0)
	if err == nil || !strings.Contains(err.Error(), "orders") {
		t.Fatalf("decode error = %v", err)
	}
}

func TestInterruptedWaitLeavesCommandRunning(t *testing.T) {
	d, _ := newMemoryDeque(t, "q", codec.String())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := d.Take(ctx)
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("take = %v, want interrupted", err)
	}

	// The abandoned take is still blocked on the store and consumes this.
	bg := context.Background()
	d.Put(bg, "swallowed")
	deadline := time.Now().Add(2 * time.Second)
	for {
		size, err := d.Size(bg)
		if err != nil {
			t.Fatalf("size: %v", err)
		}
		if size == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("element was not taken by the detached command")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListOperations(t *testing.T) {
	ctx := context.Background()
	d, _ := newMemoryDeque(t, "q", codec.String())

	if _, ok, err := d.PeekFirst(ctx); ok || err != nil {
		t.Fatalf("peek on empty = %v, %v", ok, err)
	}
	for _, v := range []string{"a", "b", "a", "c"} {
		d.Put(ctx, v)
	}
	if v, _, _ := d.PeekFirst(ctx); v != "a" {
		t.Fatalf("peek first = %q", v)
	}
	if v, _, _ := d.PeekLast(ctx); v != "c" {
		t.Fatalf("peek last = %q", v)
	}
	if removed, err := d.Remove(ctx, "a"); err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	if all, _ := d.ReadAll(ctx); !reflect.DeepEqual(all, []string{"b", "a", "c"}) {
		t.Fatalf("after remove = %v", all)
	}
	if removed, _ := d.Remove(ctx, "zzz"); removed {
		t.Fatalf("removed a missing element")
	}
	if existed, err := d.Delete(ctx); err != nil || !existed {
		t.Fatalf("delete = %v, %v", existed, err)
	}
	if size, _ := d.Size(ctx); size != 0 {
		t.Fatalf("size after delete = %d", size)
	}
}

func TestClosedExecutor(t *testing.T) {
	d, m := newMemoryDeque(t, "q", codec.String())
	m.Close()

	if err := d.Put(context.Background(), "x"); !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("put after close = %v", err)
	}
}

func TestCloseReleasesBlockedTake(t *testing.T) {
	d, m := newMemoryDeque(t, "q", codec.String())

	f := d.TakeAsync(context.Background())
	time.Sleep(20 * time.Millisecond)
	m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := f.Await(ctx); !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("blocked take after close = %v", err)
	}
}
