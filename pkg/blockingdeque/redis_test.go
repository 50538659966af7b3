package blockingdeque

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/redis-deque/internal/kvstore"
	"github.com/rzpsarthak13/redis-deque/internal/metrics"
	"github.com/rzpsarthak13/redis-deque/pkg/codec"
)

func newRedisExecutor(t *testing.T) (*kvstore.RedisExecutor, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	executor := kvstore.NewRedisExecutorFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { executor.Close() })
	return executor, mr
}

func TestRedisEndToEnd(t *testing.T) {
	ctx := context.Background()
	executor, mr := newRedisExecutor(t)
	d := newDeque(executor, "jobs", codec.JSON[job]())

	for i := 1; i <= 4; i++ {
		if err := d.Put(ctx, job{ID: i}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if got, _ := mr.List("jobs"); len(got) != 4 || got[0] != `{"id":1,"name":""}` {
		t.Fatalf("stored list = %v", got)
	}

	first, ok, err := d.Poll(ctx, time.Second)
	if err != nil || !ok || first.ID != 1 {
		t.Fatalf("poll = %+v, %v, %v", first, ok, err)
	}
	last, err := d.TakeLast(ctx)
	if err != nil || last.ID != 4 {
		t.Fatalf("take last = %+v, %v", last, err)
	}

	var dst []job
	n, err := d.DrainToMax(ctx, &dst, 1)
	if err != nil || n != 1 || dst[0].ID != 2 {
		t.Fatalf("drain max = %d, %v, %v", n, err, dst)
	}
	n, err = d.DrainTo(ctx, &dst)
	if err != nil || n != 1 || dst[1].ID != 3 {
		t.Fatalf("drain = %d, %v, %v", n, err, dst)
	}
	if mr.Exists("jobs") {
		t.Fatalf("drained list still exists")
	}
}

func TestRedisBoundedDrainLargerThanList(t *testing.T) {
	ctx := context.Background()
	executor, _ := newRedisExecutor(t)
	d := newDeque(executor, "q", codec.String())
	for _, v := range []string{"a", "b", "c"} {
		d.Put(ctx, v)
	}

	var dst []string
	n, err := d.DrainToMax(ctx, &dst, 100)
	if err != nil || n != 3 || !reflect.DeepEqual(dst, []string{"a", "b", "c"}) {
		t.Fatalf("drain = %d, %v, %v", n, err, dst)
	}
}

func TestRedisPollFromAny(t *testing.T) {
	ctx := context.Background()
	executor, mr := newRedisExecutor(t)
	mr.Lpush("q3", "x")
	mr.Lpush("q3", "y")

	q1 := newDeque(executor, "q1", codec.String())
	p, err := q1.PollFromAnyAsync(ctx, time.Second, "q2", "q3").Await(ctx)
	if err != nil || !p.OK || p.Value != "y" || p.Queue != "q3" {
		t.Fatalf("blocking poll from any = %+v, %v", p, err)
	}
	p, err = q1.PollLastFromAnyAsync(ctx, 0, "q2", "q3").Await(ctx)
	if err != nil || !p.OK || p.Value != "x" || p.Queue != "q3" {
		t.Fatalf("non-blocking poll from any = %+v, %v", p, err)
	}
	p, err = q1.PollFromAnyAsync(ctx, 0, "q2", "q3").Await(ctx)
	if err != nil || p.OK {
		t.Fatalf("poll from empty queues = %+v, %v", p, err)
	}
}

func TestRedisMove(t *testing.T) {
	ctx := context.Background()
	executor, mr := newRedisExecutor(t)
	src := newDeque(executor, "src", codec.String())
	src.Put(ctx, "a")
	src.Put(ctx, "b")

	v, ok, err := src.PollLastAndOfferFirstTo(ctx, "dst", time.Second)
	if err != nil || !ok || v != "b" {
		t.Fatalf("move = %q, %v, %v", v, ok, err)
	}
	if got, _ := mr.List("dst"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("dst = %v", got)
	}
	if got, _ := mr.List("src"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("src = %v", got)
	}
}

func TestRedisPollTimesOut(t *testing.T) {
	ctx := context.Background()
	executor, _ := newRedisExecutor(t)
	d := newDeque(executor, "empty", codec.String())

	_, ok, err := d.Poll(ctx, time.Second)
	if err != nil || ok {
		t.Fatalf("poll on empty = %v, %v", ok, err)
	}
}

func TestRedisMetricsObserveCommands(t *testing.T) {
	ctx := context.Background()
	executor, _ := newRedisExecutor(t)
	m := metrics.New("deque_test")
	executor.WithMetrics(m)
	d := newDeque(executor, "q", codec.String())

	d.Put(ctx, "a")
	var dst []string
	d.DrainTo(ctx, &dst)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "deque_test_commands_total" {
			found = len(f.GetMetric()) >= 2
		}
	}
	if !found {
		t.Fatalf("commands_total not recorded for RPUSH and EVAL")
	}
}

func TestRedisConcurrentDrainAndPollDeliverOnce(t *testing.T) {
	executor, _ := newRedisExecutor(t)
	assertDeliveredOnce(t, newDeque(executor, "q", codec.String()), 500)
}
