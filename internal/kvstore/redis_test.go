package kvstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/internal/metrics"
)

func newTestRedis(t *testing.T) (*RedisExecutor, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	executor, err := Create(ExecutorConfig{
		Type:         "redis",
		Endpoints:    []string{mr.Addr()},
		PoolSize:     4,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		Metrics:      metrics.New("kvstore_test"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { executor.Close() })
	return executor.(*RedisExecutor), mr
}

func TestRedisExecutorCommands(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	mustReply(t, r.Execute(ctx, "q", core.CommandRPush, "q", []byte("a")))
	mustReply(t, r.Execute(ctx, "q", core.CommandRPush, "q", []byte("b")))
	if got, _ := mr.List("q"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("list = %v", got)
	}
	if got := mustReply(t, r.Execute(ctx, "q", core.CommandLLen, "q")); got != int64(2) {
		t.Fatalf("llen = %v (%T)", got, got)
	}
	if got := mustReply(t, r.Execute(ctx, "q", core.CommandLRange, "q", 0, -1)); !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Fatalf("lrange = %v", got)
	}
	if got := mustReply(t, r.Execute(ctx, "q", core.CommandBRPop, "q", int64(1))); !reflect.DeepEqual(got, []any{"q", "b"}) {
		t.Fatalf("brpop = %v", got)
	}
	if got := mustReply(t, r.Execute(ctx, "q", core.CommandBRPopLPush, "q", "dst", int64(1))); got != "a" {
		t.Fatalf("brpoplpush = %v", got)
	}
	if got := mustReply(t, r.Execute(ctx, "q", core.CommandLPop, "q")); got != nil {
		t.Fatalf("lpop on missing list = %v", got)
	}
}

func TestRedisExecutorScripts(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	for _, v := range []string{"1", "2", "3"} {
		mr.Push("q", v)
	}

	got := mustReply(t, r.ExecuteScript(ctx, "q", core.DrainBoundedScript, []string{"q"}, 2))
	if !reflect.DeepEqual(got, []any{"1", "2"}) {
		t.Fatalf("drain bounded = %v", got)
	}
	got = mustReply(t, r.ExecuteScript(ctx, "q", core.PollAnyScript, []string{"missing", "q"}, "lpop"))
	if !reflect.DeepEqual(got, []any{"q", "3"}) {
		t.Fatalf("poll any = %v", got)
	}
	if got := mustReply(t, r.ExecuteScript(ctx, "q", core.PollAnyScript, []string{"q"}, "lpop")); got != nil {
		t.Fatalf("poll any on empty = %v", got)
	}

	mr.Push("src", "s")
	mr.Push("p", "newer", "older")
	if n := mustReply(t, r.ExecuteScript(ctx, "p", core.RequeueTailScript, []string{"p", "src"})); n != int64(2) {
		t.Fatalf("requeue moved %v", n)
	}
	if got, _ := mr.List("src"); !reflect.DeepEqual(got, []string{"s", "newer", "older"}) || mr.Exists("p") {
		t.Fatalf("requeue = %v, processing exists=%v", got, mr.Exists("p"))
	}

	mr.Push("q", "x")
	got = mustReply(t, r.ExecuteScript(ctx, "q", core.DrainAllScript, []string{"q"}))
	if !reflect.DeepEqual(got, []any{"x"}) || mr.Exists("q") {
		t.Fatalf("drain all = %v, exists=%v", got, mr.Exists("q"))
	}
}

func TestRedisExecutorDetachesCancellation(t *testing.T) {
	r, mr := newTestRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	f := r.Execute(ctx, "q", core.CommandBLPop, "q", int64(0))
	cancel()
	time.Sleep(20 * time.Millisecond)
	mr.Lpush("q", "late")

	got, err := f.Get()
	if err != nil || !reflect.DeepEqual(got, []any{"q", "late"}) {
		t.Fatalf("detached blpop = %v, %v", got, err)
	}
}

func TestRedisExecutorClosed(t *testing.T) {
	r, _ := newTestRedis(t)
	r.Close()
	if _, err := r.Execute(context.Background(), "q", core.CommandLLen, "q").Get(); !errors.Is(err, core.ErrExecutorClosed) {
		t.Fatalf("after close = %v", err)
	}
}

func TestBlockingArgs(t *testing.T) {
	keys, timeout, err := blockingArgs([]any{"a", "b", int64(3)})
	if err != nil || !reflect.DeepEqual(keys, []string{"a", "b"}) || timeout != 3*time.Second {
		t.Fatalf("blockingArgs = %v, %v, %v", keys, timeout, err)
	}
	if _, _, err := blockingArgs([]any{int64(3)}); err == nil {
		t.Fatalf("missing key should fail")
	}
	if _, _, err := blockingArgs([]any{42, int64(3)}); err == nil {
		t.Fatalf("non-string key should fail")
	}
}
