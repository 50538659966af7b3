package future

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCompleteIsSingleAssignment(t *testing.T) {
	f := New[int]()
	if !f.Complete(1) {
		t.Fatalf("first complete should resolve")
	}
	if f.Complete(2) {
		t.Fatalf("second complete should be ignored")
	}
	if f.Fail(errors.New("late")) {
		t.Fatalf("fail after complete should be ignored")
	}
	v, err := f.Get()
	if err != nil || v != 1 {
		t.Fatalf("get: %v %v", v, err)
	}
}

func TestNowBeforeAndAfterResolve(t *testing.T) {
	f := New[string]()
	if _, ok, _ := f.Now(); ok {
		t.Fatalf("unresolved future reported done")
	}
	f.Complete("x")
	v, ok, err := f.Now()
	if !ok || err != nil || v != "x" {
		t.Fatalf("now: %q %v %v", v, err, ok)
	}
}

func TestAwaitInterrupted(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("want ErrInterrupted, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want wrapped deadline, got %v", err)
	}

	// resolution after an interrupted wait is still observable
	f.Complete(7)
	v, err := f.Await(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("await after interrupt: %v %v", v, err)
	}
}

func TestAwaitResolvedIgnoresCancelledContext(t *testing.T) {
	f := Completed(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v, err := f.Await(ctx)
	if err != nil || v != 3 {
		t.Fatalf("resolved future should win: %v %v", v, err)
	}
}

func TestThenPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	called := false
	g := Then(Failed[int](boom), func(int) (string, error) {
		called = true
		return "", nil
	})
	if _, err := g.Get(); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if called {
		t.Fatalf("continuation must not run on failure")
	}
}

func TestThenMapsValue(t *testing.T) {
	f := New[int]()
	g := Then(f, func(v int) (int, error) { return v * 2, nil })
	go f.Complete(21)
	v, err := g.Await(context.Background())
	if err != nil || v != 42 {
		t.Fatalf("then: %v %v", v, err)
	}
}
