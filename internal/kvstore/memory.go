package kvstore

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/internal/metrics"
	"github.com/rzpsarthak13/redis-deque/internal/registry"
	"github.com/rzpsarthak13/redis-deque/pkg/future"
)

// MemoryExecutor implements core.CommandExecutor over in-process lists.
// It follows the store contract: each command and each named script runs
// atomically under one lock, blocking pops wait for a push or their timeout,
// and an emptied list ceases to exist. Useful for tests and local runs.
type MemoryExecutor struct {
	mu     sync.Mutex
	lists  map[string][][]byte
	pushed chan struct{} // closed and replaced on every push
	done   chan struct{}
	closed bool
	calls  atomic.Int64

	metrics *metrics.Metrics
}

// NewMemoryExecutor creates an empty in-memory store.
func NewMemoryExecutor() *MemoryExecutor {
	return &MemoryExecutor{
		lists:  make(map[string][][]byte),
		pushed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// WithMetrics attaches a metrics set that observes every command.
func (m *MemoryExecutor) WithMetrics(mt *metrics.Metrics) *MemoryExecutor {
	m.metrics = mt
	return m
}

// Calls returns the number of commands and scripts dispatched so far.
func (m *MemoryExecutor) Calls() int64 {
	return m.calls.Load()
}

// Execute dispatches one command on its own goroutine.
func (m *MemoryExecutor) Execute(ctx context.Context, key string, name string, args ...any) *future.Future[core.Reply] {
	return m.dispatch(name, func() (core.Reply, error) {
		switch name {
		case core.CommandBLPop, core.CommandBRPop:
			return m.blockingPop(name == core.CommandBLPop, args)
		case core.CommandBRPopLPush:
			return m.blockingMove(args)
		default:
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.apply(name, args)
		}
	})
}

// ExecuteScript runs a known script natively. Unknown scripts fail.
func (m *MemoryExecutor) ExecuteScript(ctx context.Context, key string, script core.Script, keys []string, args ...any) *future.Future[core.Reply] {
	return m.dispatch("EVAL", func() (core.Reply, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.runScript(script, keys, args)
	})
}

func (m *MemoryExecutor) dispatch(name string, fn func() (core.Reply, error)) *future.Future[core.Reply] {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return future.Failed[core.Reply](core.ErrExecutorClosed)
	}
	m.calls.Add(1)

	f := future.New[core.Reply]()
	go func() {
		start := time.Now()
		reply, err := fn()
		m.metrics.ObserveCommand(name, time.Since(start), err)
		if err != nil {
			f.Fail(err)
			return
		}
		f.Complete(reply)
	}()
	return f
}

// apply executes a non-blocking command. Caller holds m.mu.
func (m *MemoryExecutor) apply(name string, args []any) (core.Reply, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("ERR wrong number of arguments for '%s' command", name)
	}
	key, err := toKey(args[0])
	if err != nil {
		return nil, err
	}

	switch name {
	case core.CommandLPush, core.CommandRPush:
		if len(args) < 2 {
			return nil, fmt.Errorf("ERR wrong number of arguments for '%s' command", name)
		}
		for _, a := range args[1:] {
			value, err := toBytes(a)
			if err != nil {
				return nil, err
			}
			if name == core.CommandLPush {
				m.lists[key] = append([][]byte{value}, m.lists[key]...)
			} else {
				m.lists[key] = append(m.lists[key], value)
			}
		}
		m.notifyPush()
		return int64(len(m.lists[key])), nil

	case core.CommandLPop:
		return m.pop(key, true), nil

	case core.CommandRPop:
		return m.pop(key, false), nil

	case core.CommandRPopLPush:
		if len(args) != 2 {
			return nil, fmt.Errorf("ERR wrong number of arguments for '%s' command", name)
		}
		dest, err := toKey(args[1])
		if err != nil {
			return nil, err
		}
		return m.move(key, dest), nil

	case core.CommandLLen:
		return int64(len(m.lists[key])), nil

	case core.CommandLIndex:
		if len(args) != 2 {
			return nil, fmt.Errorf("ERR wrong number of arguments for '%s' command", name)
		}
		index, err := toInt64(args[1])
		if err != nil {
			return nil, err
		}
		list := m.lists[key]
		if index < 0 {
			index += int64(len(list))
		}
		if index < 0 || index >= int64(len(list)) {
			return nil, nil
		}
		return string(list[index]), nil

	case core.CommandLRange:
		if len(args) != 3 {
			return nil, fmt.Errorf("ERR wrong number of arguments for '%s' command", name)
		}
		start, err := toInt64(args[1])
		if err != nil {
			return nil, err
		}
		stop, err := toInt64(args[2])
		if err != nil {
			return nil, err
		}
		return m.lrange(key, start, stop), nil

	case core.CommandLRem:
		if len(args) != 3 {
			return nil, fmt.Errorf("ERR wrong number of arguments for '%s' command", name)
		}
		count, err := toInt64(args[1])
		if err != nil {
			return nil, err
		}
		value, err := toBytes(args[2])
		if err != nil {
			return nil, err
		}
		return m.lrem(key, count, value), nil

	case core.CommandDel:
		if _, ok := m.lists[key]; ok {
			delete(m.lists, key)
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("ERR unknown command '%s'", name)
}

// runScript executes a named script atomically. Caller holds m.mu.
func (m *MemoryExecutor) runScript(script core.Script, keys []string, args []any) (core.Reply, error) {
	switch script.Name {
	case core.DrainAllScript.Name:
		if len(keys) != 1 {
			return nil, fmt.Errorf("script %s expects 1 key, got %d", script.Name, len(keys))
		}
		vals := m.lrange(keys[0], 0, -1)
		delete(m.lists, keys[0])
		return vals, nil

	case core.DrainBoundedScript.Name:
		if len(keys) != 1 || len(args) != 1 {
			return nil, fmt.Errorf("script %s expects 1 key and 1 argument", script.Name)
		}
		limit, err := toInt64(args[0])
		if err != nil {
			return nil, err
		}
		last := min(limit, int64(len(m.lists[keys[0]]))) - 1
		vals := m.lrange(keys[0], 0, last)
		m.trim(keys[0], last+1)
		return vals, nil

	case core.PollAnyScript.Name:
		if len(args) != 1 {
			return nil, fmt.Errorf("script %s expects 1 argument", script.Name)
		}
		direction, _ := args[0].(string)
		for _, k := range keys {
			if v := m.pop(k, direction == "lpop"); v != nil {
				return []any{k, v}, nil
			}
		}
		return nil, nil

	case core.RequeueTailScript.Name:
		if len(keys) != 2 {
			return nil, fmt.Errorf("script %s expects 2 keys, got %d", script.Name, len(keys))
		}
		moved := m.lists[keys[0]]
		if len(moved) == 0 {
			return int64(0), nil
		}
		delete(m.lists, keys[0])
		m.lists[keys[1]] = append(m.lists[keys[1]], moved...)
		m.notifyPush()
		return int64(len(moved)), nil
	}
	return nil, fmt.Errorf("NOSCRIPT unknown script %q", script.Name)
}

func (m *MemoryExecutor) blockingPop(head bool, args []any) (core.Reply, error) {
	keys, timeout, err := blockingArgs(args)
	if err != nil {
		return nil, err
	}
	return m.waitFor(timeout, func() core.Reply {
		for _, k := range keys {
			if v := m.pop(k, head); v != nil {
				return []any{k, v}
			}
		}
		return nil
	})
}

func (m *MemoryExecutor) blockingMove(args []any) (core.Reply, error) {
	keys, timeout, err := blockingArgs(args)
	if err != nil {
		return nil, err
	}
	if len(keys) != 2 {
		return nil, fmt.Errorf("ERR wrong number of arguments for 'brpoplpush' command")
	}
	return m.waitFor(timeout, func() core.Reply {
		if v := m.move(keys[0], keys[1]); v != nil {
			return v
		}
		return nil
	})
}

// waitFor retries try under the lock until it yields a reply, the timeout
// elapses, or the executor closes. A zero timeout waits indefinitely.
func (m *MemoryExecutor) waitFor(timeout time.Duration, try func() core.Reply) (core.Reply, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		m.mu.Lock()
		if reply := try(); reply != nil {
			m.mu.Unlock()
			return reply, nil
		}
		pushed := m.pushed
		m.mu.Unlock()

		select {
		case <-pushed:
		case <-expired:
			return nil, nil
		case <-m.done:
			return nil, core.ErrExecutorClosed
		}
	}
}

func (m *MemoryExecutor) notifyPush() {
	close(m.pushed)
	m.pushed = make(chan struct{})
}

// pop removes one element from an end. Returns nil when the list is empty.
func (m *MemoryExecutor) pop(key string, head bool) core.Reply {
	list := m.lists[key]
	if len(list) == 0 {
		return nil
	}
	var v []byte
	if head {
		v, list = list[0], list[1:]
	} else {
		v, list = list[len(list)-1], list[:len(list)-1]
	}
	m.store(key, list)
	return string(v)
}

func (m *MemoryExecutor) move(source, dest string) core.Reply {
	v := m.pop(source, false)
	if v == nil {
		return nil
	}
	m.lists[dest] = append([][]byte{[]byte(v.(string))}, m.lists[dest]...)
	m.notifyPush()
	return v
}

func (m *MemoryExecutor) lrange(key string, start, stop int64) []any {
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start = max(start+n, 0)
	}
	if stop < 0 {
		stop += n
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return []any{}
	}
	out := make([]any, 0, stop-start+1)
	for _, v := range list[start : stop+1] {
		out = append(out, string(v))
	}
	return out
}

// trim drops the first n elements.
func (m *MemoryExecutor) trim(key string, n int64) {
	list := m.lists[key]
	if n >= int64(len(list)) {
		delete(m.lists, key)
		return
	}
	if n > 0 {
		m.store(key, list[n:])
	}
}

func (m *MemoryExecutor) lrem(key string, count int64, value []byte) int64 {
	list := m.lists[key]
	limit := count
	if limit < 0 {
		limit = -limit
	}
	removed := int64(0)
	keep := make([][]byte, 0, len(list))
	if count >= 0 {
		for _, v := range list {
			if string(v) == string(value) && (limit == 0 || removed < limit) {
				removed++
				continue
			}
			keep = append(keep, v)
		}
	} else {
		for i := len(list) - 1; i >= 0; i-- {
			if string(list[i]) == string(value) && removed < limit {
				removed++
				continue
			}
			keep = append([][]byte{list[i]}, keep...)
		}
	}
	m.store(key, keep)
	return removed
}

func (m *MemoryExecutor) store(key string, list [][]byte) {
	if len(list) == 0 {
		delete(m.lists, key)
		return
	}
	m.lists[key] = list
}

// Close releases blocked callers with ErrExecutorClosed.
func (m *MemoryExecutor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	log.Printf("[MEMORY] Store closed")
	return nil
}

func toKey(v any) (string, error) {
	switch k := v.(type) {
	case string:
		return k, nil
	case []byte:
		return string(k), nil
	default:
		return "", fmt.Errorf("key must be a string, got %T", v)
	}
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("value must be bytes or string, got %T", v)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// MemoryExecutorFactory creates in-memory executors.
type MemoryExecutorFactory struct{}

// Type returns the type identifier for this factory.
func (f *MemoryExecutorFactory) Type() string {
	return "memory"
}

// Validate accepts any memory configuration.
func (f *MemoryExecutorFactory) Validate(config ExecutorConfig) error {
	if config.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", config.Type)
	}
	return nil
}

// Create returns a fresh, empty store.
func (f *MemoryExecutorFactory) Create(config ExecutorConfig) (core.CommandExecutor, error) {
	log.Printf("[MEMORY] Using in-process store; queues are not shared between processes")
	return NewMemoryExecutor().WithMetrics(config.Metrics), nil
}

// MemoryConfigValidator validates a memory store section.
type MemoryConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *MemoryConfigValidator) Type() string {
	return "memory"
}

// Validate checks only the type.
func (v *MemoryConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Store.Type != "memory" {
		return fmt.Errorf("invalid type for memory validator: %s", config.Store.Type)
	}
	return nil
}

func init() {
	RegisterFactory(&MemoryExecutorFactory{})
	registry.RegisterValidator(&MemoryConfigValidator{})
}
