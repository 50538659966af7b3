package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/internal/metrics"
	"github.com/rzpsarthak13/redis-deque/internal/registry"
	"github.com/rzpsarthak13/redis-deque/pkg/future"
)

// RedisExecutor implements core.CommandExecutor on top of go-redis.
// A single node or a cluster is served through redis.UniversalClient.
// In cluster mode every key of a multi-key command must hash to one slot.
type RedisExecutor struct {
	client  redis.UniversalClient
	metrics *metrics.Metrics
	scripts sync.Map // script name -> *redis.Script

	mu     sync.RWMutex
	closed bool
}

// NewRedisExecutor connects to Redis and verifies the connection with PING.
func NewRedisExecutor(endpoints []string, clusterMode bool, password string, db int, maxRetries, poolSize, minIdleConns int, dialTimeout, readTimeout, writeTimeout time.Duration) (*RedisExecutor, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	opts := &redis.UniversalOptions{
		Addrs:        endpoints,
		Password:     password,
		MaxRetries:   maxRetries,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	var client redis.UniversalClient
	if clusterMode {
		client = redis.NewClusterClient(opts.Cluster())
	} else {
		opts.Addrs = endpoints[:1]
		opts.DB = db
		client = redis.NewClient(opts.Simple())
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[REDIS] Connected to %v (cluster: %v)", endpoints, clusterMode)
	return NewRedisExecutorFromClient(client), nil
}

// NewRedisExecutorFromClient wraps an existing client. The executor owns the
// client from here on and closes it on Close.
func NewRedisExecutorFromClient(client redis.UniversalClient) *RedisExecutor {
	return &RedisExecutor{client: client}
}

// WithMetrics attaches a metrics set that observes every command.
func (r *RedisExecutor) WithMetrics(m *metrics.Metrics) *RedisExecutor {
	r.metrics = m
	return r
}

// Execute dispatches one command on its own goroutine.
func (r *RedisExecutor) Execute(ctx context.Context, key string, name string, args ...any) *future.Future[core.Reply] {
	return r.dispatch(ctx, name, func(ctx context.Context) (core.Reply, error) {
		return r.run(ctx, name, args)
	})
}

// ExecuteScript runs script.Source with EVALSHA, falling back to EVAL when
// the server does not have the script cached.
func (r *RedisExecutor) ExecuteScript(ctx context.Context, key string, script core.Script, keys []string, args ...any) *future.Future[core.Reply] {
	return r.dispatch(ctx, "EVAL", func(ctx context.Context) (core.Reply, error) {
		reply, err := r.script(script).Run(ctx, r.client, keys, args...).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			log.Printf("[REDIS] ERROR: Script %s on %v failed: %v", script.Name, keys, err)
			return nil, err
		}
		return normalize(reply), nil
	})
}

func (r *RedisExecutor) dispatch(ctx context.Context, name string, fn func(context.Context) (core.Reply, error)) *future.Future[core.Reply] {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return future.Failed[core.Reply](core.ErrExecutorClosed)
	}

	f := future.New[core.Reply]()
	ctx = context.WithoutCancel(ctx)
	go func() {
		start := time.Now()
		reply, err := fn(ctx)
		r.metrics.ObserveCommand(name, time.Since(start), err)
		if err != nil {
			f.Fail(err)
			return
		}
		f.Complete(reply)
	}()
	return f
}

// run maps a command name onto go-redis. Blocking commands use the typed
// methods so the client read deadline covers the server-side wait.
func (r *RedisExecutor) run(ctx context.Context, name string, args []any) (core.Reply, error) {
	switch name {
	case core.CommandBLPop, core.CommandBRPop:
		keys, timeout, err := blockingArgs(args)
		if err != nil {
			return nil, err
		}
		var cmd *redis.StringSliceCmd
		if name == core.CommandBLPop {
			cmd = r.client.BLPop(ctx, timeout, keys...)
		} else {
			cmd = r.client.BRPop(ctx, timeout, keys...)
		}
		vals, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			log.Printf("[REDIS] ERROR: %s on %v failed: %v", name, keys, err)
			return nil, err
		}
		return core.ReplyArray(vals)

	case core.CommandBRPopLPush:
		keys, timeout, err := blockingArgs(args)
		if err != nil {
			return nil, err
		}
		if len(keys) != 2 {
			return nil, fmt.Errorf("%s expects source and destination, got %d keys", name, len(keys))
		}
		val, err := r.client.BRPopLPush(ctx, keys[0], keys[1], timeout).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			log.Printf("[REDIS] ERROR: %s %s -> %s failed: %v", name, keys[0], keys[1], err)
			return nil, err
		}
		return val, nil
	}

	cmdArgs := make([]any, 0, len(args)+1)
	cmdArgs = append(cmdArgs, strings.ToLower(name))
	cmdArgs = append(cmdArgs, args...)
	reply, err := r.client.Do(ctx, cmdArgs...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		log.Printf("[REDIS] ERROR: %s failed: %v", name, err)
		return nil, err
	}
	return normalize(reply), nil
}

func (r *RedisExecutor) script(s core.Script) *redis.Script {
	if cached, ok := r.scripts.Load(s.Name); ok {
		return cached.(*redis.Script)
	}
	compiled, _ := r.scripts.LoadOrStore(s.Name, redis.NewScript(s.Source))
	return compiled.(*redis.Script)
}

// Close closes the connection pool. Pending commands fail.
func (r *RedisExecutor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	log.Printf("[REDIS] Closing executor")
	return r.client.Close()
}

// blockingArgs splits "key..., timeoutSeconds" into keys and a duration.
func blockingArgs(args []any) ([]string, time.Duration, error) {
	if len(args) < 2 {
		return nil, 0, fmt.Errorf("blocking command needs at least one key and a timeout")
	}
	keys := make([]string, 0, len(args)-1)
	for _, a := range args[:len(args)-1] {
		k, ok := a.(string)
		if !ok {
			return nil, 0, fmt.Errorf("key must be a string, got %T", a)
		}
		keys = append(keys, k)
	}
	seconds, err := toInt64(args[len(args)-1])
	if err != nil {
		return nil, 0, fmt.Errorf("invalid timeout: %w", err)
	}
	return keys, time.Duration(seconds) * time.Second, nil
}

// normalize converts go-redis replies into core.Reply normal forms.
func normalize(v any) core.Reply {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case int:
		return int64(t)
	default:
		return v
	}
}

// RedisExecutorFactory creates Redis executors.
type RedisExecutorFactory struct{}

// Type returns the type identifier for this factory.
func (f *RedisExecutorFactory) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration.
func (f *RedisExecutorFactory) Validate(config ExecutorConfig) error {
	if config.Type != "redis" {
		return fmt.Errorf("invalid type for Redis factory: %s", config.Type)
	}
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if !config.ClusterMode && (config.DB < 0 || config.DB > 15) {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", config.DB)
	}
	if config.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", config.PoolSize)
	}
	if config.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", config.MinIdleConns)
	}
	if config.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", config.DialTimeout)
	}
	if config.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", config.ReadTimeout)
	}
	if config.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", config.WriteTimeout)
	}
	return nil
}

// Create connects a new Redis executor.
func (f *RedisExecutorFactory) Create(config ExecutorConfig) (core.CommandExecutor, error) {
	executor, err := NewRedisExecutor(
		config.Endpoints,
		config.ClusterMode,
		config.Password,
		config.DB,
		config.MaxRetries,
		config.PoolSize,
		config.MinIdleConns,
		config.DialTimeout,
		config.ReadTimeout,
		config.WriteTimeout,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis executor: %w", err)
	}
	return executor.WithMetrics(config.Metrics), nil
}

// RedisConfigValidator validates the store section of the internal config.
type RedisConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *RedisConfigValidator) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration in the internal config.
func (v *RedisConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	store := config.Store
	if store.Type != "redis" {
		return fmt.Errorf("invalid type for Redis validator: %s", store.Type)
	}
	if len(store.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if !store.ClusterMode && (store.DB < 0 || store.DB > 15) {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", store.DB)
	}
	if store.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", store.PoolSize)
	}
	if store.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", store.MinIdleConns)
	}
	if store.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", store.DialTimeout)
	}
	if store.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", store.ReadTimeout)
	}
	if store.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", store.WriteTimeout)
	}
	if store.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", store.MaxRetries)
	}
	return nil
}

func init() {
	RegisterFactory(&RedisExecutorFactory{})
	registry.RegisterValidator(&RedisConfigValidator{})
}
