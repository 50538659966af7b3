package blockingdeque

import (
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/redis-deque/internal/client"
	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/pkg/codec"
)

// Sink receives elements exported by a worker: the queue name and the
// encoded element.
type Sink = core.Sink

// Client owns the store connection shared by every Deque opened from it.
//
// Typical usage:
//
//	c, _ := blockingdeque.NewClient(blockingdeque.DefaultConfig())
//	defer c.Close()
//
//	jobs, _ := blockingdeque.Open(c, "jobs", codec.JSON[Job]())
//	jobs.Put(ctx, job)
//	job, _ := jobs.Take(ctx)
type Client struct {
	impl   *client.ClientImpl
	config *Config
}

// configProvider implements client.ConfigProvider to provide config as YAML without import cycles.
type configProvider struct {
	config *Config
}

func (cp *configProvider) GetYAML() ([]byte, error) {
	return yaml.Marshal(cp.config)
}

// NewClient creates a client with the provided configuration. Environment
// variables of the form REDIS_DEQUE_<SECTION>_<KEY> override it. Returns an
// error if the store cannot be reached or the sink cannot be opened.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	impl, err := client.NewClientImpl(&configProvider{config: config})
	if err != nil {
		return nil, err
	}
	return &Client{impl: impl, config: config}, nil
}

// newClientWithExecutor wires an open executor, bypassing store creation.
func newClientWithExecutor(config *Config, executor core.CommandExecutor) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	impl, err := client.NewClientImplWithExecutor(&configProvider{config: config}, executor)
	if err != nil {
		return nil, err
	}
	return &Client{impl: impl, config: config}, nil
}

// Open returns the deque stored under name. No command is sent; the list
// exists on the store only while it has elements.
func Open[V any](c *Client, name string, cd codec.Codec[V]) (*Deque[V], error) {
	if c == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if name == "" {
		return nil, fmt.Errorf("queue name cannot be empty")
	}
	if cd == nil {
		return nil, fmt.Errorf("codec cannot be nil")
	}
	if c.impl.IsClosed() {
		return nil, ErrExecutorClosed
	}
	d := newDeque(c.impl.Executor(), name, cd)
	d.metrics = c.impl.Metrics()
	return d, nil
}

// WorkerConfig returns the worker defaults after environment overrides.
func (c *Client) WorkerConfig() WorkerConfig {
	w := c.impl.Config().Worker
	return WorkerConfig{
		PollTimeout:     w.PollTimeout,
		Rate:            w.Rate,
		MaxRetries:      w.MaxRetries,
		RetryBackoff:    w.RetryBackoff,
		RetryBackoffMax: w.RetryBackoffMax,
		DeadLetterQueue: w.DeadLetterQueue,
		ProcessingQueue: w.ProcessingQueue,
	}
}

// Sink returns the configured export sink, or nil when sink.type is none.
func (c *Client) Sink() Sink {
	return c.impl.Sink()
}

// MetricsHandler serves the client's prometheus collectors. It responds
// 404 when metrics are disabled.
func (c *Client) MetricsHandler() http.Handler {
	m := c.impl.Metrics()
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.Handler()
}

// Close closes the sink and the store connection. Blocked operations fail
// with ErrExecutorClosed or a connection error.
func (c *Client) Close() error {
	return c.impl.Close()
}
