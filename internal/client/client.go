package client

import (
	"fmt"
	"sync"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/internal/kvstore"
	"github.com/rzpsarthak13/redis-deque/internal/metrics"
	"github.com/rzpsarthak13/redis-deque/internal/registry"
	"github.com/rzpsarthak13/redis-deque/internal/sink"
)

// ClientImpl owns the connections behind the public client: the command
// executor, the optional export sink, and the metrics collectors.
type ClientImpl struct {
	mu        sync.RWMutex
	configMgr *registry.ConfigManager
	executor  core.CommandExecutor
	sink      core.Sink
	metrics   *metrics.Metrics
	closed    bool
}

// ConfigProvider is an interface to provide configuration as YAML without importing the public package.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// NewClientImpl loads the configuration, overlays REDIS_DEQUE_* environment
// variables, and opens the executor and sink it describes.
func NewClientImpl(configProvider ConfigProvider) (*ClientImpl, error) {
	configMgr, err := loadConfig(configProvider)
	if err != nil {
		return nil, err
	}

	c := &ClientImpl{configMgr: configMgr}
	if err := c.initializeConnections(); err != nil {
		return nil, fmt.Errorf("failed to initialize connections: %w", err)
	}
	return c, nil
}

// NewClientImplWithExecutor wires an already open executor instead of
// creating one from the store configuration. No sink is opened.
func NewClientImplWithExecutor(configProvider ConfigProvider, executor core.CommandExecutor) (*ClientImpl, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	configMgr, err := loadConfig(configProvider)
	if err != nil {
		return nil, err
	}
	return &ClientImpl{configMgr: configMgr, executor: executor}, nil
}

func loadConfig(configProvider ConfigProvider) (*registry.ConfigManager, error) {
	if configProvider == nil {
		return nil, fmt.Errorf("config provider cannot be nil")
	}

	configMgr := registry.NewConfigManager()
	yamlData, err := configProvider.GetYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to get config YAML: %w", err)
	}
	if err := configMgr.LoadFromYAML(yamlData); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := configMgr.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return configMgr, nil
}

// initializeConnections creates metrics, the executor and the sink.
func (c *ClientImpl) initializeConnections() error {
	config := c.configMgr.GetConfig()

	if config.Metrics.Enabled {
		c.metrics = metrics.New(config.Metrics.Namespace)
	}

	executor, err := kvstore.Create(kvstore.ExecutorConfig{
		Type:         config.Store.Type,
		Endpoints:    config.Store.Endpoints,
		ClusterMode:  config.Store.ClusterMode,
		Password:     config.Store.Password,
		DB:           config.Store.DB,
		MaxRetries:   config.Store.MaxRetries,
		PoolSize:     config.Store.PoolSize,
		MinIdleConns: config.Store.MinIdleConns,
		DialTimeout:  config.Store.DialTimeout,
		ReadTimeout:  config.Store.ReadTimeout,
		WriteTimeout: config.Store.WriteTimeout,
		Metrics:      c.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s executor: %w", config.Store.Type, err)
	}
	c.executor = executor

	s, err := sink.New(config.Sink)
	if err != nil {
		executor.Close()
		return fmt.Errorf("failed to create %s sink: %w", config.Sink.Type, err)
	}
	c.sink = s

	return nil
}

// Executor returns the command executor.
func (c *ClientImpl) Executor() core.CommandExecutor {
	return c.executor
}

// Sink returns the configured sink, or nil when none is configured.
func (c *ClientImpl) Sink() core.Sink {
	return c.sink
}

// Metrics returns the collectors, or nil when metrics are disabled.
func (c *ClientImpl) Metrics() *metrics.Metrics {
	return c.metrics
}

// Config returns the loaded configuration.
func (c *ClientImpl) Config() *registry.InternalConfig {
	return c.configMgr.GetConfig()
}

// IsClosed reports whether Close has been called.
func (c *ClientImpl) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close closes all connections and releases resources.
func (c *ClientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error

	if c.sink != nil {
		if err := c.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sink: %w", err))
		}
	}

	if c.executor != nil {
		if err := c.executor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close executor: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
