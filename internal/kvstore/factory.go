package kvstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/internal/metrics"
)

// ExecutorFactory is the Strategy interface for creating command executors.
// Each store backend implements it and registers itself from init().
type ExecutorFactory interface {
	// Create creates a new executor based on the provided configuration.
	Create(config ExecutorConfig) (core.CommandExecutor, error)

	// Type returns the type identifier for this factory (e.g., "redis", "memory").
	Type() string

	// Validate validates the configuration specific to this backend.
	Validate(config ExecutorConfig) error
}

// ExecutorConfig represents the configuration needed to create an executor.
type ExecutorConfig struct {
	Type         string
	Endpoints    []string
	ClusterMode  bool
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Metrics, when set, observes every dispatched command.
	Metrics *metrics.Metrics
}

var (
	// factoryRegistry stores all registered executor factories.
	factoryRegistry = make(map[string]ExecutorFactory)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers an executor factory.
// This is called automatically by each implementation's init() function.
func RegisterFactory(factory ExecutorFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}

	factoryRegistry[factory.Type()] = factory
}

// Create creates an executor using the factory registered for config.Type.
func Create(config ExecutorConfig) (core.CommandExecutor, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("store type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}

	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}

	return factory.Create(config)
}

// GetRegisteredTypes returns all registered store types, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a store type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}
