package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigValidator is the Strategy interface for validating configuration.
// Each store backend provides its own validator for the store section.
type ConfigValidator interface {
	// Validate validates the store section of the internal configuration.
	Validate(config *InternalConfig) error

	// Type returns the type identifier for this validator (e.g., "redis", "memory").
	Type() string
}

var (
	// validatorRegistry stores all registered config validators.
	validatorRegistry = make(map[string]ConfigValidator)

	// validatorRegistryMutex protects the validator registry from concurrent access.
	validatorRegistryMutex sync.RWMutex
)

// ValidationStrategyRegistry provides methods to register and retrieve config validators.
type ValidationStrategyRegistry struct{}

// Register registers a config validator.
// Panics if validator is nil, type is empty, or type is already registered.
func (r *ValidationStrategyRegistry) Register(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}

	validatorRegistry[validator.Type()] = validator
}

// Get retrieves a validator by type.
func (r *ValidationStrategyRegistry) Get(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// RegisterValidator registers a validator on the default registry.
// This is the preferred way to register validators from init() functions.
func RegisterValidator(validator ConfigValidator) {
	defaultValidationRegistry.Register(validator)
}

// GetValidator retrieves a validator by type from the default registry.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	return defaultValidationRegistry.Get(validatorType)
}

var defaultValidationRegistry = &ValidationStrategyRegistry{}

// Sink types accepted in sink.type.
const (
	SinkNone     = "none"
	SinkKafka    = "kafka"
	SinkDynamoDB = "dynamodb"
	SinkMySQL    = "mysql"
)

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultInternalConfig(),
	}
}

// DefaultInternalConfig returns a configuration with sensible defaults.
func DefaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		Store: InternalStoreConfig{
			Type:         "redis",
			Endpoints:    []string{"localhost:6379"},
			ClusterMode:  false,
			DB:           0,
			MaxRetries:   3,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Worker: InternalWorkerConfig{
			PollTimeout:     5 * time.Second,
			Rate:            50,
			MaxRetries:      3,
			RetryBackoff:    500 * time.Millisecond,
			RetryBackoffMax: 10 * time.Second,
		},
		Sink: InternalSinkConfig{
			Type: SinkNone,
			Kafka: InternalKafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "redis-deque-export",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1, // All replicas
			},
			MySQL: InternalMySQLConfig{
				Host:              "localhost",
				Port:              3306,
				Table:             "queue_exports",
				MaxOpenConns:      10,
				MaxIdleConns:      2,
				ConnMaxLifetime:   5 * time.Minute,
				ConnectionTimeout: 10 * time.Second,
			},
		},
		Metrics: InternalMetricsConfig{
			Enabled:   true,
			Namespace: "redis_deque",
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data over the defaults.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromJSON loads configuration from JSON data over the defaults.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromEnv overlays environment variables onto the current configuration.
// Environment variables follow the pattern: REDIS_DEQUE_<SECTION>_<KEY>
// Examples:
//   - REDIS_DEQUE_STORE_TYPE=redis
//   - REDIS_DEQUE_STORE_ENDPOINTS=localhost:6379,localhost:6380
//   - REDIS_DEQUE_WORKER_POLL_TIMEOUT=2s
//   - REDIS_DEQUE_SINK_TYPE=kafka
func (cm *ConfigManager) LoadFromEnv() error {
	config := *cm.config

	// Store configuration
	if val := os.Getenv("REDIS_DEQUE_STORE_TYPE"); val != "" {
		config.Store.Type = val
	}
	if val := os.Getenv("REDIS_DEQUE_STORE_ENDPOINTS"); val != "" {
		config.Store.Endpoints = strings.Split(val, ",")
	}
	if val := os.Getenv("REDIS_DEQUE_STORE_CLUSTER_MODE"); val != "" {
		config.Store.ClusterMode = (val == "true" || val == "1")
	}
	if val := os.Getenv("REDIS_DEQUE_STORE_PASSWORD"); val != "" {
		config.Store.Password = val
	}
	if val := os.Getenv("REDIS_DEQUE_STORE_DB"); val != "" {
		var db int
		if _, err := fmt.Sscanf(val, "%d", &db); err == nil {
			config.Store.DB = db
		}
	}
	if val := os.Getenv("REDIS_DEQUE_STORE_MAX_RETRIES"); val != "" {
		var retries int
		if _, err := fmt.Sscanf(val, "%d", &retries); err == nil {
			config.Store.MaxRetries = retries
		}
	}
	if val := os.Getenv("REDIS_DEQUE_STORE_POOL_SIZE"); val != "" {
		var size int
		if _, err := fmt.Sscanf(val, "%d", &size); err == nil {
			config.Store.PoolSize = size
		}
	}

	// Worker configuration
	if val := os.Getenv("REDIS_DEQUE_WORKER_POLL_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.Worker.PollTimeout = d
		}
	}
	if val := os.Getenv("REDIS_DEQUE_WORKER_RATE"); val != "" {
		var rate int
		if _, err := fmt.Sscanf(val, "%d", &rate); err == nil {
			config.Worker.Rate = rate
		}
	}
	if val := os.Getenv("REDIS_DEQUE_WORKER_MAX_RETRIES"); val != "" {
		var retries int
		if _, err := fmt.Sscanf(val, "%d", &retries); err == nil {
			config.Worker.MaxRetries = retries
		}
	}
	if val := os.Getenv("REDIS_DEQUE_WORKER_DEAD_LETTER_QUEUE"); val != "" {
		config.Worker.DeadLetterQueue = val
	}
	if val := os.Getenv("REDIS_DEQUE_WORKER_PROCESSING_QUEUE"); val != "" {
		config.Worker.ProcessingQueue = val
	}

	// Sink configuration
	if val := os.Getenv("REDIS_DEQUE_SINK_TYPE"); val != "" {
		config.Sink.Type = val
	}
	if val := os.Getenv("REDIS_DEQUE_SINK_KAFKA_BROKERS"); val != "" {
		config.Sink.Kafka.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv("REDIS_DEQUE_SINK_KAFKA_TOPIC"); val != "" {
		config.Sink.Kafka.Topic = val
	}
	if val := os.Getenv("REDIS_DEQUE_SINK_DYNAMODB_REGION"); val != "" {
		config.Sink.DynamoDB.Region = val
	}
	if val := os.Getenv("REDIS_DEQUE_SINK_DYNAMODB_TABLE_NAME"); val != "" {
		config.Sink.DynamoDB.TableName = val
	}
	if val := os.Getenv("REDIS_DEQUE_SINK_DYNAMODB_ENDPOINT"); val != "" {
		config.Sink.DynamoDB.Endpoint = val
	}
	if val := os.Getenv("REDIS_DEQUE_SINK_MYSQL_HOST"); val != "" {
		config.Sink.MySQL.Host = val
	}
	if val := os.Getenv("REDIS_DEQUE_SINK_MYSQL_DATABASE"); val != "" {
		config.Sink.MySQL.Database = val
	}
	if val := os.Getenv("REDIS_DEQUE_SINK_MYSQL_USERNAME"); val != "" {
		config.Sink.MySQL.Username = val
	}
	if val := os.Getenv("REDIS_DEQUE_SINK_MYSQL_PASSWORD"); val != "" {
		config.Sink.MySQL.Password = val
	}

	// Metrics configuration
	if val := os.Getenv("REDIS_DEQUE_METRICS_ENABLED"); val != "" {
		config.Metrics.Enabled = (val == "true" || val == "1")
	}

	if err := cm.validateConfig(&config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = &config
	return nil
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// validateConfig validates the configuration and returns an error if invalid.
// The store section is validated by the strategy registered for its type.
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	if config.Store.Type == "" {
		return fmt.Errorf("store.type is required")
	}

	validator, exists := GetValidator(config.Store.Type)
	if !exists {
		return fmt.Errorf("unsupported store type: %s", config.Store.Type)
	}

	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	// Worker configuration
	if config.Worker.PollTimeout < 0 {
		return fmt.Errorf("worker.poll_timeout must be non-negative")
	}
	if config.Worker.Rate < 0 {
		return fmt.Errorf("worker.rate must be non-negative")
	}
	if config.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries must be non-negative")
	}
	if config.Worker.RetryBackoffMax > 0 && config.Worker.RetryBackoffMax < config.Worker.RetryBackoff {
		return fmt.Errorf("worker.retry_backoff_max must be >= worker.retry_backoff")
	}

	// Sink configuration
	switch config.Sink.Type {
	case "", SinkNone:
	case SinkKafka:
		if len(config.Sink.Kafka.Brokers) == 0 {
			return fmt.Errorf("sink.kafka.brokers is required when sink.type is 'kafka'")
		}
		if config.Sink.Kafka.Topic == "" {
			return fmt.Errorf("sink.kafka.topic is required when sink.type is 'kafka'")
		}
	case SinkDynamoDB:
		if config.Sink.DynamoDB.Region == "" {
			return fmt.Errorf("sink.dynamodb.region is required when sink.type is 'dynamodb'")
		}
		if config.Sink.DynamoDB.TableName == "" {
			return fmt.Errorf("sink.dynamodb.table_name is required when sink.type is 'dynamodb'")
		}
	case SinkMySQL:
		if config.Sink.MySQL.Host == "" {
			return fmt.Errorf("sink.mysql.host is required when sink.type is 'mysql'")
		}
		if config.Sink.MySQL.Port <= 0 || config.Sink.MySQL.Port > 65535 {
			return fmt.Errorf("sink.mysql.port must be between 1 and 65535")
		}
		if config.Sink.MySQL.Database == "" {
			return fmt.Errorf("sink.mysql.database is required when sink.type is 'mysql'")
		}
		if config.Sink.MySQL.Username == "" {
			return fmt.Errorf("sink.mysql.username is required when sink.type is 'mysql'")
		}
		if config.Sink.MySQL.Table == "" {
			return fmt.Errorf("sink.mysql.table is required when sink.type is 'mysql'")
		}
	default:
		return fmt.Errorf("sink.type must be 'none', 'kafka', 'dynamodb', or 'mysql'")
	}

	return nil
}
