package blockingdeque

import (
	"time"
)

// Config represents the root configuration for the deque client.
type Config struct {
	// Store contains configuration for the remote list store.
	Store StoreConfig `yaml:"store" json:"store"`

	// Worker contains defaults for queue workers created with Client.WorkerConfig.
	Worker WorkerConfig `yaml:"worker" json:"worker"`

	// Sink selects where workers export elements. Defaults to none.
	Sink SinkConfig `yaml:"sink" json:"sink"`

	// Metrics toggles prometheus collection for commands and workers.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// StoreConfig contains configuration for the remote list store.
type StoreConfig struct {
	// Type specifies the store backend: "redis" or "memory".
	// The memory backend keeps lists in-process and is not shared between processes.
	Type string `yaml:"type" json:"type"`

	// Endpoints is a list of Redis endpoints.
	// For single-node Redis, use a single endpoint.
	// For cluster mode, provide all cluster endpoints.
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// ClusterMode indicates whether to use Redis cluster mode.
	// Multi-queue operations then require all queue names in one hash slot.
	ClusterMode bool `yaml:"cluster_mode" json:"cluster_mode"`

	// Password is the authentication password for Redis.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the Redis database number (0-15). Only used in non-cluster mode.
	DB int `yaml:"db,omitempty" json:"db,omitempty"`

	// MaxRetries is the maximum number of retries for failed commands.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// PoolSize is the connection pool size per node. Every blocked take or
	// poll holds one connection for the length of its wait.
	PoolSize int `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`

	// MinIdleConns is the minimum number of idle connections in the pool.
	MinIdleConns int `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`

	// DialTimeout is the timeout for establishing connections.
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`

	// ReadTimeout is the timeout for reads of non-blocking commands.
	// Blocking commands extend it by their own timeout.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`

	// WriteTimeout is the timeout for write operations.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	// PollTimeout bounds each blocking wait for an element. A worker checks
	// for Stop between waits.
	PollTimeout time.Duration `yaml:"poll_timeout" json:"poll_timeout"`

	// Rate is the maximum number of elements handled per second.
	Rate int `yaml:"rate" json:"rate"`

	// MaxRetries is how many times a failing element is retried before it
	// is moved to the dead-letter queue.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RetryBackoff is the base duration for exponential backoff retries.
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`

	// RetryBackoffMax caps the backoff between retries.
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max" json:"retry_backoff_max"`

	// DeadLetterQueue receives elements that exhausted their retries.
	// Defaults to "<queue>:dead".
	DeadLetterQueue string `yaml:"dead_letter_queue,omitempty" json:"dead_letter_queue,omitempty"`

	// ProcessingQueue holds elements while they are being handled.
	// Defaults to "<queue>:processing".
	ProcessingQueue string `yaml:"processing_queue,omitempty" json:"processing_queue,omitempty"`
}

// SinkConfig selects and configures the export sink.
type SinkConfig struct {
	// Type is one of "none", "kafka", "dynamodb" or "mysql".
	Type string `yaml:"type" json:"type"`

	Kafka    KafkaConfig    `yaml:"kafka,omitempty" json:"kafka,omitempty"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	MySQL    MySQLConfig    `yaml:"mysql,omitempty" json:"mysql,omitempty"`
}

// KafkaConfig contains configuration for the Kafka sink.
type KafkaConfig struct {
	// Brokers is a list of Kafka broker addresses (e.g., ["localhost:9092"]).
	Brokers []string `yaml:"brokers" json:"brokers"`

	// Topic receives one message per element, keyed by queue name.
	Topic string `yaml:"topic" json:"topic"`

	// BatchSize is the batch size for the Kafka producer.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// BatchTimeout is the timeout for batching messages.
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`

	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// RequiredAcks is the number of acknowledgments required (0, 1, or -1 for all).
	RequiredAcks int `yaml:"required_acks" json:"required_acks"`
}

// DynamoDBConfig contains configuration for the DynamoDB sink.
type DynamoDBConfig struct {
	Region    string `yaml:"region" json:"region"`
	TableName string `yaml:"table_name" json:"table_name"`

	// Endpoint overrides the service URL, for example LocalStack.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Static credentials. When unset the default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// MySQLConfig contains configuration for the MySQL sink.
type MySQLConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// Table must have columns (id, queue, payload, created_at).
	Table string `yaml:"table" json:"table"`

	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// MetricsConfig toggles prometheus collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Namespace prefixes every metric name. Defaults to "redis_deque".
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Type:         "redis",
			Endpoints:    []string{"localhost:6379"},
			ClusterMode:  false,
			MaxRetries:   3,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Worker: WorkerConfig{
			PollTimeout:     5 * time.Second,
			Rate:            50,
			MaxRetries:      3,
			RetryBackoff:    500 * time.Millisecond,
			RetryBackoffMax: 10 * time.Second,
		},
		Sink: SinkConfig{
			Type: "none",
			Kafka: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "redis-deque-export",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1, // All replicas
			},
			MySQL: MySQLConfig{
				Host:              "localhost",
				Port:              3306,
				Table:             "queue_exports",
				MaxOpenConns:      10,
				MaxIdleConns:      2,
				ConnMaxLifetime:   5 * time.Minute,
				ConnectionTimeout: 10 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "redis_deque",
		},
	}
}
