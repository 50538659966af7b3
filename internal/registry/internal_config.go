package registry

import (
	"time"
)

// InternalConfig represents the internal configuration structure.
// This is a copy of the public Config type to avoid import cycles.
type InternalConfig struct {
	Store   InternalStoreConfig   `yaml:"store" json:"store"`
	Worker  InternalWorkerConfig  `yaml:"worker" json:"worker"`
	Sink    InternalSinkConfig    `yaml:"sink" json:"sink"`
	Metrics InternalMetricsConfig `yaml:"metrics" json:"metrics"`
}

// InternalStoreConfig contains configuration for the remote list store.
type InternalStoreConfig struct {
	Type         string        `yaml:"type" json:"type"`
	Endpoints    []string      `yaml:"endpoints" json:"endpoints"`
	ClusterMode  bool          `yaml:"cluster_mode" json:"cluster_mode"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db,omitempty" json:"db,omitempty"`
	MaxRetries   int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int           `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// InternalWorkerConfig contains defaults for queue workers.
type InternalWorkerConfig struct {
	PollTimeout     time.Duration `yaml:"poll_timeout" json:"poll_timeout"`
	Rate            int           `yaml:"rate" json:"rate"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max" json:"retry_backoff_max"`
	DeadLetterQueue string        `yaml:"dead_letter_queue,omitempty" json:"dead_letter_queue,omitempty"`
	ProcessingQueue string        `yaml:"processing_queue,omitempty" json:"processing_queue,omitempty"`
}

// InternalSinkConfig selects and configures the element export sink.
type InternalSinkConfig struct {
	Type     string                 `yaml:"type" json:"type"`
	Kafka    InternalKafkaConfig    `yaml:"kafka,omitempty" json:"kafka,omitempty"`
	DynamoDB InternalDynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	MySQL    InternalMySQLConfig    `yaml:"mysql,omitempty" json:"mysql,omitempty"`
}

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	BatchSize    int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks" json:"required_acks"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// InternalMySQLConfig contains MySQL-specific configuration.
type InternalMySQLConfig struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	Database          string        `yaml:"database" json:"database"`
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	Table             string        `yaml:"table" json:"table"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// InternalMetricsConfig toggles prometheus collection.
type InternalMetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}
