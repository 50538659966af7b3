// Package sink exports queue elements to external systems.
package sink

import (
	"fmt"

	"github.com/rzpsarthak13/redis-deque/internal/core"
	"github.com/rzpsarthak13/redis-deque/internal/registry"
)

// New creates the sink selected by config.Type.
// It returns a nil sink and nil error when no sink is configured.
func New(config registry.InternalSinkConfig) (core.Sink, error) {
	switch config.Type {
	case "", registry.SinkNone:
		return nil, nil

	case registry.SinkKafka:
		return NewKafkaSink(KafkaSinkConfig{
			Brokers:      config.Kafka.Brokers,
			Topic:        config.Kafka.Topic,
			BatchSize:    config.Kafka.BatchSize,
			BatchTimeout: config.Kafka.BatchTimeout,
			WriteTimeout: config.Kafka.WriteTimeout,
			RequiredAcks: config.Kafka.RequiredAcks,
		})

	case registry.SinkDynamoDB:
		return NewDynamoDBSink(
			config.DynamoDB.Region,
			config.DynamoDB.TableName,
			config.DynamoDB.Endpoint,
			config.DynamoDB.AccessKeyID,
			config.DynamoDB.SecretAccessKey,
		)

	case registry.SinkMySQL:
		return NewMySQLSink(MySQLSinkConfig{
			Host:              config.MySQL.Host,
			Port:              config.MySQL.Port,
			Database:          config.MySQL.Database,
			Username:          config.MySQL.Username,
			Password:          config.MySQL.Password,
			Table:             config.MySQL.Table,
			MaxOpenConns:      config.MySQL.MaxOpenConns,
			MaxIdleConns:      config.MySQL.MaxIdleConns,
			ConnMaxLifetime:   config.MySQL.ConnMaxLifetime,
			ConnectionTimeout: config.MySQL.ConnectionTimeout,
		})
	}
	return nil, fmt.Errorf("unsupported sink type: %s", config.Type)
}
