package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// ErrSinkClosed is returned when writing to a closed sink.
var ErrSinkClosed = errors.New("sink is closed")

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink exports queue elements to a Kafka topic. Messages are keyed by
// queue name so elements of one queue stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
	closed bool
	mu     sync.RWMutex
}

// KafkaSinkConfig holds configuration for the Kafka sink.
type KafkaSinkConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int // 0, 1, or -1 (all)
}

// NewKafkaSink creates a Kafka producer for the configured topic.
func NewKafkaSink(config KafkaSinkConfig) (*KafkaSink, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	log.Printf("[KAFKA] Initializing sink: brokers=%v topic=%s batch=%d acks=%d",
		config.Brokers, config.Topic, config.BatchSize, config.RequiredAcks)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
		Async:        false,
	}
	return newKafkaSink(writer, config.Topic), nil
}

func newKafkaSink(writer messageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

// Write produces one message for an element taken from queue.
func (s *KafkaSink) Write(ctx context.Context, queue string, payload []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	id := uuid.NewString()
	message := kafka.Message{
		Key:   []byte(queue),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "queue", Value: []byte(queue)},
			{Key: "id", Value: []byte(id)},
		},
	}

	start := time.Now()
	if err := s.writer.WriteMessages(ctx, message); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to write element %s from %s to topic %s: %v (Duration: %v)",
			id, queue, s.topic, err, time.Since(start))
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	log.Printf("[KAFKA] Produced element %s from %s to topic %s (%d bytes, %v)",
		id, queue, s.topic, len(payload), time.Since(start))
	return nil
}

// Close flushes pending messages and closes the writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	log.Printf("[KAFKA] Sink for topic %s closed", s.topic)
	return nil
}
