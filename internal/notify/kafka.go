package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	// ErrSinkClosed is returned when sending through a closed sink.
	ErrSinkClosed = errors.New("kafka sink is closed")
)

// KafkaSink publishes events to a Kafka topic, keyed by plan id so that
// events for one plan stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
	closed bool
	mu     sync.RWMutex
}

// KafkaSinkConfig holds configuration for the Kafka sink.
type KafkaSinkConfig struct {
	Brokers         []string
	Topic           string
	BatchSize       int
	BatchTimeout    time.Duration
	WriteTimeout    time.Duration
	RequiredAcks    int // 0, 1, or -1 (all)
	MaxMessageBytes int
}

// NewKafkaSink creates a new Kafka-backed event sink.
func NewKafkaSink(config KafkaSinkConfig) (*KafkaSink, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	log.Printf("[KAFKA] Initializing event sink...")
	log.Printf("[KAFKA] Brokers: %v", config.Brokers)
	log.Printf("[KAFKA] Topic: %s", config.Topic)

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

	return &KafkaSink{
		writer: writer,
		topic:  config.Topic,
	}, nil
}

// Send publishes one event.
func (s *KafkaSink) Send(ctx context.Context, event Event) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSinkClosed
	}
	s.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	message := kafka.Message{
		Key:   []byte(event.PlanID),
		Value: data,
		Time:  event.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}
