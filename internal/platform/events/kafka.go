// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of [*kafka.Writer] used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher streams events to a Kafka topic, keyed by user id so a
// user's events stay ordered within one partition.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewKafkaWriter configures an asynchronous writer for the security topic.
func NewKafkaWriter(brokers []string, topic string, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("kafka_write_failed",
					slog.Any("error", err),
					slog.Int("message_count", len(messages)),
				)
			}
		},
	}
}

// NewKafkaPublisher wraps a writer created by [NewKafkaWriter].
func NewKafkaPublisher(writer messageWriter, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish implements [Publisher].
func (publisher *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	event.Phone = MaskPhone(event.Phone)

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to encode %s: %w", event.Type, err)
	}

	key := event.UserID
	if key == "" {
		key = event.Phone
	}

	message := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	if err := publisher.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("events: failed to publish %s: %w", event.Type, err)
	}

	publisher.logger.DebugContext(ctx, "security_event_published", slog.String("type", event.Type))
	return nil
}

// Close flushes pending messages.
func (publisher *KafkaPublisher) Close() error {
	return publisher.writer.Close()
}
