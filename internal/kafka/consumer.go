package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"pondwatch/internal/logger"
	"pondwatch/internal/metrics"
	"pondwatch/internal/models"
)

// ReadingSink accepts decoded readings, typically the worker pool
type ReadingSink interface {
	Submit(reading models.Reading) error
}

// ErrInvalidMessage is returned for messages that do not decode to a reading
var ErrInvalidMessage = errors.New("invalid reading message")

// Consumer reads sensor readings from a Kafka topic
type Consumer struct {
	reader       *kafka.Reader
	sink         ReadingSink
	retryBackoff time.Duration
}

// NewConsumer creates a consumer group reader on topic
func NewConsumer(brokers []string, topic, groupID string, sink ReadingSink) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // commit synchronously after each reading is queued
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{
		reader:       reader,
		sink:         sink,
		retryBackoff: 50 * time.Millisecond,
	}, nil
}

// Run consumes until ctx is cancelled. A reading is committed once the sink
// has accepted it; undecodable messages are logged and skipped.
func (c *Consumer) Run(ctx context.Context) error {
	log := logger.WithComponent("kafka_consumer")
	cfg := c.reader.Config()
	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("kafka consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		reading, err := DecodeReading(msg, time.Now())
		if err != nil {
			log.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("skipping invalid reading message")
			metrics.KafkaMessagesConsumedTotal.WithLabelValues("invalid").Inc()
			metrics.ReadingsIngestedTotal.WithLabelValues("kafka", "rejected").Inc()
		} else {
			if err := c.submit(ctx, reading); err != nil {
				return nil // context cancelled; message is redelivered
			}
			metrics.KafkaMessagesConsumedTotal.WithLabelValues("ok").Inc()
			metrics.ReadingsIngestedTotal.WithLabelValues("kafka", "accepted").Inc()
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit offset")
		}
	}
}

// submit applies backpressure: a full queue is retried rather than dropped
func (c *Consumer) submit(ctx context.Context, reading models.Reading) error {
	for {
		err := c.sink.Submit(reading)
		if err == nil {
			return nil
		}

		log := logger.WithComponent("kafka_consumer")
		log.Debug().Err(err).Msg("sink busy, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryBackoff):
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeReading converts a Kafka message into a Reading. The value is either a
// JSON reading object or a bare number, in which case the key names the sensor.
func DecodeReading(msg kafka.Message, now time.Time) (models.Reading, error) {
	input, err := models.ParseReadingInput(msg.Value)
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if input.Sensor == "" {
		input.Sensor = string(msg.Key)
	}
	if input.ObservedAt == "" && !msg.Time.IsZero() {
		input.ObservedAt = msg.Time.UTC().Format(time.RFC3339Nano)
	}

	reading, err := input.ToReading(now)
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return reading, nil
}
