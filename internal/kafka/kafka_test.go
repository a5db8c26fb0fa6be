package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"pondwatch/internal/config"
	"pondwatch/internal/models"
)

// skipIfNoKafka skips the test if Kafka is not available
func skipIfNoKafka(t *testing.T) {
	if os.Getenv("KAFKA_TEST") != "1" {
		t.Skip("Skipping Kafka integration test. Set KAFKA_TEST=1 to run.")
	}
}

// MockWriter records written messages and fails the first failures writes
type MockWriter struct {
	mu       sync.Mutex
	written  []kafka.Message
	failures int
	calls    int
	closed   bool
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return errors.New("leader not available")
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *MockWriter) Close() error {
	m.closed = true
	return nil
}

func testEvent() *models.AlertEvent {
	return &models.AlertEvent{
		ID:        "alert-1",
		Sensor:    models.SensorTemperature,
		Value:     29.5,
		Band:      models.BandBad,
		Message:   "ALERT! TEMPERATURE is out of range. Current: 29.5. Threshold: 24 - 27",
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testProducerConfig() config.ProducerConfig {
	return config.ProducerConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func TestDecodeReading(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		msg       kafka.Message
		wantErr   bool
		sensor    models.SensorKind
		value     float64
		nan       bool
		timestamp time.Time
	}{
		{
			name:   "json object",
			msg:    kafka.Message{Value: []byte(`{"sensor":"pH","value":7.2}`)},
			sensor: models.SensorPH, value: 7.2, timestamp: now,
		},
		{
			name:   "bare number keyed by sensor",
			msg:    kafka.Message{Key: []byte("temperature"), Value: []byte(" 26.5 ")},
			sensor: models.SensorTemperature, value: 26.5, timestamp: now,
		},
		{
			name:   "null value is a dropout",
			msg:    kafka.Message{Key: []byte("ammonia"), Value: []byte("null")},
			sensor: models.SensorAmmonia, nan: true, timestamp: now,
		},
		{
			name:   "observed_at from payload",
			msg:    kafka.Message{Value: []byte(`{"sensor":"fishBehavior","value":4,"observed_at":"2025-06-01T11:59:00Z"}`)},
			sensor: models.SensorSurfaceRespiration, value: 4,
			timestamp: time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC),
		},
		{
			name:   "observed_at from message time",
			msg:    kafka.Message{Key: []byte("ph"), Value: []byte("7"), Time: now.Add(-time.Minute)},
			sensor: models.SensorPH, value: 7, timestamp: now.Add(-time.Minute),
		},
		{name: "empty", msg: kafka.Message{Key: []byte("ph")}, wantErr: true},
		{name: "garbage", msg: kafka.Message{Key: []byte("ph"), Value: []byte("abc")}, wantErr: true},
		{name: "unknown sensor", msg: kafka.Message{Key: []byte("turbidity"), Value: []byte("3")}, wantErr: true},
		{name: "broken json", msg: kafka.Message{Value: []byte(`{"sensor":`)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeReading(tt.msg, now)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMessage) {
					t.Fatalf("expected ErrInvalidMessage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Sensor != tt.sensor {
				t.Errorf("sensor = %q, want %q", got.Sensor, tt.sensor)
			}
			if tt.nan {
				if !math.IsNaN(got.Value) {
					t.Errorf("expected NaN, got %v", got.Value)
				}
			} else if got.Value != tt.value {
				t.Errorf("value = %v, want %v", got.Value, tt.value)
			}
			if !got.ObservedAt.Equal(tt.timestamp) {
				t.Errorf("observed_at = %v, want %v", got.ObservedAt, tt.timestamp)
			}
		})
	}
}

func TestProducerPublish(t *testing.T) {
	w := &MockWriter{}
	p := newProducer("pond.alerts", testProducerConfig(), []messageWriter{w})

	if err := p.Record(context.Background(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(w.written) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.written))
	}
	msg := w.written[0]
	if string(msg.Key) != "temperature" {
		t.Errorf("key = %q", msg.Key)
	}

	var decoded models.AlertEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != "alert-1" || decoded.Value != 29.5 {
		t.Errorf("unexpected payload: %+v", decoded)
	}

	if stats := p.Stats(); stats.MessagesSent != 1 || stats.BytesWritten == 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestProducerRetries(t *testing.T) {
	w := &MockWriter{failures: 2}
	p := newProducer("pond.alerts", testProducerConfig(), []messageWriter{w})

	if err := p.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if w.calls != 3 {
		t.Errorf("expected 3 write attempts, got %d", w.calls)
	}
}

func TestProducerGivesUp(t *testing.T) {
	w := &MockWriter{failures: 10}
	p := newProducer("pond.alerts", testProducerConfig(), []messageWriter{w})

	if err := p.Publish(context.Background(), testEvent()); err == nil {
		t.Fatal("expected error")
	}
	if w.calls != 3 {
		t.Errorf("expected 3 write attempts, got %d", w.calls)
	}
	if p.Stats().MessagesFailed != 1 {
		t.Errorf("expected 1 failed message, got %d", p.Stats().MessagesFailed)
	}
}

func TestProducerClose(t *testing.T) {
	w := &MockWriter{}
	p := newProducer("pond.alerts", testProducerConfig(), []messageWriter{w})

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !w.closed {
		t.Error("writer not closed")
	}

	if err := p.Publish(context.Background(), testEvent()); err != ErrProducerClosed {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestNewProducerValidation(t *testing.T) {
	if _, err := NewProducer(nil, "t", config.ProducerConfig{}); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewProducer([]string{"localhost:9092"}, "", config.ProducerConfig{}); err == nil {
		t.Error("expected error without topic")
	}
}

func TestProducerIntegration(t *testing.T) {
	skipIfNoKafka(t)

	cfg := config.Default()
	producer, err := NewProducer([]string{"localhost:9092"}, "pond.alerts.test", cfg.Kafka.Producer)
	if err != nil {
		t.Fatalf("failed to create producer: %v", err)
	}
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := producer.Publish(ctx, testEvent()); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
}

func TestProducerHealthCheckWithoutBrokers(t *testing.T) {
	p := newProducer("pond.alerts", testProducerConfig(), []messageWriter{&MockWriter{}})
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Error("expected error without brokers")
	}
}
