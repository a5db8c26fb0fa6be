package storage

import (
	"context"
	"sync"

	"pondwatch/internal/models"
)

// Memory is an in-process alert log holding the newest events. It backs
// the alert history endpoint when Postgres is not configured.
type Memory struct {
	mu       sync.RWMutex
	events   []models.AlertEvent
	capacity int
	closed   bool
}

// NewMemory creates a ring holding up to capacity events
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = MaxRecent
	}
	return &Memory{capacity: capacity}
}

// Name identifies the recorder
func (m *Memory) Name() string { return "memory" }

// Record appends an event, evicting the oldest when full
func (m *Memory) Record(ctx context.Context, event *models.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, e := range m.events {
		if e.ID == event.ID {
			return nil
		}
	}

	m.events = append(m.events, *event)
	if len(m.events) > m.capacity {
		m.events = m.events[len(m.events)-m.capacity:]
	}
	return nil
}

// Recent returns the newest events first
func (m *Memory) Recent(ctx context.Context, sensor models.SensorKind, limit int) ([]models.AlertEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	limit = clampLimit(limit)
	var out []models.AlertEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if sensor == "" || m.events[i].Sensor == sensor {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

// Close marks the log closed
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
