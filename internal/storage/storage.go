package storage

import (
	"context"
	"errors"

	"pondwatch/internal/models"
)

// ErrClosed is returned after Close
var ErrClosed = errors.New("alert log is closed")

// AlertLog persists alert events and serves the recent history.
type AlertLog interface {
	Name() string
	Record(ctx context.Context, event *models.AlertEvent) error
	Recent(ctx context.Context, sensor models.SensorKind, limit int) ([]models.AlertEvent, error)
	Close() error
}

// MaxRecent caps the rows returned by Recent
const MaxRecent = 500

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecent {
		return MaxRecent
	}
	return limit
}
