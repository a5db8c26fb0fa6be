package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lib/pq"

	"pondwatch/internal/logger"
	"pondwatch/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS alert_events (
	id          UUID PRIMARY KEY,
	sensor      TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	band        TEXT NOT NULL,
	threshold   JSONB,
	message     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_events_sensor_created
	ON alert_events (sensor, created_at DESC);
`

// Postgres is an alert log backed by the alert_events table
type Postgres struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewPostgres opens the database, checks the connection and ensures the schema
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	p := &Postgres{db: db}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	if err := p.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log := logger.WithComponent("postgres")
	log.Info().Msg("alert log connected")
	return p, nil
}

// EnsureSchema creates the alert_events table if needed
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create alert_events: %w", err)
	}
	return nil
}

// Ping checks the connection
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Name identifies the recorder
func (p *Postgres) Name() string { return "postgres" }

// Record inserts an alert event. Re-recording an existing id is a no-op.
func (p *Postgres) Record(ctx context.Context, event *models.AlertEvent) error {
	if p.closed.Load() {
		return ErrClosed
	}

	threshold, err := json.Marshal(event.Threshold)
	if err != nil {
		return fmt.Errorf("encode threshold: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO alert_events (id, sensor, value, band, threshold, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, string(event.Sensor), event.Value, event.Band, threshold, event.Message, event.Timestamp.UTC(),
	)
	if isUniqueViolation(err) {
		log := logger.WithComponent("postgres")
		log.Debug().Str("alert_id", event.ID).Msg("alert already recorded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", event.ID, err)
	}
	return nil
}

// Recent returns the newest alerts, optionally filtered by sensor
func (p *Postgres) Recent(ctx context.Context, sensor models.SensorKind, limit int) ([]models.AlertEvent, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, sensor, value, band, threshold, message, created_at
		 FROM alert_events
		 WHERE $1 = '' OR sensor = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		string(sensor), clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var events []models.AlertEvent
	for rows.Next() {
		var (
			event     models.AlertEvent
			sensorStr string
			threshold []byte
		)
		if err := rows.Scan(&event.ID, &sensorStr, &event.Value, &event.Band, &threshold, &event.Message, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		event.Sensor = models.SensorKind(sensorStr)
		if len(threshold) > 0 {
			if err := json.Unmarshal(threshold, &event.Threshold); err != nil {
				return nil, fmt.Errorf("decode threshold for %s: %w", event.ID, err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Close closes the database pool
func (p *Postgres) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
