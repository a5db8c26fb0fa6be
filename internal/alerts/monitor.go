package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	"pondwatch/internal/logger"
	"pondwatch/internal/metrics"
	"pondwatch/internal/models"
	"pondwatch/internal/notify"
	"pondwatch/internal/thresholds"
)

// Recorder keeps a copy of emitted alert events (audit topic, database, ...)
type Recorder interface {
	Name() string
	Record(ctx context.Context, event *models.AlertEvent) error
}

// Update is published after every evaluated reading
type Update struct {
	Status SensorStatus       `json:"status"`
	Alert  *models.AlertEvent `json:"alert,omitempty"`
}

// Publisher fans updates out to live consumers. Publish must not block.
type Publisher interface {
	Publish(update Update)
}

// MonitorConfig holds monitor configuration
type MonitorConfig struct {
	Evaluator   *Evaluator
	Dispatcher  notify.Dispatcher
	Recorders   []Recorder
	Publisher   Publisher
	SendTimeout time.Duration
}

// Monitor runs the evaluate -> dispatch -> record pipeline for each reading.
// Evaluation happens on the caller's goroutine; delivery of an alert runs in
// the background so a slow gateway never holds up the next reading.
type Monitor struct {
	evaluator   *Evaluator
	dispatcher  notify.Dispatcher
	recorders   []Recorder
	publisher   Publisher
	sendTimeout time.Duration

	deliveries sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewMonitor creates a monitor. A nil dispatcher only logs alerts.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = notify.NewLogDispatcher()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		evaluator:   cfg.Evaluator,
		dispatcher:  cfg.Dispatcher,
		recorders:   cfg.Recorders,
		publisher:   cfg.Publisher,
		sendTimeout: cfg.SendTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Evaluator returns the monitor's evaluator
func (m *Monitor) Evaluator() *Evaluator { return m.evaluator }

// Handle evaluates one reading and, if it raised an alert, hands it to a
// background delivery that sends and records it. Only classification errors
// are returned: a failed send is logged and counted, never propagated.
func (m *Monitor) Handle(_ context.Context, reading models.Reading) error {
	log := logger.WithSensor("monitor", string(reading.Sensor))

	event, outcome, err := m.evaluator.evaluate(reading)
	if err != nil {
		if errors.Is(err, thresholds.ErrUnknownSensor) {
			log.Debug().Float64("value", reading.Value).Msg("no thresholds for sensor, reading not evaluated")
		} else {
			log.Error().Err(err).Msg("evaluation failed")
		}
		return err
	}

	m.publish(reading.Sensor, event)

	if outcome == OutcomeSuppressed {
		log.Debug().Float64("value", reading.Value).Msg("sensor still bad, alert suppressed by cooldown")
		return nil
	}
	if event == nil {
		return nil
	}

	log.Warn().
		Str("alert_id", event.ID).
		Float64("value", event.Value).
		Msg("sensor out of range")

	m.deliver(event)
	return nil
}

// deliver sends and records an event off the caller's goroutine. State was
// committed by evaluate, so a slow or failed send cannot cause a duplicate.
func (m *Monitor) deliver(event *models.AlertEvent) {
	m.deliveries.Add(1)
	go func() {
		defer m.deliveries.Done()
		m.dispatch(m.ctx, event)
		m.record(m.ctx, event)
	}()
}

// Wait blocks until every started delivery has finished
func (m *Monitor) Wait() {
	m.deliveries.Wait()
}

// Close waits for in-flight deliveries until ctx is done, then cancels the
// rest and waits for them to return.
func (m *Monitor) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.deliveries.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

func (m *Monitor) publish(kind models.SensorKind, event *models.AlertEvent) {
	if m.publisher == nil {
		return
	}
	status, ok := m.evaluator.Status(kind)
	if !ok {
		return
	}
	m.publisher.Publish(Update{Status: status, Alert: event})
}

func (m *Monitor) dispatch(ctx context.Context, event *models.AlertEvent) {
	log := logger.WithSensor("monitor", string(event.Sensor))

	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	if err := m.dispatcher.Send(sendCtx, event.Message); err != nil {
		log.Error().
			Err(err).
			Str("alert_id", event.ID).
			Str("body", event.Message).
			Msg("failed to send alert")
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return
	}

	log.Info().
		Str("alert_id", event.ID).
		Str("body", event.Message).
		Msg("alert sent")
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

func (m *Monitor) record(ctx context.Context, event *models.AlertEvent) {
	log := logger.WithSensor("monitor", string(event.Sensor))

	recordCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	for _, r := range m.recorders {
		if err := r.Record(recordCtx, event); err != nil {
			log.Error().
				Err(err).
				Str("recorder", r.Name()).
				Str("alert_id", event.ID).
				Msg("failed to record alert")
			metrics.AlertsRecordedTotal.WithLabelValues(r.Name(), "failed").Inc()
			continue
		}
		metrics.AlertsRecordedTotal.WithLabelValues(r.Name(), "ok").Inc()
	}
}
