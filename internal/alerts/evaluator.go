package alerts

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pondwatch/internal/metrics"
	"pondwatch/internal/models"
	"pondwatch/internal/thresholds"
)

// State is the per-sensor alerting state
type State string

const (
	StateUnknown     State = "unknown"
	StateGood        State = "good"
	StateModerate    State = "moderate"
	StateBadNotified State = "bad-notified"
)

// Classifier is the subset of the threshold registry the evaluator needs
type Classifier interface {
	Classify(kind models.SensorKind, value float64) (thresholds.ClassificationResult, error)
	GoodBand(kind models.SensorKind) (thresholds.Band, bool)
}

// Outcome describes what Evaluate decided for a reading
type Outcome int

const (
	OutcomeNone       Outcome = iota // not bad, or no information
	OutcomeAlert                     // an AlertEvent was emitted
	OutcomeSuppressed                // bad, but still inside the cooldown
)

// sensorState is guarded by its own mutex; kinds never share state.
type sensorState struct {
	mu             sync.Mutex
	state          State
	lastNotifiedAt time.Time
	lastBand       string
	lastValue      float64
	lastSeen       time.Time
}

// Evaluator turns classified readings into alert events, at most one per
// bad episode per cooldown window.
type Evaluator struct {
	classifier Classifier
	cooldown   time.Duration
	now        func() time.Time
	newID      func() string
	states     map[models.SensorKind]*sensorState
}

// EvaluatorOption is a functional option for configuring the evaluator
type EvaluatorOption func(*Evaluator)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// WithIDGenerator replaces the uuid event ID generator
func WithIDGenerator(newID func() string) EvaluatorOption {
	return func(e *Evaluator) { e.newID = newID }
}

// NewEvaluator creates an evaluator. A cooldown of zero alerts on every bad reading.
func NewEvaluator(classifier Classifier, cooldown time.Duration, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		classifier: classifier,
		cooldown:   cooldown,
		now:        time.Now,
		newID:      uuid.NewString,
		states:     make(map[models.SensorKind]*sensorState, len(models.AllSensorKinds)),
	}
	for _, opt := range opts {
		opt(e)
	}

	// The set of kinds is closed, so the map is never written after this point.
	for _, kind := range models.AllSensorKinds {
		e.states[kind] = &sensorState{state: StateUnknown}
	}
	return e
}

// Evaluate classifies the reading and returns an AlertEvent when the sensor
// enters the bad band, or stays bad past the cooldown. The state change is
// committed before Evaluate returns, so callers send outside any lock.
func (e *Evaluator) Evaluate(reading models.Reading) (*models.AlertEvent, error) {
	event, _, err := e.evaluate(reading)
	return event, err
}

func (e *Evaluator) evaluate(reading models.Reading) (*models.AlertEvent, Outcome, error) {
	result, err := e.classifier.Classify(reading.Sensor, reading.Value)
	if err != nil {
		return nil, OutcomeNone, err
	}

	st, ok := e.states[reading.Sensor]
	if !ok {
		return nil, OutcomeNone, &thresholds.UnknownSensorError{Sensor: reading.Sensor}
	}

	metrics.ReadingsClassifiedTotal.WithLabelValues(string(reading.Sensor), result.Band).Inc()
	if reading.HasValue() {
		metrics.SensorValue.WithLabelValues(string(reading.Sensor)).Set(reading.Value)
	}

	now := e.now()

	st.mu.Lock()
	outcome := st.transition(result.Band, now, e.cooldown)
	st.lastBand = result.Band
	st.lastValue = reading.Value
	st.lastSeen = now
	st.mu.Unlock()

	switch outcome {
	case OutcomeSuppressed:
		metrics.AlertsSuppressedTotal.WithLabelValues(string(reading.Sensor)).Inc()
		return nil, outcome, nil
	case OutcomeAlert:
		metrics.AlertsEmittedTotal.WithLabelValues(string(reading.Sensor)).Inc()
		return e.newEvent(reading, result, now), outcome, nil
	default:
		return nil, outcome, nil
	}
}

// transition applies a classified band to the state machine. Caller holds s.mu.
func (s *sensorState) transition(band string, now time.Time, cooldown time.Duration) Outcome {
	switch band {
	case models.BandGood:
		s.state = StateGood
	case models.BandModerate:
		s.state = StateModerate
	case models.BandBad:
		if s.state != StateBadNotified || now.Sub(s.lastNotifiedAt) >= cooldown {
			s.state = StateBadNotified
			s.lastNotifiedAt = now
			return OutcomeAlert
		}
		return OutcomeSuppressed
	}
	// unknown: a dropout says nothing about the pond, keep the current state
	return OutcomeNone
}

func (e *Evaluator) newEvent(reading models.Reading, result thresholds.ClassificationResult, now time.Time) *models.AlertEvent {
	rangeBand := result.Matched
	if good, ok := e.classifier.GoodBand(reading.Sensor); ok {
		rangeBand = good
	}

	return &models.AlertEvent{
		ID:        e.newID(),
		Sensor:    reading.Sensor,
		Value:     reading.Value,
		Band:      result.Band,
		Threshold: result.Matched.Threshold(),
		Message:   FormatMessage(reading.Sensor, reading.Value, rangeBand),
		Timestamp: now.UTC(),
	}
}

// SensorStatus is a snapshot of one sensor's evaluation state
type SensorStatus struct {
	Sensor         models.SensorKind `json:"sensor"`
	State          State             `json:"state"`
	LastBand       string            `json:"last_band,omitempty"`
	LastValue      *float64          `json:"last_value,omitempty"`
	LastSeen       *time.Time        `json:"last_seen,omitempty"`
	LastNotifiedAt *time.Time        `json:"last_notified_at,omitempty"`
}

// Status returns the current state of kind
func (e *Evaluator) Status(kind models.SensorKind) (SensorStatus, bool) {
	st, ok := e.states[kind]
	if !ok {
		return SensorStatus{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	status := SensorStatus{
		Sensor:   kind,
		State:    st.state,
		LastBand: st.lastBand,
	}
	if !st.lastSeen.IsZero() {
		seen := st.lastSeen.UTC()
		status.LastSeen = &seen
		if st.lastBand != models.BandUnknown {
			v := st.lastValue
			status.LastValue = &v
		}
	}
	if !st.lastNotifiedAt.IsZero() {
		notified := st.lastNotifiedAt.UTC()
		status.LastNotifiedAt = &notified
	}
	return status, true
}

// Snapshot returns the status of every sensor kind in display order
func (e *Evaluator) Snapshot() []SensorStatus {
	out := make([]SensorStatus, 0, len(models.AllSensorKinds))
	for _, kind := range models.AllSensorKinds {
		if status, ok := e.Status(kind); ok {
			out = append(out, status)
		}
	}
	return out
}
