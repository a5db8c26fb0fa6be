package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Reading is one timestamped sensor observation
type Reading struct {
	Sensor     SensorKind `json:"sensor"`
	Value      float64    `json:"value"`
	ObservedAt time.Time  `json:"observed_at"`
}

// ReadingInput is the wire format of a reading (Kafka message value or HTTP body).
// A missing value is a sensor dropout and decodes to NaN.
type ReadingInput struct {
	Sensor     string   `json:"sensor"`
	Value      *float64 `json:"value"`
	ObservedAt string   `json:"observed_at,omitempty"`
}

// Validation errors
var (
	ErrFutureTimestamp  = errors.New("observed_at cannot be in the future")
	ErrInvalidTimestamp = errors.New("invalid timestamp format")
	ErrInvalidPayload   = errors.New("invalid reading payload")
)

// ParseReadingInput decodes a reading payload: a JSON reading object, a bare
// number, or null for a dropout.
func ParseReadingInput(data []byte) (ReadingInput, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ReadingInput{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	var input ReadingInput
	switch {
	case data[0] == '{':
		if err := json.Unmarshal(data, &input); err != nil {
			return ReadingInput{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	case string(data) == "null":
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return ReadingInput{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		input.Value = &v
	}
	return input, nil
}

// SupportedTimestampFormats lists formats we attempt to parse
var SupportedTimestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.UnixDate,
}

// maxClockSkew bounds how far ahead of the local clock a device timestamp may be
const maxClockSkew = time.Minute

// ToReading converts wire input into a Reading, defaulting observedAt to now
func (in ReadingInput) ToReading(now time.Time) (Reading, error) {
	kind, err := ParseSensorKind(in.Sensor)
	if err != nil {
		return Reading{}, err
	}

	r := Reading{
		Sensor:     kind,
		Value:      math.NaN(),
		ObservedAt: now.UTC(),
	}
	if in.Value != nil {
		r.Value = *in.Value
	}

	if strings.TrimSpace(in.ObservedAt) != "" {
		ts, err := ParseTimestamp(in.ObservedAt)
		if err != nil {
			return Reading{}, err
		}
		r.ObservedAt = ts
	}

	if err := r.Validate(now); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate checks the reading against the local clock. Non-finite values are
// valid: they classify as unknown downstream.
func (r Reading) Validate(now time.Time) error {
	if !r.Sensor.IsValid() {
		return ErrInvalidSensorKind
	}
	if r.ObservedAt.After(now.Add(maxClockSkew)) {
		return ErrFutureTimestamp
	}
	return nil
}

// HasValue reports whether the reading carries a finite measurement
func (r Reading) HasValue() bool {
	return !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// ParseTimestamp attempts to parse a timestamp string into time.Time
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)

	for _, format := range SupportedTimestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}
