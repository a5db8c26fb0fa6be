package models

import (
	"time"
)

// Band names. Unknown marks a dropout or a "no data" region of a calibration.
const (
	BandGood     = "good"
	BandModerate = "moderate"
	BandBad      = "bad"
	BandUnknown  = "unknown"
)

// Threshold is the serialisable form of a calibrated band.
// Nil bounds are infinite.
type Threshold struct {
	Name          string   `json:"name"`
	Low           *float64 `json:"low"`
	High          *float64 `json:"high"`
	LowInclusive  bool     `json:"low_inclusive"`
	HighInclusive bool     `json:"high_inclusive"`
}

// AlertEvent is emitted when a sensor enters the bad band
type AlertEvent struct {
	ID        string     `json:"id"`
	Sensor    SensorKind `json:"sensor"`
	Value     float64    `json:"value"`
	Band      string     `json:"band"`
	Threshold Threshold  `json:"threshold"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}
