package models

import (
	"errors"
	"strings"
)

// SensorKind identifies one of the pond sensors
type SensorKind string

const (
	SensorTemperature        SensorKind = "temperature"
	SensorPH                 SensorKind = "ph"
	SensorAmmonia            SensorKind = "ammonia"
	SensorDissolvedOxygen    SensorKind = "dissolvedOxygen"
	SensorSurfaceRespiration SensorKind = "surfaceRespiration"
)

// ErrInvalidSensorKind is returned when a sensor name is not part of the closed set
var ErrInvalidSensorKind = errors.New("invalid sensor kind")

// AllSensorKinds lists every supported kind in display order
var AllSensorKinds = []SensorKind{
	SensorTemperature,
	SensorPH,
	SensorAmmonia,
	SensorDissolvedOxygen,
	SensorSurfaceRespiration,
}

// sensorAliases maps lower-cased names found in the realtime database to kinds.
// fishBehavior is the dashboard name for the surface-respiration counter.
var sensorAliases = map[string]SensorKind{
	"temperature":         SensorTemperature,
	"temp":                SensorTemperature,
	"ph":                  SensorPH,
	"ammonia":             SensorAmmonia,
	"dissolvedoxygen":     SensorDissolvedOxygen,
	"dissolved_oxygen":    SensorDissolvedOxygen,
	"do":                  SensorDissolvedOxygen,
	"surfacerespiration":  SensorSurfaceRespiration,
	"surface_respiration": SensorSurfaceRespiration,
	"fishbehavior":        SensorSurfaceRespiration,
}

// ParseSensorKind resolves a sensor name case-insensitively
func ParseSensorKind(name string) (SensorKind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if kind, ok := sensorAliases[key]; ok {
		return kind, nil
	}
	return "", ErrInvalidSensorKind
}

// IsValid reports whether the kind belongs to the supported set
func (k SensorKind) IsValid() bool {
	switch k {
	case SensorTemperature, SensorPH, SensorAmmonia, SensorDissolvedOxygen, SensorSurfaceRespiration:
		return true
	default:
		return false
	}
}

// Unit returns the display unit of the sensor
func (k SensorKind) Unit() string {
	switch k {
	case SensorTemperature:
		return "°C"
	case SensorAmmonia, SensorDissolvedOxygen:
		return "mg/L"
	case SensorSurfaceRespiration:
		return "detections/min"
	default:
		return ""
	}
}

func (k SensorKind) String() string { return string(k) }
