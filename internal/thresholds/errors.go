package thresholds

import (
	"errors"
	"fmt"

	"pondwatch/internal/models"
)

var (
	// ErrConfig is matched by every *ConfigError
	ErrConfig = errors.New("invalid threshold configuration")

	// ErrUnknownSensor is matched by every *UnknownSensorError
	ErrUnknownSensor = errors.New("unknown sensor")
)

// ConfigError reports a malformed band configuration for a sensor kind
type ConfigError struct {
	Sensor models.SensorKind
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("thresholds for %q: %s", e.Sensor, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// UnknownSensorError is returned when classifying a sensor kind with no bands
type UnknownSensorError struct {
	Sensor models.SensorKind
}

func (e *UnknownSensorError) Error() string {
	return fmt.Sprintf("no thresholds registered for sensor %q", e.Sensor)
}

func (e *UnknownSensorError) Is(target error) bool { return target == ErrUnknownSensor }

func configErrorf(sensor models.SensorKind, format string, args ...interface{}) error {
	return &ConfigError{Sensor: sensor, Reason: fmt.Sprintf(format, args...)}
}
