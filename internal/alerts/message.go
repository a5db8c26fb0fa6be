package alerts

import (
	"fmt"
	"strings"

	"pondwatch/internal/models"
	"pondwatch/internal/thresholds"
)

// FormatMessage renders the SMS body for a sensor out of range. rangeBand is
// the acceptable range shown to the operator.
func FormatMessage(sensor models.SensorKind, value float64, rangeBand thresholds.Band) string {
	return fmt.Sprintf("ALERT! %s is out of range. Current: %s. Threshold: %s - %s",
		strings.ToUpper(string(sensor)),
		thresholds.FormatValue(value),
		thresholds.FormatValue(rangeBand.Low),
		thresholds.FormatValue(rangeBand.High),
	)
}
