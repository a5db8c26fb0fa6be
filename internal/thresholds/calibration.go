package thresholds

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"pondwatch/internal/models"
)

// DefaultCalibration returns the field-calibrated thresholds for tilapia ponds.
// Dissolved oxygen has no default: it is display-only unless a deployment
// registers bands for it.
func DefaultCalibration() Calibration {
	return Calibration{
		// °C
		models.SensorTemperature: {
			below(models.BandBad, 22, false),
			between(models.BandModerate, 22, 24, true, false),
			between(models.BandGood, 24, 27, true, true),
			between(models.BandModerate, 27, 28, false, true),
			above(models.BandBad, 28, false),
		},
		// mg/L; zero or negative means the probe reported nothing
		models.SensorAmmonia: {
			below(models.BandUnknown, 0, true),
			between(models.BandGood, 0, 0.02, false, true),
			between(models.BandModerate, 0.02, 0.05, false, true),
			above(models.BandBad, 0.05, false),
		},
		models.SensorPH: {
			below(models.BandBad, 6.8, false),
			between(models.BandModerate, 6.8, 7.0, true, false),
			between(models.BandGood, 7.0, 7.5, true, true),
			between(models.BandModerate, 7.5, 7.7, false, true),
			above(models.BandBad, 7.7, false),
		},
		// detections/min
		models.SensorSurfaceRespiration: {
			below(models.BandGood, 3, true),
			above(models.BandBad, 3, false),
		},
	}
}

// BandSpec is the file form of a band. Omitted bounds are infinite.
type BandSpec struct {
	Name          string   `yaml:"name"`
	Low           *float64 `yaml:"low,omitempty"`
	High          *float64 `yaml:"high,omitempty"`
	LowInclusive  bool     `yaml:"low_inclusive,omitempty"`
	HighInclusive bool     `yaml:"high_inclusive,omitempty"`
}

// Band converts the spec to a Band
func (s BandSpec) Band() Band {
	b := Band{
		Name:          s.Name,
		Low:           math.Inf(-1),
		High:          math.Inf(1),
		LowInclusive:  s.LowInclusive,
		HighInclusive: s.HighInclusive,
	}
	if s.Low != nil {
		b.Low = *s.Low
	}
	if s.High != nil {
		b.High = *s.High
	}
	return b
}

// ParseCalibration decodes a YAML document mapping sensor names to band lists
func ParseCalibration(data []byte) (Calibration, error) {
	var raw map[string][]BandSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration: %w", err)
	}

	cal := make(Calibration, len(raw))
	for name, specs := range raw {
		kind, err := models.ParseSensorKind(name)
		if err != nil {
			return nil, &ConfigError{Sensor: models.SensorKind(name), Reason: "unsupported sensor kind"}
		}
		if _, dup := cal[kind]; dup {
			return nil, configErrorf(kind, "listed twice")
		}

		bands := make([]Band, 0, len(specs))
		for _, spec := range specs {
			bands = append(bands, spec.Band())
		}
		cal[kind] = bands
	}
	return cal, nil
}

// LoadCalibration reads a calibration file from disk
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration %s: %w", path, err)
	}
	return ParseCalibration(data)
}

// Merge returns base with every kind present in overrides replaced
func Merge(base, overrides Calibration) Calibration {
	out := make(Calibration, len(base)+len(overrides))
	for kind, bands := range base {
		out[kind] = bands
	}
	for kind, bands := range overrides {
		out[kind] = bands
	}
	return out
}

// Specs converts bands back to their file form
func Specs(bands []Band) []BandSpec {
	specs := make([]BandSpec, 0, len(bands))
	for _, b := range bands {
		spec := BandSpec{
			Name:          b.Name,
			LowInclusive:  b.LowInclusive && !math.IsInf(b.Low, 0),
			HighInclusive: b.HighInclusive && !math.IsInf(b.High, 0),
		}
		if !math.IsInf(b.Low, 0) {
			low := b.Low
			spec.Low = &low
		}
		if !math.IsInf(b.High, 0) {
			high := b.High
			spec.High = &high
		}
		specs = append(specs, spec)
	}
	return specs
}
