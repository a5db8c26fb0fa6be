package thresholds

import (
	"math"
	"strconv"

	"pondwatch/internal/models"
)

// Band is a named numeric range. Infinite bounds are expressed with math.Inf;
// inclusivity flags are ignored on infinite bounds.
type Band struct {
	Name          string
	Low           float64
	High          float64
	LowInclusive  bool
	HighInclusive bool
}

// Contains reports whether v falls inside the band
func (b Band) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}

	if !math.IsInf(b.Low, -1) {
		if v < b.Low || (v == b.Low && !b.LowInclusive) {
			return false
		}
	}
	if !math.IsInf(b.High, 1) {
		if v > b.High || (v == b.High && !b.HighInclusive) {
			return false
		}
	}
	return true
}

// String renders the band in interval notation, e.g. "good [24, 27]"
func (b Band) String() string {
	lo, hi := "(", ")"
	if b.LowInclusive && !math.IsInf(b.Low, -1) {
		lo = "["
	}
	if b.HighInclusive && !math.IsInf(b.High, 1) {
		hi = "]"
	}
	return b.Name + " " + lo + FormatValue(b.Low) + ", " + FormatValue(b.High) + hi
}

// Threshold converts the band to its wire form
func (b Band) Threshold() models.Threshold {
	t := models.Threshold{
		Name:          b.Name,
		LowInclusive:  b.LowInclusive,
		HighInclusive: b.HighInclusive,
	}
	if !math.IsInf(b.Low, 0) {
		low := b.Low
		t.Low = &low
	}
	if !math.IsInf(b.High, 0) {
		high := b.High
		t.High = &high
	}
	return t
}

// FormatValue prints a value with full precision and no forced rounding
func FormatValue(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsInf(v, 1):
		return "+Inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isBandName(name string) bool {
	switch name {
	case models.BandGood, models.BandModerate, models.BandBad, models.BandUnknown:
		return true
	default:
		return false
	}
}

// Constructors used by calibrations

func below(name string, high float64, inclusive bool) Band {
	return Band{Name: name, Low: math.Inf(-1), High: high, HighInclusive: inclusive}
}

func above(name string, low float64, inclusive bool) Band {
	return Band{Name: name, Low: low, High: math.Inf(1), LowInclusive: inclusive}
}

func between(name string, low, high float64, lowInclusive, highInclusive bool) Band {
	return Band{Name: name, Low: low, High: high, LowInclusive: lowInclusive, HighInclusive: highInclusive}
}
