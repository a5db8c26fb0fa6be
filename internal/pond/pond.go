// Package pond derives the farm operation figures shown next to the sensor
// readings: feed conversion ratio, daily feed and aeration time.
package pond

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUndefined is returned when inputs do not define a figure
var ErrUndefined = errors.New("not enough data")

// Stage is a fish growth stage
type Stage string

const (
	StageFry        Stage = "Fry"
	StageFingerling Stage = "Fingerling"
	StageJuvenile   Stage = "Juvenile"
	StageAdult      Stage = "Adult"
)

// feedRates is the daily ration in percent of body weight
var feedRates = map[Stage]float64{
	StageFry:        25,   // 20-30%
	StageFingerling: 5,    // 3-7%
	StageJuvenile:   4.5,  // 3-6%
	StageAdult:      2.75, // 1.5-4%
}

// ParseStage accepts a stage name in any case
func ParseStage(s string) (Stage, error) {
	for stage := range feedRates {
		if strings.EqualFold(strings.TrimSpace(s), string(stage)) {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown growth stage %q", s)
}

// FeedRate returns the daily ration for a stage in percent of body weight
func FeedRate(stage Stage) (float64, bool) {
	rate, ok := feedRates[stage]
	return rate, ok
}

// FCR is total feed / (harvest weight - stocking weight), rounded to 2 decimals.
// Defined only when feed is positive and the fish gained weight.
func FCR(totalFeed, harvestWeight, stockingWeight float64) (float64, error) {
	if !(totalFeed > 0) || !(harvestWeight > stockingWeight) {
		return 0, ErrUndefined
	}
	return round(totalFeed/(harvestWeight-stockingWeight), 2), nil
}

// FCRAssessment grades a feed conversion ratio
type FCRAssessment string

const (
	FCREfficient FCRAssessment = "efficient"
	FCRIdeal     FCRAssessment = "ideal"
	FCRAdjust    FCRAssessment = "adjust"
)

// Ideal FCR range, inclusive
const (
	IdealFCRLow  = 1.5
	IdealFCRHigh = 2.0
)

// AssessFCR grades fcr against the ideal range
func AssessFCR(fcr float64) FCRAssessment {
	switch {
	case fcr < IdealFCRLow:
		return FCREfficient
	case fcr > IdealFCRHigh:
		return FCRAdjust
	default:
		return FCRIdeal
	}
}

// Advice returns the recommendation shown with an FCR
func (a FCRAssessment) Advice() string {
	switch a {
	case FCREfficient:
		return "Your Feed Conversion Ratio (FCR) is not within the ideal range. The optimal FCR is between 1.5 and 2.0. This indicates very efficient feed utilization."
	case FCRAdjust:
		return "Your Feed Conversion Ratio (FCR) is not within the ideal range. The optimal FCR is between 1.5 and 2.0. Consider adjusting your feeding practices to improve efficiency."
	default:
		return "Your Feed Conversion Ratio (FCR) is within the ideal range. The optimal FCR is between 1.5 and 2.0."
	}
}

// DailyFeed is the recommended feed in kg per day:
// fish * average weight (kg) * stage rate / 100, rounded to 2 decimals.
func DailyFeed(numberOfFish int, avgWeight float64, stage Stage) (float64, error) {
	rate, ok := feedRates[stage]
	if !ok || numberOfFish <= 0 || !(avgWeight > 0) {
		return 0, ErrUndefined
	}
	return round(float64(numberOfFish)*avgWeight*rate/100, 2), nil
}

// Aeration bounds in hours per day
const (
	MinAerationHours = 2
	MaxAerationHours = 12
)

// AerationDuration is hours of aeration per day for a pond of the given
// dimensions in metres: volume / 50, rounded to 1 decimal, clamped to [2, 12].
func AerationDuration(length, width, depth float64) (float64, error) {
	if !(length > 0) || !(width > 0) || !(depth > 0) {
		return 0, ErrUndefined
	}
	hours := round(length*width*depth/50, 1)
	return math.Max(MinAerationHours, math.Min(hours, MaxAerationHours)), nil
}

// SplitFeed divides a daily amount evenly across schedule slots, rounded to 2 decimals
func SplitFeed(total float64, slots int) (float64, error) {
	if !(total > 0) || slots <= 0 {
		return 0, ErrUndefined
	}
	return round(total/float64(slots), 2), nil
}

// Feed level thresholds in percent of hopper capacity
const (
	FeedLevelLow  = 50
	FeedLevelGood = 70
)

// FeedLevelStatus grades the feeder hopper level
func FeedLevelStatus(percent float64) string {
	switch {
	case percent < FeedLevelLow:
		return "low"
	case percent <= FeedLevelGood:
		return "moderate"
	default:
		return "good"
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
