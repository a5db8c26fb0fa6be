package pond

import (
	"errors"
	"fmt"
)

// OperationInput is the farm operation form. Zero fields are treated as not provided.
type OperationInput struct {
	NumberOfFish   int     `json:"number_of_fish"`
	FishWeight     float64 `json:"fish_weight"`
	FishStage      string  `json:"fish_stage"`
	TotalFeedUsed  float64 `json:"total_feed_used"`
	HarvestWeight  float64 `json:"harvest_weight"`
	StockingWeight float64 `json:"stocking_weight"`
	PondLength     float64 `json:"pond_length"`
	PondWidth      float64 `json:"pond_width"`
	PondDepth      float64 `json:"pond_depth"`
	FeedingSlots   int     `json:"feeding_slots"`

	// Feedings is the feeder schedule; it is validated, ordered and, when the
	// daily feed is known, redistributed evenly over its times
	Feedings []Feeding `json:"feedings,omitempty"`
	// FeedLevel is the hopper level in percent; nil when not reported
	FeedLevel *float64 `json:"feed_level,omitempty"`
}

// OperationDetails holds every figure the inputs define
type OperationDetails struct {
	FeedRate         *float64       `json:"feed_rate,omitempty"`
	FeedPerDay       *float64       `json:"feed_per_day,omitempty"`
	FeedPerSlot      *float64       `json:"feed_per_slot,omitempty"`
	FCR              *float64       `json:"fcr,omitempty"`
	FCRAssessment    *FCRAssessment `json:"fcr_assessment,omitempty"`
	FCRAdvice        string         `json:"fcr_advice,omitempty"`
	AerationDuration *float64       `json:"aeration_duration,omitempty"`
	Schedule         Schedule       `json:"schedule,omitempty"`
	ScheduleTotal    *float64       `json:"schedule_total,omitempty"`
	FeedLevelStatus  string         `json:"feed_level_status,omitempty"`
}

// ErrFeedLevel is returned for a hopper level outside 0..100 percent
var ErrFeedLevel = errors.New("feed level must be between 0 and 100 percent")

// Derive computes the operation figures. Figures the inputs do not define
// are left nil; a malformed stage, schedule or feed level is an error.
func Derive(in OperationInput) (OperationDetails, error) {
	var out OperationDetails

	if in.FishStage != "" {
		stage, err := ParseStage(in.FishStage)
		if err != nil {
			return OperationDetails{}, err
		}
		rate, _ := FeedRate(stage)
		out.FeedRate = &rate

		if feed, err := DailyFeed(in.NumberOfFish, in.FishWeight, stage); err == nil {
			out.FeedPerDay = &feed
			if share, err := SplitFeed(feed, in.FeedingSlots); err == nil {
				out.FeedPerSlot = &share
			}
		}
	}

	if fcr, err := FCR(in.TotalFeedUsed, in.HarvestWeight, in.StockingWeight); err == nil {
		assessment := AssessFCR(fcr)
		out.FCR = &fcr
		out.FCRAssessment = &assessment
		out.FCRAdvice = assessment.Advice()
	}

	if hours, err := AerationDuration(in.PondLength, in.PondWidth, in.PondDepth); err == nil {
		out.AerationDuration = &hours
	}

	if len(in.Feedings) > 0 {
		schedule, err := NewSchedule(in.Feedings...)
		if err != nil {
			return OperationDetails{}, fmt.Errorf("schedule: %w", err)
		}
		if out.FeedPerDay != nil {
			if spread, err := schedule.Distribute(*out.FeedPerDay); err == nil {
				schedule = spread
			}
		}
		total := schedule.Total()
		out.Schedule = schedule
		out.ScheduleTotal = &total
	}

	if in.FeedLevel != nil {
		level := *in.FeedLevel
		if !(level >= 0 && level <= 100) {
			return OperationDetails{}, ErrFeedLevel
		}
		out.FeedLevelStatus = FeedLevelStatus(level)
	}

	return out, nil
}

// ErrNoFigures is returned by callers that need at least one derived figure
var ErrNoFigures = errors.New("inputs define no operation figures")

// Empty reports whether nothing was derived
func (d OperationDetails) Empty() bool {
	return d.FeedRate == nil && d.FCR == nil && d.AerationDuration == nil &&
		len(d.Schedule) == 0 && d.FeedLevelStatus == ""
}
