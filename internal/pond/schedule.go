package pond

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Feed amount bounds per scheduled feeding, kg
const (
	MinFeedAmount = 0.01
	MaxFeedAmount = 0.99
)

var (
	ErrFeedAmount   = fmt.Errorf("feed amount must be between %.2f and %.2f kg", MinFeedAmount, MaxFeedAmount)
	ErrFeedingTime  = errors.New("feeding time must be HH:MM")
	ErrDuplicateRun = errors.New("a feeding is already scheduled at this time")
)

// Feeding is one entry of the feeder schedule
type Feeding struct {
	Time   string  `json:"time" yaml:"time"`
	Amount float64 `json:"amount" yaml:"amount"`
}

// Validate checks the time format and the amount bounds
func (f Feeding) Validate() error {
	if _, err := time.Parse("15:04", f.Time); err != nil || len(f.Time) != 5 {
		return ErrFeedingTime
	}
	if f.Amount < MinFeedAmount || f.Amount > MaxFeedAmount {
		return ErrFeedAmount
	}
	return nil
}

// Schedule is the day's feedings ordered by time
type Schedule []Feeding

// NewSchedule validates feedings and orders them by time
func NewSchedule(feedings ...Feeding) (Schedule, error) {
	seen := make(map[string]bool, len(feedings))
	out := make(Schedule, 0, len(feedings))
	for i, f := range feedings {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("feeding %d: %w", i, err)
		}
		if seen[f.Time] {
			return nil, fmt.Errorf("feeding %d at %s: %w", i, f.Time, ErrDuplicateRun)
		}
		seen[f.Time] = true
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// Total returns the day's feed in kg
func (s Schedule) Total() float64 {
	var total float64
	for _, f := range s {
		total += f.Amount
	}
	return round(total, 2)
}

// Distribute sets every feeding to an even share of dailyFeed, clamped to the
// per-feeding bounds
func (s Schedule) Distribute(dailyFeed float64) (Schedule, error) {
	share, err := SplitFeed(dailyFeed, len(s))
	if err != nil {
		return nil, err
	}
	share = clamp(share, MinFeedAmount, MaxFeedAmount)

	out := make(Schedule, len(s))
	for i, f := range s {
		out[i] = Feeding{Time: f.Time, Amount: share}
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
