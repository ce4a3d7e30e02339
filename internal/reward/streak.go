package reward

import (
	"fmt"
	"time"
)

// DefaultSchedule is the 7-day streak award cycle.
var DefaultSchedule = Schedule{15, 30, 45, 60, 75, 90, 120}

// Schedule is the coin award for days 1..7 of a streak. It repeats.
type Schedule [7]int64

// NewSchedule builds a Schedule from a config slice.
func NewSchedule(amounts []int64) (Schedule, error) {
	var s Schedule
	if len(amounts) != len(s) {
		return s, fmt.Errorf("daily schedule needs %d entries, got %d", len(s), len(amounts))
	}
	for i, a := range amounts {
		if a <= 0 {
			return s, fmt.Errorf("daily schedule day %d must be positive", i+1)
		}
		s[i] = a
	}
	return s, nil
}

// Amount returns the award for the given streak day (1-based).
func (s Schedule) Amount(streak int) int64 {
	if streak < 1 {
		streak = 1
	}
	return s[(streak-1)%len(s)]
}

// NextStreak returns the streak after a claim at now. The streak continues
// only when the previous claim was on the local calendar day before today.
func NextStreak(lastClaim *time.Time, current int, now time.Time, loc *time.Location) int {
	if lastClaim == nil || current < 1 {
		return 1
	}
	today := StartOfDay(now, loc)
	yesterday := today.AddDate(0, 0, -1)
	if !lastClaim.Before(yesterday) && lastClaim.Before(today) {
		return current + 1
	}
	return 1
}
