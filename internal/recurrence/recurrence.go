package recurrence

import (
	"errors"
	"sort"
	"time"
)

// Frequency is the repeat unit of a recurring task.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Anchor decides what the next occurrence is computed from.
type Anchor string

const (
	// AnchorSchedule keeps occurrences on the original cadence: the next due
	// date derives from the previous due date, at UTC midnight.
	AnchorSchedule Anchor = "on_schedule"

	// AnchorCompletion restarts the cadence from the moment the task was
	// completed, keeping the completion's time of day.
	AnchorCompletion Anchor = "on_completion"
)

// Config is the recurrence rule stored on a task. The zero Interval means 1.
type Config struct {
	Frequency  Frequency  `json:"frequency"`
	Interval   int        `json:"interval,omitempty"`
	DaysOfWeek []int      `json:"days_of_week,omitempty"` // 0 = Sunday, weekly only
	Anchor     Anchor     `json:"anchor,omitempty"`
	EndAt      *time.Time `json:"end_at,omitempty"`
}

// Validate checks the rule as submitted by a client.
func (c *Config) Validate() error {
	switch c.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return errors.New("frequency must be daily, weekly, monthly or yearly")
	}
	if c.Interval < 0 {
		return errors.New("interval must be positive")
	}
	switch c.Anchor {
	case "", AnchorSchedule, AnchorCompletion:
	default:
		return errors.New("anchor must be on_schedule or on_completion")
	}
	if len(c.DaysOfWeek) > 0 && c.Frequency != FrequencyWeekly {
		return errors.New("days_of_week applies to weekly recurrence only")
	}
	for _, d := range c.DaysOfWeek {
		if d < 0 || d > 6 {
			return errors.New("days_of_week values must be between 0 and 6")
		}
	}
	return nil
}

func (c *Config) interval() int {
	if c.Interval < 1 {
		return 1
	}
	return c.Interval
}

func (c *Config) anchor() Anchor {
	if c.Anchor == AnchorCompletion {
		return AnchorCompletion
	}
	return AnchorSchedule
}

// NextDueDate computes the successor's due date. lastDue is the completed
// occurrence's due date; completedAt is when it was actually completed.
func (c *Config) NextDueDate(lastDue, completedAt time.Time) time.Time {
	var base time.Time
	if c.anchor() == AnchorCompletion {
		base = completedAt
	} else {
		d := lastDue.UTC()
		base = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}

	switch c.Frequency {
	case FrequencyDaily:
		return base.AddDate(0, 0, c.interval())
	case FrequencyWeekly:
		return c.nextWeekly(base)
	case FrequencyMonthly:
		return addMonthsClamped(base, c.interval())
	case FrequencyYearly:
		return addMonthsClamped(base, 12*c.interval())
	default:
		return base.AddDate(0, 0, c.interval())
	}
}

// nextWeekly honors DaysOfWeek when present: the next listed weekday after the
// base, wrapping into the first listed day of a later week when the base falls
// on or after the last listed day.
func (c *Config) nextWeekly(base time.Time) time.Time {
	if len(c.DaysOfWeek) == 0 {
		return base.AddDate(0, 0, 7*c.interval())
	}

	days := append([]int(nil), c.DaysOfWeek...)
	sort.Ints(days)

	current := int(base.Weekday())
	for _, d := range days {
		if d > current {
			return base.AddDate(0, 0, d-current)
		}
	}

	// Wrap to the first listed day. Interval counts weeks between cycles, so
	// an interval of n skips n-1 whole weeks after the wrap.
	diff := (7 - current) + days[0] + (c.interval()-1)*7
	return base.AddDate(0, 0, diff)
}

// ShouldRecur reports whether a successor with the given due date may still be
// created under the rule's end condition.
func (c *Config) ShouldRecur(nextDue time.Time) bool {
	if c.EndAt == nil {
		return true
	}
	return !nextDue.After(*c.EndAt)
}

// addMonthsClamped adds calendar months, clamping the day to the target
// month's length so Jan 31 + 1 month lands on Feb 28/29, not Mar 2/3.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) - 1 + months
	year += m / 12
	m = m % 12
	if m < 0 {
		m += 12
		year--
	}
	targetMonth := time.Month(m + 1)

	last := daysInMonth(year, targetMonth)
	if day > last {
		day = last
	}

	h, min, sec := t.Clock()
	return time.Date(year, targetMonth, day, h, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
