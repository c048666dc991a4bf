package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestValidate(t *testing.T) {
	t.Run("valid rules", func(t *testing.T) {
		cases := []Config{
			{Frequency: FrequencyDaily},
			{Frequency: FrequencyWeekly, Interval: 2, DaysOfWeek: []int{1, 3, 5}},
			{Frequency: FrequencyMonthly, Anchor: AnchorCompletion},
			{Frequency: FrequencyYearly, Anchor: AnchorSchedule},
		}
		for _, c := range cases {
			assert.NoError(t, c.Validate())
		}
	})

	t.Run("invalid rules", func(t *testing.T) {
		cases := []Config{
			{Frequency: "fortnightly"},
			{Frequency: FrequencyDaily, Interval: -1},
			{Frequency: FrequencyDaily, Anchor: "whenever"},
			{Frequency: FrequencyDaily, DaysOfWeek: []int{1}},
			{Frequency: FrequencyWeekly, DaysOfWeek: []int{7}},
		}
		for _, c := range cases {
			assert.Error(t, c.Validate())
		}
	})
}

func TestNextDueDateOnSchedule(t *testing.T) {
	completed := time.Date(2026, time.March, 12, 15, 30, 0, 0, time.UTC)

	t.Run("daily advances from the due date, not completion", func(t *testing.T) {
		c := Config{Frequency: FrequencyDaily}
		next := c.NextDueDate(date(2026, time.March, 10), completed)
		assert.Equal(t, date(2026, time.March, 11), next)
	})

	t.Run("interval multiplies the step", func(t *testing.T) {
		c := Config{Frequency: FrequencyDaily, Interval: 3}
		next := c.NextDueDate(date(2026, time.March, 10), completed)
		assert.Equal(t, date(2026, time.March, 13), next)
	})

	t.Run("due date is normalized to UTC midnight", func(t *testing.T) {
		c := Config{Frequency: FrequencyDaily}
		lastDue := time.Date(2026, time.March, 10, 18, 45, 0, 0, time.UTC)
		next := c.NextDueDate(lastDue, completed)
		assert.Equal(t, date(2026, time.March, 11), next)
	})

	t.Run("weekly without days jumps whole weeks", func(t *testing.T) {
		c := Config{Frequency: FrequencyWeekly, Interval: 2}
		next := c.NextDueDate(date(2026, time.March, 9), completed)
		assert.Equal(t, date(2026, time.March, 23), next)
	})

	t.Run("monthly clamps to shorter months", func(t *testing.T) {
		c := Config{Frequency: FrequencyMonthly}
		next := c.NextDueDate(date(2026, time.January, 31), completed)
		assert.Equal(t, date(2026, time.February, 28), next)
	})

	t.Run("monthly clamp honors leap years", func(t *testing.T) {
		c := Config{Frequency: FrequencyMonthly}
		next := c.NextDueDate(date(2028, time.January, 31), completed)
		assert.Equal(t, date(2028, time.February, 29), next)
	})

	t.Run("yearly from Feb 29 clamps to Feb 28", func(t *testing.T) {
		c := Config{Frequency: FrequencyYearly}
		next := c.NextDueDate(date(2028, time.February, 29), completed)
		assert.Equal(t, date(2029, time.February, 28), next)
	})
}

func TestNextWeeklyDaysOfWeek(t *testing.T) {
	completed := time.Date(2026, time.March, 12, 9, 0, 0, 0, time.UTC)

	t.Run("moves to the next listed day in the same week", func(t *testing.T) {
		// 2026-03-09 is a Monday (weekday 1); listed days Mon/Wed/Fri.
		c := Config{Frequency: FrequencyWeekly, DaysOfWeek: []int{1, 3, 5}}
		next := c.NextDueDate(date(2026, time.March, 9), completed)
		assert.Equal(t, date(2026, time.March, 11), next)
		assert.Equal(t, time.Wednesday, next.Weekday())
	})

	t.Run("wraps past the last listed day into next week", func(t *testing.T) {
		// 2026-03-13 is a Friday; next listed day is Monday the 16th.
		c := Config{Frequency: FrequencyWeekly, DaysOfWeek: []int{1, 3, 5}}
		next := c.NextDueDate(date(2026, time.March, 13), completed)
		assert.Equal(t, date(2026, time.March, 16), next)
	})

	t.Run("wrap with interval skips whole weeks", func(t *testing.T) {
		// Friday with interval 2: wrap lands on Monday one cycle later.
		c := Config{Frequency: FrequencyWeekly, Interval: 2, DaysOfWeek: []int{1, 3, 5}}
		next := c.NextDueDate(date(2026, time.March, 13), completed)
		assert.Equal(t, date(2026, time.March, 23), next)
	})

	t.Run("unsorted day lists behave the same", func(t *testing.T) {
		sorted := Config{Frequency: FrequencyWeekly, DaysOfWeek: []int{1, 3, 5}}
		shuffled := Config{Frequency: FrequencyWeekly, DaysOfWeek: []int{5, 1, 3}}
		last := date(2026, time.March, 9)
		assert.Equal(t, sorted.NextDueDate(last, completed), shuffled.NextDueDate(last, completed))
	})
}

func TestNextDueDateOnCompletion(t *testing.T) {
	lastDue := date(2026, time.March, 1)
	completed := time.Date(2026, time.March, 12, 15, 30, 0, 0, time.UTC)

	t.Run("anchors on completion and keeps time of day", func(t *testing.T) {
		c := Config{Frequency: FrequencyDaily, Anchor: AnchorCompletion}
		next := c.NextDueDate(lastDue, completed)
		assert.Equal(t, time.Date(2026, time.March, 13, 15, 30, 0, 0, time.UTC), next)
	})

	t.Run("weekly from completion", func(t *testing.T) {
		c := Config{Frequency: FrequencyWeekly, Anchor: AnchorCompletion}
		next := c.NextDueDate(lastDue, completed)
		assert.Equal(t, completed.AddDate(0, 0, 7), next)
	})
}

func TestShouldRecur(t *testing.T) {
	t.Run("no end condition always recurs", func(t *testing.T) {
		c := Config{Frequency: FrequencyDaily}
		assert.True(t, c.ShouldRecur(date(2100, time.January, 1)))
	})

	t.Run("end date is inclusive", func(t *testing.T) {
		end := date(2026, time.June, 30)
		c := Config{Frequency: FrequencyDaily, EndAt: &end}

		assert.True(t, c.ShouldRecur(date(2026, time.June, 30)))
		assert.False(t, c.ShouldRecur(date(2026, time.July, 1)))
	})
}
