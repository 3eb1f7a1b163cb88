package cadence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressflow/internal/domain"
)

// 2024-01-01 was a Monday.
var monday = time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)

func policy(kind domain.RecurrenceKind, times ...string) domain.RecurrencePolicy {
	if len(times) == 0 {
		times = []string{"09:00"}
	}
	return domain.RecurrencePolicy{Kind: kind, TimesOfDay: times}
}

func TestComputeNextRunDaily(t *testing.T) {
	tests := []struct {
		name string
		time string
		want time.Time
	}{
		{"same day when time ahead", "11:30", time.Date(2024, 1, 1, 11, 30, 0, 0, time.UTC)},
		{"tomorrow when time past", "09:00", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)},
		{"tomorrow when time equals now", "10:00", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeNextRun(policy(domain.KindDaily, tt.time), monday)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeNextRunThreeWeekly(t *testing.T) {
	// From Monday 10:00 with a past clock time, the next Mon/Wed/Fri is Wednesday.
	got, err := ComputeNextRun(policy(domain.KindThreeWeekly, "09:00"), monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), got)

	// From Saturday the next allowed day is Monday.
	saturday := time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC)
	got, err = ComputeNextRun(policy(domain.KindThreeWeekly, "09:00"), saturday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC), got)
}

func TestComputeNextRunWeeklyAlwaysLandsOnConfiguredDay(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		for dayOffset := 0; dayOffset < 8; dayOffset++ {
			now := monday.AddDate(0, 0, dayOffset)
			p := policy(domain.KindWeekly, "08:15")
			p.DayOfWeek = d
			got, err := ComputeNextRun(p, now)
			require.NoError(t, err)
			assert.Equal(t, d, got.Weekday())
			assert.True(t, got.After(now), "next run %v not after now %v", got, now)
		}
	}
}

func TestComputeNextRunNeverSameDayWhenTimePast(t *testing.T) {
	kinds := []domain.RecurrenceKind{domain.KindOnce, domain.KindDaily, domain.KindThreeWeekly}
	for _, kind := range kinds {
		got, err := ComputeNextRun(policy(kind, "09:59"), monday)
		require.NoError(t, err)
		assert.NotEqual(t, monday.Day(), got.Day(), "kind %s produced a same-day run", kind)
	}
}

func TestComputeNextRunCustomDays(t *testing.T) {
	p := policy(domain.KindCustomDays, "09:00")
	p.WeekdaySet = []time.Weekday{time.Tuesday, time.Thursday}
	got, err := ComputeNextRun(p, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), got)

	// An empty weekday set is rejected, not degraded to daily.
	p.WeekdaySet = nil
	_, err = ComputeNextRun(p, monday)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestComputeNextRunMonthly(t *testing.T) {
	p := policy(domain.KindMonthly, "09:00")
	p.DayOfMonth = 15

	got, err := ComputeNextRun(p, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), got)

	// Past the day of month: roll one calendar month, not one day.
	jan20 := time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)
	got, err = ComputeNextRun(p, jan20)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC), got)
}

func TestComputeNextRunMonthEndOverflowNormalizes(t *testing.T) {
	// Day 31 in February normalizes forward per time.Date (2024 is a leap year:
	// Feb 31 -> Mar 2).
	p := policy(domain.KindMonthly, "09:00")
	p.DayOfMonth = 31
	feb1 := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	got, err := ComputeNextRun(p, feb1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), got)
}

func TestNextRunForConfigTwiceDaily(t *testing.T) {
	p := policy(domain.KindTwiceDaily, "09:00", "15:00")

	// First time past, second still ahead: fire today at the second time.
	got, err := NextRunForConfig(p, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), got)

	// Both past: tomorrow at the first time.
	evening := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)
	got, err = NextRunForConfig(p, evening)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), got)
}

func TestRepeatedFiresNeverRepeatATimestamp(t *testing.T) {
	policies := []domain.RecurrencePolicy{
		policy(domain.KindDaily, "09:00"),
		policy(domain.KindThreeWeekly, "12:00"),
	}
	weekly := policy(domain.KindWeekly, "07:30")
	weekly.DayOfWeek = time.Friday
	monthly := policy(domain.KindMonthly, "09:00")
	monthly.DayOfMonth = 10
	policies = append(policies, weekly, monthly)

	for _, p := range policies {
		now := monday
		for i := 0; i < 10; i++ {
			next, err := ComputeNextRun(p, now)
			require.NoError(t, err)
			require.True(t, next.After(now), "kind %s: %v not after %v", p.Kind, next, now)
			now = next
		}
	}
}

func TestValidateRejectsBrokenPolicies(t *testing.T) {
	tests := []struct {
		name string
		p    domain.RecurrencePolicy
	}{
		{"no times of day", domain.RecurrencePolicy{Kind: domain.KindDaily}},
		{"unpadded clock", policy(domain.KindDaily, "9:30")},
		{"hour out of range", policy(domain.KindDaily, "25:00")},
		{"twice-daily with one time", policy(domain.KindTwiceDaily, "09:00")},
		{"monthly day zero", func() domain.RecurrencePolicy {
			p := policy(domain.KindMonthly, "09:00")
			p.DayOfMonth = 0
			return p
		}()},
		{"unknown kind", policy("fortnightly")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.p), ErrInvalidPolicy)
		})
	}
}
