// Package cadence computes the next firing time of a recurrence policy.
package cadence

import (
	"errors"
	"fmt"
	"time"

	"pressflow/internal/domain"
)

// ErrInvalidPolicy reports a policy missing a field its kind requires. This is
// a configuration bug upstream and is never silently defaulted.
var ErrInvalidPolicy = errors.New("invalid recurrence policy")

// ComputeNextRun returns the first timestamp strictly after now that satisfies
// the policy, at the policy's first time of day (seconds zeroed).
//
// Monthly policies whose day-of-month exceeds the target month's length follow
// time.Date normalization: the date rolls forward into the next month
// (e.g. day 31 in a 30-day month lands on the 1st).
func ComputeNextRun(p domain.RecurrencePolicy, now time.Time) (time.Time, error) {
	if err := Validate(p); err != nil {
		return time.Time{}, err
	}
	hour, min, _ := parseClock(p.TimesOfDay[0])

	if p.Kind == domain.KindMonthly {
		cand := time.Date(now.Year(), now.Month(), p.DayOfMonth, hour, min, 0, 0, now.Location())
		if !cand.After(now) {
			cand = cand.AddDate(0, 1, 0)
		}
		return cand, nil
	}

	cand := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
	if !cand.After(now) {
		cand = cand.AddDate(0, 0, 1)
	}
	for !weekdayAllowed(p, cand.Weekday()) {
		cand = cand.AddDate(0, 0, 1)
	}
	return cand, nil
}

// NextRunForConfig is ComputeNextRun plus the twice-daily rule: the second
// clock time is an independent candidate and the earliest future one wins.
func NextRunForConfig(p domain.RecurrencePolicy, now time.Time) (time.Time, error) {
	next, err := ComputeNextRun(p, now)
	if err != nil {
		return time.Time{}, err
	}
	if p.Kind != domain.KindTwiceDaily {
		return next, nil
	}
	second := p
	second.TimesOfDay = []string{p.TimesOfDay[1]}
	second.Kind = domain.KindDaily
	alt, err := ComputeNextRun(second, now)
	if err != nil {
		return time.Time{}, err
	}
	if alt.Before(next) {
		return alt, nil
	}
	return next, nil
}

// Validate checks that the policy carries the fields its kind requires.
func Validate(p domain.RecurrencePolicy) error {
	switch p.Kind {
	case domain.KindOnce, domain.KindDaily, domain.KindThreeWeekly:
	case domain.KindTwiceDaily:
		if len(p.TimesOfDay) < 2 {
			return fmt.Errorf("%w: twice-daily requires two times of day", ErrInvalidPolicy)
		}
	case domain.KindCustomDays:
		if len(p.WeekdaySet) == 0 {
			return fmt.Errorf("%w: custom-days requires a non-empty weekday set", ErrInvalidPolicy)
		}
		for _, d := range p.WeekdaySet {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("%w: weekday %d out of range", ErrInvalidPolicy, d)
			}
		}
	case domain.KindWeekly:
		if p.DayOfWeek < time.Sunday || p.DayOfWeek > time.Saturday {
			return fmt.Errorf("%w: day of week %d out of range", ErrInvalidPolicy, p.DayOfWeek)
		}
	case domain.KindMonthly:
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return fmt.Errorf("%w: day of month %d out of range", ErrInvalidPolicy, p.DayOfMonth)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPolicy, p.Kind)
	}

	if len(p.TimesOfDay) == 0 {
		return fmt.Errorf("%w: at least one time of day required", ErrInvalidPolicy)
	}
	for _, t := range p.TimesOfDay {
		if _, _, err := parseClock(t); err != nil {
			return err
		}
	}
	return nil
}

func weekdayAllowed(p domain.RecurrencePolicy, d time.Weekday) bool {
	switch p.Kind {
	case domain.KindThreeWeekly:
		return d == time.Monday || d == time.Wednesday || d == time.Friday
	case domain.KindCustomDays:
		for _, allowed := range p.WeekdaySet {
			if d == allowed {
				return true
			}
		}
		return false
	case domain.KindWeekly:
		return d == p.DayOfWeek
	default:
		return true
	}
}

func parseClock(s string) (hour, min int, err error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("%w: malformed time of day %q", ErrInvalidPolicy, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: time of day %q out of range", ErrInvalidPolicy, s)
	}
	return h, m, nil
}
