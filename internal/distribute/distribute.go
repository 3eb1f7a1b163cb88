// Package distribute assigns publication slots to batches of content drafts.
package distribute

import (
	"errors"
	"fmt"
	"time"

	"pressflow/internal/domain"
)

var ErrInvalidPolicy = errors.New("invalid distribution policy")

// Policy selects one of the three distribution modes. Each variant carries
// only the fields its mode uses.
type Policy interface {
	Mode() string
	validate() error
}

// Bulk spaces items one minute apart from the start timestamp and leaves them
// parked in the queued state. ImmediateBatch is the number of leading items
// the caller should hand to the executor right away, best-effort.
type Bulk struct {
	ImmediateBatch int
}

// Daily caps assignments per calendar day, spacing same-day items by
// SubSlotMinutes (default 30).
type Daily struct {
	Quota          int
	TimeOfDay      string // "HH:MM"
	SubSlotMinutes int
}

// Weekly caps assignments per calendar week across the allowed weekdays. When
// the quota fills, the cursor jumps to the first allowed day of the next week.
type Weekly struct {
	Quota           int
	AllowedWeekdays []time.Weekday
	TimeOfDay       string // "HH:MM"
}

func (Bulk) Mode() string   { return "bulk" }
func (Daily) Mode() string  { return "daily" }
func (Weekly) Mode() string { return "weekly" }

func (p Bulk) validate() error {
	if p.ImmediateBatch < 0 {
		return fmt.Errorf("%w: negative immediate batch", ErrInvalidPolicy)
	}
	return nil
}

func (p Daily) validate() error {
	if p.Quota < 1 {
		return fmt.Errorf("%w: daily quota must be at least 1", ErrInvalidPolicy)
	}
	if _, err := parseClock(p.TimeOfDay); err != nil {
		return err
	}
	return nil
}

func (p Weekly) validate() error {
	if p.Quota < 1 {
		return fmt.Errorf("%w: weekly quota must be at least 1", ErrInvalidPolicy)
	}
	if len(p.AllowedWeekdays) == 0 {
		return fmt.Errorf("%w: weekly policy requires allowed weekdays", ErrInvalidPolicy)
	}
	for _, d := range p.AllowedWeekdays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidPolicy, d)
		}
	}
	if _, err := parseClock(p.TimeOfDay); err != nil {
		return err
	}
	return nil
}

// Distribute assigns every draft a slot and an initial status. Output order
// matches input order via Position, and slots never decrease along it.
func Distribute(drafts []domain.ContentDraft, p Policy, startFrom time.Time) ([]domain.QueueItem, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	items := make([]domain.QueueItem, len(drafts))
	for i, d := range drafts {
		items[i] = domain.QueueItem{
			ProjectID: d.ProjectID,
			Title:     d.Title,
			Keywords:  d.Keywords,
			Category:  d.Category,
			Priority:  d.Priority,
			Position:  i,
		}
	}

	switch pol := p.(type) {
	case Bulk:
		for i := range items {
			items[i].ScheduledFor = startFrom.Add(time.Duration(i) * time.Minute)
			items[i].Status = domain.StatusQueued
		}
	case Daily:
		subSlot := pol.SubSlotMinutes
		if subSlot == 0 {
			subSlot = 30
		}
		clock, _ := parseClock(pol.TimeOfDay)
		day := dateOf(startFrom)
		count := 0
		for i := range items {
			if count == pol.Quota {
				day = day.AddDate(0, 0, 1)
				count = 0
			}
			items[i].ScheduledFor = day.Add(clock + time.Duration(count*subSlot)*time.Minute)
			items[i].Status = domain.StatusScheduled
			count++
		}
	case Weekly:
		clock, _ := parseClock(pol.TimeOfDay)
		day := nextAllowed(dateOf(startFrom), pol.AllowedWeekdays)
		count := 0
		for i := range items {
			items[i].ScheduledFor = day.Add(clock)
			items[i].Status = domain.StatusScheduled
			count++
			if count == pol.Quota {
				day = nextAllowed(startOfNextWeek(day), pol.AllowedWeekdays)
				count = 0
			} else {
				day = nextAllowed(day.AddDate(0, 0, 1), pol.AllowedWeekdays)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, p.Mode())
	}
	return items, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfNextWeek returns the Monday after the week containing d.
func startOfNextWeek(d time.Time) time.Time {
	daysSinceMonday := (int(d.Weekday()) + 6) % 7
	return dateOf(d).AddDate(0, 0, 7-daysSinceMonday)
}

func nextAllowed(d time.Time, allowed []time.Weekday) time.Time {
	for i := 0; i < 7; i++ {
		for _, w := range allowed {
			if d.Weekday() == w {
				return d
			}
		}
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func parseClock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: malformed time of day %q", ErrInvalidPolicy, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: time of day %q out of range", ErrInvalidPolicy, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
