// Package scheduler fires due recurring schedules into the queue.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pressflow/internal/cadence"
	"pressflow/internal/domain"
	"pressflow/internal/metrics"
	"pressflow/internal/queue"
)

// Service scans for due schedules on a fixed interval and turns each fire
// into queue items due immediately. A missed tick is harmless: schedules stay
// due until marked fired, so the next pass picks them up.
type Service struct {
	store    queue.Store
	interval time.Duration
	stop     chan struct{}
	now      func() time.Time
}

func NewService(store queue.Store, checkInterval time.Duration) *Service {
	return &Service{
		store:    store,
		interval: checkInterval,
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("schedule service started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.FireDue(ctx, now.UTC())
		}
	}
}

func (s *Service) Stop() {
	close(s.stop)
}

// FireDue processes every schedule whose next run is at or before now.
// Failures are per schedule; one broken schedule never blocks the rest.
func (s *Service) FireDue(ctx context.Context, now time.Time) {
	schedules, err := s.store.DueSchedules(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("due schedule scan failed")
		return
	}

	for _, sch := range schedules {
		if err := s.fire(ctx, sch, now); err != nil {
			log.Error().Err(err).Str("schedule_id", sch.ID).Msg("schedule fire failed")
		}
	}
}

func (s *Service) fire(ctx context.Context, sch domain.ScheduleConfig, now time.Time) error {
	drafts, err := s.selectDrafts(ctx, sch)
	if err != nil {
		return fmt.Errorf("select drafts: %w", err)
	}

	if len(drafts) > 0 {
		items := make([]domain.QueueItem, len(drafts))
		draftIDs := make([]string, len(drafts))
		for i, d := range drafts {
			items[i] = domain.QueueItem{
				ProjectID:    sch.ProjectID,
				Title:        d.Title,
				Keywords:     d.Keywords,
				Category:     d.Category,
				Priority:     d.Priority,
				ScheduledFor: now,
				Position:     i,
				Status:       domain.StatusScheduled,
				AutoPublish:  sch.AutoPublish,
			}
			draftIDs[i] = d.ID
		}
		if _, err := s.store.CreateItems(ctx, items); err != nil {
			return fmt.Errorf("create items: %w", err)
		}
		if err := s.store.MarkDraftsScheduled(ctx, draftIDs); err != nil {
			return fmt.Errorf("mark drafts scheduled: %w", err)
		}
	} else {
		log.Warn().Str("schedule_id", sch.ID).Msg("schedule fired with no drafts available")
	}

	metrics.ScheduleFires.Inc()

	// A one-shot schedule retires after its single fire.
	if sch.Recurrence.Kind == domain.KindOnce {
		if err := s.store.MarkScheduleFired(ctx, sch.ID, now, now); err != nil {
			return fmt.Errorf("mark fired: %w", err)
		}
		if err := s.store.DisableSchedule(ctx, sch.ID); err != nil {
			return fmt.Errorf("disable one-shot: %w", err)
		}
		log.Info().Str("schedule_id", sch.ID).Int("items", len(drafts)).Msg("one-shot schedule fired and disabled")
		return nil
	}

	nextRun, err := cadence.NextRunForConfig(sch.Recurrence, now)
	if err != nil {
		// The policy was valid at save time; if it no longer computes, park
		// the schedule instead of firing it every tick.
		log.Error().Err(err).Str("schedule_id", sch.ID).Msg("next run computation failed, disabling schedule")
		return s.store.DisableSchedule(ctx, sch.ID)
	}
	if err := s.store.MarkScheduleFired(ctx, sch.ID, now, nextRun); err != nil {
		return fmt.Errorf("mark fired: %w", err)
	}

	log.Info().
		Str("schedule_id", sch.ID).
		Str("schedule_name", sch.Name).
		Int("items", len(drafts)).
		Time("next_run", nextRun).
		Msg("schedule fired")
	return nil
}

func (s *Service) selectDrafts(ctx context.Context, sch domain.ScheduleConfig) ([]domain.ContentDraft, error) {
	limit := sch.ItemsPerRun
	if limit <= 0 {
		limit = 1
	}

	switch sch.SelectionMode {
	case domain.SelectExplicit:
		drafts, err := s.store.GetDrafts(ctx, sch.DraftIDs)
		if err != nil {
			return nil, err
		}
		unscheduled := drafts[:0]
		for _, d := range drafts {
			if !d.Scheduled {
				unscheduled = append(unscheduled, d)
			}
		}
		if len(unscheduled) > limit {
			unscheduled = unscheduled[:limit]
		}
		return unscheduled, nil
	default:
		return s.store.NextDrafts(ctx, sch.ProjectID, limit)
	}
}
