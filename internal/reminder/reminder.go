// Package reminder notifies users shortly before their occurrences start.
//
// A cron schedule drives Tick. Every tick expands the events of each user
// over [now, now+lead] and notifies each occurrence at most once.
package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/metrics"
	"github.com/hpungsan/agenda/internal/ops"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// sentTTL keeps a sent mark well past the occurrence start.
const sentTTL = 24 * time.Hour

// Service finds due occurrences and hands them to a Notifier.
type Service struct {
	db       *sql.DB
	cfg      *config.Config
	clock    timeutil.Clock
	notifier Notifier
	store    SentStore
	log      zerolog.Logger
}

// New creates a Service. A nil store means a fresh MemoryStore.
func New(database *sql.DB, cfg *config.Config, clock timeutil.Clock, notifier Notifier, store SentStore, log zerolog.Logger) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Service{
		db:       database,
		cfg:      cfg,
		clock:    clock,
		notifier: notifier,
		store:    store,
		log:      log,
	}
}

// Key identifies one occurrence of one user.
func Key(user string, o planner.Occurrence) string {
	return user + "|" + o.EventID + "|" + timeutil.FormatDateTime(o.Start)
}

// Tick notifies every occurrence starting within the lead time and returns
// how many reminders were sent. A failed send is released and retried on
// the next tick.
func (s *Service) Tick(ctx context.Context) (int, error) {
	users, err := db.ListUsers(ctx, s.db)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	horizon := now.Add(time.Duration(s.cfg.ReminderLeadMinutes) * time.Minute)

	sent := 0
	for _, user := range users {
		out, err := ops.Calendar(ctx, s.db, s.cfg, s.clock, ops.CalendarInput{
			User: user,
			View: ops.ViewRange,
			From: timeutil.DateOf(now).String(),
			To:   timeutil.DateOf(horizon).String(),
		})
		if err != nil {
			return sent, err
		}

		for _, o := range out.Occurrences {
			if o.Start.Before(now) || o.Start.After(horizon) {
				continue
			}
			key := Key(user, o)
			ok, err := s.store.Acquire(ctx, key, sentTTL)
			if err != nil {
				return sent, fmt.Errorf("acquire %s: %w", key, err)
			}
			if !ok {
				continue
			}

			if err := s.notifier.Notify(ctx, user, o); err != nil {
				s.log.Error().Err(err).Str("user", user).Str("event_id", o.EventID).Msg("reminder failed")
				if rerr := s.store.Release(ctx, key); rerr != nil {
					s.log.Error().Err(rerr).Str("key", key).Msg("release reminder mark")
				}
				continue
			}
			metrics.IncReminderSent()
			sent++
		}
	}
	return sent, nil
}

// Run ticks on cfg.ReminderSchedule until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.cfg.ReminderSchedule, func() {
		n, err := s.Tick(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("reminder tick")
			return
		}
		if n > 0 {
			s.log.Info().Int("sent", n).Msg("reminders sent")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reminder_schedule %q: %w", s.cfg.ReminderSchedule, err)
	}

	c.Start()
	s.log.Info().
		Str("schedule", s.cfg.ReminderSchedule).
		Int("lead_minutes", s.cfg.ReminderLeadMinutes).
		Msg("reminder daemon started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info().Msg("reminder daemon stopped")
	return nil
}
