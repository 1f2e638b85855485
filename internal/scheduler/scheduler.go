// Package scheduler applies the monthly credit to every ledger member on
// the configured payday, at most once per calendar date. The guard is the
// persisted last-fired date, not sleep arithmetic, so restarts inside the
// trigger window cannot double-credit.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"balancebot/internal/core"
	"balancebot/internal/events"
	"balancebot/internal/ledger"
	applog "balancebot/internal/log"
	"balancebot/internal/telegram"
)

const dateLayout = "2006-01-02"

// Clock abstracts wall-clock reads so tests can drive ticks directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Config holds the trigger window and credit parameters.
type Config struct {
	// Day of month (1-31) and hour (0-23) of the trigger window. A day
	// beyond the current month's length clamps to its last day.
	Day  int
	Hour int

	Credit   core.Money
	Currency string

	// ChatID receives the post-credit summary.
	ChatID int64

	// Interval between ticks; an hour in production.
	Interval time.Duration

	Clock Clock
}

type Scheduler struct {
	cfg    Config
	store  ledger.Store
	state  ledger.ScheduleStore
	sender telegram.Sender
	events *events.Client
	logger *applog.Logger
}

func New(cfg Config, store ledger.Store, state ledger.ScheduleStore, sender telegram.Sender, ev *events.Client, logger *applog.Logger) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentScheduler})
	}
	return &Scheduler{
		cfg:    cfg,
		store:  store,
		state:  state,
		sender: sender,
		events: ev,
		logger: logger,
	}
}

// Run ticks until ctx is cancelled. An immediate tick on startup covers
// the restart-inside-the-window case.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		"payday_day", s.cfg.Day,
		"payday_hour", s.cfg.Hour,
		"interval", s.cfg.Interval)

	s.tick(ctx, s.cfg.Clock.Now())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping")
			return nil
		case <-ticker.C:
			now := s.cfg.Clock.Now()
			if s.tick(ctx, now) {
				// The date guard already prevents a second fire today;
				// skipping the rest of the payday just avoids useless
				// wakeups.
				s.sleepUntilTomorrow(ctx, now)
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) bool {
	fired, err := s.Tick(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Credit run failed, will retry next tick",
			applog.FieldError, err)
	}
	return fired
}

// Tick runs one scheduling decision for the given instant and reports
// whether the credit fired. A persistence failure leaves the fired marker
// untouched so the next matching tick retries the whole run.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (bool, error) {
	if now.Day() != s.effectiveDay(now) || now.Hour() != s.cfg.Hour {
		return false, nil
	}

	last, err := s.state.LastFired(ctx)
	if err != nil {
		return false, fmt.Errorf("read schedule state: %w", err)
	}
	today := now.Format(dateLayout)
	if !last.IsZero() && last.Format(dateLayout) == today {
		return false, nil
	}

	members, err := s.store.CreditAll(ctx, s.cfg.Credit)
	if err != nil {
		return false, fmt.Errorf("apply monthly credit: %w", err)
	}

	if err := s.state.MarkFired(ctx, now); err != nil {
		// The credit is already applied; losing the marker risks a second
		// application on the next tick, so make this loud.
		s.logger.ErrorContext(ctx, "Credit applied but fired marker not persisted",
			applog.FieldError, err)
	}

	s.logger.InfoContext(ctx, "Monthly credit applied",
		applog.FieldAmountCents, s.cfg.Credit.Cents,
		"members", len(members),
		"date", today)

	if len(members) > 0 {
		if err := s.sender.SendMessage(ctx, s.cfg.ChatID, s.summary(members)); err != nil {
			// Best-effort: the credit stays applied.
			s.logger.ErrorContext(ctx, "Failed to send monthly summary",
				applog.FieldChatID, s.cfg.ChatID,
				applog.FieldError, err)
		}
	}

	if s.events != nil {
		if err := s.events.PublishPaydayRun(ctx, today, s.cfg.Credit.Cents, len(members)); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish payday event",
				applog.FieldError, err)
		}
	}

	return true, nil
}

// effectiveDay clamps the configured payday to the current month's length,
// so day 31 still fires in February.
func (s *Scheduler) effectiveDay(now time.Time) int {
	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	if s.cfg.Day > lastDay {
		return lastDay
	}
	return s.cfg.Day
}

func (s *Scheduler) summary(members []core.Member) string {
	lines := make([]string, 0, len(members)+2)
	lines = append(lines, fmt.Sprintf("Monthly subscription update: added %s %s to everyone.",
		s.cfg.Credit, s.cfg.Currency))
	lines = append(lines, "Current balances:")
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("%s: %s %s", m.Name, m.Balance, s.cfg.Currency))
	}
	return strings.Join(lines, "\n")
}

func (s *Scheduler) sleepUntilTomorrow(ctx context.Context, now time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	select {
	case <-ctx.Done():
	case <-time.After(midnight.Sub(now)):
	}
}
