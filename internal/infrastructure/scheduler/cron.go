package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

// CronScheduler arms reminder timers on top of robfig/cron.
type CronScheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler that evaluates reminders in UTC.
func NewCronScheduler(logger *slog.Logger) *CronScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := cronLogger{logger: logger}
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter)),
		),
		logger:  logger,
		entries: map[string]cron.EntryID{},
	}
}

// ReminderSchedule fires once at the reminder's due time and then every period.
type ReminderSchedule struct {
	Reminder domain.Reminder
}

// Next implements cron.Schedule.
func (s ReminderSchedule) Next(t time.Time) time.Time {
	return s.Reminder.NextFire(t)
}

// Arm schedules fire for every tick of the reminder, replacing any previous timer
// registered for the same entity and name.
func (c *CronScheduler) Arm(reminder domain.Reminder, fire func(domain.Reminder)) error {
	if fire == nil {
		return fmt.Errorf("arm %s/%s: nil fire callback", reminder.EntityID, reminder.Name)
	}

	key := entryKey(reminder.EntityID, reminder.Name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.entries[key]; ok {
		c.cron.Remove(id)
	}
	id := c.cron.Schedule(ReminderSchedule{Reminder: reminder}, cron.FuncJob(func() {
		fire(reminder)
	}))
	c.entries[key] = id

	c.logger.Debug("reminder armed",
		"entity", reminder.EntityID,
		"reminder", reminder.Name,
		"next", reminder.NextFire(time.Now()).Format(time.RFC3339))
	return nil
}

// Start begins evaluating timers in a background goroutine.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	c.cron.Start()
	c.started = true
	return nil
}

// Stop halts the timer goroutine and waits for running callbacks.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func entryKey(entityID, name string) string {
	return entityID + "\x00" + name
}

// cronLogger routes cron's internal logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
