package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

// ErrReminderExists is returned when registering a name that is already registered.
var ErrReminderExists = errors.New("reminder already registered")

// ReminderService persists reminder registrations and arms their timers.
// The store is authoritative: lookups always query it.
type ReminderService struct {
	store     ports.ReminderStore
	scheduler ports.Scheduler
	fire      func(domain.Reminder)
	now       func() time.Time
	logger    *slog.Logger
}

// NewReminderService wires a store with a timer scheduler. fire is invoked from the
// scheduler goroutine on every tick of every reminder.
func NewReminderService(store ports.ReminderStore, scheduler ports.Scheduler, fire func(domain.Reminder), logger *slog.Logger) *ReminderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderService{
		store:     store,
		scheduler: scheduler,
		fire:      fire,
		now:       time.Now,
		logger:    logger,
	}
}

// Restore re-arms every persisted reminder. It returns how many were armed.
func (s *ReminderService) Restore(ctx context.Context) (int, error) {
	reminders, err := s.store.ListReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reminders: %w", err)
	}

	for _, r := range reminders {
		if err := s.scheduler.Arm(r, s.fire); err != nil {
			return 0, fmt.Errorf("arm reminder %s/%s: %w", r.EntityID, r.Name, err)
		}
	}

	s.logger.Info("reminders restored", "count", len(reminders))
	return len(reminders), nil
}

// Scoped returns the reminder registry seen by one entity.
func (s *ReminderService) Scoped(entityID string) ports.ReminderRegistry {
	return &entityReminders{service: s, entityID: entityID}
}

type entityReminders struct {
	service  *ReminderService
	entityID string
}

func (e *entityReminders) Lookup(ctx context.Context, name string) (domain.Reminder, bool, error) {
	r, ok, err := e.service.store.LoadReminder(ctx, e.entityID, name)
	if err != nil {
		return domain.Reminder{}, false, fmt.Errorf("lookup reminder %s: %w", name, err)
	}
	return r, ok, nil
}

func (e *entityReminders) Register(ctx context.Context, name string, payload []byte, dueTime, period time.Duration) error {
	s := e.service
	reminder := domain.Reminder{
		EntityID:     e.entityID,
		Name:         name,
		Payload:      payload,
		DueTime:      dueTime,
		Period:       period,
		RegisteredAt: s.now().UTC(),
	}

	saved, err := s.store.SaveReminder(ctx, reminder)
	if err != nil {
		return fmt.Errorf("register reminder %s: %w", name, err)
	}
	if !saved {
		return fmt.Errorf("register reminder %s: %w", name, ErrReminderExists)
	}

	if err := s.scheduler.Arm(reminder, s.fire); err != nil {
		// Keep store and timers consistent so a retried start registers again.
		if delErr := s.store.DeleteReminder(context.WithoutCancel(ctx), e.entityID, name); delErr != nil {
			s.logger.Error("rollback reminder failed", "entity", e.entityID, "reminder", name, "error", delErr)
		}
		return fmt.Errorf("arm reminder %s: %w", name, err)
	}

	s.logger.Info("reminder registered",
		"entity", e.entityID,
		"reminder", name,
		"due", dueTime.String(),
		"period", period.String())
	return nil
}
