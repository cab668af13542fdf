package ports

import (
	"context"
	"time"

	"TweetWatch/internal/domain"
)

// TweetSearcher pulls recent tweets for an account from upstream providers.
type TweetSearcher interface {
	Search(ctx context.Context, account, query string) ([]domain.Tweet, error)
}

// SentimentScorer pushes tweet text to a model and returns a score in [0, 1].
type SentimentScorer interface {
	Score(ctx context.Context, tweet domain.Tweet) (float64, error)
}

// Notifier streams tick digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// StateStore is the durable key/value store of a single entity.
type StateStore interface {
	// TryCreate stores value under key only when the key is absent.
	TryCreate(ctx context.Context, key string, value []byte) (bool, error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// StateBackend hands out entity-scoped state stores.
type StateBackend interface {
	Scope(entityID string) StateStore
}

// ReminderStore persists reminder registrations across restarts.
type ReminderStore interface {
	// SaveReminder inserts the reminder; it returns false when one with the same
	// entity and name already exists.
	SaveReminder(ctx context.Context, reminder domain.Reminder) (bool, error)
	LoadReminder(ctx context.Context, entityID, name string) (domain.Reminder, bool, error)
	ListReminders(ctx context.Context) ([]domain.Reminder, error)
	DeleteReminder(ctx context.Context, entityID, name string) error
}

// ReminderRegistry is the entity-scoped view of the reminder service.
type ReminderRegistry interface {
	Lookup(ctx context.Context, name string) (domain.Reminder, bool, error)
	Register(ctx context.Context, name string, payload []byte, dueTime, period time.Duration) error
}

// Scheduler arms reminder timers. Arming a reminder again replaces its timer.
type Scheduler interface {
	Arm(reminder domain.Reminder, fire func(domain.Reminder)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
