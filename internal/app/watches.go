package app

import (
	"context"

	"TweetWatch/internal/actor"
	"TweetWatch/internal/domain"
	"TweetWatch/internal/server"
	"TweetWatch/internal/usecase"
)

// WatchService routes calls to watch entities through their mailboxes.
type WatchService struct {
	runtime *actor.Runtime[*usecase.Watch]
}

var _ server.Watches = (*WatchService)(nil)

// NewWatchService wraps a runtime hosting watches.
func NewWatchService(runtime *actor.Runtime[*usecase.Watch]) *WatchService {
	return &WatchService{runtime: runtime}
}

// Start begins periodic processing; usecase.ErrAlreadyStarted on repeat.
func (s *WatchService) Start(ctx context.Context, id string) error {
	return s.runtime.Call(ctx, id, func(ctx context.Context, w *usecase.Watch) error {
		return w.StartProcessing(ctx)
	})
}

// Configure stores the query used by the next ticks.
func (s *WatchService) Configure(ctx context.Context, id string, q domain.WatchQuery) error {
	return s.runtime.Call(ctx, id, func(ctx context.Context, w *usecase.Watch) error {
		return w.Configure(ctx, q)
	})
}

// Snapshot reads the persisted TweetData of a watch.
func (s *WatchService) Snapshot(ctx context.Context, id string) (domain.EnrichedBatch, bool, error) {
	var (
		batch domain.EnrichedBatch
		found bool
	)
	err := s.runtime.Call(ctx, id, func(ctx context.Context, w *usecase.Watch) error {
		var err error
		batch, found, err = w.Snapshot(ctx)
		return err
	})
	return batch, found, err
}

// Reminder reads the registered TweetReminder of a watch.
func (s *WatchService) Reminder(ctx context.Context, id string) (domain.Reminder, bool, error) {
	var (
		rem   domain.Reminder
		found bool
	)
	err := s.runtime.Call(ctx, id, func(ctx context.Context, w *usecase.Watch) error {
		var err error
		rem, found, err = w.Reminder(ctx)
		return err
	})
	return rem, found, err
}
