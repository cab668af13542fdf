// Package actor hosts long-lived entities. Every entity owns a mailbox drained by a
// single goroutine, so calls into one entity never overlap while different entities
// run in parallel. Entities are activated lazily on their first call and may register
// durable reminders that keep firing across process restarts.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

// ErrStopped is returned for calls made after the runtime was stopped.
var ErrStopped = errors.New("actor runtime stopped")

// Actor is an entity hosted by the runtime.
type Actor interface {
	OnActivate(ctx context.Context) error
	ReceiveReminder(ctx context.Context, name string, payload []byte, dueTime, period time.Duration) error
}

// Host is the runtime-provided environment of one entity.
type Host struct {
	ID        string
	State     ports.StateStore
	Reminders ports.ReminderRegistry
	Logger    *slog.Logger
}

// Factory builds the entity for a host. It runs on the entity's own goroutine.
type Factory[A Actor] func(host Host) A

// Options tunes turn execution and reminder redelivery.
type Options struct {
	TurnTimeout time.Duration
	MailboxSize int
	RetryDelay  time.Duration
	MaxRetries  int
}

func (o Options) withDefaults() Options {
	if o.TurnTimeout <= 0 {
		o.TurnTimeout = 2 * time.Minute
	}
	if o.MailboxSize <= 0 {
		o.MailboxSize = 16
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 30 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return o
}

// Runtime is the registry of active entities keyed by entity id.
type Runtime[A Actor] struct {
	backend   ports.StateBackend
	reminders *ReminderService
	scheduler ports.Scheduler
	factory   Factory[A]
	opts      Options
	logger    *slog.Logger

	mu        sync.Mutex
	mailboxes map[string]*mailbox[A]
	quit      chan struct{}
	stopped   bool
	wg        sync.WaitGroup
}

// Deps groups the collaborators of a Runtime.
type Deps[A Actor] struct {
	State     ports.StateBackend
	Reminders ports.ReminderStore
	Scheduler ports.Scheduler
	Factory   Factory[A]
	Options   Options
	Logger    *slog.Logger
}

// NewRuntime constructs a runtime; call Start before delivering reminders.
func NewRuntime[A Actor](deps Deps[A]) *Runtime[A] {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runtime[A]{
		backend:   deps.State,
		scheduler: deps.Scheduler,
		factory:   deps.Factory,
		opts:      deps.Options.withDefaults(),
		logger:    logger,
		mailboxes: map[string]*mailbox[A]{},
		quit:      make(chan struct{}),
	}
	r.reminders = NewReminderService(deps.Reminders, deps.Scheduler, func(rem domain.Reminder) {
		r.deliver(rem, 0)
	}, logger.With("component", "reminders"))
	return r
}

// Start starts the timer scheduler and re-arms persisted reminders.
func (r *Runtime[A]) Start(ctx context.Context) error {
	if err := r.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if _, err := r.reminders.Restore(ctx); err != nil {
		return fmt.Errorf("restore reminders: %w", err)
	}
	return nil
}

// Stop stops timers and mailboxes, waiting for in-flight turns to finish.
func (r *Runtime[A]) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.quit)
	r.mu.Unlock()

	schedErr := r.scheduler.Stop(ctx)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for mailboxes: %w", ctx.Err())
	}

	if schedErr != nil {
		return fmt.Errorf("stop scheduler: %w", schedErr)
	}
	return nil
}

// Call runs fn on the entity's goroutine and waits for its result. The entity is
// activated first if needed. A call whose ctx ends before it is dequeued is skipped.
func (r *Runtime[A]) Call(ctx context.Context, id string, fn func(ctx context.Context, a A) error) error {
	mb, err := r.mailbox(id)
	if err != nil {
		return err
	}

	c := turn[A]{ctx: ctx, fn: fn, reply: make(chan error, 1)}
	select {
	case mb.queue <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.quit:
		return ErrStopped
	}

	select {
	case err := <-c.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.quit:
		return ErrStopped
	}
}

func (r *Runtime[A]) mailbox(id string) (*mailbox[A], error) {
	if id == "" {
		return nil, fmt.Errorf("empty entity id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil, ErrStopped
	}
	if mb, ok := r.mailboxes[id]; ok {
		return mb, nil
	}

	mb := newMailbox[A](id, r.opts.MailboxSize)
	r.mailboxes[id] = mb
	r.wg.Add(1)
	go r.run(mb)
	return mb, nil
}

// deliver enqueues a reminder turn without waiting for it. Fires for a reminder that
// already has a queued turn are coalesced.
func (r *Runtime[A]) deliver(rem domain.Reminder, attempt int) {
	mb, err := r.mailbox(rem.EntityID)
	if err != nil {
		return
	}
	if !mb.markPending(rem.Name) {
		r.logger.Debug("reminder fire coalesced", "entity", rem.EntityID, "reminder", rem.Name)
		return
	}

	c := turn[A]{
		ctx:      context.Background(),
		reminder: rem.Name,
		fn: func(ctx context.Context, a A) error {
			return a.ReceiveReminder(ctx, rem.Name, rem.Payload, rem.DueTime, rem.Period)
		},
		after: func(err error) {
			if err == nil {
				return
			}
			r.logger.Error("reminder turn failed",
				"entity", rem.EntityID,
				"reminder", rem.Name,
				"attempt", attempt+1,
				"error", err)
			if attempt >= r.opts.MaxRetries {
				return
			}
			time.AfterFunc(r.opts.RetryDelay, func() {
				r.deliver(rem, attempt+1)
			})
		},
	}

	select {
	case mb.queue <- c:
	case <-r.quit:
	}
}

func (r *Runtime[A]) run(mb *mailbox[A]) {
	defer r.wg.Done()

	logger := r.logger.With("entity", mb.id)
	entity := r.factory(Host{
		ID:        mb.id,
		State:     r.backend.Scope(mb.id),
		Reminders: r.reminders.Scoped(mb.id),
		Logger:    logger,
	})
	activated := false

	for {
		select {
		case <-r.quit:
			return
		case c := <-mb.queue:
			if c.reminder != "" {
				mb.clearPending(c.reminder)
			}
			if err := c.ctx.Err(); err != nil {
				c.finish(err)
				continue
			}

			if !activated {
				if err := r.activate(entity); err != nil {
					c.finish(fmt.Errorf("activate %s: %w", mb.id, err))
					continue
				}
				activated = true
			}

			c.finish(r.execute(c, entity))
		}
	}
}

func (r *Runtime[A]) activate(entity A) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.TurnTimeout)
	defer cancel()
	return entity.OnActivate(ctx)
}

func (r *Runtime[A]) execute(c turn[A], entity A) (err error) {
	ctx, cancel := context.WithTimeout(c.ctx, r.opts.TurnTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("turn panicked: %v", p)
		}
	}()

	return c.fn(ctx, entity)
}
